package ir

// Version constants for the IR schema and checker.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// CheckerVersion is the noalloc checker version.
	CheckerVersion = "0.1.0"
)
