// Package harness runs effect-checking scenarios as executable tests.
//
// A scenario names a set of input files (inline or on disk), checks them the
// way "noalloc check" does, records the run in an in-memory store and
// evaluates assertions against what was stored.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	sources:
//	  Buffer.cue: |
//	    class: Buffer: methods: "fill()": {
//	        annotations: ["NoAlloc"]
//	        body: [{new: "Integer"}]
//	    }
//	files:
//	  - ../java/Pool.java
//	options:
//	  suppress_key: alloceffect
//	  markers: {no_alloc: NoAlloc, may_alloc: MayAlloc}
//	assertions:
//	  - type: diagnostic_count
//	    kind: InvalidCall
//	    count: 1
//	  - type: diagnostic_at
//	    kind: InvalidCall
//	    file: Buffer.cue
//	    line: 3
//	  - type: effect
//	    method: Buffer.fill()
//	    effect: NoAlloc
//
// Files are resolved relative to the scenario file. Unknown keys are
// rejected, so a misspelt field fails loudly instead of being ignored.
//
// # Assertion Types
//
//   - diagnostic_count: exactly count diagnostics, of kind if given
//   - diagnostic_at: a diagnostic at file:line, optionally of kind, method
//     or with message containing the given text
//   - no_diagnostics: the check reported nothing
//   - effect: a method resolves to the given effect
//   - load_error: loading failed with the given error code (the check does
//     not run)
//
// # Golden Snapshots
//
// Snapshot renders a result as canonical JSON without diagnostic IDs or
// columns, so hand-maintained golden files stay stable across hash and
// position-format changes.
package harness
