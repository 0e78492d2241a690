package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/noalloc/internal/ir"
)

// marshalArgs converts diagnostic arguments to canonical JSON TEXT.
func marshalArgs(args map[string]string) (string, error) {
	data, err := ir.MarshalCanonical(ir.StringMap(args))
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses stored arguments. Empty objects read back as nil.
func unmarshalArgs(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}

// marshalSources converts the run's source list to canonical JSON TEXT.
func marshalSources(sources []string) (string, error) {
	data, err := ir.MarshalCanonical(ir.Strings(sources))
	if err != nil {
		return "", fmt.Errorf("marshal sources: %w", err)
	}
	return string(data), nil
}

func unmarshalSources(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var sources []string
	if err := json.Unmarshal([]byte(data), &sources); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}
	return sources, nil
}
