package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainDiagnostic = "noalloc/diagnostic/v1"
	DomainProgram    = "noalloc/program/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DiagnosticID computes a content-addressed identity for a diagnostic.
// Identical findings on identical input always get the same ID, which makes
// runs comparable across time.
func DiagnosticID(kind, method string, pos Pos, args map[string]string) (string, error) {
	obj := Object{
		"kind":   String(kind),
		"method": String(method),
		"file":   String(pos.File),
		"line":   Int(pos.Line),
		"column": Int(pos.Column),
		"args":   StringMap(args),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DiagnosticID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDiagnostic, canonical), nil
}

// ProgramHash computes a content hash of a program.
//
// The program is first rendered with encoding/json (struct field order is
// fixed) and then re-encoded canonically via a generic decode, so the hash
// does not depend on map iteration or whitespace.
func ProgramHash(p *Program) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("ProgramHash: failed to decode: %w", err)
	}
	v, err := fromJSON(generic)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: %w", err)
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// fromJSON converts a decoded JSON tree into canonical values.
func fromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden")
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are forbidden: %s", val)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			converted, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = converted
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			if elem == nil {
				// nil slices render as null; absent and empty hash alike
				continue
			}
			converted, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = converted
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
