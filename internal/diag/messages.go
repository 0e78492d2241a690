package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Argument keys used by the checker when reporting.
const (
	ArgMethod       = "method"
	ArgAncestor     = "ancestor"
	ArgAncestorType = "ancestor_type"
	ArgAllocation   = "alloc_override"
	ArgSafe         = "safe_override"
	ArgTarget       = "target"
	ArgTargetEffect = "target_effect"
	ArgCallerEffect = "caller_effect"
)

// Message renders the catalogue text for kind with args. Missing arguments
// render as "?".
func Message(kind Kind, args map[string]string) string {
	get := func(key string) string {
		if v, ok := args[key]; ok && v != "" {
			return v
		}
		return "?"
	}
	switch kind {
	case AnnotationConflict:
		return fmt.Sprintf("method %s is marked both NoAlloc and MayAlloc", get(ArgMethod))
	case InvalidOverride:
		return fmt.Sprintf("MayAlloc method %s overrides NoAlloc method %s in %s",
			get(ArgMethod), get(ArgAncestor), get(ArgAncestorType))
	case AmbiguousInheritance:
		return fmt.Sprintf("method %s inherits conflicting effects: %s is MayAlloc, %s is NoAlloc",
			get(ArgMethod), get(ArgAllocation), get(ArgSafe))
	case InvalidCall:
		return fmt.Sprintf("%s has effect %s, not allowed in %s method %s",
			get(ArgTarget), get(ArgTargetEffect), get(ArgCallerEffect), get(ArgMethod))
	}
	if len(args) == 0 {
		return string(kind)
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + args[k]
	}
	return string(kind) + ": " + strings.Join(parts, ", ")
}
