// Package merge reconciles asserted (explicit) data with inferred fields
// under an explicit-wins precedence policy.
package merge

import (
	"strings"

	"github.com/structharvest/harvester/internal/capsule"
)

// Merge writes every inferred key into a copy of asserted unless asserted
// already carries a non-empty value for it. Human-authored structured data
// stays authoritative unless overwriteExplicit is requested.
func Merge(asserted, inferred map[string]any, overwriteExplicit bool) map[string]any {
	merged := make(map[string]any, len(asserted)+len(inferred))
	for key, value := range asserted {
		merged[key] = value
	}
	for key, value := range inferred {
		if overwriteExplicit || isEmpty(merged[key]) {
			merged[key] = value
		}
	}
	return merged
}

// Tags resolves the context/type pair with the same precedence as fields.
func Tags(assertedContext, assertedType, inferredType string, overwriteExplicit bool) (string, string) {
	resolvedType := assertedType
	if overwriteExplicit || resolvedType == "" {
		if inferredType != "" {
			resolvedType = inferredType
		}
	}
	return assertedContext, resolvedType
}

// Provenance union-merges inferred field metadata into the existing map,
// adding entries only for keys not already explicitly tracked.
func Provenance(existing, inferred map[string]capsule.InferredField) map[string]capsule.InferredField {
	out := make(map[string]capsule.InferredField, len(existing)+len(inferred))
	for key, field := range existing {
		out[key] = field
	}
	for key, field := range inferred {
		if _, tracked := out[key]; !tracked {
			out[key] = field
		}
	}
	return out
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
