// Package canonical normalizes structured-data trees into a deterministic
// form so that equivalent payloads serialize identically regardless of the
// ordering they arrived in.
package canonical

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize walks a decoded JSON tree and returns an equivalent tree in
// canonical form: map keys are emitted alphabetically on serialization and
// array elements are reordered by the lexical order of their canonical
// serialized form. Scalars pass through untouched.
func Canonicalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[key] = Canonicalize(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = Canonicalize(child)
		}
		sort.SliceStable(out, func(i, j int) bool {
			return serializedForm(out[i]) < serializedForm(out[j])
		})
		return out
	default:
		return value
	}
}

// Marshal serializes a canonicalized tree deterministically. encoding/json
// already emits map keys in sorted order, so canonical trees round-trip to
// byte-identical output.
func Marshal(value any) ([]byte, error) {
	data, err := json.Marshal(Canonicalize(value))
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	return data, nil
}

func serializedForm(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}
