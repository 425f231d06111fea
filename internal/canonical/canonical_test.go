package canonical

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalStableUnderKeyOrder(t *testing.T) {
	t.Parallel()

	a := map[string]any{"name": "Acme Anvil", "price": "49.99", "sku": "AV-100"}
	b := map[string]any{"sku": "AV-100", "price": "49.99", "name": "Acme Anvil"}

	dataA, err := Marshal(a)
	require.NoError(t, err)
	dataB, err := Marshal(b)
	require.NoError(t, err)
	require.Equal(t, string(dataA), string(dataB))
}

func TestCanonicalizeSortsArrays(t *testing.T) {
	t.Parallel()

	got := Canonicalize([]any{"b", "a", "c"})
	require.Equal(t, []any{"a", "b", "c"}, got)
}

func TestCanonicalizeSortsArraysOfObjects(t *testing.T) {
	t.Parallel()

	first := map[string]any{"name": "zeta"}
	second := map[string]any{"name": "alpha"}

	dataA, err := Marshal([]any{first, second})
	require.NoError(t, err)
	dataB, err := Marshal([]any{second, first})
	require.NoError(t, err)
	require.Equal(t, string(dataA), string(dataB))
}

func TestCanonicalizeRecursesIntoNestedValues(t *testing.T) {
	t.Parallel()

	a := map[string]any{
		"offers": map[string]any{"tags": []any{"sale", "new"}},
	}
	b := map[string]any{
		"offers": map[string]any{"tags": []any{"new", "sale"}},
	}

	dataA, err := Marshal(a)
	require.NoError(t, err)
	dataB, err := Marshal(b)
	require.NoError(t, err)
	require.Equal(t, string(dataA), string(dataB))
}

func TestCanonicalizeLeavesScalars(t *testing.T) {
	t.Parallel()

	require.Equal(t, "plain", Canonicalize("plain"))
	require.Equal(t, 42.0, Canonicalize(42.0))
	require.Nil(t, Canonicalize(nil))
}
