package frontier

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func page(links ...string) string {
	body := ""
	for _, link := range links {
		body += fmt.Sprintf(`<a href="%s">link</a>`, link)
	}
	return "<html><body>" + body + "</body></html>"
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"HTTPS://Example.COM/Path?b=2&a=1":          "https://example.com/Path?a=1&b=2",
		"https://example.com/p#section":             "https://example.com/p",
		"https://example.com/p?utm_source=x&id=7":   "https://example.com/p?id=7",
		"https://example.com/p?gclid=abc&fbclid=zz": "https://example.com/p",
	}
	for raw, want := range cases {
		got, err := Normalize(raw)
		require.NoError(t, err)
		require.Equal(t, want, got, "input %q", raw)
	}
}

func TestBFSOrderAndDedup(t *testing.T) {
	t.Parallel()

	f, err := New("https://example.com/", 2, 10, false)
	require.NoError(t, err)

	seed, depth, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/", seed)
	require.Zero(t, depth)

	f.Expand(page("/a", "/b", "/a", "https://other.example.org/x", "mailto:x@y.z"), seed, 0)

	first, depth, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/a", first)
	require.Equal(t, 1, depth)

	// Children discovered later come after all depth-1 pages.
	f.Expand(page("/c"), first, 1)

	second, _, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/b", second)

	third, depth, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/c", third)
	require.Equal(t, 2, depth)

	_, _, ok = f.Next()
	require.False(t, ok)
}

func TestPageCapStopsTraversal(t *testing.T) {
	t.Parallel()

	f, err := New("https://example.com/", 5, 2, false)
	require.NoError(t, err)

	seed, _, _ := f.Next()
	f.Expand(page("/a", "/b", "/c"), seed, 0)

	_, _, ok := f.Next()
	require.True(t, ok)
	_, _, ok = f.Next()
	require.False(t, ok, "page cap must stop the crawl")
}

func TestDepthCapVisitedNotExpanded(t *testing.T) {
	t.Parallel()

	f, err := New("https://example.com/", 1, 10, false)
	require.NoError(t, err)

	seed, _, _ := f.Next()
	f.Expand(page("/a"), seed, 0)

	leaf, depth, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, 1, depth)

	// At the depth cap the page is visited but its links are ignored.
	f.Expand(page("/deeper"), leaf, depth)
	_, _, ok = f.Next()
	require.False(t, ok)
}

func TestSinglePageMode(t *testing.T) {
	t.Parallel()

	f, err := New("https://example.com/", 3, 50, true)
	require.NoError(t, err)

	seed, _, ok := f.Next()
	require.True(t, ok)

	f.Expand(page("/a", "/b"), seed, 0)
	_, _, ok = f.Next()
	require.False(t, ok)
}

func TestTrackingParamsCollapseToOnePage(t *testing.T) {
	t.Parallel()

	f, err := New("https://example.com/", 2, 10, false)
	require.NoError(t, err)
	seed, _, _ := f.Next()

	f.Expand(page("/p?utm_source=mail", "/p?utm_campaign=x", "/p"), seed, 0)

	got, _, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/p", got)
	_, _, ok = f.Next()
	require.False(t, ok)
}
