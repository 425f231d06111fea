package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

func newTestStaticRenderer(t *testing.T) *StaticRenderer {
	t.Helper()
	r, err := NewStaticRenderer(StaticConfig{
		UserAgent: "harvester-test",
		Timeout:   5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestStaticRendererFetchesPage(t *testing.T) {
	t.Parallel()

	body := `<html><head><title>Acme</title>
<script type="application/ld+json">{"@type":"Product","name":"Anvil"}</script>
</head><body><h1>Anvil</h1><p>$49.99</p></body></html>`

	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	page, err := newTestStaticRenderer(t).Render(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, srv.URL, page.URL)
	require.Contains(t, page.HTML, `"@type":"Product"`)
	require.Contains(t, page.VisibleText, "Anvil")
	require.Contains(t, page.VisibleText, "$49.99")
	require.NotContains(t, page.VisibleText, "@type")
	require.Equal(t, "harvester-test", gotAgent)
}

func TestStaticRendererReportsHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestStaticRenderer(t).Render(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "static fetch")
}

func TestStaticRendererRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := newTestStaticRenderer(t).Render(context.Background(), "://broken")
	require.Error(t, err)
}
