package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
	"github.com/structharvest/harvester/internal/metrics"
)

type captureEnqueuer struct {
	jobs []capsule.Job
	err  error
}

func (c *captureEnqueuer) Enqueue(_ context.Context, job capsule.Job) error {
	if c.err != nil {
		return c.err
	}
	c.jobs = append(c.jobs, job)
	return nil
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(&captureEnqueuer{}, "default", zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics.Init()
	srv := NewServer(&captureEnqueuer{}, "default", zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitJobAccepted(t *testing.T) {
	t.Parallel()

	enq := &captureEnqueuer{}
	srv := NewServer(enq, "default", zap.NewNop())

	body := strings.NewReader(`{"owner_slug":"acme","url":"https://example.com"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", body))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.jobs, 1)
	require.Equal(t, capsule.Job{OwnerSlug: "acme", URL: "https://example.com"}, enq.jobs[0])
}

func TestSubmitJobDefaultsOwner(t *testing.T) {
	t.Parallel()

	enq := &captureEnqueuer{}
	srv := NewServer(enq, "house", zap.NewNop())

	body := strings.NewReader(`{"url":"https://example.com"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", body))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "house", enq.jobs[0].OwnerSlug)
}

func TestSubmitJobRejectsBadInput(t *testing.T) {
	t.Parallel()

	srv := NewServer(&captureEnqueuer{}, "default", zap.NewNop())

	for _, body := range []string{`not json`, `{"owner_slug":"acme"}`} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestSubmitJobQueueFailure(t *testing.T) {
	t.Parallel()

	srv := NewServer(&captureEnqueuer{err: errors.New("full")}, "default", zap.NewNop())
	body := strings.NewReader(`{"url":"https://example.com"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", body))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
