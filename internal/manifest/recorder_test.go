package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestFinalizeWritesManifestOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clock := fixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	recorder, err := NewRecorder(dir, clock, zap.NewNop())
	require.NoError(t, err)

	seed := capsule.Job{OwnerSlug: "acme", URL: "https://example.com"}
	builder := recorder.Begin("run-1", seed, capsule.Settings{MaxPages: 5})

	builder.SetNode("node-1", capsule.CategoryEcommerce)
	builder.Counters().Pages = 3
	builder.Counters().Inserted = 2
	builder.AddReceipt(capsule.Receipt{URL: "https://example.com", Status: capsule.StatusOK})
	builder.AddError("render https://example.com/broken", errors.New("timeout"))

	path, err := builder.Finalize()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "run-1.json"), path)

	// Finalize is write-once; a second call returns the same result.
	again, err := builder.Finalize()
	require.NoError(t, err)
	require.Equal(t, path, again)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var m capsule.RunManifest
	require.NoError(t, json.Unmarshal(data, &m))
	require.Equal(t, "run-1", m.RunID)
	require.Equal(t, seed, m.Seed)
	require.Equal(t, "node-1", m.Node.ID)
	require.Equal(t, capsule.CategoryEcommerce, m.Node.Category)
	require.Equal(t, 3, m.Summary.Pages)
	require.Equal(t, 2, m.Summary.Inserted)
	require.Equal(t, 1, m.Summary.Errors)
	require.Len(t, m.Receipts, 1)
	require.Len(t, m.Errors, 1)
	require.Contains(t, m.Errors[0], "timeout")
	require.Equal(t, clock.now, m.StartedAt)
	require.Equal(t, clock.now, m.FinishedAt)
}

func TestFinalizeOnEmptyRun(t *testing.T) {
	t.Parallel()

	recorder, err := NewRecorder(t.TempDir(), fixedClock{now: time.Now().UTC()}, zap.NewNop())
	require.NoError(t, err)

	builder := recorder.Begin("run-2", capsule.Job{URL: "https://example.com"}, capsule.Settings{})
	path, err := builder.Finalize()
	require.NoError(t, err)
	require.FileExists(t, path)
}

func TestNewRecorderCreatesDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "runs")
	_, err := NewRecorder(dir, fixedClock{}, zap.NewNop())
	require.NoError(t, err)
	require.DirExists(t, dir)
}
