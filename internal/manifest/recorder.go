// Package manifest builds and persists the per-job audit record. A manifest
// is written exactly once for every job execution, including ones that fail
// partway through.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
)

// Recorder creates manifest builders rooted at a runs directory.
type Recorder struct {
	runsDir string
	clock   capsule.Clock
	logger  *zap.Logger
}

// NewRecorder ensures the runs directory exists.
func NewRecorder(runsDir string, clock capsule.Clock, logger *zap.Logger) (*Recorder, error) {
	if err := os.MkdirAll(runsDir, 0o750); err != nil {
		return nil, fmt.Errorf("create runs dir %s: %w", runsDir, err)
	}
	return &Recorder{runsDir: runsDir, clock: clock, logger: logger}, nil
}

// Begin opens a builder for one job. Callers must arrange for Finalize to
// run on every exit path.
func (r *Recorder) Begin(runID string, seed capsule.Job, settings capsule.Settings) *Builder {
	return &Builder{
		recorder: r,
		manifest: capsule.RunManifest{
			RunID:     runID,
			StartedAt: r.clock.Now(),
			Seed:      seed,
			Settings:  settings,
		},
	}
}

// Builder accumulates one run's manifest. It is owned by a single job
// goroutine and needs no locking beyond the write-once guard.
type Builder struct {
	recorder  *Recorder
	manifest  capsule.RunManifest
	writeOnce sync.Once
	path      string
	writeErr  error
}

// Counters exposes the mutable aggregate counters.
func (b *Builder) Counters() *capsule.Counters {
	return &b.manifest.Summary
}

// SetNode records the node the run operated on.
func (b *Builder) SetNode(id string, category capsule.Category) {
	b.manifest.Node = capsule.NodeSummary{ID: id, Category: category}
}

// AddReceipt appends a per-page receipt.
func (b *Builder) AddReceipt(receipt capsule.Receipt) {
	b.manifest.Receipts = append(b.manifest.Receipts, receipt)
}

// AddError appends to the run's error list and error counter.
func (b *Builder) AddError(context string, err error) {
	b.manifest.Errors = append(b.manifest.Errors, fmt.Sprintf("%s: %v", context, err))
	b.manifest.Summary.Errors++
}

// Finalize stamps the end time, writes the manifest document, and emits the
// per-job statistics log line. Repeat calls are no-ops returning the first
// result; the file is never rewritten after the job ends.
func (b *Builder) Finalize() (string, error) {
	b.writeOnce.Do(func() {
		b.manifest.FinishedAt = b.recorder.clock.Now()
		b.path = filepath.Join(b.recorder.runsDir, b.manifest.RunID+".json")

		payload, err := json.MarshalIndent(b.manifest, "", "  ")
		if err != nil {
			b.writeErr = fmt.Errorf("marshal manifest: %w", err)
			return
		}
		if err := os.WriteFile(b.path, payload, 0o600); err != nil {
			b.writeErr = fmt.Errorf("write manifest %s: %w", b.path, err)
			return
		}

		b.recorder.logger.Info("site stats",
			zap.String("run_id", b.manifest.RunID),
			zap.String("owner", b.manifest.Seed.OwnerSlug),
			zap.String("url", b.manifest.Seed.URL),
			zap.Int("pages", b.manifest.Summary.Pages),
			zap.Int("capsules", b.manifest.Summary.Capsules),
			zap.Int("inferred", b.manifest.Summary.Inferred),
			zap.Int("inserted", b.manifest.Summary.Inserted),
			zap.Int("rejected", b.manifest.Summary.Rejected),
			zap.Int("schema_errors", b.manifest.Summary.SchemaErrors),
			zap.Int("errors", b.manifest.Summary.Errors),
		)
	})
	return b.path, b.writeErr
}

// Manifest returns a copy of the current manifest state, mainly for tests.
func (b *Builder) Manifest() capsule.RunManifest {
	return b.manifest
}
