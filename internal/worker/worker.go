// Package worker implements the harvest execution loop.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
	"github.com/structharvest/harvester/internal/harvest"
	"github.com/structharvest/harvester/internal/queue"
)

// Worker consumes jobs from a queue and drives the harvest pipeline. A job
// failure is logged and the loop continues; the manifest already holds the
// details since the orchestrator writes it on every exit path.
type Worker struct {
	queue        capsule.Queue
	orchestrator *harvest.Orchestrator
	logger       *zap.Logger
}

// New constructs a Worker.
func New(q capsule.Queue, orchestrator *harvest.Orchestrator, logger *zap.Logger) *Worker {
	return &Worker{
		queue:        q,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Run blocks, consuming jobs until the context finishes or the queue closes.
// A job that runs to completion is acked; a fatal job error nacks the
// delivery so the source's retry policy can redeliver it.
func (w *Worker) Run(ctx context.Context) {
	for {
		delivery, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		job := delivery.Job
		w.logger.Debug("dequeued job",
			zap.String("owner", job.OwnerSlug), zap.String("url", job.URL))

		result, err := w.orchestrator.RunJob(ctx, job)
		if err != nil {
			delivery.Nack()
			w.logger.Error("harvest job failed",
				zap.String("url", job.URL), zap.Error(err))
			continue
		}
		delivery.Ack()
		w.logger.Info("harvest job complete",
			zap.String("url", job.URL),
			zap.String("run_id", result.RunID),
			zap.String("manifest", result.ManifestPath))
	}
}
