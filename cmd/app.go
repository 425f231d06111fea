package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/augment"
	"github.com/structharvest/harvester/internal/capsule"
	"github.com/structharvest/harvester/internal/clock"
	"github.com/structharvest/harvester/internal/config"
	"github.com/structharvest/harvester/internal/contract"
	"github.com/structharvest/harvester/internal/harvest"
	"github.com/structharvest/harvester/internal/infer"
	"github.com/structharvest/harvester/internal/manifest"
	"github.com/structharvest/harvester/internal/metrics"
	"github.com/structharvest/harvester/internal/queue"
	"github.com/structharvest/harvester/internal/render"
	"github.com/structharvest/harvester/internal/snapshot"
	"github.com/structharvest/harvester/internal/store"
	"github.com/structharvest/harvester/internal/throttle"
)

// app holds the wired service graph shared by the subcommands.
type app struct {
	cfg          config.Config
	logger       *zap.Logger
	orchestrator *harvest.Orchestrator
	memQueue     *queue.Memory
	pubsubQueue  *queue.PubSub
	closers      []func() error
}

// queueSource returns the job source: Pub/Sub when configured, otherwise the
// in-memory queue.
func (a *app) queueSource() capsule.Queue {
	if a.pubsubQueue != nil {
		return a.pubsubQueue
	}
	return a.memQueue
}

// close releases resources in reverse construction order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// buildApp assembles every collaborator from configuration.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.Init()

	a := &app{cfg: cfg, logger: logger}
	clk := clock.New()

	var st capsule.Store
	if cfg.DB.DSN != "" {
		pg, err := store.NewPostgres(ctx, store.PostgresConfig{DSN: cfg.DB.DSN}, clk)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		st = pg
	} else {
		logger.Info("no database configured, using in-memory store")
		st = store.NewMemory(clk)
	}

	renderer, err := buildRenderer(cfg, logger)
	if err != nil {
		return nil, err
	}
	if closer, ok := renderer.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	var augmenter capsule.Augmenter
	if cfg.Model.Enabled {
		augmenter = augment.New(cfg.Model.APIKey, cfg.Model.Name, logger.Named("augment"))
	}
	engine := infer.New(logger.Named("infer"), augmenter)

	validator := contract.Disabled()
	if cfg.Contract.Enabled {
		validator = contract.Load(cfg.Contract.Path, logger)
	}

	recorder, err := manifest.NewRecorder(cfg.Harvest.RunsDir, clk, logger.Named("manifest"))
	if err != nil {
		return nil, fmt.Errorf("init manifest recorder: %w", err)
	}

	sink, err := buildSink(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	settings := harvest.Settings{
		UserAgent:     cfg.Harvest.UserAgent,
		PerHostDelay:  cfg.PerHostDelay(),
		MaxDepth:      cfg.Harvest.MaxDepth,
		MaxPages:      cfg.Harvest.MaxPages,
		SinglePage:    cfg.Harvest.SinglePage,
		Deterministic: cfg.Harvest.Deterministic,
		ModelEnabled:  cfg.Model.Enabled,
		Snapshots:     cfg.Snapshot.Enabled,
		RenderTimeout: cfg.RenderTimeout(),
	}

	a.orchestrator = harvest.New(
		renderer,
		st,
		throttle.New(cfg.PerHostDelay(), clk, throttle.TimerSleeper{}),
		engine,
		validator,
		recorder,
		sink,
		clk,
		settings,
		logger.Named("harvest"),
	)

	if cfg.PubSub.ProjectID != "" {
		ps, err := queue.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Subscription, logger.Named("queue"))
		if err != nil {
			return nil, fmt.Errorf("init pubsub queue: %w", err)
		}
		a.closers = append(a.closers, ps.Close)
		a.pubsubQueue = ps
	} else {
		a.memQueue = queue.NewMemory(cfg.Harvest.QueueDepth)
		a.closers = append(a.closers, func() error { a.memQueue.Close(); return nil })
	}

	return a, nil
}

func buildRenderer(cfg config.Config, logger *zap.Logger) (capsule.Renderer, error) {
	if cfg.Render.Headless {
		renderer, err := render.NewChromedpRenderer(render.ChromedpConfig{
			UserAgent:      cfg.Harvest.UserAgent,
			Timeout:        cfg.RenderTimeout(),
			MaxConcurrency: cfg.Render.MaxParallel,
		}, logger.Named("render"))
		if err != nil {
			return nil, fmt.Errorf("init headless renderer: %w", err)
		}
		return renderer, nil
	}
	renderer, err := render.NewStaticRenderer(render.StaticConfig{
		UserAgent:   cfg.Harvest.UserAgent,
		Timeout:     cfg.RenderTimeout(),
		Concurrency: cfg.Render.MaxParallel,
	}, logger.Named("render"))
	if err != nil {
		return nil, fmt.Errorf("init static renderer: %w", err)
	}
	return renderer, nil
}

func buildSink(ctx context.Context, cfg config.Config, a *app) (snapshot.Sink, error) {
	if !cfg.Snapshot.Enabled {
		return nil, nil
	}
	if cfg.Snapshot.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		sink, err := snapshot.NewGCSSink(client, cfg.Snapshot.GCSBucket, cfg.Snapshot.GCSPrefix)
		if err != nil {
			return nil, fmt.Errorf("init gcs sink: %w", err)
		}
		return sink, nil
	}
	sink, err := snapshot.NewFileSink(cfg.Snapshot.Dir)
	if err != nil {
		return nil, fmt.Errorf("init snapshot dir: %w", err)
	}
	return sink, nil
}
