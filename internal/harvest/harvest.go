// Package harvest wires the pipeline into one job execution: render,
// extract, infer, merge, fingerprint, validate, persist, classify, record.
package harvest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
	"github.com/structharvest/harvester/internal/classify"
	"github.com/structharvest/harvester/internal/contract"
	"github.com/structharvest/harvester/internal/extract"
	"github.com/structharvest/harvester/internal/fingerprint"
	"github.com/structharvest/harvester/internal/frontier"
	"github.com/structharvest/harvester/internal/infer"
	"github.com/structharvest/harvester/internal/manifest"
	"github.com/structharvest/harvester/internal/merge"
	"github.com/structharvest/harvester/internal/metrics"
	"github.com/structharvest/harvester/internal/runid"
	"github.com/structharvest/harvester/internal/snapshot"
	"github.com/structharvest/harvester/internal/throttle"
)

// Settings are the effective per-job knobs, snapshotted into the manifest.
type Settings struct {
	UserAgent     string
	PerHostDelay  time.Duration
	MaxDepth      int
	MaxPages      int
	SinglePage    bool
	Deterministic bool
	ModelEnabled  bool
	Snapshots     bool
	RenderTimeout time.Duration
}

func (s Settings) snapshot(validation bool) capsule.Settings {
	return capsule.Settings{
		UserAgent:     s.UserAgent,
		PerHostDelay:  s.PerHostDelay.String(),
		MaxDepth:      s.MaxDepth,
		MaxPages:      s.MaxPages,
		SinglePage:    s.SinglePage,
		Deterministic: s.Deterministic,
		ModelEnabled:  s.ModelEnabled,
		Snapshots:     s.Snapshots,
		Validation:    validation,
	}
}

// Orchestrator executes harvest jobs. One instance serves every worker; all
// per-job state lives on the stack of RunJob.
type Orchestrator struct {
	renderer  capsule.Renderer
	store     capsule.Store
	throttle  *throttle.Throttle
	engine    *infer.Engine
	validator *contract.Validator
	recorder  *manifest.Recorder
	sink      snapshot.Sink
	clock     capsule.Clock
	settings  Settings
	logger    *zap.Logger
}

// New constructs an Orchestrator. sink may be nil when snapshots are off.
func New(
	renderer capsule.Renderer,
	store capsule.Store,
	throt *throttle.Throttle,
	engine *infer.Engine,
	validator *contract.Validator,
	recorder *manifest.Recorder,
	sink snapshot.Sink,
	clock capsule.Clock,
	settings Settings,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		renderer:  renderer,
		store:     store,
		throttle:  throt,
		engine:    engine,
		validator: validator,
		recorder:  recorder,
		sink:      sink,
		clock:     clock,
		settings:  settings,
		logger:    logger,
	}
}

// RunJob harvests one site. Page-level failures are absorbed into the
// manifest; only job-fatal errors propagate, and the manifest is written
// before they do so no execution goes unaccounted for.
func (o *Orchestrator) RunJob(ctx context.Context, job capsule.Job) (result capsule.JobResult, err error) {
	started := o.clock.Now()
	runID := runid.New(started)
	logger := o.logger.With(zap.String("run_id", runID), zap.String("url", job.URL))

	builder := o.recorder.Begin(runID, job, o.settings.snapshot(o.validator.Enabled()))
	defer func() {
		path, werr := builder.Finalize()
		if werr != nil {
			logger.Error("manifest write failed", zap.Error(werr))
		}
		if err == nil {
			result = capsule.JobResult{OK: true, RunID: runID, ManifestPath: path}
			metrics.ObserveJob("ok", o.clock.Now().Sub(started))
		} else {
			metrics.ObserveJob("failed", o.clock.Now().Sub(started))
		}
	}()

	nodeID, err := o.store.UpsertNode(ctx, job.OwnerSlug, job.URL)
	if err != nil {
		builder.AddError("upsert node", err)
		metrics.ObserveError("job_fatal")
		return capsule.JobResult{}, fmt.Errorf("upsert node: %w", err)
	}
	builder.SetNode(nodeID, capsule.CategoryUnset)

	front, err := frontier.New(job.URL, o.settings.MaxDepth, o.settings.MaxPages, o.settings.SinglePage)
	if err != nil {
		builder.AddError("seed frontier", err)
		metrics.ObserveError("job_fatal")
		return capsule.JobResult{}, fmt.Errorf("seed frontier: %w", err)
	}

	var contents []map[string]any
	for {
		pageURL, depth, ok := front.Next()
		if !ok {
			break
		}
		if ctx.Err() != nil {
			builder.AddError("job canceled", ctx.Err())
			return capsule.JobResult{}, fmt.Errorf("job canceled: %w", ctx.Err())
		}

		merged, receipt := o.processPage(ctx, runID, nodeID, pageURL, depth, front, builder, logger)
		builder.AddReceipt(receipt)
		if merged != nil {
			contents = append(contents, merged)
		}
	}

	category := o.classifyNode(ctx, nodeID, contents, logger)
	builder.SetNode(nodeID, category)

	return capsule.JobResult{}, nil
}

// processPage runs the full pipeline for one URL. Errors are absorbed into
// the receipt and counters; the merged content object is returned for the
// classifier when the page produced a capsule.
func (o *Orchestrator) processPage(
	ctx context.Context,
	runID, nodeID, pageURL string,
	depth int,
	front *frontier.Frontier,
	builder *manifest.Builder,
	logger *zap.Logger,
) (map[string]any, capsule.Receipt) {
	counters := builder.Counters()
	pageStart := o.clock.Now()
	receipt := capsule.Receipt{URL: pageURL}
	finish := func() capsule.Receipt {
		receipt.DurationMs = o.clock.Now().Sub(pageStart).Milliseconds()
		return receipt
	}

	throttleStart := o.clock.Now()
	o.throttle.Wait(ctx, pageURL)
	if delay := o.clock.Now().Sub(throttleStart); delay > time.Millisecond {
		if host, herr := capsule.DeriveDomain(pageURL); herr == nil {
			metrics.ObserveThrottleDelay(host, delay)
		}
	}

	renderCtx, cancel := context.WithTimeout(ctx, o.settings.RenderTimeout)
	defer cancel()
	page, err := o.renderer.Render(renderCtx, pageURL)
	if err != nil {
		// Page-level: record and keep crawling.
		receipt.Status = capsule.StatusError
		receipt.Error = err.Error()
		builder.AddError("render "+pageURL, err)
		metrics.ObserveError("page_transient")
		metrics.ObservePage("error")
		return nil, finish()
	}
	counters.Pages++

	if o.sink != nil && o.settings.Snapshots {
		if _, serr := o.sink.Save(ctx, pageURL, page.HTML); serr != nil {
			logger.Warn("snapshot save failed", zap.String("page", pageURL), zap.Error(serr))
		}
	}

	capturedAt := o.clock.Now()
	extracted := extract.Extract(page.HTML, pageURL, capturedAt)
	if extracted.RawCount > 0 && !extracted.Found {
		logger.Warn("structured data present but unparsable",
			zap.String("page", pageURL), zap.Int("raw_blocks", extracted.RawCount))
	}

	seed := buildSeed(pageURL, extracted)
	outcome := o.engine.Infer(ctx, page.HTML, page.VisibleText, seed, infer.Options{
		ModelEnabled: o.settings.ModelEnabled,
	})
	counters.Inferred += len(outcome.Fields)

	merged := merge.Merge(seed.Content, outcome.Content, false)
	resolvedContext, resolvedType := merge.Tags(seed.Context, seed.Type, outcome.TypeGuess, false)

	env := capsule.Envelope{
		Context:    resolvedContext,
		Type:       resolvedType,
		SourceURL:  pageURL,
		CapturedAt: capturedAt,
		RunID:      runID,
		Asserted:   extracted.Blocks,
		Content:    merged,
		Inferred:   merge.Provenance(nil, outcome.Fields),
		Report: capsule.Report{
			MarkupFound:   extracted.Found,
			RawBlocks:     extracted.RawCount,
			ParsedBlocks:  len(extracted.Blocks),
			ParseErrors:   extracted.ParseErrors,
			Deterministic: o.settings.Deterministic,
			ModelUsed:     outcome.ModelUsed,
		},
	}
	for range extracted.ParseErrors {
		metrics.ObserveError("parse_error")
	}

	infer.NormalizeContentPrice(env.Content)
	infer.ApplyPriceGuardrail(env.Content, &env.Report)

	fp, err := fingerprint.Compute(env, o.settings.Deterministic)
	if err != nil {
		receipt.Status = capsule.StatusError
		receipt.Error = err.Error()
		builder.AddError("fingerprint "+pageURL, err)
		metrics.ObservePage("error")
		return nil, finish()
	}
	env.Fingerprint = fp
	receipt.Fingerprint = fp

	status := capsule.StatusOK
	if valid, violations := o.validator.Validate(env); !valid {
		status = capsule.StatusNeedsReview
		env.Report.SchemaErrors = violations
		counters.SchemaErrors += len(violations)
		metrics.ObserveError("schema_violation")
	}

	inserted, err := o.store.InsertCapsule(ctx, nodeID, env, status)
	if err != nil {
		counters.Rejected++
		receipt.Status = capsule.StatusError
		receipt.Error = err.Error()
		builder.AddError("persist "+pageURL, err)
		metrics.ObservePage("error")
		return nil, finish()
	}
	counters.Capsules++
	if inserted {
		counters.Inserted++
	}
	receipt.Status = status
	metrics.ObservePage(string(status))
	metrics.ObserveCapsule(string(status))

	front.Expand(page.HTML, pageURL, depth)

	// The classifier sees content plus the resolved type tag.
	view := make(map[string]any, len(env.Content)+1)
	for key, value := range env.Content {
		view[key] = value
	}
	if env.Type != "" {
		view["@type"] = env.Type
	}
	return view, finish()
}

// classifyNode labels the node from the aggregate of all merged content.
// Failure leaves the category unset and never fails the job.
func (o *Orchestrator) classifyNode(ctx context.Context, nodeID string, contents []map[string]any, logger *zap.Logger) capsule.Category {
	category := classify.Classify(contents)
	if err := o.store.UpdateNodeCategory(ctx, nodeID, category); err != nil {
		logger.Warn("node classification not stored", zap.Error(err))
		metrics.ObserveError("classification")
		return capsule.CategoryUnset
	}
	return category
}

// buildSeed folds every asserted block into one content object, first block
// wins on key collisions, and lifts the @context/@type tags.
func buildSeed(pageURL string, extracted extract.Result) capsule.Envelope {
	seed := capsule.Envelope{
		SourceURL: pageURL,
		Content:   map[string]any{},
	}
	for _, block := range extracted.Blocks {
		for key, value := range block.Data {
			if _, exists := seed.Content[key]; !exists {
				seed.Content[key] = value
			}
		}
	}
	if t, ok := seed.Content["@type"].(string); ok {
		seed.Type = t
		delete(seed.Content, "@type")
	}
	if c, ok := seed.Content["@context"].(string); ok {
		seed.Context = c
		delete(seed.Content, "@context")
	}
	return seed
}
