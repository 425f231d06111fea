// Package capsule defines the core types shared across the harvesting
// pipeline: harvested nodes, asserted and inferred data, envelopes, and the
// per-run audit manifest.
package capsule

import "time"

// Category is the coarse label assigned to a node after a harvest.
type Category string

// Node categories assigned by the classifier.
const (
	CategoryUnset     Category = ""
	CategoryEcommerce Category = "ecommerce"
	CategoryMedia     Category = "media"
	CategorySMB       Category = "smb"
	CategoryCorporate Category = "corporate"
	CategoryLanding   Category = "landing"
)

// Status is the persistence status assigned to a capsule.
type Status string

// Capsule status values.
const (
	StatusOK          Status = "ok"
	StatusNeedsReview Status = "needs_review"
	StatusError       Status = "error"
)

// FieldSource identifies how an inferred field was produced.
type FieldSource string

// Inferred field sources.
const (
	SourceHeuristic FieldSource = "heuristic"
	SourceModel     FieldSource = "model"
)

// Node is a harvested site identity, unique per (owner, domain).
// The domain is always derived from the source URL, never set directly.
type Node struct {
	ID            string    `json:"id"`
	OwnerSlug     string    `json:"owner_slug"`
	SourceURL     string    `json:"source_url"`
	Domain        string    `json:"domain"`
	Category      Category  `json:"category,omitempty"`
	LastHarvested time.Time `json:"last_harvested"`
}

// Provenance describes where an asserted block came from.
type Provenance struct {
	SourceURL  string    `json:"source_url"`
	CapturedAt time.Time `json:"captured_at"`
	Evidence   string    `json:"evidence"`
	Locator    int       `json:"locator"`
	RawHash    string    `json:"raw_hash"`
}

// AssertedBlock is one structured-data object embedded in a page, paired
// with provenance. Immutable once extracted.
type AssertedBlock struct {
	Data       map[string]any `json:"data"`
	Provenance Provenance     `json:"provenance"`
}

// InferredField is a value derived by heuristics or a model, with the
// metadata the merger and the audit trail need.
type InferredField struct {
	Value      any         `json:"value"`
	Confidence float64     `json:"confidence"`
	Source     FieldSource `json:"source"`
	Method     string      `json:"method"`
}

// ParseError records one unparsable structured-data block.
type ParseError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// Report summarizes what happened while building one envelope.
type Report struct {
	MarkupFound   bool         `json:"markup_found"`
	RawBlocks     int          `json:"raw_blocks"`
	ParsedBlocks  int          `json:"parsed_blocks"`
	ParseErrors   []ParseError `json:"parse_errors,omitempty"`
	Deterministic bool         `json:"deterministic"`
	ModelUsed     bool         `json:"model_used"`
	SchemaErrors  []string     `json:"schema_errors,omitempty"`
	RemovedFields []Removal    `json:"removed_fields,omitempty"`
}

// Removal notes a field dropped by a post-merge guardrail.
type Removal struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Envelope is the structured-data output document for one page. It is
// constructed once by the orchestrator and immutable thereafter.
type Envelope struct {
	Context     string                   `json:"@context,omitempty"`
	Type        string                   `json:"@type,omitempty"`
	SourceURL   string                   `json:"source_url"`
	CapturedAt  time.Time                `json:"captured_at"`
	RunID       string                   `json:"run_id,omitempty"`
	Asserted    []AssertedBlock          `json:"asserted,omitempty"`
	Content     map[string]any           `json:"content"`
	Inferred    map[string]InferredField `json:"inferred,omitempty"`
	Report      Report                   `json:"report"`
	Fingerprint string                   `json:"fingerprint,omitempty"`
}

// Job is one unit of work pulled from the queue: harvest one site.
type Job struct {
	OwnerSlug string `json:"ownerSlug"`
	URL       string `json:"url"`
}

// JobResult is returned to the queue layer on success.
type JobResult struct {
	OK           bool   `json:"ok"`
	RunID        string `json:"runId"`
	ManifestPath string `json:"manifestPath"`
}

// Settings is the effective configuration snapshot recorded in a manifest.
type Settings struct {
	UserAgent     string `json:"user_agent"`
	PerHostDelay  string `json:"per_host_delay"`
	MaxDepth      int    `json:"max_depth"`
	MaxPages      int    `json:"max_pages"`
	SinglePage    bool   `json:"single_page"`
	Deterministic bool   `json:"deterministic"`
	ModelEnabled  bool   `json:"model_enabled"`
	Snapshots     bool   `json:"snapshots"`
	Validation    bool   `json:"validation"`
}

// Counters aggregates per-job outcome totals.
type Counters struct {
	Pages        int `json:"pages"`
	Capsules     int `json:"capsules"`
	Inferred     int `json:"inferred"`
	Inserted     int `json:"inserted"`
	Rejected     int `json:"rejected"`
	SchemaErrors int `json:"schemaErrors"`
	Errors       int `json:"errors"`
}

// Receipt records the outcome for a single visited page.
type Receipt struct {
	URL         string `json:"url"`
	Status      Status `json:"status,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// NodeSummary identifies the node a run operated on.
type NodeSummary struct {
	ID       string   `json:"id"`
	Category Category `json:"category,omitempty"`
}

// RunManifest is the audit record written exactly once per job execution,
// including failed ones.
type RunManifest struct {
	RunID      string      `json:"run_id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Seed       Job         `json:"seed"`
	Settings   Settings    `json:"settings"`
	Node       NodeSummary `json:"node"`
	Summary    Counters    `json:"summary"`
	Receipts   []Receipt   `json:"receipts"`
	Errors     []string    `json:"errors,omitempty"`
}
