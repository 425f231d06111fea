package capsule

import (
	"context"
	"time"
)

// Page is the rendered view of a URL returned by a Renderer.
type Page struct {
	URL         string
	HTML        string
	VisibleText string
}

// Renderer turns a URL into markup plus visible text. Implementations are
// expected to honor the context deadline; a timeout is a page-level error,
// never a job-level one.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
}

// Store is the durable persistence collaborator. Both upserts must be
// idempotent so queue-level retries never create duplicates.
type Store interface {
	// UpsertNode creates or refreshes a node keyed by (owner, domain) and
	// returns its identifier.
	UpsertNode(ctx context.Context, ownerSlug, sourceURL string) (string, error)
	// InsertCapsule persists an envelope keyed by (node, fingerprint).
	// Inserting an existing fingerprint updates the row in place and
	// reports inserted=false.
	InsertCapsule(ctx context.Context, nodeID string, env Envelope, status Status) (inserted bool, err error)
	UpdateNodeCategory(ctx context.Context, nodeID string, category Category) error
}

// Delivery pairs a dequeued job with its settlement callbacks. Sources with
// broker redelivery wire real handlers; sources without redelivery leave the
// callbacks nil and settlement is a no-op.
type Delivery struct {
	Job  Job
	ack  func()
	nack func()
}

// NewDelivery builds a Delivery with explicit settlement handlers.
func NewDelivery(job Job, ack, nack func()) Delivery {
	return Delivery{Job: job, ack: ack, nack: nack}
}

// Ack confirms the job so the source will not redeliver it.
func (d Delivery) Ack() {
	if d.ack != nil {
		d.ack()
	}
}

// Nack returns the job to the source for redelivery.
func (d Delivery) Nack() {
	if d.nack != nil {
		d.nack()
	}
}

// Queue hands out harvest jobs. Dequeue blocks until a job is available or
// the context ends. The caller owns settlement: Ack when the job ran to
// completion, Nack when it must be retried.
type Queue interface {
	Dequeue(ctx context.Context) (Delivery, error)
}

// Augmenter is the optional model-enrichment capability. TryAugment gets the
// seed capsule plus truncated visible text and returns ok=false on any
// failure; callers never branch on an error.
type Augmenter interface {
	TryAugment(ctx context.Context, seed Envelope, visibleText string) (map[string]InferredField, bool)
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}
