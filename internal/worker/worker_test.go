package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
	"github.com/structharvest/harvester/internal/contract"
	"github.com/structharvest/harvester/internal/harvest"
	"github.com/structharvest/harvester/internal/infer"
	"github.com/structharvest/harvester/internal/manifest"
	"github.com/structharvest/harvester/internal/queue"
	"github.com/structharvest/harvester/internal/store"
	"github.com/structharvest/harvester/internal/throttle"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type okRenderer struct{}

func (okRenderer) Render(_ context.Context, rawURL string) (capsule.Page, error) {
	return capsule.Page{
		URL: rawURL,
		HTML: `<html><head><title>Acme</title>
<script type="application/ld+json">{"@type":"Organization","name":"Acme"}</script>
</head><body></body></html>`,
		VisibleText: "Acme",
	}, nil
}

func newOrchestrator(t *testing.T, st capsule.Store) *harvest.Orchestrator {
	t.Helper()
	clk := fixedClock{now: time.Now().UTC()}
	recorder, err := manifest.NewRecorder(t.TempDir(), clk, zap.NewNop())
	require.NoError(t, err)

	return harvest.New(
		okRenderer{},
		st,
		throttle.New(0, clk, nil),
		infer.New(zap.NewNop(), nil),
		contract.Disabled(),
		recorder,
		nil,
		clk,
		harvest.Settings{MaxPages: 1, SinglePage: true, RenderTimeout: time.Second},
		zap.NewNop(),
	)
}

func TestWorkerProcessesJobsUntilQueueCloses(t *testing.T) {
	t.Parallel()

	st := store.NewMemory(fixedClock{now: time.Now().UTC()})
	q := queue.NewMemory(2)
	w := New(q, newOrchestrator(t, st), zap.NewNop())

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, capsule.Job{OwnerSlug: "acme", URL: "https://a.example.com/"}))
	require.NoError(t, q.Enqueue(ctx, capsule.Job{OwnerSlug: "acme", URL: "https://b.example.com/"}))
	q.Close()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after queue closed")
	}

	_, okA := st.Node("acme", "https://a.example.com/")
	_, okB := st.Node("acme", "https://b.example.com/")
	require.True(t, okA)
	require.True(t, okB)
}

// settleQueue hands out a fixed set of deliveries, then reports closed.
type settleQueue struct {
	deliveries []capsule.Delivery
	next       int
}

func (q *settleQueue) Dequeue(context.Context) (capsule.Delivery, error) {
	if q.next >= len(q.deliveries) {
		return capsule.Delivery{}, queue.ErrClosed
	}
	d := q.deliveries[q.next]
	q.next++
	return d, nil
}

func TestWorkerAcksCompletedJob(t *testing.T) {
	t.Parallel()

	var acked, nacked int
	q := &settleQueue{deliveries: []capsule.Delivery{
		capsule.NewDelivery(
			capsule.Job{OwnerSlug: "acme", URL: "https://a.example.com/"},
			func() { acked++ },
			func() { nacked++ },
		),
	}}

	st := store.NewMemory(fixedClock{now: time.Now().UTC()})
	w := New(q, newOrchestrator(t, st), zap.NewNop())
	w.Run(context.Background())

	require.Equal(t, 1, acked)
	require.Zero(t, nacked)
	_, ok := st.Node("acme", "https://a.example.com/")
	require.True(t, ok)
}

func TestWorkerNacksFatalJobForRedelivery(t *testing.T) {
	t.Parallel()

	var acked, nacked int
	// The hostless URL makes the node upsert fail, which is job-fatal.
	q := &settleQueue{deliveries: []capsule.Delivery{
		capsule.NewDelivery(
			capsule.Job{OwnerSlug: "acme", URL: "https://"},
			func() { acked++ },
			func() { nacked++ },
		),
	}}

	st := store.NewMemory(fixedClock{now: time.Now().UTC()})
	w := New(q, newOrchestrator(t, st), zap.NewNop())
	w.Run(context.Background())

	require.Zero(t, acked)
	require.Equal(t, 1, nacked)
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	q := queue.NewMemory(1)
	w := New(q, newOrchestrator(t, store.NewMemory(fixedClock{now: time.Now().UTC()})), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
