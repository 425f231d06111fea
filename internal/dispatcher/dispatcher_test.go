package dispatcher

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/queue"
	"github.com/structharvest/harvester/internal/worker"
)

func TestRunStopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	q := queue.NewMemory(1)
	workers := []*worker.Worker{
		worker.New(q, nil, zap.NewNop()),
		worker.New(q, nil, zap.NewNop()),
	}
	d := New(workers)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after queue close")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	q := queue.NewMemory(1)
	d := New([]*worker.Worker{worker.New(q, nil, zap.NewNop())})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}

func TestRunNoWorkersReturns(t *testing.T) {
	t.Parallel()

	d := New(nil)
	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("empty dispatcher should return immediately")
	}
}
