// Package queue provides job sources for the harvest workers: a bounded
// in-memory queue for local runs and tests, and a Pub/Sub subscription for
// production.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/structharvest/harvester/internal/capsule"
)

// ErrClosed is returned once the queue is drained and closed, and by
// Enqueue after Close.
var ErrClosed = errors.New("queue closed")

// Memory is a bounded in-memory queue with context-aware operations. It has
// no redelivery semantics, so deliveries carry no-op settlement.
type Memory struct {
	ch        chan capsule.Job
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemory constructs a queue with the provided capacity.
func NewMemory(capacity int) *Memory {
	return &Memory{
		ch:   make(chan capsule.Job, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a job, returning ErrClosed after Close so a submission
// racing shutdown fails cleanly.
func (q *Memory) Enqueue(ctx context.Context, job capsule.Job) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- job:
		return nil
	}
}

// Dequeue pops the next job, respecting context cancellation. Jobs enqueued
// before Close remain dequeuable until drained.
func (q *Memory) Dequeue(ctx context.Context) (capsule.Delivery, error) {
	select {
	case <-ctx.Done():
		return capsule.Delivery{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job := <-q.ch:
		return capsule.NewDelivery(job, nil, nil), nil
	case <-q.done:
		select {
		case job := <-q.ch:
			return capsule.NewDelivery(job, nil, nil), nil
		default:
			return capsule.Delivery{}, ErrClosed
		}
	}
}

// Close stops the queue for shutdown. The job channel is never closed, so a
// concurrent Enqueue observes the done signal instead of panicking on a
// closed channel. Safe to call more than once.
func (q *Memory) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
