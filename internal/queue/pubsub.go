package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
)

// PubSub sources jobs from a Google Cloud Pub/Sub subscription. Messages are
// JSON-encoded capsule.Job payloads. A well-formed message is settled by the
// worker that runs it: acked when the job completes, nacked on a fatal error
// so the broker's retry policy acts. The client keeps extending the ack
// deadline while the job runs, and redelivery after a crash is safe because
// every persistence path is idempotent on (node, fingerprint). Malformed
// payloads are acked immediately and logged so they cannot wedge the
// subscription.
type PubSub struct {
	client     *pubsub.Client
	sub        *pubsub.Subscription
	deliveries chan *pubsub.Message
	cancel     context.CancelFunc
	done       chan struct{}
	logger     *zap.Logger
}

// NewPubSub creates a client with Application Default Credentials, verifies
// the subscription exists, and starts the receive loop.
func NewPubSub(ctx context.Context, projectID, subscriptionID string, logger *zap.Logger) (*PubSub, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	sub := client.Subscription(subscriptionID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("pubsub client close after existence check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("check subscription %q: %w", subscriptionID, err)
	}
	if !exists {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("pubsub client close after existence check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub subscription %q does not exist in project %q", subscriptionID, projectID)
	}

	receiveCtx, cancel := context.WithCancel(context.Background())
	q := &PubSub{
		client:     client,
		sub:        sub,
		deliveries: make(chan *pubsub.Message),
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     logger,
	}
	go q.receive(receiveCtx)
	return q, nil
}

func (q *PubSub) receive(ctx context.Context) {
	defer close(q.done)
	err := q.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		select {
		case q.deliveries <- msg:
		case <-ctx.Done():
			// Not handed to a worker; let the broker redeliver.
			msg.Nack()
		}
	})
	if err != nil && ctx.Err() == nil {
		q.logger.Error("pubsub receive stopped", zap.Error(err))
	}
}

// Dequeue blocks for the next well-formed job. Settlement is left to the
// caller; poison messages are acked and skipped rather than returned as
// errors.
func (q *PubSub) Dequeue(ctx context.Context) (capsule.Delivery, error) {
	for {
		select {
		case <-ctx.Done():
			return capsule.Delivery{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case msg, ok := <-q.deliveries:
			if !ok {
				return capsule.Delivery{}, ErrClosed
			}
			var job capsule.Job
			if err := json.Unmarshal(msg.Data, &job); err != nil || job.URL == "" {
				msg.Ack()
				q.logger.Warn("discarding malformed job message",
					zap.String("message_id", msg.ID), zap.Error(err))
				continue
			}
			return capsule.NewDelivery(job, msg.Ack, msg.Nack), nil
		}
	}
}

// Publish enqueues a job onto the paired topic, blocking until the broker
// acknowledges it.
func (q *PubSub) Publish(ctx context.Context, topicID string, job capsule.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	result := q.client.Topic(topicID).Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Close stops the receive loop and releases the client.
func (q *PubSub) Close() error {
	q.cancel()
	<-q.done
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
