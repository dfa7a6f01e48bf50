// Package outbox forwards committed audit entries to downstream consumers.
//
// Entries reach the outbox table in the same transaction as the mutation they
// describe; the relay only ever sees committed rows, so a rolled-back mutation
// is never published.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Message is one committed outbox row.
type Message struct {
	ID        uuid.UUID
	Key       string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// Publisher delivers a message downstream. Publish must be synchronous: a
// nil return means the message is durably accepted.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Source hands out unpublished messages in creation order. Process claims up
// to limit rows, calls fn for each in order and marks the ones fn accepted as
// published. It stops at the first fn error, returning it with the number of
// messages marked.
type Source interface {
	Process(ctx context.Context, limit int, fn func(ctx context.Context, msg Message) error) (int, error)
}

// Metrics is the subset of platform metrics the relay reports to.
type Metrics interface {
	IncOutboxPublished(n int)
	IncOutboxFailures()
}

const (
	defaultBatchSize    = 100
	defaultInterval     = 2 * time.Second
	defaultDrainTimeout = 30 * time.Second
)

// Relay polls a Source and publishes each message.
type Relay struct {
	source    Source
	publisher Publisher
	logger    *slog.Logger
	metrics   Metrics
	batchSize    int
	interval     time.Duration
	drainTimeout time.Duration
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithDrainTimeout bounds one Drain, including the claim transaction and
// every publish in the batch.
func WithDrainTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.drainTimeout = d
		}
	}
}

func NewRelay(source Source, publisher Publisher, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		publisher: publisher,
		logger:    slog.Default(),
		batchSize:    defaultBatchSize,
		interval:     defaultInterval,
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		// keep draining while full batches come back
		for {
			n, err := r.Drain(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.WarnContext(ctx, "audit outbox drain failed", "error", err, "published", n)
				break
			}
			if n < r.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain publishes one batch and returns how many messages were published.
// A batch that outlives the drain timeout is abandoned and its claimed rows
// stay unpublished.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.drainTimeout)
	defer cancel()

	n, err := r.source.Process(ctx, r.batchSize, r.publisher.Publish)
	if r.metrics != nil {
		if n > 0 {
			r.metrics.IncOutboxPublished(n)
		}
		if err != nil {
			r.metrics.IncOutboxFailures()
		}
	}
	return n, err
}
