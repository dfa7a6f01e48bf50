// Package service is the audited-mutation core of the donations ledger.
//
// Every mutating operation runs as one unit of work: the entity change and
// its audit entry are written through the same ports.Stores bundle and
// commit or roll back together. Deletes are guarded against dependents in
// that same unit of work, after the target row has been locked.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"donations/internal/ledger/models"
	"donations/internal/ledger/ports"
	"donations/internal/platform/metrics"
	audit "donations/pkg/platform/audit"
)

const tracerName = "donations/internal/ledger/service"

// Service implements the entity repository and association manager.
type Service struct {
	uow      ports.UnitOfWork
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRecorder replaces the default audit recorder, e.g. to pin the clock.
func WithRecorder(r *audit.Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service on top of a unit of work.
func New(uow ports.UnitOfWork, opts ...Option) *Service {
	s := &Service{
		uow:      uow,
		recorder: audit.NewRecorder(),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// change is what a mutation reports back for its audit entry.
type change struct {
	entityID    int64
	description string
}

// mutate runs fn and records its audit entry in one unit of work. Nothing is
// logged or counted unless the unit of work commits.
func (s *Service) mutate(
	ctx context.Context,
	kind models.EntityKind,
	op audit.Operation,
	actor string,
	fn func(ctx context.Context, stores ports.Stores) (change, error),
) (*audit.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "ledger."+string(op),
		trace.WithAttributes(attribute.String("ledger.kind", kind.String())))
	defer span.End()

	var entry *audit.Entry
	err := s.uow.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		c, err := fn(ctx, stores)
		if err != nil {
			return err
		}
		entry, err = s.recorder.Record(ctx, stores.Audit, audit.Record{
			EntityKind:  kind.String(),
			EntityID:    c.entityID,
			Operation:   op,
			Description: c.description,
			Actor:       actor,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("ledger.entity_id", entry.EntityID),
		attribute.Int64("ledger.audit_entry_id", int64(entry.ID)),
	)
	s.logger.InfoContext(ctx, "ledger mutation committed",
		"kind", entry.EntityKind,
		"operation", entry.Operation,
		"entity_id", entry.EntityID,
		"audit_entry_id", entry.ID,
		"actor", entry.Actor,
	)
	if s.metrics != nil {
		s.metrics.IncMutation(entry.EntityKind, string(entry.Operation))
	}
	return entry, nil
}

// view runs a read-only unit of work.
func (s *Service) view(ctx context.Context, name string, fn func(ctx context.Context, stores ports.Stores) error) error {
	ctx, span := s.tracer.Start(ctx, "ledger."+name)
	defer span.End()

	if err := s.uow.RunInTx(ctx, fn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
