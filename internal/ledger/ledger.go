package ledger

import (
	"database/sql"
	"time"

	"donations/internal/ledger/service"
	"donations/internal/ledger/store"
)

// Service exposes the audited-mutation core.
type Service = service.Service

// Option configures the Service.
type Option = service.Option

var (
	WithLogger   = service.WithLogger
	WithMetrics  = service.WithMetrics
	WithRecorder = service.WithRecorder
	WithTracer   = service.WithTracer
)

// NewPostgres constructs the ledger on PostgreSQL. txTimeout bounds every
// unit of work that arrives without its own deadline.
func NewPostgres(db *sql.DB, txTimeout time.Duration, opts ...Option) *Service {
	return service.New(store.NewPostgresUnitOfWork(db, txTimeout), opts...)
}

// NewInMemory constructs the ledger on the in-memory store.
func NewInMemory(opts ...Option) *Service {
	return service.New(store.NewMemory(), opts...)
}
