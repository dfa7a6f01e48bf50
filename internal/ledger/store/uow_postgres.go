package store

import (
	"context"
	"database/sql"
	"time"

	"donations/internal/ledger/ports"
	dErrors "donations/pkg/domain-errors"
	auditpostgres "donations/pkg/platform/audit/store/postgres"
	txcontext "donations/pkg/platform/tx"
)

// PostgresUnitOfWork runs ledger units of work in PostgreSQL transactions.
// Stores find the *sql.Tx through the context (pkg/platform/tx), so the
// mutation and its audit entry share one commit.
type PostgresUnitOfWork struct {
	db      *sql.DB
	timeout time.Duration
	stores  ports.Stores
}

func NewPostgresUnitOfWork(db *sql.DB, timeout time.Duration) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{
		db:      db,
		timeout: timeout,
		stores: ports.Stores{
			Donors:       NewPostgresDonors(db),
			Pledges:      NewPostgresPledges(db),
			Payments:     NewPostgresPayments(db),
			Associations: NewPostgresAssociations(db),
			Audit:        auditpostgres.New(db),
		},
	}
}

// RunInTx implements ports.UnitOfWork.
func (u *PostgresUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Storage(err, "transaction aborted: context cancelled")
	}

	timeout := u.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Storage(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), u.stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Storage(err, "commit transaction")
	}
	return nil
}
