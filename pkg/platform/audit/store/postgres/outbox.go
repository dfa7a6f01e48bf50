package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"donations/pkg/platform/audit/outbox"
)

// Process implements outbox.Source. Rows are claimed with SKIP LOCKED so
// several relays can share one outbox without publishing a row twice.
func (s *Store) Process(ctx context.Context, limit int, fn func(ctx context.Context, msg outbox.Message) error) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_key, event_type, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY entry_id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("claim outbox rows: %w", err)
	}

	var batch []outbox.Message
	for rows.Next() {
		var msg outbox.Message
		if err := rows.Scan(&msg.ID, &msg.Key, &msg.EventType, &msg.Payload, &msg.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, msg)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate outbox rows: %w", err)
	}
	rows.Close()

	var (
		published []uuid.UUID
		fnErr     error
	)
	for _, msg := range batch {
		if fnErr = fn(ctx, msg); fnErr != nil {
			break
		}
		published = append(published, msg.ID)
	}

	now := time.Now().UTC()
	for _, msgID := range published {
		if _, err := tx.ExecContext(ctx,
			`UPDATE audit_outbox SET published_at = $1 WHERE id = $2`, now, msgID); err != nil {
			return 0, fmt.Errorf("mark outbox row published: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return len(published), fnErr
}

// Pending counts unpublished outbox rows.
func (s *Store) Pending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_outbox WHERE published_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox rows: %w", err)
	}
	return n, nil
}
