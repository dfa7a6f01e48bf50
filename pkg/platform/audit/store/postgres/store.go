package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	id "donations/pkg/domain"
	audit "donations/pkg/platform/audit"
	"donations/pkg/platform/sentinel"
	txcontext "donations/pkg/platform/tx"
)

// Store implements audit.Store on PostgreSQL using the transactional outbox
// pattern: every appended entry is written to audit_entries and mirrored into
// audit_outbox in the same transaction, from where the outbox relay publishes it.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts the entry and its outbox row. It must run inside the
// mutation's transaction (see pkg/platform/tx) to keep both atomic.
func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	exec := txcontext.Exec(ctx, s.db)

	var entryID int64
	err := exec.QueryRowContext(ctx, `
		INSERT INTO audit_entries (entity_kind, entity_id, operation, description, occurred_at, actor, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		entry.EntityKind,
		entry.EntityID,
		string(entry.Operation),
		entry.Description,
		entry.Timestamp,
		entry.Actor,
		entry.RequestID,
	).Scan(&entryID)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	entry.ID = id.AuditEntryID(entryID)

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, entry_id, aggregate_key, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		entryID,
		entry.EntityKind+":"+strconv.FormatInt(entry.EntityID, 10),
		string(entry.Operation),
		payload,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

const selectEntries = `
	SELECT id, entity_kind, entity_id, operation, description, occurred_at, actor, request_id
	FROM audit_entries
`

// FindByID returns a single entry.
func (s *Store) FindByID(ctx context.Context, entryID id.AuditEntryID) (*audit.Entry, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectEntries+` WHERE id = $1`, int64(entryID))
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find audit entry: %w", err)
	}
	return entry, nil
}

// ListByEntity returns the trail of one entity in append order.
func (s *Store) ListByEntity(ctx context.Context, entityKind string, entityID int64) ([]audit.Entry, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		selectEntries+` WHERE entity_kind = $1 AND entity_id = $2 ORDER BY id ASC`,
		entityKind, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListRecent returns the N most recent entries.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		selectEntries+` ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*audit.Entry, error) {
	var (
		e         audit.Entry
		entryID   int64
		operation string
	)
	err := row.Scan(&entryID, &e.EntityKind, &e.EntityID, &operation, &e.Description, &e.Timestamp, &e.Actor, &e.RequestID)
	if err != nil {
		return nil, err
	}
	e.ID = id.AuditEntryID(entryID)
	e.Operation = audit.Operation(operation)
	e.Timestamp = e.Timestamp.UTC()
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
