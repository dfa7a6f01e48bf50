package audit

import (
	"context"
	"time"

	id "donations/pkg/domain"
)

// Operation is the kind of mutation an entry describes.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// Valid reports whether op is one of the three recorded operations.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// FallbackActor attributes mutations made without an authenticated identity.
const FallbackActor = "Unknown"

// Entry is one immutable record of a committed mutation.
// Entries are append-only: nothing in this module updates or deletes them.
type Entry struct {
	ID          id.AuditEntryID `json:"id"`
	EntityKind  string          `json:"entity_kind"`
	EntityID    int64           `json:"entity_id"`
	Operation   Operation       `json:"operation"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
	Actor       string          `json:"actor"`
	// RequestID correlates the entry with the inbound command when known.
	RequestID string `json:"request_id,omitempty"`
}

// Appender persists entries inside the caller's unit of work and assigns Entry.ID.
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
}

// Reader serves the audit trail back.
type Reader interface {
	FindByID(ctx context.Context, entryID id.AuditEntryID) (*Entry, error)
	ListByEntity(ctx context.Context, entityKind string, entityID int64) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// Store is the full audit log contract.
type Store interface {
	Appender
	Reader
}
