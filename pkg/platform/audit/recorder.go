package audit

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	dErrors "donations/pkg/domain-errors"
	"donations/pkg/requestcontext"
)

// MaxActorLength and MaxRequestIDLength match the audit_entries column widths.
// Longer values are truncated rather than failing the mutation.
const (
	MaxActorLength     = 100
	MaxRequestIDLength = 100
)

// Record describes a mutation to be written to the audit log.
type Record struct {
	EntityKind  string
	EntityID    int64
	Operation   Operation
	Description string
	Actor       string
}

// Recorder builds audit entries and appends them through the appender bound
// to the active unit of work. It never commits on its own.
type Recorder struct {
	now func(ctx context.Context) time.Time
}

type RecorderOption func(*Recorder)

// WithClock overrides the time source. Defaults to the wall clock, so an
// entry is never stamped before the call that produced it.
func WithClock(now func(ctx context.Context) time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{now: func(context.Context) time.Time { return time.Now() }}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one entry for rec. Any append failure is returned as a
// storage error so the enclosing transaction rolls back with the mutation.
func (r *Recorder) Record(ctx context.Context, app Appender, rec Record) (*Entry, error) {
	if strings.TrimSpace(rec.EntityKind) == "" {
		return nil, dErrors.Validation("", "audit entity kind is required")
	}
	if rec.EntityID <= 0 {
		return nil, dErrors.Validation(rec.EntityKind, "audit entity id must be positive")
	}
	if !rec.Operation.Valid() {
		return nil, dErrors.Validation(rec.EntityKind, "unknown audit operation "+string(rec.Operation))
	}

	actor := strings.TrimSpace(rec.Actor)
	if actor == "" {
		actor = FallbackActor
	}

	entry := &Entry{
		EntityKind:  rec.EntityKind,
		EntityID:    rec.EntityID,
		Operation:   rec.Operation,
		Description: rec.Description,
		Timestamp:   r.now(ctx).UTC(),
		Actor:       truncate(actor, MaxActorLength),
		RequestID:   truncate(requestcontext.RequestID(ctx), MaxRequestIDLength),
	}
	if err := app.Append(ctx, entry); err != nil {
		return nil, dErrors.Storage(err, "append audit entry").For(rec.EntityKind, rec.EntityID)
	}
	return entry, nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
