package audit_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "donations/pkg/domain-errors"
	audit "donations/pkg/platform/audit"
	"donations/pkg/platform/audit/store/memory"
	"donations/pkg/requestcontext"
)

type failingAppender struct{ err error }

func (f failingAppender) Append(context.Context, *audit.Entry) error { return f.err }

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps current UTC time and request id", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		ingress := time.Now().Add(-time.Minute).In(time.FixedZone("EST", -5*3600))
		ctx := requestcontext.WithRequestID(requestcontext.WithTime(ctx, ingress), "req-9")

		start := time.Now()
		entry, err := audit.NewRecorder().Record(ctx, store, audit.Record{
			EntityKind:  "Donor",
			EntityID:    12,
			Operation:   audit.OpInsert,
			Description: "Donor with ID 12 created.",
			Actor:       "alice",
		})
		require.NoError(t, err)
		assert.Equal(t, time.UTC, entry.Timestamp.Location())
		assert.False(t, entry.Timestamp.Before(start), "timestamp %s predates call start %s", entry.Timestamp, start)
		assert.Equal(t, "req-9", entry.RequestID)
		assert.Equal(t, "alice", entry.Actor)
		assert.EqualValues(t, 1, entry.ID)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("long actor and request id are cut to column width", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		ctx := requestcontext.WithRequestID(ctx, strings.Repeat("r", 150))
		actor := strings.Repeat("é", 150)

		entry, err := audit.NewRecorder().Record(ctx, store, audit.Record{
			EntityKind: "Donor", EntityID: 1, Operation: audit.OpInsert, Actor: actor,
		})
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("é", audit.MaxActorLength), entry.Actor)
		assert.Equal(t, audit.MaxRequestIDLength, utf8.RuneCountInString(entry.RequestID))
	})

	t.Run("falls back when actor is blank", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		entry, err := audit.NewRecorder().Record(ctx, store, audit.Record{
			EntityKind: "Pledge",
			EntityID:   3,
			Operation:  audit.OpDelete,
			Actor:      "   ",
		})
		require.NoError(t, err)
		assert.Equal(t, audit.FallbackActor, entry.Actor)
	})

	t.Run("uses injected clock", func(t *testing.T) {
		fixed := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		rec := audit.NewRecorder(audit.WithClock(func(context.Context) time.Time { return fixed }))
		entry, err := rec.Record(ctx, memory.NewInMemoryStore(), audit.Record{
			EntityKind: "Payment", EntityID: 1, Operation: audit.OpUpdate,
		})
		require.NoError(t, err)
		assert.Equal(t, fixed, entry.Timestamp)
	})

	t.Run("append failure is a storage error", func(t *testing.T) {
		cause := errors.New("disk full")
		_, err := audit.NewRecorder().Record(ctx, failingAppender{err: cause}, audit.Record{
			EntityKind: "Donor", EntityID: 1, Operation: audit.OpInsert,
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStorage))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("rejects malformed records", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		cases := []audit.Record{
			{EntityID: 1, Operation: audit.OpInsert},
			{EntityKind: "Donor", Operation: audit.OpInsert},
			{EntityKind: "Donor", EntityID: 1, Operation: "UPSERT"},
		}
		for _, rec := range cases {
			_, err := audit.NewRecorder().Record(ctx, store, rec)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		}
		assert.Equal(t, 0, store.Len())
	})
}
