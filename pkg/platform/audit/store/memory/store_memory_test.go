package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "donations/pkg/platform/audit"
	"donations/pkg/platform/sentinel"
)

func newEntry(kind string, entityID int64, op audit.Operation) *audit.Entry {
	return &audit.Entry{
		EntityKind: kind,
		EntityID:   entityID,
		Operation:  op,
		Timestamp:  time.Now().UTC(),
		Actor:      "tester",
	}
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	first := newEntry("Donor", 1, audit.OpInsert)
	second := newEntry("Donor", 1, audit.OpUpdate)
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, second))

	assert.EqualValues(t, 1, first.ID)
	assert.EqualValues(t, 2, second.ID)

	got, err := s.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, audit.OpUpdate, got.Operation)

	_, err = s.FindByID(ctx, 99)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCloneIsolatesAppends(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Append(ctx, newEntry("Pledge", 4, audit.OpInsert)))

	staged := s.Clone()
	require.NoError(t, staged.Append(ctx, newEntry("Pledge", 4, audit.OpDelete)))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, staged.Len())
}

func TestListByEntityAndRecent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Append(ctx, newEntry("Payment", 2, audit.OpInsert)))
	require.NoError(t, s.Append(ctx, newEntry("Pledge", 2, audit.OpInsert)))
	require.NoError(t, s.Append(ctx, newEntry("Payment", 2, audit.OpDelete)))

	byEntity, err := s.ListByEntity(ctx, "Payment", 2)
	require.NoError(t, err)
	require.Len(t, byEntity, 2)
	assert.Equal(t, audit.OpInsert, byEntity[0].Operation)
	assert.Equal(t, audit.OpDelete, byEntity[1].Operation)

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.EqualValues(t, 3, recent[0].ID)
	assert.EqualValues(t, 2, recent[1].ID)
}
