package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donations/internal/ledger/models"
	"donations/internal/ledger/ports"
	id "donations/pkg/domain"
	dErrors "donations/pkg/domain-errors"
	audit "donations/pkg/platform/audit"
	"donations/pkg/platform/sentinel"
)

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func seedDonor(t *testing.T, m *Memory, email string) id.DonorID {
	t.Helper()
	var donorID id.DonorID
	err := m.RunInTx(context.Background(), func(ctx context.Context, stores ports.Stores) error {
		d := &models.Donor{FirstName: "F", LastName: "L", Email: email}
		if err := stores.Donors.Create(ctx, d); err != nil {
			return err
		}
		donorID = d.ID
		return nil
	})
	require.NoError(t, err)
	return donorID
}

func TestMemoryUnitOfWork(t *testing.T) {
	ctx := context.Background()

	t.Run("commit publishes entity and audit entry together", func(t *testing.T) {
		m := NewMemory()
		err := m.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
			d := &models.Donor{FirstName: "F", LastName: "L", Email: "c@x.com"}
			if err := stores.Donors.Create(ctx, d); err != nil {
				return err
			}
			return stores.Audit.Append(ctx, &audit.Entry{EntityKind: "Donor", EntityID: int64(d.ID), Operation: audit.OpInsert})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, m.AuditLen())
	})

	t.Run("error discards every staged write", func(t *testing.T) {
		m := NewMemory()
		boom := errors.New("boom")
		err := m.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
			d := &models.Donor{FirstName: "F", LastName: "L", Email: "r@x.com"}
			require.NoError(t, stores.Donors.Create(ctx, d))
			require.NoError(t, stores.Audit.Append(ctx, &audit.Entry{EntityKind: "Donor", EntityID: int64(d.ID), Operation: audit.OpInsert}))
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Zero(t, m.AuditLen())

		_ = m.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
			_, err := stores.Donors.FindByID(ctx, 1)
			assert.ErrorIs(t, err, sentinel.ErrNotFound)
			taken, err := stores.Donors.EmailTaken(ctx, "r@x.com", 0)
			require.NoError(t, err)
			assert.False(t, taken)
			return nil
		})
	})

	t.Run("deadline exceeded before commit rolls back", func(t *testing.T) {
		m := NewMemory(WithTxTimeout(10 * time.Millisecond))
		err := m.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
			<-ctx.Done()
			return stores.Donors.Create(ctx, &models.Donor{FirstName: "F", LastName: "L", Email: "slow@x.com"})
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStorage))
		assert.Equal(t, 1, int(m.state.nextDonor))
	})
}

func TestMemoryReferentialRules(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	donorID := seedDonor(t, m, "rules@x.com")

	_ = m.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		t.Run("email uniqueness ignores case", func(t *testing.T) {
			err := stores.Donors.Create(ctx, &models.Donor{FirstName: "F", LastName: "L", Email: "RULES@x.com"})
			assert.ErrorIs(t, err, sentinel.ErrConflict)
		})

		t.Run("pledge needs an existing donor", func(t *testing.T) {
			err := stores.Pledges.Create(ctx, &models.Pledge{DonorID: 99, Amount: decimal.NewFromInt(1), Date: day})
			assert.ErrorIs(t, err, sentinel.ErrForeignKey)
		})

		pledge := &models.Pledge{DonorID: donorID, Amount: decimal.NewFromInt(10), Date: day}
		require.NoError(t, stores.Pledges.Create(ctx, pledge))
		payment := &models.Payment{DonorID: donorID, Amount: decimal.NewFromInt(10), Date: day}
		require.NoError(t, stores.Payments.Create(ctx, payment))
		link := models.Association{PaymentID: payment.ID, PledgeID: pledge.ID}
		require.NoError(t, stores.Associations.Create(ctx, link))

		t.Run("duplicate link conflicts", func(t *testing.T) {
			assert.ErrorIs(t, stores.Associations.Create(ctx, link), sentinel.ErrConflict)
		})

		t.Run("referenced rows are restricted", func(t *testing.T) {
			assert.ErrorIs(t, stores.Donors.Delete(ctx, donorID), sentinel.ErrRestricted)
			assert.ErrorIs(t, stores.Pledges.Delete(ctx, pledge.ID), sentinel.ErrRestricted)
			assert.ErrorIs(t, stores.Payments.Delete(ctx, payment.ID), sentinel.ErrRestricted)
		})

		t.Run("existence queries", func(t *testing.T) {
			has, err := stores.Associations.ExistsForPayment(ctx, payment.ID)
			require.NoError(t, err)
			assert.True(t, has)
			has, err = stores.Pledges.ExistsForDonor(ctx, donorID)
			require.NoError(t, err)
			assert.True(t, has)
			has, err = stores.Payments.ExistsForDonor(ctx, 99)
			require.NoError(t, err)
			assert.False(t, has)
		})

		t.Run("unlink then delete", func(t *testing.T) {
			require.NoError(t, stores.Associations.Delete(ctx, link))
			assert.ErrorIs(t, stores.Associations.Delete(ctx, link), sentinel.ErrNotFound)
			require.NoError(t, stores.Payments.Delete(ctx, payment.ID))
			require.NoError(t, stores.Pledges.Delete(ctx, pledge.ID))
			require.NoError(t, stores.Donors.Delete(ctx, donorID))
		})
		return nil
	})
}

func TestMemoryStagedStateIsIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	donorID := seedDonor(t, m, "iso@x.com")

	err := m.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		d, err := stores.Donors.FindByIDForUpdate(ctx, donorID)
		require.NoError(t, err)
		d.City = "Changed"
		// mutating the returned copy must not leak into the store
		again, err := stores.Donors.FindByID(ctx, donorID)
		require.NoError(t, err)
		assert.Empty(t, again.City)
		return errors.New("abort")
	})
	require.Error(t, err)
}
