//go:build integration

package store_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"donations/internal/ledger/models"
	"donations/internal/ledger/ports"
	"donations/internal/ledger/service"
	"donations/internal/ledger/store"
	dErrors "donations/pkg/domain-errors"
	audit "donations/pkg/platform/audit"
	auditpostgres "donations/pkg/platform/audit/store/postgres"
	"donations/pkg/platform/sentinel"
	"donations/pkg/testutil/containers"
)

const actor = "integration"

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	uow      *store.PostgresUnitOfWork
	svc      *service.Service
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.uow = store.NewPostgresUnitOfWork(s.postgres.DB, 5*time.Second)
	s.svc = service.New(s.uow)
}

func (s *PostgresLedgerSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "audit_outbox", "audit_entries", "payment_pledges", "payments", "pledges", "donors")
	s.Require().NoError(err)
}

func (s *PostgresLedgerSuite) countAudit() int {
	var n int
	s.Require().NoError(s.postgres.DB.QueryRow(`SELECT COUNT(*) FROM audit_entries`).Scan(&n))
	return n
}

func (s *PostgresLedgerSuite) TestDonorWithPledgeScenario() {
	ctx := context.Background()
	d1, err := s.svc.CreateDonor(ctx, actor, models.DonorFields{FirstName: "D", LastName: "One", Email: "a@x.com"})
	s.Require().NoError(err)
	p1, err := s.svc.CreatePledge(ctx, actor, d1.ID, decimal.NewFromInt(100), day)
	s.Require().NoError(err)

	err = s.svc.DeleteDonor(ctx, actor, d1.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	s.Require().NoError(s.svc.DeletePledge(ctx, actor, p1.ID))
	trail, err := s.svc.AuditTrail(ctx, models.KindPledge, int64(p1.ID))
	s.Require().NoError(err)
	s.Require().Len(trail, 2)
	s.Equal(audit.OpDelete, trail[1].Operation)

	s.Require().NoError(s.svc.DeleteDonor(ctx, actor, d1.ID))
	s.Equal(4, s.countAudit())
}

func (s *PostgresLedgerSuite) TestLinkedPaymentScenario() {
	ctx := context.Background()
	donor, err := s.svc.CreateDonor(ctx, actor, models.DonorFields{FirstName: "D", LastName: "Two", Email: "b@x.com"})
	s.Require().NoError(err)
	pay, err := s.svc.CreatePayment(ctx, actor, donor.ID, decimal.RequireFromString("40.25"), day)
	s.Require().NoError(err)
	pledge, err := s.svc.CreatePledge(ctx, actor, donor.ID, decimal.NewFromInt(100), day)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Link(ctx, actor, pay.ID, pledge.ID))
	s.True(dErrors.HasCode(s.svc.Link(ctx, actor, pay.ID, pledge.ID), dErrors.CodeConflict))
	s.True(dErrors.HasCode(s.svc.DeletePayment(ctx, actor, pay.ID), dErrors.CodeConflict))

	pledges, err := s.svc.PledgesForPayment(ctx, pay.ID)
	s.Require().NoError(err)
	s.Require().Len(pledges, 1)
	s.True(pledges[0].Amount.Equal(decimal.NewFromInt(100)))

	s.Require().NoError(s.svc.Unlink(ctx, actor, pay.ID, pledge.ID))
	s.Require().NoError(s.svc.DeletePayment(ctx, actor, pay.ID))
}

func (s *PostgresLedgerSuite) TestEmailUniqueIndexIgnoresCase() {
	ctx := context.Background()
	_, err := s.svc.CreateDonor(ctx, actor, models.DonorFields{FirstName: "A", LastName: "B", Email: "case@x.com"})
	s.Require().NoError(err)

	err = s.uow.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		return stores.Donors.Create(ctx, &models.Donor{FirstName: "C", LastName: "D", Email: "CASE@x.com"})
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresLedgerSuite) TestColumnBoundsAgreeWithModels() {
	ctx := context.Background()
	long := strings.Repeat("n", 150)
	donor, err := s.svc.CreateDonor(ctx, long, models.DonorFields{FirstName: "A", LastName: "B", Email: "wide@x.com"})
	s.Require().NoError(err)

	trail, err := s.svc.AuditTrail(ctx, models.KindDonor, int64(donor.ID))
	s.Require().NoError(err)
	s.Require().Len(trail, 1)
	s.Equal(long[:audit.MaxActorLength], trail[0].Actor)

	_, err = s.svc.CreatePledge(ctx, actor, donor.ID, decimal.RequireFromString("9999999999999999.99"), day)
	s.Require().NoError(err)
	_, err = s.svc.CreatePledge(ctx, actor, donor.ID, decimal.RequireFromString("100000000000000000000"), day)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *PostgresLedgerSuite) TestRestrictBackstop() {
	ctx := context.Background()
	donor, err := s.svc.CreateDonor(ctx, actor, models.DonorFields{FirstName: "A", LastName: "B", Email: "fk@x.com"})
	s.Require().NoError(err)
	_, err = s.svc.CreatePledge(ctx, actor, donor.ID, decimal.NewFromInt(1), day)
	s.Require().NoError(err)

	err = s.uow.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		return stores.Donors.Delete(ctx, donor.ID)
	})
	s.ErrorIs(err, sentinel.ErrRestricted)
}

func (s *PostgresLedgerSuite) TestFailedAppendRollsBack() {
	ctx := context.Background()
	before := s.countAudit()

	err := s.uow.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		d := &models.Donor{FirstName: "A", LastName: "B", Email: "gone@x.com"}
		if err := stores.Donors.Create(ctx, d); err != nil {
			return err
		}
		// entity_id must be positive; the CHECK constraint fails the append
		return stores.Audit.Append(ctx, &audit.Entry{EntityKind: "Donor", EntityID: -1, Operation: audit.OpInsert, Actor: actor, Timestamp: time.Now()})
	})
	s.Require().Error(err)
	s.Equal(before, s.countAudit())

	var donors int
	s.Require().NoError(s.postgres.DB.QueryRow(`SELECT COUNT(*) FROM donors`).Scan(&donors))
	s.Zero(donors)
}

func (s *PostgresLedgerSuite) TestAuditEntriesAreAppendOnly() {
	ctx := context.Background()
	_, err := s.svc.CreateDonor(ctx, actor, models.DonorFields{FirstName: "A", LastName: "B", Email: "ro@x.com"})
	s.Require().NoError(err)

	_, err = s.postgres.DB.ExecContext(ctx, `UPDATE audit_entries SET actor = 'mallory'`)
	s.Error(err)
	_, err = s.postgres.DB.ExecContext(ctx, `DELETE FROM audit_entries`)
	s.Error(err)
}

// TestConcurrentPledgeAndDonorDelete races a pledge insert against a guarded
// donor delete. Exactly one side wins and the ledger stays consistent.
func (s *PostgresLedgerSuite) TestConcurrentPledgeAndDonorDelete() {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		s.SetupTest()
		donor, err := s.svc.CreateDonor(ctx, actor, models.DonorFields{FirstName: "R", LastName: "Ace", Email: "race@x.com"})
		s.Require().NoError(err)

		var (
			wg                  sync.WaitGroup
			deleteErr, pledgeErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			deleteErr = s.svc.DeleteDonor(ctx, actor, donor.ID)
		}()
		go func() {
			defer wg.Done()
			_, pledgeErr = s.svc.CreatePledge(ctx, actor, donor.ID, decimal.NewFromInt(5), day)
		}()
		wg.Wait()

		switch {
		case deleteErr == nil:
			s.True(dErrors.HasCode(pledgeErr, dErrors.CodeNotFound), "pledge error: %v", pledgeErr)
		case pledgeErr == nil:
			s.True(dErrors.HasCode(deleteErr, dErrors.CodeConflict), "delete error: %v", deleteErr)
		default:
			s.Fail("both sides failed", errors.Join(deleteErr, pledgeErr).Error())
		}

		var orphans int
		s.Require().NoError(s.postgres.DB.QueryRow(
			`SELECT COUNT(*) FROM pledges p LEFT JOIN donors d ON d.id = p.donor_id WHERE d.id IS NULL`).Scan(&orphans))
		s.Zero(orphans)
	}
}

func (s *PostgresLedgerSuite) TestOutboxRowsFollowCommits() {
	ctx := context.Background()
	_, err := s.svc.CreateDonor(ctx, actor, models.DonorFields{FirstName: "A", LastName: "B", Email: "outbox@x.com"})
	s.Require().NoError(err)

	outbox := auditpostgres.New(s.postgres.DB)
	pending, err := outbox.Pending(ctx)
	s.Require().NoError(err)
	s.Equal(1, pending)
}
