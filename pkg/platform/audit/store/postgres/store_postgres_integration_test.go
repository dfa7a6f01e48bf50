//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "donations/pkg/platform/audit"
	"donations/pkg/platform/audit/outbox"
	auditpostgres "donations/pkg/platform/audit/store/postgres"
	"donations/pkg/platform/sentinel"
	txcontext "donations/pkg/platform/tx"
	"donations/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpostgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = auditpostgres.New(s.postgres.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "audit_outbox", "audit_entries")
	s.Require().NoError(err)
}

func (s *AuditStoreSuite) appendEntry(ctx context.Context, kind string, entityID int64, op audit.Operation) *audit.Entry {
	e := &audit.Entry{
		EntityKind:  kind,
		EntityID:    entityID,
		Operation:   op,
		Description: kind + " changed.",
		Timestamp:   time.Now().UTC().Truncate(time.Microsecond),
		Actor:       "tester",
		RequestID:   "req-1",
	}
	s.Require().NoError(s.store.Append(ctx, e))
	return e
}

func (s *AuditStoreSuite) TestAppendAndRead() {
	ctx := context.Background()
	first := s.appendEntry(ctx, "Donor", 1, audit.OpInsert)
	s.appendEntry(ctx, "Pledge", 1, audit.OpInsert)
	third := s.appendEntry(ctx, "Donor", 1, audit.OpUpdate)

	s.Positive(int64(first.ID))

	got, err := s.store.FindByID(ctx, first.ID)
	s.Require().NoError(err)
	s.True(first.Timestamp.Equal(got.Timestamp))
	got.Timestamp = first.Timestamp
	s.Equal(*first, *got)

	trail, err := s.store.ListByEntity(ctx, "Donor", 1)
	s.Require().NoError(err)
	s.Require().Len(trail, 2)
	s.Equal(first.ID, trail[0].ID)
	s.Equal(third.ID, trail[1].ID)

	recent, err := s.store.ListRecent(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.Equal(third.ID, recent[0].ID)

	_, err = s.store.FindByID(ctx, 9999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *AuditStoreSuite) TestAppendJoinsCallerTransaction() {
	ctx := context.Background()
	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	s.appendEntry(txcontext.WithTx(ctx, tx), "Payment", 3, audit.OpDelete)
	s.Require().NoError(tx.Rollback())

	trail, err := s.store.ListByEntity(ctx, "Payment", 3)
	s.Require().NoError(err)
	s.Empty(trail)

	pending, err := s.store.Pending(ctx)
	s.Require().NoError(err)
	s.Zero(pending)
}

func (s *AuditStoreSuite) TestProcessPublishesInOrderAndStopsOnFailure() {
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		s.appendEntry(ctx, "Donor", i, audit.OpInsert)
	}

	var seen []string
	failOn := "Donor:2"
	n, err := s.store.Process(ctx, 10, func(_ context.Context, msg outbox.Message) error {
		if msg.Key == failOn {
			return errors.New("broker down")
		}
		seen = append(seen, msg.Key)

		var entry audit.Entry
		s.Require().NoError(json.Unmarshal(msg.Payload, &entry))
		s.Equal(audit.OpInsert, entry.Operation)
		return nil
	})
	s.Require().Error(err)
	s.Equal(1, n)
	s.Equal([]string{"Donor:1"}, seen)

	pending, err := s.store.Pending(ctx)
	s.Require().NoError(err)
	s.Equal(2, pending)

	failOn = ""
	n, err = s.store.Process(ctx, 10, func(_ context.Context, msg outbox.Message) error {
		seen = append(seen, msg.Key)
		return nil
	})
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal([]string{"Donor:1", "Donor:2", "Donor:3"}, seen)

	var publishedAt sql.NullTime
	s.Require().NoError(s.postgres.DB.QueryRow(
		`SELECT published_at FROM audit_outbox WHERE aggregate_key = 'Donor:3'`).Scan(&publishedAt))
	s.True(publishedAt.Valid)
}
