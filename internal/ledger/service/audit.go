package service

import (
	"context"
	"errors"

	"donations/internal/ledger/models"
	"donations/internal/ledger/ports"
	id "donations/pkg/domain"
	dErrors "donations/pkg/domain-errors"
	audit "donations/pkg/platform/audit"
	"donations/pkg/platform/sentinel"
)

const auditEntity = "AuditEntry"

// AuditTrail returns the entries recorded for one entity, oldest first.
func (s *Service) AuditTrail(ctx context.Context, kind models.EntityKind, entityID int64) ([]audit.Entry, error) {
	var out []audit.Entry
	err := s.view(ctx, "audit_trail", func(ctx context.Context, stores ports.Stores) error {
		var err error
		out, err = stores.Audit.ListByEntity(ctx, kind.String(), entityID)
		if err != nil {
			return dErrors.Storage(err, "list audit trail").For(kind.String(), entityID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AuditEntry returns a single entry.
func (s *Service) AuditEntry(ctx context.Context, entryID id.AuditEntryID) (*audit.Entry, error) {
	if !entryID.Valid() {
		return nil, dErrors.Validation(auditEntity, "audit entry id must be positive")
	}
	var e *audit.Entry
	err := s.view(ctx, "audit_entry", func(ctx context.Context, stores ports.Stores) error {
		var err error
		e, err = stores.Audit.FindByID(ctx, entryID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.NotFound(auditEntity, int64(entryID))
		}
		if err != nil {
			return dErrors.Storage(err, "load audit entry").For(auditEntity, int64(entryID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// RecentAudit returns up to limit entries, newest first.
func (s *Service) RecentAudit(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		return nil, dErrors.Validation(auditEntity, "limit must be positive")
	}
	var out []audit.Entry
	err := s.view(ctx, "recent_audit", func(ctx context.Context, stores ports.Stores) error {
		var err error
		out, err = stores.Audit.ListRecent(ctx, limit)
		if err != nil {
			return dErrors.Storage(err, "list recent audit entries")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
