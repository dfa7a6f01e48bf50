package service

import (
	"context"
	"errors"
	"fmt"

	"donations/internal/ledger/guard"
	"donations/internal/ledger/models"
	"donations/internal/ledger/ports"
	id "donations/pkg/domain"
	dErrors "donations/pkg/domain-errors"
	audit "donations/pkg/platform/audit"
	"donations/pkg/platform/sentinel"
)

// CreateDonor registers a donor. The email must not be held by another donor,
// compared case-insensitively.
func (s *Service) CreateDonor(ctx context.Context, actor string, fields models.DonorFields) (*models.Donor, error) {
	d, err := models.NewDonor(fields)
	if err != nil {
		return nil, validationError(err, models.KindDonor, 0)
	}

	_, err = s.mutate(ctx, models.KindDonor, audit.OpInsert, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		taken, err := stores.Donors.EmailTaken(ctx, d.Email, 0)
		if err != nil {
			return change{}, dErrors.Storage(err, "check donor email").For(models.KindDonor.String(), 0)
		}
		if taken {
			return change{}, emailConflict(0)
		}
		if err := stores.Donors.Create(ctx, d); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return change{}, emailConflict(0)
			}
			return change{}, writeError(err, models.KindDonor, 0, "create")
		}
		return change{
			entityID:    int64(d.ID),
			description: fmt.Sprintf("Donor with ID %d created.", d.ID),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetDonor(ctx context.Context, donorID id.DonorID) (*models.Donor, error) {
	if !donorID.Valid() {
		return nil, invalidID(models.KindDonor, int64(donorID))
	}
	var d *models.Donor
	err := s.view(ctx, "get_donor", func(ctx context.Context, stores ports.Stores) error {
		var err error
		d, err = stores.Donors.FindByID(ctx, donorID)
		if err != nil {
			return loadError(err, models.KindDonor, int64(donorID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDonor applies patch. Exactly one UPDATE entry is recorded, listing the
// changed fields, even when the patch leaves every value as it was.
func (s *Service) UpdateDonor(ctx context.Context, actor string, donorID id.DonorID, patch models.DonorPatch) (*models.Donor, error) {
	if !donorID.Valid() {
		return nil, invalidID(models.KindDonor, int64(donorID))
	}
	var d *models.Donor
	_, err := s.mutate(ctx, models.KindDonor, audit.OpUpdate, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		var err error
		d, err = stores.Donors.FindByIDForUpdate(ctx, donorID)
		if err != nil {
			return change{}, loadError(err, models.KindDonor, int64(donorID))
		}

		if patch.EmailChanged(d.Email) {
			taken, err := stores.Donors.EmailTaken(ctx, *patch.Email, donorID)
			if err != nil {
				return change{}, dErrors.Storage(err, "check donor email").For(models.KindDonor.String(), int64(donorID))
			}
			if taken {
				return change{}, emailConflict(int64(donorID))
			}
		}

		changes, err := patch.Apply(d)
		if err != nil {
			return change{}, validationError(err, models.KindDonor, int64(donorID))
		}
		if err := stores.Donors.Update(ctx, d); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return change{}, emailConflict(int64(donorID))
			}
			return change{}, writeError(err, models.KindDonor, int64(donorID), "update")
		}
		return change{
			entityID:    int64(donorID),
			description: fmt.Sprintf("Donor with ID %d updated: %s.", donorID, models.DescribeChanges(changes)),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDonor removes a donor that owns no pledges and no payments.
func (s *Service) DeleteDonor(ctx context.Context, actor string, donorID id.DonorID) error {
	if !donorID.Valid() {
		return invalidID(models.KindDonor, int64(donorID))
	}
	_, err := s.mutate(ctx, models.KindDonor, audit.OpDelete, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		if _, err := stores.Donors.FindByIDForUpdate(ctx, donorID); err != nil {
			return change{}, loadError(err, models.KindDonor, int64(donorID))
		}
		if err := s.guardDelete(ctx, stores, models.KindDonor, int64(donorID)); err != nil {
			return change{}, err
		}
		if err := stores.Donors.Delete(ctx, donorID); err != nil {
			if errors.Is(err, sentinel.ErrRestricted) {
				return change{}, restrictedError(models.KindDonor, int64(donorID))
			}
			return change{}, writeError(err, models.KindDonor, int64(donorID), "delete")
		}
		return change{
			entityID:    int64(donorID),
			description: fmt.Sprintf("Donor with ID %d deleted.", donorID),
		}, nil
	})
	return err
}

func (s *Service) guardDelete(ctx context.Context, stores ports.Stores, kind models.EntityKind, entityID int64) error {
	err := guard.Check(ctx, stores, kind, entityID)
	if err != nil && dErrors.HasCode(err, dErrors.CodeConflict) {
		s.logger.InfoContext(ctx, "delete blocked by dependents", "kind", kind, "entity_id", entityID)
		if s.metrics != nil {
			s.metrics.IncGuardConflict(kind.String())
		}
	}
	return err
}
