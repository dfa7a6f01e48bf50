package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"donations/internal/ledger/models"
	"donations/internal/ledger/ports"
	id "donations/pkg/domain"
	dErrors "donations/pkg/domain-errors"
	audit "donations/pkg/platform/audit"
	"donations/pkg/platform/sentinel"
)

// requireDonor resolves a donor reference held by a pledge or payment.
func requireDonor(ctx context.Context, stores ports.Stores, donorID id.DonorID) error {
	if _, err := stores.Donors.FindByID(ctx, donorID); err != nil {
		return loadError(err, models.KindDonor, int64(donorID))
	}
	return nil
}

// contributionWriteError maps a pledge/payment write failure. A foreign key
// violation means the donor vanished between lookup and write.
func contributionWriteError(err error, kind models.EntityKind, entityID int64, donorID id.DonorID, action string) error {
	if errors.Is(err, sentinel.ErrForeignKey) {
		return dErrors.NotFound(models.KindDonor.String(), int64(donorID))
	}
	return writeError(err, kind, entityID, action)
}

// CreatePledge records a pledge for an existing donor.
func (s *Service) CreatePledge(ctx context.Context, actor string, donorID id.DonorID, amount decimal.Decimal, date time.Time) (*models.Pledge, error) {
	p, err := models.NewPledge(donorID, amount, date)
	if err != nil {
		return nil, validationError(err, models.KindPledge, 0)
	}
	_, err = s.mutate(ctx, models.KindPledge, audit.OpInsert, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		if err := requireDonor(ctx, stores, p.DonorID); err != nil {
			return change{}, err
		}
		if err := stores.Pledges.Create(ctx, p); err != nil {
			return change{}, contributionWriteError(err, models.KindPledge, 0, p.DonorID, "create")
		}
		return change{
			entityID:    int64(p.ID),
			description: fmt.Sprintf("Pledge with ID %d created.", p.ID),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPledge(ctx context.Context, pledgeID id.PledgeID) (*models.Pledge, error) {
	if !pledgeID.Valid() {
		return nil, invalidID(models.KindPledge, int64(pledgeID))
	}
	var p *models.Pledge
	err := s.view(ctx, "get_pledge", func(ctx context.Context, stores ports.Stores) error {
		var err error
		p, err = stores.Pledges.FindByID(ctx, pledgeID)
		if err != nil {
			return loadError(err, models.KindPledge, int64(pledgeID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePledge applies patch; moving a pledge to another donor requires that
// donor to exist.
func (s *Service) UpdatePledge(ctx context.Context, actor string, pledgeID id.PledgeID, patch models.PledgePatch) (*models.Pledge, error) {
	if !pledgeID.Valid() {
		return nil, invalidID(models.KindPledge, int64(pledgeID))
	}
	var p *models.Pledge
	_, err := s.mutate(ctx, models.KindPledge, audit.OpUpdate, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		var err error
		p, err = stores.Pledges.FindByIDForUpdate(ctx, pledgeID)
		if err != nil {
			return change{}, loadError(err, models.KindPledge, int64(pledgeID))
		}
		if patch.DonorID != nil && *patch.DonorID != p.DonorID && patch.DonorID.Valid() {
			if err := requireDonor(ctx, stores, *patch.DonorID); err != nil {
				return change{}, err
			}
		}
		changes, err := patch.Apply(p)
		if err != nil {
			return change{}, validationError(err, models.KindPledge, int64(pledgeID))
		}
		if err := stores.Pledges.Update(ctx, p); err != nil {
			return change{}, contributionWriteError(err, models.KindPledge, int64(pledgeID), p.DonorID, "update")
		}
		return change{
			entityID:    int64(pledgeID),
			description: fmt.Sprintf("Pledge with ID %d updated: %s.", pledgeID, models.DescribeChanges(changes)),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePledge removes a pledge no payment is associated with.
func (s *Service) DeletePledge(ctx context.Context, actor string, pledgeID id.PledgeID) error {
	if !pledgeID.Valid() {
		return invalidID(models.KindPledge, int64(pledgeID))
	}
	_, err := s.mutate(ctx, models.KindPledge, audit.OpDelete, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		if _, err := stores.Pledges.FindByIDForUpdate(ctx, pledgeID); err != nil {
			return change{}, loadError(err, models.KindPledge, int64(pledgeID))
		}
		if err := s.guardDelete(ctx, stores, models.KindPledge, int64(pledgeID)); err != nil {
			return change{}, err
		}
		if err := stores.Pledges.Delete(ctx, pledgeID); err != nil {
			if errors.Is(err, sentinel.ErrRestricted) {
				return change{}, restrictedError(models.KindPledge, int64(pledgeID))
			}
			return change{}, writeError(err, models.KindPledge, int64(pledgeID), "delete")
		}
		return change{
			entityID:    int64(pledgeID),
			description: fmt.Sprintf("Pledge with ID %d deleted.", pledgeID),
		}, nil
	})
	return err
}

// CreatePayment records a payment for an existing donor.
func (s *Service) CreatePayment(ctx context.Context, actor string, donorID id.DonorID, amount decimal.Decimal, date time.Time) (*models.Payment, error) {
	p, err := models.NewPayment(donorID, amount, date)
	if err != nil {
		return nil, validationError(err, models.KindPayment, 0)
	}
	_, err = s.mutate(ctx, models.KindPayment, audit.OpInsert, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		if err := requireDonor(ctx, stores, p.DonorID); err != nil {
			return change{}, err
		}
		if err := stores.Payments.Create(ctx, p); err != nil {
			return change{}, contributionWriteError(err, models.KindPayment, 0, p.DonorID, "create")
		}
		return change{
			entityID:    int64(p.ID),
			description: fmt.Sprintf("Payment with ID %d created.", p.ID),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	if !paymentID.Valid() {
		return nil, invalidID(models.KindPayment, int64(paymentID))
	}
	var p *models.Payment
	err := s.view(ctx, "get_payment", func(ctx context.Context, stores ports.Stores) error {
		var err error
		p, err = stores.Payments.FindByID(ctx, paymentID)
		if err != nil {
			return loadError(err, models.KindPayment, int64(paymentID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdatePayment(ctx context.Context, actor string, paymentID id.PaymentID, patch models.PaymentPatch) (*models.Payment, error) {
	if !paymentID.Valid() {
		return nil, invalidID(models.KindPayment, int64(paymentID))
	}
	var p *models.Payment
	_, err := s.mutate(ctx, models.KindPayment, audit.OpUpdate, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		var err error
		p, err = stores.Payments.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return change{}, loadError(err, models.KindPayment, int64(paymentID))
		}
		if patch.DonorID != nil && *patch.DonorID != p.DonorID && patch.DonorID.Valid() {
			if err := requireDonor(ctx, stores, *patch.DonorID); err != nil {
				return change{}, err
			}
		}
		changes, err := patch.Apply(p)
		if err != nil {
			return change{}, validationError(err, models.KindPayment, int64(paymentID))
		}
		if err := stores.Payments.Update(ctx, p); err != nil {
			return change{}, contributionWriteError(err, models.KindPayment, int64(paymentID), p.DonorID, "update")
		}
		return change{
			entityID:    int64(paymentID),
			description: fmt.Sprintf("Payment with ID %d updated: %s.", paymentID, models.DescribeChanges(changes)),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePayment removes a payment that is not applied toward any pledge.
func (s *Service) DeletePayment(ctx context.Context, actor string, paymentID id.PaymentID) error {
	if !paymentID.Valid() {
		return invalidID(models.KindPayment, int64(paymentID))
	}
	_, err := s.mutate(ctx, models.KindPayment, audit.OpDelete, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		if _, err := stores.Payments.FindByIDForUpdate(ctx, paymentID); err != nil {
			return change{}, loadError(err, models.KindPayment, int64(paymentID))
		}
		if err := s.guardDelete(ctx, stores, models.KindPayment, int64(paymentID)); err != nil {
			return change{}, err
		}
		if err := stores.Payments.Delete(ctx, paymentID); err != nil {
			if errors.Is(err, sentinel.ErrRestricted) {
				return change{}, restrictedError(models.KindPayment, int64(paymentID))
			}
			return change{}, writeError(err, models.KindPayment, int64(paymentID), "delete")
		}
		return change{
			entityID:    int64(paymentID),
			description: fmt.Sprintf("Payment with ID %d deleted.", paymentID),
		}, nil
	})
	return err
}
