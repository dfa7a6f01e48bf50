package service

import (
	"context"
	"errors"
	"fmt"

	"donations/internal/ledger/models"
	"donations/internal/ledger/ports"
	id "donations/pkg/domain"
	dErrors "donations/pkg/domain-errors"
	audit "donations/pkg/platform/audit"
	"donations/pkg/platform/sentinel"
)

// Association audit entries are keyed by the payment side of the link.

// Link applies a payment toward a pledge.
func (s *Service) Link(ctx context.Context, actor string, paymentID id.PaymentID, pledgeID id.PledgeID) error {
	a := models.Association{PaymentID: paymentID, PledgeID: pledgeID}
	if err := a.Validate(); err != nil {
		return validationError(err, models.KindAssociation, int64(paymentID))
	}
	_, err := s.mutate(ctx, models.KindAssociation, audit.OpInsert, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		if _, err := stores.Payments.FindByID(ctx, paymentID); err != nil {
			return change{}, loadError(err, models.KindPayment, int64(paymentID))
		}
		if _, err := stores.Pledges.FindByID(ctx, pledgeID); err != nil {
			return change{}, loadError(err, models.KindPledge, int64(pledgeID))
		}
		if err := stores.Associations.Create(ctx, a); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrConflict):
				return change{}, dErrors.Conflict(models.KindAssociation.String(), int64(paymentID),
					fmt.Sprintf("Pledge %d is already associated with Payment %d", pledgeID, paymentID))
			case errors.Is(err, sentinel.ErrForeignKey):
				return change{}, dErrors.New(dErrors.CodeNotFound,
					fmt.Sprintf("Payment %d or Pledge %d no longer exists", paymentID, pledgeID)).
					For(models.KindAssociation.String(), int64(paymentID))
			}
			return change{}, writeError(err, models.KindAssociation, int64(paymentID), "create")
		}
		return change{
			entityID:    int64(paymentID),
			description: fmt.Sprintf("Pledge %d associated with Payment %d.", pledgeID, paymentID),
		}, nil
	})
	return err
}

// Unlink removes an existing association.
func (s *Service) Unlink(ctx context.Context, actor string, paymentID id.PaymentID, pledgeID id.PledgeID) error {
	a := models.Association{PaymentID: paymentID, PledgeID: pledgeID}
	if err := a.Validate(); err != nil {
		return validationError(err, models.KindAssociation, int64(paymentID))
	}
	_, err := s.mutate(ctx, models.KindAssociation, audit.OpDelete, actor, func(ctx context.Context, stores ports.Stores) (change, error) {
		if err := stores.Associations.Delete(ctx, a); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return change{}, dErrors.New(dErrors.CodeNotFound,
					fmt.Sprintf("Pledge %d is not associated with Payment %d", pledgeID, paymentID)).
					For(models.KindAssociation.String(), int64(paymentID))
			}
			return change{}, writeError(err, models.KindAssociation, int64(paymentID), "delete")
		}
		return change{
			entityID:    int64(paymentID),
			description: fmt.Sprintf("Pledge %d disassociated from Payment %d.", pledgeID, paymentID),
		}, nil
	})
	return err
}

// PledgesForPayment lists the pledges a payment is applied toward, by pledge id.
func (s *Service) PledgesForPayment(ctx context.Context, paymentID id.PaymentID) ([]models.Pledge, error) {
	if !paymentID.Valid() {
		return nil, invalidID(models.KindPayment, int64(paymentID))
	}
	var out []models.Pledge
	err := s.view(ctx, "pledges_for_payment", func(ctx context.Context, stores ports.Stores) error {
		if _, err := stores.Payments.FindByID(ctx, paymentID); err != nil {
			return loadError(err, models.KindPayment, int64(paymentID))
		}
		var err error
		out, err = stores.Associations.PledgesForPayment(ctx, paymentID)
		if err != nil {
			return dErrors.Storage(err, "list pledges for payment").For(models.KindPayment.String(), int64(paymentID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PaymentsForPledge lists the payments applied toward a pledge, by payment id.
func (s *Service) PaymentsForPledge(ctx context.Context, pledgeID id.PledgeID) ([]models.Payment, error) {
	if !pledgeID.Valid() {
		return nil, invalidID(models.KindPledge, int64(pledgeID))
	}
	var out []models.Payment
	err := s.view(ctx, "payments_for_pledge", func(ctx context.Context, stores ports.Stores) error {
		if _, err := stores.Pledges.FindByID(ctx, pledgeID); err != nil {
			return loadError(err, models.KindPledge, int64(pledgeID))
		}
		var err error
		out, err = stores.Associations.PaymentsForPledge(ctx, pledgeID)
		if err != nil {
			return dErrors.Storage(err, "list payments for pledge").For(models.KindPledge.String(), int64(pledgeID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
