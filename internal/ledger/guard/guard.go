// Package guard blocks deletes of ledger entities that still have dependents.
//
// Checks use indexed existence queries and must run in the same unit of work
// as the delete they protect, after the target row has been locked, so a
// dependent inserted concurrently cannot slip between check and delete.
package guard

import (
	"context"
	"fmt"

	"donations/internal/ledger/models"
	"donations/internal/ledger/ports"
	id "donations/pkg/domain"
	dErrors "donations/pkg/domain-errors"
)

// Dependent reports the first dependent kind that references (kind, entityID).
// It has no side effects.
func Dependent(ctx context.Context, stores ports.Stores, kind models.EntityKind, entityID int64) (models.EntityKind, bool, error) {
	switch kind {
	case models.KindDonor:
		donorID := id.DonorID(entityID)
		has, err := stores.Pledges.ExistsForDonor(ctx, donorID)
		if err != nil || has {
			return models.KindPledge, has, err
		}
		has, err = stores.Payments.ExistsForDonor(ctx, donorID)
		return models.KindPayment, has, err
	case models.KindPayment:
		has, err := stores.Associations.ExistsForPayment(ctx, id.PaymentID(entityID))
		return models.KindAssociation, has, err
	case models.KindPledge:
		has, err := stores.Associations.ExistsForPledge(ctx, id.PledgeID(entityID))
		return models.KindAssociation, has, err
	}
	return "", false, nil
}

// HasDependents reports whether (kind, entityID) is referenced by any dependent row.
func HasDependents(ctx context.Context, stores ports.Stores, kind models.EntityKind, entityID int64) (bool, error) {
	_, has, err := Dependent(ctx, stores, kind, entityID)
	return has, err
}

// Check returns a conflict error when (kind, entityID) may not be deleted.
func Check(ctx context.Context, stores ports.Stores, kind models.EntityKind, entityID int64) error {
	dep, has, err := Dependent(ctx, stores, kind, entityID)
	if err != nil {
		return dErrors.Storage(err, "check dependents").For(kind.String(), entityID)
	}
	if has {
		return Blocked(kind, entityID, dep)
	}
	return nil
}

// Blocked builds the conflict returned for a guarded delete.
func Blocked(kind models.EntityKind, entityID int64, dependent models.EntityKind) error {
	what := "records"
	switch dependent {
	case models.KindPledge:
		what = "pledges"
	case models.KindPayment:
		what = "payments"
	case models.KindAssociation:
		if kind == models.KindPayment {
			what = "pledges"
		} else {
			what = "payments"
		}
	}
	return dErrors.Conflict(kind.String(), entityID,
		fmt.Sprintf("%s with ID %d cannot be deleted because there are %s associated with it", kind, entityID, what))
}
