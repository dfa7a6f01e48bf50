package models

import (
	"fmt"

	id "donations/pkg/domain"
)

// Association records that a payment was applied toward a pledge.
// (PaymentID, PledgeID) is its identity; it has no other attributes.
type Association struct {
	PaymentID id.PaymentID `json:"payment_id"`
	PledgeID  id.PledgeID  `json:"pledge_id"`
}

func (a Association) Validate() error {
	if !a.PaymentID.Valid() || !a.PledgeID.Valid() {
		return invariant("association ids must be positive")
	}
	return nil
}

func (a Association) String() string {
	return fmt.Sprintf("payment %d / pledge %d", a.PaymentID, a.PledgeID)
}
