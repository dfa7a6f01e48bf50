package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "donations/pkg/domain"
)

// Payment is money received from a donor. It may be applied toward any
// number of pledges through associations.
type Payment struct {
	ID      id.PaymentID    `json:"id"`
	DonorID id.DonorID      `json:"donor_id"`
	Amount  decimal.Decimal `json:"amount"`
	Date    time.Time       `json:"date"`
}

// NewPayment builds an unsaved payment.
func NewPayment(donorID id.DonorID, amount decimal.Decimal, date time.Time) (*Payment, error) {
	p := &Payment{DonorID: donorID, Amount: amount, Date: date.UTC()}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Payment) Validate() error {
	return checkContribution("payment", p.DonorID, p.Amount, p.Date)
}

// PaymentPatch is a partial update; nil fields leave the stored value untouched.
type PaymentPatch struct {
	DonorID *id.DonorID
	Amount  *decimal.Decimal
	Date    *time.Time
}

// Apply patches p in place and reports changed fields.
// On invariant failure p is left unchanged.
func (patch PaymentPatch) Apply(p *Payment) ([]FieldChange, error) {
	next := *p
	changes := contributionPatch(patch).apply(&next.DonorID, &next.Amount, &next.Date)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	*p = next
	return changes, nil
}
