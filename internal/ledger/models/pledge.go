package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "donations/pkg/domain"
)

// Pledge is a donor's promise to give Amount. It belongs to exactly one donor.
type Pledge struct {
	ID      id.PledgeID     `json:"id"`
	DonorID id.DonorID      `json:"donor_id"`
	Amount  decimal.Decimal `json:"amount"`
	Date    time.Time       `json:"date"`
}

// NewPledge builds an unsaved pledge.
func NewPledge(donorID id.DonorID, amount decimal.Decimal, date time.Time) (*Pledge, error) {
	p := &Pledge{DonorID: donorID, Amount: amount, Date: date.UTC()}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pledge) Validate() error {
	return checkContribution("pledge", p.DonorID, p.Amount, p.Date)
}

// PledgePatch is a partial update; nil fields leave the stored value untouched.
type PledgePatch struct {
	DonorID *id.DonorID
	Amount  *decimal.Decimal
	Date    *time.Time
}

// Apply patches p in place and reports changed fields.
// On invariant failure p is left unchanged.
func (patch PledgePatch) Apply(p *Pledge) ([]FieldChange, error) {
	next := *p
	changes := contributionPatch(patch).apply(&next.DonorID, &next.Amount, &next.Date)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	*p = next
	return changes, nil
}
