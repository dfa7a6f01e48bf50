package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "donations/pkg/domain"
)

// amountScale is the number of decimal places stored for amounts.
const amountScale = 2

// maxAmount is the largest value a NUMERIC(18,2) column holds.
var maxAmount = decimal.RequireFromString("9999999999999999.99")

func checkContribution(kind string, donorID id.DonorID, amount decimal.Decimal, date time.Time) error {
	if !donorID.Valid() {
		return invariant(kind + " donor id must be positive")
	}
	if amount.IsNegative() {
		return invariant(kind + " amount must not be negative")
	}
	if amount.GreaterThan(maxAmount) {
		return invariant(kind + " amount must not exceed " + maxAmount.StringFixed(amountScale))
	}
	if !amount.Equal(amount.Round(amountScale)) {
		return invariant(kind + " amount must have at most two decimal places")
	}
	if date.IsZero() {
		return invariant(kind + " date is required")
	}
	return nil
}

// contributionPatch holds the shared partial-update fields of pledges and payments.
type contributionPatch struct {
	DonorID *id.DonorID
	Amount  *decimal.Decimal
	Date    *time.Time
}

func (p contributionPatch) apply(donorID *id.DonorID, amount *decimal.Decimal, date *time.Time) []FieldChange {
	var changes []FieldChange
	if p.DonorID != nil && *p.DonorID != *donorID {
		changes = append(changes, FieldChange{Field: "donor_id", Before: donorID.String(), After: p.DonorID.String()})
		*donorID = *p.DonorID
	}
	if p.Amount != nil && !p.Amount.Equal(*amount) {
		changes = append(changes, FieldChange{Field: "amount", Before: amount.StringFixed(amountScale), After: p.Amount.StringFixed(amountScale)})
		*amount = *p.Amount
	}
	if p.Date != nil && !p.Date.Equal(*date) {
		next := p.Date.UTC()
		changes = append(changes, FieldChange{Field: "date", Before: date.Format(time.RFC3339), After: next.Format(time.RFC3339)})
		*date = next
	}
	return changes
}
