package models

import (
	"fmt"
	"strings"
)

// EntityKind names a ledger entity in audit entries and errors.
type EntityKind string

const (
	KindDonor       EntityKind = "Donor"
	KindPledge      EntityKind = "Pledge"
	KindPayment     EntityKind = "Payment"
	KindAssociation EntityKind = "Association"
)

func (k EntityKind) String() string { return string(k) }

// FieldChange is one field whose stored value differs after an update.
type FieldChange struct {
	Field  string
	Before string
	After  string
}

// DescribeChanges renders changes as "field: before -> after" pairs.
func DescribeChanges(changes []FieldChange) string {
	if len(changes) == 0 {
		return "no field changed"
	}
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, fmt.Sprintf("%s: %q -> %q", c.Field, c.Before, c.After))
	}
	return strings.Join(parts, "; ")
}
