package domain

import (
	"strconv"
	"strings"

	dErrors "donations/pkg/domain-errors"
)

// Typed identifiers keep donor, pledge, payment and audit ids from being
// swapped at call sites. All are positive integers assigned by the store.
type (
	DonorID      int64
	PledgeID     int64
	PaymentID    int64
	AuditEntryID int64
)

// maxIDLength bounds the textual form accepted by the Parse functions.
const maxIDLength = 19

func (id DonorID) Valid() bool      { return id > 0 }
func (id PledgeID) Valid() bool     { return id > 0 }
func (id PaymentID) Valid() bool    { return id > 0 }
func (id AuditEntryID) Valid() bool { return id > 0 }

func (id DonorID) String() string      { return strconv.FormatInt(int64(id), 10) }
func (id PledgeID) String() string     { return strconv.FormatInt(int64(id), 10) }
func (id PaymentID) String() string    { return strconv.FormatInt(int64(id), 10) }
func (id AuditEntryID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseDonorID parses a positive decimal identifier.
func ParseDonorID(s string) (DonorID, error) {
	n, err := parsePositive(s, "donor")
	return DonorID(n), err
}

// ParsePledgeID parses a positive decimal identifier.
func ParsePledgeID(s string) (PledgeID, error) {
	n, err := parsePositive(s, "pledge")
	return PledgeID(n), err
}

// ParsePaymentID parses a positive decimal identifier.
func ParsePaymentID(s string) (PaymentID, error) {
	n, err := parsePositive(s, "payment")
	return PaymentID(n), err
}

// ParseAuditEntryID parses a positive decimal identifier.
func ParseAuditEntryID(s string) (AuditEntryID, error) {
	n, err := parsePositive(s, "audit entry")
	return AuditEntryID(n), err
}

func parsePositive(s, kind string) (int64, error) {
	if s == "" || len(s) > maxIDLength {
		return 0, dErrors.New(dErrors.CodeValidation, kind+" id must be a positive integer")
	}
	// strconv accepts a leading '+', identifiers do not
	if strings.HasPrefix(s, "+") {
		return 0, dErrors.New(dErrors.CodeValidation, kind+" id must be a positive integer")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, kind+" id must be a positive integer")
	}
	return n, nil
}
