package models

import (
	"net/mail"
	"strconv"
	"strings"

	id "donations/pkg/domain"
	dErrors "donations/pkg/domain-errors"
)

// Field length limits carried over from the donor registry.
const (
	maxNameLength       = 100
	maxAddressLength    = 200
	maxCityLength       = 100
	maxStateLength      = 50
	maxPostalCodeLength = 20
	maxCountryLength    = 50
	maxPhoneLength      = 32
	maxEmailLength      = 254
)

// Donor is the owner of pledges and payments.
//
// Invariants:
//   - FirstName, LastName and Email are non-empty
//   - Email is a single address and unique across donors (enforced by the store)
//   - string fields respect the registry's length limits
type Donor struct {
	ID          id.DonorID `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Address     string     `json:"address"`
	City        string     `json:"city"`
	State       string     `json:"state"`
	PostalCode  string     `json:"postal_code"`
	Country     string     `json:"country"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phone_number"`
	Active      bool       `json:"active"`
}

// DonorFields are the values supplied when a donor is created.
type DonorFields struct {
	FirstName   string
	LastName    string
	Address     string
	City        string
	State       string
	PostalCode  string
	Country     string
	Email       string
	PhoneNumber string
	Active      bool
}

// NewDonor builds an unsaved donor, trimming input and checking invariants.
func NewDonor(f DonorFields) (*Donor, error) {
	d := &Donor{
		FirstName:   strings.TrimSpace(f.FirstName),
		LastName:    strings.TrimSpace(f.LastName),
		Address:     strings.TrimSpace(f.Address),
		City:        strings.TrimSpace(f.City),
		State:       strings.TrimSpace(f.State),
		PostalCode:  strings.TrimSpace(f.PostalCode),
		Country:     strings.TrimSpace(f.Country),
		Email:       strings.TrimSpace(f.Email),
		PhoneNumber: strings.TrimSpace(f.PhoneNumber),
		Active:      f.Active,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the donor invariants.
func (d *Donor) Validate() error {
	if d.FirstName == "" {
		return invariant("donor first name is required")
	}
	if d.LastName == "" {
		return invariant("donor last name is required")
	}
	if d.Email == "" {
		return invariant("donor email is required")
	}
	if addr, err := mail.ParseAddress(d.Email); err != nil || addr.Address != d.Email {
		return invariant("donor email is not a valid address")
	}
	limits := []struct {
		field string
		value string
		max   int
	}{
		{"first name", d.FirstName, maxNameLength},
		{"last name", d.LastName, maxNameLength},
		{"address", d.Address, maxAddressLength},
		{"city", d.City, maxCityLength},
		{"state", d.State, maxStateLength},
		{"postal code", d.PostalCode, maxPostalCodeLength},
		{"country", d.Country, maxCountryLength},
		{"phone number", d.PhoneNumber, maxPhoneLength},
		{"email", d.Email, maxEmailLength},
	}
	for _, l := range limits {
		if len(l.value) > l.max {
			return invariant("donor " + l.field + " must be " + strconv.Itoa(l.max) + " characters or less")
		}
	}
	return nil
}

// DonorPatch is a partial update. A nil field, or an empty string field,
// leaves the stored value untouched.
type DonorPatch struct {
	FirstName   *string
	LastName    *string
	Address     *string
	City        *string
	State       *string
	PostalCode  *string
	Country     *string
	Email       *string
	PhoneNumber *string
	Active      *bool
}

// Apply patches d in place and reports the fields whose value changed.
// On invariant failure d is left unchanged.
func (p DonorPatch) Apply(d *Donor) ([]FieldChange, error) {
	next := *d
	var changes []FieldChange

	setString := func(field string, dst *string, v *string) {
		if v == nil {
			return
		}
		val := strings.TrimSpace(*v)
		if val == "" || val == *dst {
			return
		}
		changes = append(changes, FieldChange{Field: field, Before: *dst, After: val})
		*dst = val
	}

	setString("first_name", &next.FirstName, p.FirstName)
	setString("last_name", &next.LastName, p.LastName)
	setString("address", &next.Address, p.Address)
	setString("city", &next.City, p.City)
	setString("state", &next.State, p.State)
	setString("postal_code", &next.PostalCode, p.PostalCode)
	setString("country", &next.Country, p.Country)
	setString("email", &next.Email, p.Email)
	setString("phone_number", &next.PhoneNumber, p.PhoneNumber)
	if p.Active != nil && *p.Active != next.Active {
		changes = append(changes, FieldChange{
			Field:  "active",
			Before: strconv.FormatBool(next.Active),
			After:  strconv.FormatBool(*p.Active),
		})
		next.Active = *p.Active
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}
	*d = next
	return changes, nil
}

// EmailChanged reports whether the patch would replace email.
func (p DonorPatch) EmailChanged(current string) bool {
	if p.Email == nil {
		return false
	}
	v := strings.TrimSpace(*p.Email)
	return v != "" && !strings.EqualFold(v, current)
}

func invariant(msg string) error {
	return dErrors.New(dErrors.CodeInvariantViolation, msg)
}
