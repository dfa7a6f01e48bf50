package sentinel

import "errors"

// Sentinel errors for store-level facts. Stores return these (optionally
// wrapped) and the ledger service translates them into domain errors:
// - ErrNotFound: row does not exist
// - ErrConflict: a unique key already holds the value
// - ErrForeignKey: a referenced parent row does not exist
// - ErrRestricted: the row is still referenced by a dependent row
// - ErrUnavailable: the store cannot be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrForeignKey  = errors.New("foreign key violation")
	ErrRestricted  = errors.New("restricted by dependent rows")
	ErrUnavailable = errors.New("unavailable")
)
