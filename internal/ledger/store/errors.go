package store

import (
	"errors"

	"github.com/lib/pq"

	"donations/pkg/platform/sentinel"
)

// PostgreSQL SQLSTATE codes the stores translate into sentinel facts.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translateWrite maps constraint violations raised by INSERT/UPDATE.
func translateWrite(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return sentinel.ErrConflict
		case pqForeignKeyViolation:
			return sentinel.ErrForeignKey
		}
	}
	return err
}

// translateDelete maps a restrict violation raised by DELETE.
func translateDelete(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation {
		return sentinel.ErrRestricted
	}
	return err
}
