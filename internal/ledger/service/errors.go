package service

import (
	"errors"
	"strings"

	"donations/internal/ledger/guard"
	"donations/internal/ledger/models"
	dErrors "donations/pkg/domain-errors"
	"donations/pkg/platform/sentinel"
)

// loadError translates a failed lookup of (kind, entityID).
func loadError(err error, kind models.EntityKind, entityID int64) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.NotFound(kind.String(), entityID)
	}
	return dErrors.Storage(err, "load "+strings.ToLower(kind.String())).For(kind.String(), entityID)
}

// writeError translates a failed write of (kind, entityID).
func writeError(err error, kind models.EntityKind, entityID int64, action string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.NotFound(kind.String(), entityID)
	}
	return dErrors.Storage(err, action+" "+strings.ToLower(kind.String())).For(kind.String(), entityID)
}

// validationError converts a model invariant violation into a validation error.
func validationError(err error, kind models.EntityKind, entityID int64) error {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code == dErrors.CodeInvariantViolation {
		return dErrors.New(dErrors.CodeValidation, de.Message).For(kind.String(), entityID)
	}
	return err
}

func invalidID(kind models.EntityKind, entityID int64) error {
	return dErrors.New(dErrors.CodeValidation, kind.String()+" id must be positive").For(kind.String(), entityID)
}

// restrictedError covers a delete the store refused after the guard passed.
func restrictedError(kind models.EntityKind, entityID int64) error {
	return guard.Blocked(kind, entityID, "")
}

func emailConflict(donorID int64) error {
	return dErrors.Conflict(models.KindDonor.String(), donorID, "a donor with this email already exists")
}
