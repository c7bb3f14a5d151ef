package core

import (
	"errors"
	"fmt"
)

// Error taxonomy of the billing engine.
var (
	ErrInvalidDayToken      = errors.New("invalid day token")
	ErrUnresolvedInstrument = errors.New("unresolved instrument reference")
	ErrUnresolvedAccount    = errors.New("unresolved account reference")
	ErrInvalidFixPatch      = errors.New("invalid fix patch")
	ErrNotFound             = errors.New("not found")
	// ErrValidation marks input rejected before any computation ran.
	ErrValidation           = errors.New("validation failed")
)

// DayTokenError is returned when a billing day token is malformed or out of range.
type DayTokenError struct {
	Token  string
	Reason string
}

func (e *DayTokenError) Error() string {
	return fmt.Sprintf("invalid day token %q: %s", e.Token, e.Reason)
}

func (e *DayTokenError) Unwrap() error {
	return ErrInvalidDayToken
}

// ReferenceKind names what an UnresolvedReferenceError failed to resolve.
type ReferenceKind string

const (
	RefInstrument ReferenceKind = "instrument"
	RefAccount    ReferenceKind = "account"
)

// UnresolvedReferenceError means an item points at an instrument or account the
// caller did not supply. It is a data-integrity problem, never a skip.
type UnresolvedReferenceError struct {
	Kind   ReferenceKind
	ID     string
	ItemID string
}

func (e *UnresolvedReferenceError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s %q referenced by %q not found", e.Kind, e.ID, e.ItemID)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *UnresolvedReferenceError) Unwrap() error {
	if e.Kind == RefAccount {
		return ErrUnresolvedAccount
	}
	return ErrUnresolvedInstrument
}

// FixPatchError reports a configuration patch that failed validation.
type FixPatchError struct {
	InstrumentID string
	Reason       string
}

func (e *FixPatchError) Error() string {
	return fmt.Sprintf("fix patch for instrument %q: %s", e.InstrumentID, e.Reason)
}

func (e *FixPatchError) Unwrap() error {
	return ErrInvalidFixPatch
}

// IsIntegrityError reports whether err means "computation refused": the data
// needs fixing before the engine can proceed.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrUnresolvedInstrument) ||
		errors.Is(err, ErrUnresolvedAccount) ||
		errors.Is(err, ErrInvalidDayToken)
}
