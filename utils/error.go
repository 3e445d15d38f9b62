package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

var (
	ErrWorkbenchNotFound      = errors.New("workbench not found")
	ErrAlreadyConfirmed       = errors.New("record already confirmed")
	ErrAccountInUse           = errors.New("account is referenced by ledger entries")
	ErrPartyInUse             = errors.New("party is referenced by records")
	ErrConfirmationInProgress = errors.New("confirmation already in progress")
	ErrImmutable              = errors.New("immutable row")
)

// ValidationError rejects input before any write happens.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError matches ErrorRecordNotFound with errors.Is.
type NotFoundError struct {
	Entity string
	Id     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Id)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrorRecordNotFound
}

func NewNotFoundError(entity string, id any) *NotFoundError {
	return &NotFoundError{Entity: entity, Id: id}
}

// StateError is an invalid status transition.
type StateError struct {
	Entity string
	From   string
	To     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid state transition for %s: %s -> %s", e.Entity, e.From, e.To)
}

// PersistenceError wraps a storage failure after the transaction rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// WrapPersistence leaves domain errors alone and wraps everything else.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsDomainError reports errors that carry a caller-facing meaning.
func IsDomainError(err error) bool {
	var ve *ValidationError
	var se *StateError
	switch {
	case errors.As(err, &ve), errors.As(err, &se):
		return true
	case errors.Is(err, ErrorRecordNotFound),
		errors.Is(err, ErrWorkbenchNotFound),
		errors.Is(err, ErrAlreadyConfirmed),
		errors.Is(err, ErrAccountInUse),
		errors.Is(err, ErrPartyInUse),
		errors.Is(err, ErrConfirmationInProgress):
		return true
	}
	return false
}

// ConsistencyWarning is reported alongside aggregates, never returned as an error.
type ConsistencyWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
