package utils

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("access denied")
	ErrConflict  = errors.New("conflict")
)

// ValidationError is a client input problem reported as 400 with its message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// NotFound wraps ErrNotFound with a caller-facing message.
func NotFound(msg string) error {
	return &statusError{msg: msg, kind: ErrNotFound}
}

// Forbidden wraps ErrForbidden with a caller-facing message.
func Forbidden(msg string) error {
	return &statusError{msg: msg, kind: ErrForbidden}
}

// Conflict wraps ErrConflict with a caller-facing message.
func Conflict(msg string) error {
	return &statusError{msg: msg, kind: ErrConflict}
}

type statusError struct {
	msg  string
	kind error
}

func (e *statusError) Error() string { return e.msg }
func (e *statusError) Unwrap() error { return e.kind }

// IsDuplicateKey reports whether err is a unique index violation from MySQL or SQLite.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
