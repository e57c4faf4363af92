package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a name lookup miss.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeNameCollision indicates a mutation would duplicate a name.
	ErrCodeNameCollision ErrorCode = "NAME_COLLISION"

	// ErrCodePersistence indicates the write-validate cycle exhausted its attempts.
	ErrCodePersistence ErrorCode = "PERSISTENCE_FAILURE"

	// ErrCodeCorrupted indicates the backing file exists but cannot be parsed.
	ErrCodeCorrupted ErrorCode = "CORRUPTED_STORE"

	// ErrCodeInvalidName indicates an empty command name.
	ErrCodeInvalidName ErrorCode = "INVALID_NAME"
)

// Error is returned by every store operation that fails.
type Error struct {
	Code    ErrorCode
	Name    string // command name involved, if any
	Path    string // backing file, for persistence and load errors
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Name != "" {
		msg += fmt.Sprintf(" (name=%s)", e.Name)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND store error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsNameCollision reports whether err is a NAME_COLLISION store error.
func IsNameCollision(err error) bool { return hasCode(err, ErrCodeNameCollision) }

// IsPersistenceFailure reports whether err is a PERSISTENCE_FAILURE store error.
func IsPersistenceFailure(err error) bool { return hasCode(err, ErrCodePersistence) }

// IsCorrupted reports whether err is a CORRUPTED_STORE store error.
func IsCorrupted(err error) bool { return hasCode(err, ErrCodeCorrupted) }

// IsInvalidName reports whether err is an INVALID_NAME store error.
func IsInvalidName(err error) bool { return hasCode(err, ErrCodeInvalidName) }

// NewNotFoundError creates a NOT_FOUND error for name.
func NewNotFoundError(name string) *Error {
	return &Error{Code: ErrCodeNotFound, Name: name, Message: "command not found"}
}

// NewNameCollisionError creates a NAME_COLLISION error for name.
func NewNameCollisionError(name string) *Error {
	return &Error{Code: ErrCodeNameCollision, Name: name, Message: "command already exists"}
}

func newPersistenceError(path string, attempts int, err error) *Error {
	return &Error{
		Code:    ErrCodePersistence,
		Path:    path,
		Message: fmt.Sprintf("failed to store commands after %d attempts", attempts),
		Err:     err,
	}
}

func newCorruptedError(path string, err error) *Error {
	return &Error{Code: ErrCodeCorrupted, Path: path, Message: "command file cannot be parsed", Err: err}
}
