package device

import (
	"errors"
	"fmt"
)

// Error codes of slot edit failures. Name collisions are reported with the
// store's NAME_COLLISION error.
const (
	ErrCodeNoSourceCommand = "NO_SOURCE_COMMAND"
	ErrCodeUnknownSlot     = "UNKNOWN_SLOT"
)

// Error reports a refused slot edit.
type Error struct {
	Code    string
	Key     string
	Name    string
	Message string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (slot=%s)", e.Code, e.Message, e.Key)
	if e.Name != "" {
		msg += fmt.Sprintf(" (name=%s)", e.Name)
	}
	return msg
}

// IsNoSourceCommand reports whether err is a rename of an empty slot.
func IsNoSourceCommand(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == ErrCodeNoSourceCommand
}

// IsUnknownSlot reports whether err names a key outside the slot range.
func IsUnknownSlot(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == ErrCodeUnknownSlot
}
