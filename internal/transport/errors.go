package transport

import (
	"errors"
	"fmt"
)

// ErrCodeTransportFailure is the code of every transport error.
const ErrCodeTransportFailure = "TRANSPORT_FAILURE"

// Phase names the transport step that failed.
type Phase string

const (
	PhaseEnterCapture  Phase = "enter_capture"
	PhasePollCapture   Phase = "poll_capture"
	PhaseEnterSweep    Phase = "enter_sweep"
	PhasePollFrequency Phase = "poll_frequency"
	PhaseDecode        Phase = "decode"
	PhaseCancelSweep   Phase = "cancel_sweep"
	PhaseTransmit      Phase = "transmit"
	PhaseReadSensors   Phase = "read_sensors"
)

// Error reports a failed transport operation.
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCodeTransportFailure, e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap wraps err as a transport failure in phase. Nil stays nil; an
// existing *Error is returned unchanged.
func Wrap(phase Phase, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Phase: phase, Err: err}
}

// IsTransportFailure reports whether err is a transport failure.
func IsTransportFailure(err error) bool {
	var te *Error
	return errors.As(err, &te)
}

// FailedPhase returns the phase of a transport failure, or "".
func FailedPhase(err error) Phase {
	var te *Error
	if errors.As(err, &te) {
		return te.Phase
	}
	return ""
}
