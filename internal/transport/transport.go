// Package transport defines the device transport used for capture and
// transmission, plus a scripted simulator.
//
// Wire-level framing and encryption live behind the Transport interface;
// this package only names the operations a learning session performs.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
)

// CaptureMode selects the capture command set.
type CaptureMode int

const (
	// CaptureIR is the plain IR capture of older devices.
	CaptureIR CaptureMode = iota
	// CaptureIRRed is the alternate command set of "red bean" devices.
	CaptureIRRed
)

func (m CaptureMode) String() string {
	switch m {
	case CaptureIR:
		return "ir"
	case CaptureIRRed:
		return "ir-red"
	default:
		return fmt.Sprintf("CaptureMode(%d)", int(m))
	}
}

// Transport is the request/response channel to one device.
//
// Every method may block on network I/O and honors ctx cancellation.
// PollCapturedPayload and DecodeWithFrequency return an empty payload when
// the device reports that nothing was captured.
type Transport interface {
	EnterCapture(ctx context.Context, mode CaptureMode) error
	PollCapturedPayload(ctx context.Context, mode CaptureMode) ([]byte, error)

	EnterSweep(ctx context.Context) error
	PollFrequency(ctx context.Context) ([]byte, error)
	DecodeWithFrequency(ctx context.Context, freq []byte) ([]byte, error)
	CancelSweep(ctx context.Context) error

	Transmit(ctx context.Context, payload []byte) error
}

// FrequencySize is the length of a frequency reading.
const FrequencySize = 4

// FrequencyMHz decodes a 4-byte little-endian frequency reading. The
// device reports kHz; the result is in MHz.
func FrequencyMHz(b []byte) (float64, error) {
	if len(b) != FrequencySize {
		return 0, &Error{Phase: PhasePollFrequency, Err: fmt.Errorf("frequency reading has %d bytes, want %d", len(b), FrequencySize)}
	}
	return float64(binary.LittleEndian.Uint32(b)) / 1000, nil
}

// EncodeFrequency is the inverse of FrequencyMHz for a kHz value.
func EncodeFrequency(kHz uint32) []byte {
	b := make([]byte, FrequencySize)
	binary.LittleEndian.PutUint32(b, kHz)
	return b
}

// SensorReader is implemented by transports of devices with temperature
// and humidity sensors.
type SensorReader interface {
	ReadSensors(ctx context.Context) (Reading, error)
}

// Reading is one sensor measurement.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // %
}

// ReadingSize is the length of a raw sensor reading.
const ReadingSize = 4

// DecodeReading decodes a raw sensor reading: temperature integer and
// fraction bytes, then humidity integer and fraction bytes. The fraction
// byte holds the decimal digits after the point, so {21, 5} is 21.5 and
// {21, 25} is 21.25.
func DecodeReading(b []byte) (Reading, error) {
	if len(b) != ReadingSize {
		return Reading{}, &Error{Phase: PhaseReadSensors, Err: fmt.Errorf("sensor reading has %d bytes, want %d", len(b), ReadingSize)}
	}
	temp, err := decimal(b[0], b[1])
	if err != nil {
		return Reading{}, &Error{Phase: PhaseReadSensors, Err: err}
	}
	hum, err := decimal(b[2], b[3])
	if err != nil {
		return Reading{}, &Error{Phase: PhaseReadSensors, Err: err}
	}
	return Reading{Temperature: temp, Humidity: hum}, nil
}

func decimal(whole, frac byte) (float64, error) {
	return strconv.ParseFloat(fmt.Sprintf("%d.%d", whole, frac), 64)
}
