package transport

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Script describes the behaviour of a Simulator. It is loaded from YAML:
//
//	frequency_khz: 433920
//	latency: 20ms
//	captures:
//	  - "26000c0048"
//	rf_captures:
//	  - "b2c0080a"
//	sensors: "15051e02"
//	fail:
//	  transmit: "device offline"
type Script struct {
	// FrequencyKHz is reported by PollFrequency. Zero reports nothing.
	FrequencyKHz uint32 `yaml:"frequency_khz"`
	// Latency delays every poll and decode.
	Latency time.Duration `yaml:"latency"`
	// Hang makes polls with nothing queued block until ctx is done instead
	// of returning an empty payload.
	Hang bool `yaml:"hang"`
	// Captures are hex payloads returned by PollCapturedPayload in order.
	Captures []string `yaml:"captures"`
	// RFCaptures are hex payloads returned by DecodeWithFrequency in order.
	RFCaptures []string `yaml:"rf_captures"`
	// Sensors is the raw hex reading returned by ReadSensors. Empty means
	// the device reports no sensor data.
	Sensors string `yaml:"sensors"`
	// Fail maps a phase name to the error message it fails with.
	Fail map[string]string `yaml:"fail"`
}

// LoadScript reads a Script from a YAML file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read simulator script: %w", err)
	}
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse simulator script %s: %w", path, err)
	}
	return &s, nil
}

// Simulator is an in-process Transport that replays queued captures and
// records what it was asked to do.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Simulator struct {
	mu          sync.Mutex
	frequency   []byte
	sensors     []byte
	latency     time.Duration
	hang        bool
	captures    [][]byte
	rfCaptures  [][]byte
	failures    map[Phase]error
	calls       []string
	transmitted [][]byte
}

var (
	_ Transport    = (*Simulator)(nil)
	_ SensorReader = (*Simulator)(nil)
)

// NewSimulator creates a simulator with nothing queued.
func NewSimulator() *Simulator {
	return &Simulator{failures: map[Phase]error{}}
}

// NewSimulatorFromScript creates a simulator primed from a script.
func NewSimulatorFromScript(s *Script) (*Simulator, error) {
	sim := NewSimulator()
	sim.latency = s.Latency
	sim.hang = s.Hang
	if s.FrequencyKHz > 0 {
		sim.SetFrequency(s.FrequencyKHz)
	}
	for i, h := range s.Captures {
		p, err := decodeHex(h)
		if err != nil {
			return nil, fmt.Errorf("captures[%d]: %w", i, err)
		}
		sim.QueueCapture(p)
	}
	for i, h := range s.RFCaptures {
		p, err := decodeHex(h)
		if err != nil {
			return nil, fmt.Errorf("rf_captures[%d]: %w", i, err)
		}
		sim.QueueRFCapture(p)
	}
	if s.Sensors != "" {
		raw, err := decodeHex(s.Sensors)
		if err != nil {
			return nil, fmt.Errorf("sensors: %w", err)
		}
		if _, err := DecodeReading(raw); err != nil {
			return nil, fmt.Errorf("sensors: %w", err)
		}
		sim.sensors = raw
	}
	for phase, msg := range s.Fail {
		sim.FailOn(Phase(phase), errors.New(msg))
	}
	return sim, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.ReplaceAll(s, " ", ""))
}

// QueueCapture adds a payload for the next PollCapturedPayload.
func (s *Simulator) QueueCapture(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures = append(s.captures, append([]byte(nil), p...))
}

// QueueRFCapture adds a payload for the next DecodeWithFrequency.
func (s *Simulator) QueueRFCapture(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rfCaptures = append(s.rfCaptures, append([]byte(nil), p...))
}

// SetFrequency sets the reading returned by PollFrequency.
func (s *Simulator) SetFrequency(kHz uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frequency = EncodeFrequency(kHz)
}

// SetSensors sets the reading returned by ReadSensors, kept to one
// decimal.
func (s *Simulator) SetSensors(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensors = encodeReading(r)
}

func encodeReading(r Reading) []byte {
	part := func(v float64) (byte, byte) {
		whole := math.Floor(v)
		return byte(whole), byte(math.Round((v - whole) * 10))
	}
	b := make([]byte, ReadingSize)
	b[0], b[1] = part(r.Temperature)
	b[2], b[3] = part(r.Humidity)
	return b
}

// SetHang controls whether empty polls block until ctx is done.
func (s *Simulator) SetHang(hang bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hang = hang
}

// FailOn makes every call in phase fail with err. A nil err clears it.
func (s *Simulator) FailOn(phase Phase, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, phase)
		return
	}
	s.failures[phase] = err
}

// Calls returns the phases invoked so far, e.g. "enter_capture:ir-red".
func (s *Simulator) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Transmitted returns every payload passed to Transmit.
func (s *Simulator) Transmitted() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.transmitted))
	for i, p := range s.transmitted {
		out[i] = append([]byte(nil), p...)
	}
	return out
}

func (s *Simulator) EnterCapture(ctx context.Context, mode CaptureMode) error {
	return s.begin(ctx, PhaseEnterCapture, mode.String())
}

func (s *Simulator) PollCapturedPayload(ctx context.Context, mode CaptureMode) ([]byte, error) {
	if err := s.begin(ctx, PhasePollCapture, mode.String()); err != nil {
		return nil, err
	}
	return s.poll(ctx, PhasePollCapture, func() []byte { return pop(&s.captures) })
}

func (s *Simulator) EnterSweep(ctx context.Context) error {
	return s.begin(ctx, PhaseEnterSweep, "")
}

func (s *Simulator) PollFrequency(ctx context.Context) ([]byte, error) {
	if err := s.begin(ctx, PhasePollFrequency, ""); err != nil {
		return nil, err
	}
	return s.poll(ctx, PhasePollFrequency, func() []byte {
		return append([]byte(nil), s.frequency...)
	})
}

func (s *Simulator) DecodeWithFrequency(ctx context.Context, freq []byte) ([]byte, error) {
	if err := s.begin(ctx, PhaseDecode, hex.EncodeToString(freq)); err != nil {
		return nil, err
	}
	return s.poll(ctx, PhaseDecode, func() []byte { return pop(&s.rfCaptures) })
}

func (s *Simulator) CancelSweep(ctx context.Context) error {
	return s.begin(ctx, PhaseCancelSweep, "")
}

// ReadSensors returns the configured reading. A simulator without one
// fails, like a device that does not answer the sensor request.
func (s *Simulator) ReadSensors(ctx context.Context) (Reading, error) {
	if err := s.begin(ctx, PhaseReadSensors, ""); err != nil {
		return Reading{}, err
	}
	s.mu.Lock()
	raw := append([]byte(nil), s.sensors...)
	s.mu.Unlock()
	if len(raw) == 0 {
		return Reading{}, Wrap(PhaseReadSensors, errors.New("no sensor data"))
	}
	return DecodeReading(raw)
}

func (s *Simulator) Transmit(ctx context.Context, payload []byte) error {
	if err := s.begin(ctx, PhaseTransmit, ""); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transmitted = append(s.transmitted, append([]byte(nil), payload...))
	return nil
}

// begin records the call and returns the injected failure for phase.
func (s *Simulator) begin(ctx context.Context, phase Phase, detail string) error {
	s.mu.Lock()
	call := string(phase)
	if detail != "" {
		call += ":" + detail
	}
	s.calls = append(s.calls, call)
	injected := s.failures[phase]
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Wrap(phase, err)
	}
	return Wrap(phase, injected)
}

func (s *Simulator) poll(ctx context.Context, phase Phase, next func() []byte) ([]byte, error) {
	s.mu.Lock()
	latency := s.latency
	s.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, Wrap(phase, ctx.Err())
		}
	}

	s.mu.Lock()
	p := next()
	hang := s.hang
	s.mu.Unlock()

	if len(p) == 0 && hang {
		<-ctx.Done()
		return nil, Wrap(phase, ctx.Err())
	}
	return p, nil
}

func pop(q *[][]byte) []byte {
	if len(*q) == 0 {
		return nil
	}
	p := (*q)[0]
	*q = (*q)[1:]
	return p
}
