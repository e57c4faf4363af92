package harness

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/roach88/rmlearn/internal/catalog"
	"github.com/roach88/rmlearn/internal/device"
	"github.com/roach88/rmlearn/internal/learn"
	"github.com/roach88/rmlearn/internal/settings"
	"github.com/roach88/rmlearn/internal/slots"
	"github.com/roach88/rmlearn/internal/store"
	"github.com/roach88/rmlearn/internal/testutil"
	"github.com/roach88/rmlearn/internal/transport"
)

// DeviceID names the simulated device of every scenario.
const DeviceID = "5ce0c0ffee01"

// DefaultCaptureTimeout bounds transport polls when the scenario sets none.
const DefaultCaptureTimeout = 200 * time.Millisecond

// Error codes reported for failures that carry no code of their own.
const (
	ErrCodeUnsupported = "UNSUPPORTED"
	ErrCodeClosed      = "CLOSED"
	ErrCodeOther       = "ERROR"
)

// Run executes a scenario and returns the trace, the final state and every
// failed expectation. The returned error is reserved for scenarios that
// cannot be set up at all.
//
// Each run uses a fresh temporary command directory and an in-memory
// settings database, so runs never share state.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	cat, err := catalog.Builtin()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	model, ok := cat.Get(scenario.Model)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", scenario.Model)
	}
	if scenario.Slots > 0 {
		model.Slots = scenario.Slots
	}

	namer, err := learn.ParseNamer(scenario.Naming)
	if err != nil {
		return nil, err
	}
	sim, err := transport.NewSimulatorFromScript(&scenario.Transport)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	dir, err := os.MkdirTemp("", "rmlearn-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := seed(ctx, dir, scenario.Seed); err != nil {
		return nil, err
	}

	db, err := settings.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	defer db.Close()

	captureTimeout := scenario.CaptureTimeout
	if captureTimeout <= 0 {
		captureTimeout = DefaultCaptureTimeout
	}

	clk := testutil.NewFakeClock(time.Time{})
	rec := newRecorder(clk, scenario.Speech)

	dev, err := device.Open(ctx, device.Config{
		ID:             DeviceID,
		Name:           scenario.Name,
		Model:          model,
		DataDir:        dir,
		Transport:      sim,
		Slots:          db.Slots(DeviceID),
		Notifier:       rec,
		Clock:          clk,
		Namer:          namer,
		Tokens:         testutil.NewFixedTokenGenerator("attempt"),
		Logger:         slog.New(slog.DiscardHandler),
		CaptureTimeout: captureTimeout,
		OnOutcome: func(out learn.Outcome) {
			rec.add(TypeOutcome, out.State.String(), out.Name)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer dev.Close()

	result := NewResult()
	r := &runner{ctx: ctx, dev: dev, sim: sim, clk: clk, rec: rec, result: result}
	for i, step := range scenario.Steps {
		r.step(i, step)
	}

	result.Trace = rec.trace()
	if result.State, err = snapshot(ctx, dev, sim); err != nil {
		return nil, err
	}

	for i, a := range scenario.Assertions {
		if err := checkAssertion(result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

// seed writes the scenario's initial commands to the command file.
func seed(ctx context.Context, dir string, cmds []SeedCommand) error {
	if len(cmds) == 0 {
		return nil
	}
	st, err := store.Open(ctx, dir, DeviceID)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	for _, c := range cmds {
		payload, err := decodeHex(c.Payload)
		if err != nil {
			return fmt.Errorf("seed %s: %w", c.Name, err)
		}
		if err := st.Add(ctx, c.Name, payload); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return nil
}

type runner struct {
	ctx    context.Context
	dev    *device.Controller
	sim    *transport.Simulator
	clk    *testutil.FakeClock
	rec    *recorder
	result *Result
}

func (r *runner) step(i int, step Step) {
	label := step.label()
	if label != "" {
		r.rec.add(TypeStep, label, "")
	}
	where := fmt.Sprintf("steps[%d]", i)
	if label != "" {
		where += " (" + label + ")"
	}

	err := r.apply(step)
	switch {
	case step.ExpectError != "" && err == nil:
		r.result.AddError(fmt.Sprintf("%s: expected error %s, got none", where, step.ExpectError))
	case step.ExpectError != "":
		if code := errorCode(err); code != step.ExpectError {
			r.result.AddError(fmt.Sprintf("%s: expected error %s, got %s (%v)", where, step.ExpectError, code, err))
		}
	case err != nil:
		r.result.AddError(fmt.Sprintf("%s: %v", where, err))
	}

	if step.Expect != nil {
		for _, msg := range r.check(*step.Expect) {
			r.result.AddError(fmt.Sprintf("%s: %s", where, msg))
		}
	}
}

func (r *runner) apply(step Step) error {
	switch {
	case step.Learn != "":
		return r.dev.Learn(parseMode(step.Learn), true)
	case step.Stop != "":
		return r.dev.Learn(parseMode(step.Stop), false)
	case step.Advance > 0:
		r.clk.Advance(step.Advance)
	case step.Capture != "":
		p, err := decodeHex(step.Capture)
		if err != nil {
			return err
		}
		r.sim.QueueCapture(p)
	case step.RFCapture != "":
		p, err := decodeHex(step.RFCapture)
		if err != nil {
			return err
		}
		r.sim.QueueRFCapture(p)
	case step.Send != "":
		return r.dev.Send(r.ctx, step.Send)
	case step.Rename != nil:
		return r.dev.Rename(r.ctx, step.Rename.From, step.Rename.To)
	case step.Delete != "":
		return r.dev.Delete(r.ctx, step.Delete)
	case step.EditSlots != nil:
		return r.dev.EditSlots(r.ctx, step.EditSlots)
	}
	return nil
}

func (r *runner) check(want Expect) []string {
	var failures []string
	if want.State != "" {
		if got := r.dev.State().String(); got != want.State {
			failures = append(failures, fmt.Sprintf("state: expected %s, got %s", want.State, got))
		}
	}

	if want.Outcome != "" || want.Name != "" || want.Slot != "" {
		out, ok := r.dev.LastOutcome()
		switch {
		case !ok:
			failures = append(failures, "no learning attempt has finished")
		default:
			if want.Outcome != "" && out.State.String() != want.Outcome {
				failures = append(failures, fmt.Sprintf("outcome: expected %s, got %s (%v)", want.Outcome, out.State, out.Err))
			}
			if want.Name != "" && out.Name != want.Name {
				failures = append(failures, fmt.Sprintf("name: expected %s, got %q", want.Name, out.Name))
			}
			if want.Slot != "" && out.Slot != want.Slot {
				failures = append(failures, fmt.Sprintf("slot: expected %s, got %q", want.Slot, out.Slot))
			}
		}
	}

	if want.Commands != nil {
		if got := r.dev.Commands(); !equalNames(got, want.Commands) {
			failures = append(failures, fmt.Sprintf("commands: expected %v, got %v", want.Commands, got))
		}
	}
	return failures
}

// label describes the step's action for the trace; "" for expect-only
// steps.
func (s Step) label() string {
	switch {
	case s.Learn != "":
		return "learn " + s.Learn
	case s.Stop != "":
		return "stop " + s.Stop
	case s.Advance > 0:
		return "advance " + s.Advance.String()
	case s.Capture != "":
		return "capture " + s.Capture
	case s.RFCapture != "":
		return "rf_capture " + s.RFCapture
	case s.Send != "":
		return "send " + s.Send
	case s.Rename != nil:
		return "rename " + s.Rename.From + " " + s.Rename.To
	case s.Delete != "":
		return "delete " + s.Delete
	case s.EditSlots != nil:
		keys := slices.Sorted(maps.Keys(s.EditSlots))
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + s.EditSlots[k]
		}
		return "edit_slots " + strings.Join(parts, " ")
	}
	return ""
}

func snapshot(ctx context.Context, dev *device.Controller, sim *transport.Simulator) (State, error) {
	state := State{Commands: dev.Commands(), Slots: map[string]string{}}
	if state.Commands == nil {
		state.Commands = []string{}
	}

	values, err := dev.SlotValues(ctx)
	if err != nil {
		return State{}, fmt.Errorf("read slots: %w", err)
	}
	for i, v := range values {
		if v != "" {
			state.Slots[slots.Key(i)] = v
		}
	}

	state.Transmitted = []string{}
	for _, p := range sim.Transmitted() {
		state.Transmitted = append(state.Transmitted, hex.EncodeToString(p))
	}
	return state, nil
}

// errorCode maps err onto the code a scenario names in expect_error.
func errorCode(err error) string {
	var se *store.Error
	var de *device.Error
	switch {
	case errors.As(err, &se):
		return string(se.Code)
	case errors.As(err, &de):
		return de.Code
	case transport.IsTransportFailure(err):
		return transport.ErrCodeTransportFailure
	case errors.Is(err, learn.ErrUnsupported):
		return ErrCodeUnsupported
	case errors.Is(err, learn.ErrClosed):
		return ErrCodeClosed
	default:
		return ErrCodeOther
	}
}

func parseMode(s string) learn.Mode {
	if s == "rf" {
		return learn.ModeRF
	}
	return learn.ModeIR
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.ReplaceAll(s, " ", ""))
}

func equalNames(got, want []string) bool {
	return len(got) == len(want) && (len(got) == 0 || slices.Equal(got, want))
}
