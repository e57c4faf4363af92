package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rmlearn/internal/learn"
	"github.com/roach88/rmlearn/internal/slots"
	"github.com/roach88/rmlearn/internal/transport"
)

// Scenario is one scripted learning session against a simulated device.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Model is the catalog ID of the simulated device.
	Model string `yaml:"model"`

	// Slots overrides the model's slot capacity when positive.
	Slots int `yaml:"slots,omitempty"`

	// Naming selects the naming strategy ("monotonic" when empty).
	Naming string `yaml:"naming,omitempty"`

	// CaptureTimeout bounds each transport poll in real time. Polls with
	// nothing queued return at once unless the transport hangs.
	CaptureTimeout time.Duration `yaml:"capture_timeout,omitempty"`

	// Speech makes the device report speech output, so prompts are spoken
	// instead of flashed.
	Speech bool `yaml:"speech,omitempty"`

	// Seed commands are stored before the device opens.
	Seed []SeedCommand `yaml:"seed,omitempty"`

	// Transport primes the simulator.
	Transport transport.Script `yaml:"transport"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// SeedCommand is a command present before the scenario starts.
type SeedCommand struct {
	Name string `yaml:"name"`
	// Payload is hex encoded.
	Payload string `yaml:"payload"`
}

// Step is one scenario action, optionally followed by expectations.
type Step struct {
	Learn     string            `yaml:"learn,omitempty"`
	Stop      string            `yaml:"stop,omitempty"`
	Advance   time.Duration     `yaml:"advance,omitempty"`
	Capture   string            `yaml:"capture,omitempty"`
	RFCapture string            `yaml:"rf_capture,omitempty"`
	Send      string            `yaml:"send,omitempty"`
	Rename    *RenameStep       `yaml:"rename,omitempty"`
	Delete    string            `yaml:"delete,omitempty"`
	EditSlots map[string]string `yaml:"edit_slots,omitempty"`

	// ExpectError is the error code the action must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// RenameStep renames one command.
type RenameStep struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Expect checks device state after a step. Empty fields are not checked.
type Expect struct {
	// State is the session state, e.g. "idle" or "debouncing".
	State string `yaml:"state,omitempty"`

	// Outcome, Name and Slot check the last finished attempt.
	Outcome string `yaml:"outcome,omitempty"`
	Name    string `yaml:"name,omitempty"`
	Slot    string `yaml:"slot,omitempty"`

	// Commands is the exact list of stored names, in store order.
	Commands []string `yaml:"commands,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event matching Event (and Command) was recorded
	// - "trace_order": Events occur in order, gaps allowed
	// - "trace_count": Event occurs exactly Count times
	// - "final_state": Commands, Slots and Transmitted match
	Type string `yaml:"type"`

	// Event is a "type" or "type:detail" pattern.
	Event string `yaml:"event,omitempty"`

	// Command narrows trace_contains to events about one command.
	Command string `yaml:"command,omitempty"`

	// Count is the expected number of occurrences. Zero asserts absence.
	Count int `yaml:"count,omitempty"`

	Events []string `yaml:"events,omitempty"`

	// Commands is the exact stored name list (final_state).
	Commands []string `yaml:"commands,omitempty"`

	// Slots is a subset of slot values; "" asserts an empty slot
	// (final_state).
	Slots map[string]string `yaml:"slots,omitempty"`

	// Transmitted is the exact list of sent payloads in hex (final_state).
	Transmitted []string `yaml:"transmitted,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if _, err := learn.ParseNamer(s.Naming); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, c := range s.Seed {
		if c.Name == "" {
			return fmt.Errorf("seed[%d]: name is required", i)
		}
		if c.Payload == "" {
			return fmt.Errorf("seed[%d]: payload is required", i)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	actions := step.actions()
	if len(actions) > 1 {
		return fmt.Errorf("only one action per step, got %s", strings.Join(actions, ", "))
	}
	if len(actions) == 0 && step.Expect == nil {
		return fmt.Errorf("step has no action and no expect")
	}

	for _, mode := range []string{step.Learn, step.Stop} {
		if mode != "" && mode != "ir" && mode != "rf" {
			return fmt.Errorf("mode must be ir or rf, got %q", mode)
		}
	}
	if step.Advance < 0 {
		return fmt.Errorf("advance must not be negative")
	}
	if step.Rename != nil && (step.Rename.From == "" || step.Rename.To == "") {
		return fmt.Errorf("rename needs from and to")
	}
	for key := range step.EditSlots {
		if _, ok := slots.Index(key); !ok {
			return fmt.Errorf("edit_slots: %q is not a slot key", key)
		}
	}
	if step.ExpectError != "" && (len(actions) == 0 || step.Advance > 0) {
		return fmt.Errorf("expect_error needs an action that can fail")
	}
	return nil
}

// actions lists the action fields set on step.
func (s Step) actions() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(s.Learn != "", "learn")
	add(s.Stop != "", "stop")
	add(s.Advance != 0, "advance")
	add(s.Capture != "", "capture")
	add(s.RFCapture != "", "rf_capture")
	add(s.Send != "", "send")
	add(s.Rename != nil, "rename")
	add(s.Delete != "", "delete")
	add(s.EditSlots != nil, "edit_slots")
	return out
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("trace_contains requires 'event' field")
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("trace_order requires at least 2 events")
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("trace_count requires 'event' field")
		}
		if a.Count < 0 {
			return fmt.Errorf("trace_count requires a non-negative 'count'")
		}
	case AssertFinalState:
		if a.Commands == nil && a.Slots == nil && a.Transmitted == nil {
			return fmt.Errorf("final_state requires commands, slots or transmitted")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
