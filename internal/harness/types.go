package harness

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/rmlearn/internal/clock"
	"github.com/roach88/rmlearn/internal/notify"
)

// Trace event types.
const (
	TypeStep       = "step"
	TypeWarning    = "warning"
	TypeClear      = "clear"
	TypeSay        = "say"
	TypeEvent      = "event"
	TypeCapability = "capability"
	TypeMeasure    = "measure"
	TypeOutcome    = "outcome"
)

// TraceEvent is one recorded notification or scenario step.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	At      string `json:"at"`
	Type    string `json:"type"`
	Detail  string `json:"detail,omitempty"`
	Command string `json:"command,omitempty"`
}

// Label returns "type:detail", or just the type when there is no detail.
func (e TraceEvent) Label() string {
	if e.Detail == "" {
		return e.Type
	}
	return e.Type + ":" + e.Detail
}

// matches reports whether pattern names e. A pattern is a bare type or a
// full label.
func (e TraceEvent) matches(pattern string) bool {
	return pattern == e.Type || pattern == e.Label()
}

// State is the device state after the last step.
type State struct {
	Commands []string `json:"commands"`
	// Slots holds the non-empty slot values.
	Slots map[string]string `json:"slots"`
	// Transmitted holds every sent payload as hex, in send order.
	Transmitted []string `json:"transmitted"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	State State `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  State{Slots: map[string]string{}},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// recorder is the notifier of a scenario device. It stamps every call with
// a sequence number and the fake time elapsed since the scenario started.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type recorder struct {
	mu     sync.Mutex
	clk    clock.Clock
	start  time.Time
	speech bool
	seq    int64
	events []TraceEvent
}

var _ notify.Notifier = (*recorder)(nil)

func newRecorder(clk clock.Clock, speech bool) *recorder {
	return &recorder{clk: clk, start: clk.Now(), speech: speech}
}

func (r *recorder) add(typ, detail, command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.events = append(r.events, TraceEvent{
		Seq:     r.seq,
		At:      r.clk.Now().Sub(r.start).String(),
		Type:    typ,
		Detail:  detail,
		Command: command,
	})
}

func (r *recorder) trace() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent(nil), r.events...)
}

func (r *recorder) SetWarning(msg string) { r.add(TypeWarning, msg, "") }

func (r *recorder) ClearWarning() { r.add(TypeClear, "", "") }

func (r *recorder) Say(msg string) { r.add(TypeSay, msg, "") }

func (r *recorder) SpeechAvailable() bool { return r.speech }

func (r *recorder) Trigger(ev notify.Event) { r.add(TypeEvent, ev.Kind, ev.Command) }

func (r *recorder) SetCapability(name string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	r.add(TypeCapability, fmt.Sprintf("%s=%s", name, state), "")
}

func (r *recorder) SetMeasurement(name string, value float64) {
	r.add(TypeMeasure, fmt.Sprintf("%s=%g", name, value), "")
}
