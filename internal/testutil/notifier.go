package testutil

import (
	"sync"

	"github.com/roach88/rmlearn/internal/notify"
)

// RecordingNotifier captures every notification for later assertions.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingNotifier struct {
	mu           sync.Mutex
	speech       bool
	warning      string
	warnings     []string
	spoken       []string
	events       []notify.Event
	capabilities map[string]bool
	capLog       []string
	measurements map[string]float64
}

var _ notify.Notifier = (*RecordingNotifier)(nil)

// NewRecordingNotifier creates a recorder. With speech set, SpeechAvailable
// reports true.
func NewRecordingNotifier(speech bool) *RecordingNotifier {
	return &RecordingNotifier{
		speech:       speech,
		capabilities: map[string]bool{},
		measurements: map[string]float64{},
	}
}

func (r *RecordingNotifier) SetWarning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warning = msg
	r.warnings = append(r.warnings, msg)
}

func (r *RecordingNotifier) ClearWarning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warning = ""
}

func (r *RecordingNotifier) Say(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spoken = append(r.spoken, msg)
}

func (r *RecordingNotifier) SpeechAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speech
}

func (r *RecordingNotifier) Trigger(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *RecordingNotifier) SetCapability(name string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[name] = on
	state := "off"
	if on {
		state = "on"
	}
	r.capLog = append(r.capLog, name+"="+state)
}

// Warning returns the currently shown warning, or "" if cleared.
func (r *RecordingNotifier) Warning() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warning
}

// Warnings returns every warning ever set, oldest first.
func (r *RecordingNotifier) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

// Spoken returns every spoken message, oldest first.
func (r *RecordingNotifier) Spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.spoken...)
}

// Events returns every triggered event, oldest first.
func (r *RecordingNotifier) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// Capability returns the last published value of a capability.
func (r *RecordingNotifier) Capability(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capabilities[name]
}

// CapabilityLog returns "name=on|off" entries in publication order.
func (r *RecordingNotifier) CapabilityLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.capLog...)
}

func (r *RecordingNotifier) SetMeasurement(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.measurements[name] = value
}

// Measurement returns the last published value of a measurement.
func (r *RecordingNotifier) Measurement(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.measurements[name]
	return v, ok
}
