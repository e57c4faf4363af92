// Package notify delivers operator-facing side effects of a device:
// transient warnings, spoken prompts, flow trigger events and capability
// state.
//
// Every call is fire-and-forget. Implementations log their own failures
// and never block the caller on I/O for long.
package notify

// Capability names published by a learning session.
const (
	CapLearnIR         = "learnIRcmd"
	CapLearningStateIR = "learningState"
	CapLearnRF         = "learnRFcmd"
	CapLearningStateRF = "learningStateRF"
)

// Measurement names published by devices with sensors.
const (
	MeasureTemperature = "measure_temperature"
	MeasureHumidity    = "measure_humidity"
)

// Event kinds fired through Trigger.
const (
	EventCommandSentSpecific = "command.sent.specific"
	EventCommandSentAny      = "command.sent.any"
	EventCommandLearned      = "command.learned"
)

// Event is a flow trigger. Tokens carry the values a flow card exposes,
// e.g. {"CommandSent": "tv-power"}.
type Event struct {
	Kind    string
	Command string
	Tokens  map[string]string
}

// Notifier is the sink for one device's notifications.
type Notifier interface {
	// SetWarning shows msg until ClearWarning or the next SetWarning.
	SetWarning(msg string)
	ClearWarning()

	// Say speaks msg. Callers check SpeechAvailable first and fall back to
	// a warning.
	Say(msg string)
	SpeechAvailable() bool

	Trigger(ev Event)

	// SetCapability publishes the on/off state of a named capability.
	SetCapability(name string, on bool)

	// SetMeasurement publishes the latest value of a sensor reading.
	SetMeasurement(name string, value float64)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) SetWarning(string)              {}
func (Nop) ClearWarning()                  {}
func (Nop) Say(string)                     {}
func (Nop) SpeechAvailable() bool          { return false }
func (Nop) Trigger(Event)                  {}
func (Nop) SetCapability(string, bool)     {}
func (Nop) SetMeasurement(string, float64) {}

// Multi fans every call out to each notifier in order. Speech is available
// if any member can speak.
type Multi []Notifier

func (m Multi) SetWarning(msg string) {
	for _, n := range m {
		n.SetWarning(msg)
	}
}

func (m Multi) ClearWarning() {
	for _, n := range m {
		n.ClearWarning()
	}
}

func (m Multi) Say(msg string) {
	for _, n := range m {
		n.Say(msg)
	}
}

func (m Multi) SpeechAvailable() bool {
	for _, n := range m {
		if n.SpeechAvailable() {
			return true
		}
	}
	return false
}

func (m Multi) Trigger(ev Event) {
	for _, n := range m {
		n.Trigger(ev)
	}
}

func (m Multi) SetCapability(name string, on bool) {
	for _, n := range m {
		n.SetCapability(name, on)
	}
}

func (m Multi) SetMeasurement(name string, value float64) {
	for _, n := range m {
		n.SetMeasurement(name, value)
	}
}
