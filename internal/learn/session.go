package learn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/rmlearn/internal/catalog"
	"github.com/roach88/rmlearn/internal/clock"
	"github.com/roach88/rmlearn/internal/notify"
	"github.com/roach88/rmlearn/internal/store"
	"github.com/roach88/rmlearn/internal/transport"
)

// Timing defaults.
const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultCaptureTimeout = 30 * time.Second
	DefaultNoticeTTL      = 5 * time.Second
	PromptTTL             = 6 * time.Second
	FrequencyTTL          = 2 * time.Second
)

// ErrUnsupported is returned by Request for a mode the model cannot learn.
var ErrUnsupported = errors.New("learning mode not supported by this model")

// ErrClosed is returned by Request after Close.
var ErrClosed = errors.New("learning session closed")

// Mode selects IR or RF learning.
type Mode int

const (
	ModeIR Mode = iota + 1
	ModeRF
)

func (m Mode) String() string {
	switch m {
	case ModeIR:
		return "ir"
	case ModeRF:
		return "rf"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// State is the session state.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateCapturing
	StateSuccess
	StateTimedOut
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateCapturing:
		return "capturing"
	case StateSuccess:
		return "success"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the result of one capture attempt.
type Outcome struct {
	Mode  Mode
	State State
	Token string
	// Name is the stored command name on success, and the attempted name
	// when storing failed.
	Name string
	// Slot is the reserved slot key; empty when every slot was taken.
	Slot string
	// FrequencyMHz is the detected carrier of an RF attempt.
	FrequencyMHz float64
	Err          error
}

// CommandStore is the part of the command store a session writes to.
type CommandStore interface {
	ListNames() []string
	Add(ctx context.Context, name string, payload store.Payload) error
}

// SlotReserver reserves a slot for a newly stored command.
type SlotReserver interface {
	ReserveFirstFree(ctx context.Context, name string) (key string, ok bool, err error)
}

// Config wires a Session. Transport, Store and Slots are required.
type Config struct {
	DeviceID  string
	Model     catalog.Model
	Transport transport.Transport
	Store     CommandStore
	Slots     SlotReserver

	Notifier notify.Notifier
	// Notices shows transient messages; built from Notifier and Clock
	// when nil.
	Notices *notify.Notices
	Clock   clock.Clock
	Namer   Namer
	Tokens  TokenGenerator
	Logger  *slog.Logger

	Debounce       time.Duration
	CaptureTimeout time.Duration
	NoticeTTL      time.Duration

	// OnOutcome is called after every finished attempt, once the session
	// is back to Idle. It must not block.
	OnOutcome func(Outcome)
}

type request struct {
	mode Mode
	on   bool
}

// Session is the learning state machine of one device.
//
// Thread-safety: All methods are safe for concurrent use. Captures run on
// the debounce timer's goroutine.
type Session struct {
	cfg     Config
	notices *notify.Notices
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	active  bool
	closed  bool
	pending clock.Timer
	gen     uint64
	req     request
	last    *Outcome
}

// New creates an idle session and publishes all learning capabilities as
// off.
func New(cfg Config) *Session {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Namer == nil {
		cfg.Namer = NewMonotonicNamer()
	}
	if cfg.Tokens == nil {
		cfg.Tokens = UUIDv7Generator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = DefaultNoticeTTL
	}

	notices := cfg.Notices
	if notices == nil {
		notices = notify.NewNotices(cfg.Notifier, cfg.Clock)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:     cfg,
		notices: notices,
		logger:  cfg.Logger.With("device", cfg.DeviceID),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.publish(ModeIR, false)
	if cfg.Model.HasRF() {
		s.publish(ModeRF, false)
	}
	return s
}

// Supports reports whether the session's model can learn in mode.
func (s *Session) Supports(mode Mode) bool {
	switch mode {
	case ModeIR:
		return true
	case ModeRF:
		return s.cfg.Model.HasRF()
	default:
		return false
	}
}

// Request asks to turn learning in mode on or off. Requests are debounced:
// each one re-arms the timer and only the last request inside the window
// is acted upon.
func (s *Session) Request(mode Mode, on bool) error {
	if !s.Supports(mode) {
		return fmt.Errorf("%w: %s", ErrUnsupported, mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if s.pending != nil {
		s.pending.Stop()
	}
	s.req = request{mode: mode, on: on}
	if s.state == StateIdle {
		s.state = StateDebouncing
	}
	s.gen++
	gen := s.gen
	s.pending = s.cfg.Clock.AfterFunc(s.cfg.Debounce, func() { s.fire(gen) })

	s.logger.Debug("learn request", "mode", mode, "on", on)
	return nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Learning reports whether a capture is in progress.
func (s *Session) Learning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// LastOutcome returns the most recent finished attempt.
func (s *Session) LastOutcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}

// Close stops a pending debounce timer and aborts an in-flight capture.
// Later requests fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.closed = true
	if !s.active {
		s.state = StateIdle
	}
	s.mu.Unlock()

	s.cancel()
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	req := s.req

	if s.active {
		s.mu.Unlock()
		s.logger.Debug("learning already active, request ignored", "mode", req.mode, "on", req.on)
		return
	}

	if !req.on {
		s.state = StateIdle
		s.mu.Unlock()
		s.logger.Debug("turning off learning mode", "mode", req.mode)
		s.publish(req.mode, false)
		return
	}

	s.active = true
	s.state = StateCapturing
	s.mu.Unlock()

	token := s.cfg.Tokens.Generate()
	s.run(req.mode, token)
}

func (s *Session) run(mode Mode, token string) {
	logger := s.logger.With("mode", mode, "attempt", token)
	logger.Info("starting learning")
	s.cfg.Notifier.SetCapability(learningCapability(mode), true)

	var out Outcome
	switch mode {
	case ModeRF:
		out = s.captureRF(s.ctx, logger, token)
	default:
		out = s.captureIR(s.ctx, logger, token)
	}
	out.Mode = mode
	out.Token = token

	s.finish(logger, out)
}

// finish records the terminal state, resets to Idle and reports the
// outcome. It always clears the active flag.
func (s *Session) finish(logger *slog.Logger, out Outcome) {
	s.mu.Lock()
	s.state = out.State
	s.mu.Unlock()

	switch out.State {
	case StateSuccess:
		logger.Info("learning succeeded", "name", out.Name, "slot", out.Slot)
	case StateTimedOut:
		logger.Info("learning timed out")
	default:
		logger.Warn("learning failed", "error", out.Err)
	}

	s.publish(out.Mode, false)

	s.mu.Lock()
	s.active = false
	s.state = StateIdle
	if s.pending != nil {
		s.state = StateDebouncing
	}
	s.last = &out
	s.mu.Unlock()

	if s.cfg.OnOutcome != nil {
		s.cfg.OnOutcome(out)
	}
}

// publish sets both capabilities of mode.
func (s *Session) publish(mode Mode, on bool) {
	s.cfg.Notifier.SetCapability(toggleCapability(mode), on)
	s.cfg.Notifier.SetCapability(learningCapability(mode), on)
}

func toggleCapability(mode Mode) string {
	if mode == ModeRF {
		return notify.CapLearnRF
	}
	return notify.CapLearnIR
}

func learningCapability(mode Mode) string {
	if mode == ModeRF {
		return notify.CapLearningStateRF
	}
	return notify.CapLearningStateIR
}
