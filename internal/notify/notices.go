package notify

import (
	"sync"
	"time"

	"github.com/roach88/rmlearn/internal/clock"
)

// Notices shows transient warnings that clear themselves.
//
// A newer notice replaces an older one and cancels its pending clear, so a
// stale timer never wipes a fresh message.
type Notices struct {
	n     Notifier
	clk   clock.Clock
	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// NewNotices creates a Notices helper on top of n.
func NewNotices(n Notifier, clk clock.Clock) *Notices {
	return &Notices{n: n, clk: clk}
}

// Flash shows msg as a warning and clears it after ttl.
func (t *Notices) Flash(msg string, ttl time.Duration) {
	t.n.SetWarning(msg)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = t.clk.AfterFunc(ttl, func() { t.expire(gen) })
}

// Prompt speaks msg when speech is available and otherwise flashes it for ttl.
func (t *Notices) Prompt(msg string, ttl time.Duration) {
	if t.n.SpeechAvailable() {
		t.n.Say(msg)
		return
	}
	t.Flash(msg, ttl)
}

// Stop cancels a pending clear without touching the current warning.
func (t *Notices) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

func (t *Notices) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.n.ClearWarning()
}
