package notify

import (
	"fmt"
	"io"
	"sync"
)

// Console prints warnings and speech to an operator terminal.
// Events, capability changes and measurements are not shown.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
	speech bool
}

// NewConsole creates a Console writing to w. Lines are prefixed with
// "[label] " when label is non-empty. With speech set, Say is treated as
// available and printed as a spoken line.
func NewConsole(w io.Writer, label string, speech bool) *Console {
	prefix := ""
	if label != "" {
		prefix = "[" + label + "] "
	}
	return &Console{w: w, prefix: prefix, speech: speech}
}

func (c *Console) SetWarning(msg string) {
	c.println("! " + msg)
}

func (c *Console) ClearWarning() {}

func (c *Console) Say(msg string) {
	c.println("> " + msg)
}

func (c *Console) SpeechAvailable() bool { return c.speech }

func (c *Console) Trigger(Event) {}

func (c *Console) SetCapability(string, bool) {}

func (c *Console) SetMeasurement(string, float64) {}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, c.prefix+line)
}
