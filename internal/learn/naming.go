package learn

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Name prefixes of learned commands.
const (
	PrefixIR = "cmd"
	PrefixRF = "rf-cmd"
)

// Naming strategy identifiers accepted by ParseNamer.
const (
	NamingLength    = "length"
	NamingMonotonic = "monotonic"
)

// Namer picks the name of a newly learned command.
type Namer interface {
	// Next returns prefix followed by a number, given the names currently
	// in the store.
	Next(prefix string, existing []string) string
}

// ParseNamer returns the strategy registered under id.
func ParseNamer(id string) (Namer, error) {
	switch id {
	case NamingLength:
		return LengthNamer{}, nil
	case NamingMonotonic, "":
		return NewMonotonicNamer(), nil
	default:
		return nil, fmt.Errorf("unknown naming strategy %q (want %q or %q)", id, NamingLength, NamingMonotonic)
	}
}

// LengthNamer numbers commands by store size: prefix + (len(existing)+1).
//
// After a deletion this can reproduce a name that is still in use, e.g.
// with {cmd1, cmd3} the next name is cmd3. The store rejects the collision
// and the learning attempt fails.
type LengthNamer struct{}

func (LengthNamer) Next(prefix string, existing []string) string {
	return prefix + strconv.Itoa(len(existing)+1)
}

// MonotonicNamer never hands out a number twice for the same prefix while
// the process lives, and never a number at or below one already in the
// store.
//
// The next number is the largest of len(existing)+1, the highest numeric
// suffix among existing names plus one, and the last issued number plus
// one.
//
// Thread-safety: Next is safe for concurrent use via internal mutex.
type MonotonicNamer struct {
	mu   sync.Mutex
	last map[string]int
}

// NewMonotonicNamer creates a namer with no issued numbers.
func NewMonotonicNamer() *MonotonicNamer {
	return &MonotonicNamer{last: map[string]int{}}
}

func (n *MonotonicNamer) Next(prefix string, existing []string) string {
	next := len(existing) + 1
	for _, name := range existing {
		if i, ok := suffix(prefix, name); ok && i+1 > next {
			next = i + 1
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if last := n.last[prefix]; last+1 > next {
		next = last + 1
	}
	n.last[prefix] = next
	return prefix + strconv.Itoa(next)
}

// suffix parses the number after prefix. "rf-cmd4" is not a "cmd" name.
func suffix(prefix, name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" || strings.Trim(rest, "0123456789") != "" {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	return i, err == nil
}
