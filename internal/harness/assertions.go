package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			line := fmt.Sprintf("  [%d] %6s %s", event.Seq, event.At, event.Label())
			if event.Command != "" {
				line += " (" + event.Command + ")"
			}
			fmt.Fprintln(&buf, line)
		}
	}
	return buf.String()
}

func checkAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result.State, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks that some event matches the pattern and, when
// given, the command.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.matches(a.Event) && (a.Command == "" || event.Command == a.Command) {
			return nil
		}
	}

	expected := a.Event
	if a.Command != "" {
		expected += " for command " + a.Command
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the patterns match events in order. Other
// events may come in between, and a pattern may match a later occurrence
// than the first.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Events) && event.matches(a.Events[next]) {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}

	actual := fmt.Sprintf("no %s after %s", a.Events[next], strings.Join(a.Events[:next], ", "))
	if next == 0 {
		actual = fmt.Sprintf("no %s in trace", a.Events[0])
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Events),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertTraceCount checks that the pattern matches exactly Count events.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.matches(a.Event) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s exactly %d times", a.Event, a.Count),
		Actual:   fmt.Sprintf("found %d times", count),
		Trace:    trace,
	}
}

// assertFinalState compares the device state after the last step.
// Commands and Transmitted must match exactly; Slots is a subset match.
func assertFinalState(state State, a Assertion) error {
	var diffs []string

	if a.Commands != nil && !equalNames(state.Commands, a.Commands) {
		diffs = append(diffs, fmt.Sprintf("commands %v, want %v", state.Commands, a.Commands))
	}

	for _, key := range slices.Sorted(maps.Keys(a.Slots)) {
		if got := state.Slots[key]; got != a.Slots[key] {
			diffs = append(diffs, fmt.Sprintf("%s = %q, want %q", key, got, a.Slots[key]))
		}
	}

	if a.Transmitted != nil {
		want := make([]string, len(a.Transmitted))
		for i, h := range a.Transmitted {
			want[i] = strings.ToLower(strings.ReplaceAll(h, " ", ""))
		}
		if !equalNames(state.Transmitted, want) {
			diffs = append(diffs, fmt.Sprintf("transmitted %v, want %v", state.Transmitted, want))
		}
	}

	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: "final state to match",
		Actual:   strings.Join(diffs, "; "),
	}
}
