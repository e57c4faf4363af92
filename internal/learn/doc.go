// Package learn implements the per-device learning session: a debounced,
// single-flight state machine that drives a capture protocol on the
// transport and, on success, names and stores the captured command and
// reserves a slot for it.
//
// # States
//
//	Idle -> Debouncing -> Capturing -> (Success | TimedOut | Failed) -> Idle
//
// Start and stop requests are coalesced by a debounce timer. Once a capture
// has begun it runs to completion, success or timeout; requests arriving
// meanwhile are ignored. Terminal states are reported through the outcome
// hook and the notifier, then the session returns to Idle.
//
// # Protocols
//
// The IR protocol enters capture mode and polls once with a bounded wait.
// Devices of the "red bean" family use the alternate capture command set.
//
// The RF sweep protocol is multi-phase: enter sweep, prompt for a long
// press, read the detected carrier frequency, prompt for repeated presses,
// then decode against that frequency. Legacy RF devices restart a plain
// capture instead of decoding. The sweep is always cancelled on exit;
// cancel failures are logged only.
package learn
