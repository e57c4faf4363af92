// Package harness runs learning scenarios against a simulated device.
//
// A scenario drives one device.Controller backed by a transport.Simulator,
// a fake clock and an in-memory slot list. Every notification the device
// emits is recorded as a trace, which assertions and golden files check.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: learn_ir_basic
//	description: "One IR capture is stored and mapped to slot0"
//	model: rm_mini3
//	naming: monotonic
//	seed:
//	  - name: tv-power
//	    payload: "2600"
//	transport:
//	  captures: ["26000c"]
//	steps:
//	  - learn: ir
//	  - advance: 300ms
//	    expect:
//	      outcome: success
//	      name: cmd2
//	  - edit_slots: {slot1: amp}
//	  - send: amp
//	assertions:
//	  - type: trace_contains
//	    event: event:command.learned
//	    command: cmd2
//	  - type: final_state
//	    commands: [tv-power, amp]
//
// Steps run in order. Each step performs at most one action:
//
//   - learn / stop: request learning on or off in "ir" or "rf" mode
//   - advance: move the fake clock, firing debounce and notice timers
//   - capture / rf_capture: queue a hex payload on the simulator
//   - send, rename, delete, edit_slots: operate on the command store
//
// A step may instead only carry expect, checking the session state and the
// last outcome. expect_error names the error code a step must fail with.
//
// # Assertion Types
//
//   - trace_contains: an event of the given type (and detail, command) was recorded
//   - trace_order: the listed events occur in this order, gaps allowed
//   - trace_count: an event occurs exactly count times
//   - final_state: stored commands, slot values and transmitted payloads
//
// Events are matched as "type" or "type:detail", e.g. "outcome:success",
// "capability:learningState=on", "measure:measure_temperature=21.5" or
// "warning".
//
// # Golden Files
//
// RunWithGolden stores the trace under testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
