package harness

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rmlearn/internal/transport"
)

func TestRun_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".yaml"), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "One IR capture",
		Model:       "rm_mini3",
		Transport:   transport.Script{Captures: []string{"2600"}},
		Steps: []Step{
			{Learn: "ir"},
			{Advance: 300 * time.Millisecond},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Event: "outcome:success", Command: "cmd1"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"cmd1"}, result.State.Commands)
	assert.Equal(t, map[string]string{"slot0": "cmd1"}, result.State.Slots)
	assert.Empty(t, result.State.Transmitted)

	for i, event := range result.Trace {
		assert.Equal(t, int64(i+1), event.Seq, "trace is numbered without gaps")
	}
}

func TestRun_StepLabelsInTrace(t *testing.T) {
	scenario := &Scenario{
		Name:        "labels",
		Description: "Every action leaves a step event",
		Model:       "rm_mini3",
		Seed:        []SeedCommand{{Name: "tv", Payload: "2600"}},
		Steps: []Step{
			{Capture: "2601"},
			{EditSlots: map[string]string{"slot1": "", "slot0": "tv-main"}},
			{Expect: &Expect{Commands: []string{"tv-main"}}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var steps []string
	for _, event := range result.Trace {
		if event.Type == TypeStep {
			steps = append(steps, event.Detail)
		}
	}
	assert.Equal(t, []string{"capture 2601", "edit_slots slot0=tv-main slot1="}, steps)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "Expectations that do not hold",
		Model:       "rm_mini3",
		Steps: []Step{
			{Expect: &Expect{Outcome: "success"}},
			{Learn: "ir", Expect: &Expect{State: "idle"}},
			{Send: "missing"},
			{Delete: "missing", ExpectError: "NOT_FOUND"},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Commands: []string{"cmd1"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "steps[0]: no learning attempt has finished")
	assert.Contains(t, result.Errors[1], "steps[1] (learn ir): state: expected idle, got debouncing")
	assert.Contains(t, result.Errors[2], "steps[2] (send missing): NOT_FOUND")
	assert.Contains(t, result.Errors[3], "steps[3] (delete missing): expected error NOT_FOUND, got none")
	assert.Contains(t, result.Errors[4], "assertions[0]: Assertion failed: final_state")
}

func TestRun_UnknownModel(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown",
		Description: "d",
		Model:       "rm_nano",
		Steps:       []Step{{Learn: "ir"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown model "rm_nano"`)
}

func TestRun_BadSeedPayload(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_seed",
		Description: "d",
		Model:       "rm_mini3",
		Seed:        []SeedCommand{{Name: "tv", Payload: "zz"}},
		Steps:       []Step{{Learn: "ir"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed tv")
}

func TestRun_HangingTransportTimesOut(t *testing.T) {
	scenario := &Scenario{
		Name:           "hang",
		Description:    "A poll that never answers ends at the capture timeout",
		Model:          "rm_mini3",
		CaptureTimeout: 20 * time.Millisecond,
		Transport:      transport.Script{Hang: true},
		Steps: []Step{
			{Learn: "ir"},
			{Advance: 300 * time.Millisecond, Expect: &Expect{Outcome: "timed_out"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_IsolatedRuns(t *testing.T) {
	scenario := &Scenario{
		Name:        "isolated",
		Description: "A second run starts from an empty store",
		Model:       "rm_mini3",
		Transport:   transport.Script{Captures: []string{"2600"}},
		Steps: []Step{
			{Learn: "ir"},
			{Advance: 300 * time.Millisecond, Expect: &Expect{Name: "cmd1"}},
		},
	}

	for range 2 {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
	}
}
