package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Test scenario for validation"
model: rm_pro
naming: length
capture_timeout: 50ms
seed:
  - name: tv-power
    payload: "26 00 0c"
transport:
  frequency_khz: 433920
  captures: ["2600"]
steps:
  - learn: rf
  - advance: 300ms
    expect:
      outcome: success
  - rename: {from: tv-power, to: tv}
  - edit_slots: {slot0: tv-main}
assertions:
  - type: trace_contains
    event: outcome:success
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "rm_pro", scenario.Model)
	assert.Equal(t, "length", scenario.Naming)
	assert.Equal(t, 50*time.Millisecond, scenario.CaptureTimeout)
	assert.Equal(t, uint32(433920), scenario.Transport.FrequencyKHz)
	require.Len(t, scenario.Seed, 1)
	assert.Equal(t, "26 00 0c", scenario.Seed[0].Payload)

	require.Len(t, scenario.Steps, 4)
	assert.Equal(t, "rf", scenario.Steps[0].Learn)
	assert.Equal(t, 300*time.Millisecond, scenario.Steps[1].Advance)
	require.NotNil(t, scenario.Steps[1].Expect)
	assert.Equal(t, "success", scenario.Steps[1].Expect.Outcome)
	assert.Equal(t, &RenameStep{From: "tv-power", To: "tv"}, scenario.Steps[2].Rename)
	assert.Equal(t, map[string]string{"slot0": "tv-main"}, scenario.Steps[3].EditSlots)

	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertTraceContains, scenario.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	content := `
name: typo
description: "Misspelled assertions key"
model: rm_mini3
steps:
  - learn: ir
assertion:
  - type: trace_contains
    event: outcome
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_UnknownTransportField(t *testing.T) {
	content := `
name: typo
description: "Misspelled transport key"
model: rm_mini3
transport:
  capture: ["2600"]
steps:
  - learn: ir
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateScenario(t *testing.T) {
	base := func() Scenario {
		return Scenario{
			Name:        "s",
			Description: "d",
			Model:       "rm_mini3",
			Steps:       []Step{{Learn: "ir"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr string
	}{
		{"valid", func(s *Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"missing model", func(s *Scenario) { s.Model = "" }, "model is required"},
		{"bad naming", func(s *Scenario) { s.Naming = "random" }, "unknown naming strategy"},
		{"no steps", func(s *Scenario) { s.Steps = nil }, "steps list is required"},
		{"seed without payload", func(s *Scenario) {
			s.Seed = []SeedCommand{{Name: "tv"}}
		}, "seed[0]: payload is required"},
		{"two actions", func(s *Scenario) {
			s.Steps = []Step{{Learn: "ir", Advance: time.Second}}
		}, "only one action per step, got learn, advance"},
		{"empty step", func(s *Scenario) {
			s.Steps = []Step{{}}
		}, "step has no action and no expect"},
		{"expect only", func(s *Scenario) {
			s.Steps = []Step{{Expect: &Expect{State: "idle"}}}
		}, ""},
		{"bad mode", func(s *Scenario) {
			s.Steps = []Step{{Learn: "uv"}}
		}, `mode must be ir or rf, got "uv"`},
		{"negative advance", func(s *Scenario) {
			s.Steps = []Step{{Advance: -time.Second}}
		}, "advance must not be negative"},
		{"half rename", func(s *Scenario) {
			s.Steps = []Step{{Rename: &RenameStep{From: "a"}}}
		}, "rename needs from and to"},
		{"bad slot key", func(s *Scenario) {
			s.Steps = []Step{{EditSlots: map[string]string{"volume": "x"}}}
		}, `"volume" is not a slot key`},
		{"expect_error on advance", func(s *Scenario) {
			s.Steps = []Step{{Advance: time.Second, ExpectError: "NOT_FOUND"}}
		}, "expect_error needs an action that can fail"},
		{"unknown assertion", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: "trace_length"}}
		}, `unknown assertion type "trace_length"`},
		{"assertion without type", func(s *Scenario) {
			s.Assertions = []Assertion{{Event: "outcome"}}
		}, "type is required"},
		{"trace_contains without event", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertTraceContains}}
		}, "trace_contains requires 'event' field"},
		{"short trace_order", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertTraceOrder, Events: []string{"outcome"}}}
		}, "at least 2 events"},
		{"empty final_state", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertFinalState}}
		}, "final_state requires"},
		{"trace_count of zero", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertTraceCount, Event: "outcome"}}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(&s)
			err := validateScenario(&s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_AllFixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, filepath.Base(path), scenario.Name+".yaml", "fixture file is named after its scenario")
		})
	}
}
