package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rmlearn/internal/device"
	"github.com/roach88/rmlearn/internal/store"
	"github.com/roach88/rmlearn/internal/transport"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	require.NoError(t, formatter.Success(map[string]string{"sent": "cmd1"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	require.NoError(t, formatter.Error("NAME_COLLISION", "command already exists", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NAME_COLLISION", resp.Error.Code)
	assert.Equal(t, "command already exists", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeDevice, "device offline", map[string]string{"id": "aa"}))
	assert.Contains(t, buf.String(), "Error [E_DEVICE]: device offline")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error(ErrCodeDevice, "device offline", map[string]string{"id": "aa"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("learning %s", "ir")

			assert.Empty(t, out.String(), "diagnostics never go to the result stream")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "learning ir")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestOutputFormatter_FailJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail(ExitFailure, ErrCodeDevice, "failed to rename a", store.NewNameCollisionError("b"))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, store.IsNameCollision(err), "domain error stays reachable")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NAME_COLLISION", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "failed to rename a")
}

func TestOutputFormatter_FailTextWritesNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", errors.New("boom"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "failed to load config: boom", err.Error())
	assert.Empty(t, buf.String())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ErrCodeGeneric},
		{"plain", errors.New("x"), ErrCodeGeneric},
		{"store", fmt.Errorf("send: %w", store.NewNotFoundError("tv")), "NOT_FOUND"},
		{"device", &device.Error{Code: device.ErrCodeUnknownSlot, Key: "slot99"}, "UNKNOWN_SLOT"},
		{"transport", transport.Wrap(transport.PhaseTransmit, errors.New("offline")), "TRANSPORT_FAILURE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err, ErrCodeGeneric))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad"))))

	wrapped := WrapExitError(ExitFailure, "send failed", errors.New("offline"))
	assert.Equal(t, "send failed: offline", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "offline")
}
