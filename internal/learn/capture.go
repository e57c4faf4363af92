package learn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rmlearn/internal/catalog"
	"github.com/roach88/rmlearn/internal/notify"
	"github.com/roach88/rmlearn/internal/transport"
)

// Operator prompts of the RF sweep.
const (
	PromptLongPress   = "Press and hold the remote button until the frequency is found."
	PromptMultiPress  = "Now press the button several times, one short press at a time."
	PromptRFDone      = "RF learning finished."
	PromptRFError     = "RF learning failed."
	msgIRTimedOut     = "IR learning timed out, no data received."
	msgRFTimedOut     = "RF learning timed out, no data received."
	msgStored         = "Stored command: %s"
	msgStoredNoSlot   = "Stored command: %s (no free slot)"
	msgIRFailed       = "IR learning failed: %v"
	msgRFFailed       = "RF learning failed: %v"
	msgFrequencyShown = "Frequency: %.2f MHz"
)

func (s *Session) captureMode() transport.CaptureMode {
	if s.cfg.Model.IR == catalog.IRRed {
		return transport.CaptureIRRed
	}
	return transport.CaptureIR
}

func (s *Session) captureIR(ctx context.Context, logger *slog.Logger, token string) Outcome {
	tr := s.cfg.Transport
	mode := s.captureMode()

	if err := tr.EnterCapture(ctx, mode); err != nil {
		return s.irFailed(err)
	}
	logger.Debug("entered capture mode", "variant", mode)

	data, err := s.poll(ctx, func(ctx context.Context) ([]byte, error) {
		return tr.PollCapturedPayload(ctx, mode)
	})
	if err != nil {
		if isTimeout(err) {
			return s.timedOut(ModeIR)
		}
		return s.irFailed(err)
	}
	if len(data) == 0 {
		return s.timedOut(ModeIR)
	}

	out := s.commit(ctx, logger, PrefixIR, data, token)
	switch out.State {
	case StateSuccess:
		s.flashStored(out)
	case StateFailed:
		s.notices.Flash(fmt.Sprintf(msgIRFailed, out.Err), s.cfg.NoticeTTL)
	}
	return out
}

func (s *Session) captureRF(ctx context.Context, logger *slog.Logger, token string) Outcome {
	out := s.sweep(ctx, logger, token)

	// The sweep is cancelled on every exit path; a failed cancel never
	// changes the outcome.
	if err := s.cfg.Transport.CancelSweep(ctx); err != nil {
		logger.Warn("cancel sweep failed", "error", err)
	}

	switch out.State {
	case StateSuccess:
		s.notices.Prompt(PromptRFDone, s.cfg.NoticeTTL)
	case StateTimedOut:
		s.notices.Flash(msgRFTimedOut, s.cfg.NoticeTTL)
	default:
		if s.cfg.Notifier.SpeechAvailable() {
			s.notices.Prompt(PromptRFError, s.cfg.NoticeTTL)
		}
		s.notices.Flash(fmt.Sprintf(msgRFFailed, out.Err), s.cfg.NoticeTTL)
	}
	return out
}

func (s *Session) sweep(ctx context.Context, logger *slog.Logger, token string) Outcome {
	tr := s.cfg.Transport

	if err := tr.EnterSweep(ctx); err != nil {
		return failed(err)
	}
	s.notices.Prompt(PromptLongPress, PromptTTL)

	freqBytes, err := s.poll(ctx, tr.PollFrequency)
	if err != nil {
		if isTimeout(err) {
			return Outcome{State: StateTimedOut}
		}
		return failed(err)
	}
	if len(freqBytes) == 0 {
		return Outcome{State: StateTimedOut}
	}
	freq, err := transport.FrequencyMHz(freqBytes)
	if err != nil {
		return failed(err)
	}
	logger.Debug("frequency detected", "bytes", freqBytes, "mhz", freq)
	s.notices.Flash(fmt.Sprintf(msgFrequencyShown, freq), FrequencyTTL)

	s.notices.Prompt(PromptMultiPress, s.cfg.NoticeTTL)

	var data []byte
	if s.cfg.Model.RF == catalog.RFLegacy {
		mode := s.captureMode()
		if err := tr.EnterCapture(ctx, mode); err != nil {
			return withFrequency(failed(err), freq)
		}
		data, err = s.poll(ctx, func(ctx context.Context) ([]byte, error) {
			return tr.PollCapturedPayload(ctx, mode)
		})
	} else {
		data, err = s.poll(ctx, func(ctx context.Context) ([]byte, error) {
			return tr.DecodeWithFrequency(ctx, freqBytes)
		})
	}
	if err != nil {
		if isTimeout(err) {
			return withFrequency(Outcome{State: StateTimedOut}, freq)
		}
		return withFrequency(failed(err), freq)
	}
	if len(data) == 0 {
		return withFrequency(Outcome{State: StateTimedOut}, freq)
	}

	return withFrequency(s.commit(ctx, logger, PrefixRF, data, token), freq)
}

// poll runs one bounded transport wait.
func (s *Session) poll(ctx context.Context, f func(context.Context) ([]byte, error)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CaptureTimeout)
	defer cancel()
	return f(ctx)
}

// commit names the payload, stores it and reserves a slot. A slot that
// cannot be reserved does not fail the attempt: the command is stored.
func (s *Session) commit(ctx context.Context, logger *slog.Logger, prefix string, data []byte, token string) Outcome {
	name := s.cfg.Namer.Next(prefix, s.cfg.Store.ListNames())

	if err := s.cfg.Store.Add(ctx, name, data); err != nil {
		return Outcome{State: StateFailed, Name: name, Err: fmt.Errorf("store %s: %w", name, err)}
	}

	out := Outcome{State: StateSuccess, Name: name}
	key, ok, err := s.cfg.Slots.ReserveFirstFree(ctx, name)
	switch {
	case err != nil:
		logger.Warn("reserving slot failed", "name", name, "error", err)
	case !ok:
		logger.Warn("no free slot, command stored without slot", "name", name)
	default:
		out.Slot = key
	}

	s.cfg.Notifier.Trigger(notify.Event{
		Kind:    notify.EventCommandLearned,
		Command: name,
		Tokens:  map[string]string{"CommandLearned": name, "Attempt": token},
	})
	return out
}

func (s *Session) flashStored(out Outcome) {
	msg := fmt.Sprintf(msgStored, out.Name)
	if out.Slot == "" {
		msg = fmt.Sprintf(msgStoredNoSlot, out.Name)
	}
	s.notices.Flash(msg, s.cfg.NoticeTTL)
}

func (s *Session) timedOut(mode Mode) Outcome {
	if mode == ModeIR {
		s.notices.Flash(msgIRTimedOut, s.cfg.NoticeTTL)
	}
	return Outcome{State: StateTimedOut}
}

func (s *Session) irFailed(err error) Outcome {
	s.notices.Flash(fmt.Sprintf(msgIRFailed, err), s.cfg.NoticeTTL)
	return failed(err)
}

func failed(err error) Outcome {
	return Outcome{State: StateFailed, Err: err}
}

func withFrequency(out Outcome, mhz float64) Outcome {
	out.FrequencyMHz = mhz
	return out
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
