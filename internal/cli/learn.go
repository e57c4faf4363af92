package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rmlearn/internal/device"
	"github.com/roach88/rmlearn/internal/learn"
)

// LearnOptions holds flags for the learn command.
type LearnOptions struct {
	*RootOptions
	RF   bool
	Wait time.Duration
}

// LearnResult is the outcome of one learn run.
type LearnResult struct {
	Mode         string  `json:"mode"`
	State        string  `json:"state"`
	Attempt      string  `json:"attempt"`
	Name         string  `json:"name,omitempty"`
	Slot         string  `json:"slot,omitempty"`
	FrequencyMHz float64 `json:"frequency_mhz,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// NewLearnCommand creates the learn command.
func NewLearnCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LearnOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Capture one command from a remote and store it",
		Long: `Put the device into learning mode, wait for one button press and store
the captured command under a generated name (cmdN for IR, rf-cmdN for RF).
The new command is reserved in the first free slot.

Example:
  rmlearn learn -d 34ea34b4c5d6
  rmlearn learn -d 34ea34b4c5d6 --rf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, opts.RootOptions, func(a *app, c *device.Controller) error {
				return runLearn(opts, a, c)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.RF, "rf", false, "learn an RF command (frequency sweep)")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 0, "give up after this long (default: derived from capture_timeout)")

	return cmd
}

func runLearn(opts *LearnOptions, a *app, c *device.Controller) error {
	mode := learn.ModeIR
	phases := 1
	if opts.RF {
		mode = learn.ModeRF
		phases = 2
	}

	wait := opts.Wait
	if wait <= 0 {
		wait = a.cfg.Debounce + time.Duration(phases)*a.cfg.CaptureTimeout + 5*time.Second
	}
	ctx, cancel := context.WithTimeout(a.ctx(), wait)
	defer cancel()

	a.out.VerboseLog("learning %s on %s (model %s), waiting up to %s", mode, c.ID(), c.Model().ID, wait)

	out, err := c.LearnAndWait(ctx, mode)
	switch {
	case errors.Is(err, learn.ErrUnsupported):
		return a.out.Fail(ExitCommandError, ErrCodeLearn,
			fmt.Sprintf("model %s cannot learn %s commands", c.Model().ID, mode), err)
	case err != nil:
		return a.out.Fail(ExitFailure, ErrCodeLearn, "learning did not finish", err)
	}

	result := LearnResult{
		Mode:         out.Mode.String(),
		State:        out.State.String(),
		Attempt:      out.Token,
		Name:         out.Name,
		Slot:         out.Slot,
		FrequencyMHz: out.FrequencyMHz,
	}
	if out.Err != nil {
		result.Error = out.Err.Error()
	}

	if a.out.JSON() {
		if err := a.out.Success(result); err != nil {
			return err
		}
	} else {
		writeLearnResult(a.out, result)
	}

	if out.State != learn.StateSuccess {
		return NewExitError(ExitFailure, fmt.Sprintf("learning %s", out.State))
	}
	return nil
}

func writeLearnResult(out *OutputFormatter, r LearnResult) {
	switch r.State {
	case learn.StateSuccess.String():
		slot := r.Slot
		if slot == "" {
			slot = "no free slot"
		}
		fmt.Fprintf(out.Writer, "Learned %s (%s)\n", r.Name, slot)
	case learn.StateTimedOut.String():
		fmt.Fprintln(out.Writer, "Nothing received before the timeout.")
	default:
		fmt.Fprintf(out.Writer, "Learning failed: %s\n", r.Error)
	}
	if r.FrequencyMHz > 0 {
		fmt.Fprintf(out.Writer, "Frequency: %.2f MHz\n", r.FrequencyMHz)
	}
	out.VerboseLog("attempt %s", r.Attempt)
}
