package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rmlearn/internal/settings"
)

// HistoryEntry is one journal row as shown by the history command.
type HistoryEntry struct {
	Seq     int64     `json:"seq"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Command string    `json:"command,omitempty"`
	At      time.Time `json:"at"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the notification history of a device",
		Long: `Show the warnings, prompts and events a device emitted, oldest first.
The history is kept in the settings database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			d, err := a.deviceConfig(opts.Device)
			if err != nil {
				return err
			}

			entries, err := a.settings.Journal(a.ctx(), d.ID, limit)
			if err != nil {
				return a.out.Fail(ExitFailure, ErrCodeGeneric, "failed to read history", err)
			}

			if a.out.JSON() {
				return a.out.Success(historyEntries(entries))
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.out.Writer, "No history.")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%4d  %s  %-7s  %s", e.Seq, e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.Message)
				if e.Token != "" {
					line += " (" + e.Token + ")"
				}
				fmt.Fprintln(a.out.Writer, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most n entries (0 for all)")
	return cmd
}

func historyEntries(entries []settings.Entry) []HistoryEntry {
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntry{Seq: e.Seq, Kind: e.Kind, Message: e.Message, Command: e.Token, At: e.CreatedAt}
	}
	return out
}
