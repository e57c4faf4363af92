package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rmlearn/internal/device"
	"github.com/roach88/rmlearn/internal/slots"
)

// CommandInfo describes one stored command.
type CommandInfo struct {
	Name  string `json:"name"`
	Slot  string `json:"slot,omitempty"`
	Bytes int    `json:"bytes"`
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored commands of a device",
		Long: `List the stored commands of a device in store order, with the slot
each one is reserved in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, opts, runList)
		},
	}
}

func runList(a *app, c *device.Controller) error {
	values, err := c.SlotValues(a.ctx())
	if err != nil {
		return a.out.Fail(ExitFailure, ErrCodeDevice, "failed to read slots", err)
	}
	slotOf := make(map[string]string, len(values))
	for i, v := range values {
		if v != "" {
			slotOf[v] = slots.Key(i)
		}
	}

	records := c.Records()
	infos := make([]CommandInfo, len(records))
	for i, r := range records {
		infos[i] = CommandInfo{Name: r.Name, Slot: slotOf[r.Name], Bytes: len(r.Payload)}
	}

	if a.out.JSON() {
		return a.out.Success(infos)
	}
	return writeCommands(a.out, c.Name(), infos)
}

func writeCommands(out *OutputFormatter, label string, infos []CommandInfo) error {
	fmt.Fprintf(out.Writer, "%s: %d command(s)\n", label, len(infos))
	if len(infos) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSLOT\tBYTES")
	for _, ci := range infos {
		slot := ci.Slot
		if slot == "" {
			slot = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", ci.Name, slot, ci.Bytes)
	}
	return w.Flush()
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete [query]",
		Short: "Suggest command names, most recently learned first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return withDevice(cmd, opts, func(a *app, c *device.Controller) error {
				names := c.Autocomplete(query)
				if a.out.JSON() {
					return a.out.Success(names)
				}
				for _, n := range names {
					fmt.Fprintln(a.out.Writer, n)
				}
				return nil
			})
		},
	}
}

// NewSendCommand creates the send command.
func NewSendCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <name>",
		Short: "Transmit a stored command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withDevice(cmd, opts, func(a *app, c *device.Controller) error {
				if err := c.Send(a.ctx(), name); err != nil {
					return a.out.Fail(ExitFailure, ErrCodeDevice, fmt.Sprintf("failed to send %s", name), err)
				}
				if a.out.JSON() {
					return a.out.Success(map[string]string{"sent": name})
				}
				fmt.Fprintf(a.out.Writer, "Sent %s\n", name)
				return nil
			})
		},
	}
}

// NewRenameCommand creates the rename command.
func NewRenameCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a stored command and its slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldName, newName := args[0], args[1]
			return withDevice(cmd, opts, func(a *app, c *device.Controller) error {
				if err := c.Rename(a.ctx(), oldName, newName); err != nil {
					return a.out.Fail(ExitFailure, ErrCodeDevice, fmt.Sprintf("failed to rename %s", oldName), err)
				}
				if a.out.JSON() {
					return a.out.Success(map[string]string{"from": oldName, "to": newName})
				}
				fmt.Fprintf(a.out.Writer, "Renamed %s to %s\n", oldName, newName)
				return nil
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored command and empty its slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withDevice(cmd, opts, func(a *app, c *device.Controller) error {
				if err := c.Delete(a.ctx(), name); err != nil {
					return a.out.Fail(ExitFailure, ErrCodeDevice, fmt.Sprintf("failed to delete %s", name), err)
				}
				if a.out.JSON() {
					return a.out.Success(map[string]string{"deleted": name})
				}
				fmt.Fprintf(a.out.Writer, "Deleted %s\n", name)
				return nil
			})
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand(opts *RootOptions) *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every command of a device and empty its slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, opts, func(a *app, c *device.Controller) error {
				if err := c.Remove(a.ctx()); err != nil {
					return a.out.Fail(ExitFailure, ErrCodeDevice, "failed to clear device", err)
				}
				if history {
					if err := a.settings.DeleteDevice(a.ctx(), c.ID()); err != nil {
						return a.out.Fail(ExitFailure, ErrCodeDevice, "failed to delete device history", err)
					}
				}
				if a.out.JSON() {
					return a.out.Success(map[string]string{"cleared": c.ID()})
				}
				fmt.Fprintf(a.out.Writer, "Cleared %s\n", c.Name())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&history, "history", false, "also delete the notification history")
	return cmd
}
