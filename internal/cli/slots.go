package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rmlearn/internal/device"
	"github.com/roach88/rmlearn/internal/slots"
)

// SlotInfo is one slot and the command it holds.
type SlotInfo struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewSlotsCommand creates the slots command and its set subcommand.
func NewSlotsCommand(opts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show the slot list of a device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, opts, func(a *app, c *device.Controller) error {
				values, err := c.SlotValues(a.ctx())
				if err != nil {
					return a.out.Fail(ExitFailure, ErrCodeDevice, "failed to read slots", err)
				}

				infos := make([]SlotInfo, 0, len(values))
				for i, v := range values {
					if v != "" || all {
						infos = append(infos, SlotInfo{Key: slots.Key(i), Value: v})
					}
				}

				if a.out.JSON() {
					return a.out.Success(infos)
				}
				w := tabwriter.NewWriter(a.out.Writer, 0, 4, 2, ' ', 0)
				for _, s := range infos {
					fmt.Fprintf(w, "%s\t%s\n", s.Key, s.Value)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include empty slots")
	cmd.AddCommand(newSlotsSetCommand(opts))
	return cmd
}

func newSlotsSetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>=<name>...",
		Short: "Edit slot values and apply them to the stored commands",
		Long: `Edit one or more slots. A new value renames the command held by the
slot; an empty value deletes it. The edits are checked together and nothing
changes if any of them is refused.

Example:
  rmlearn slots set slot0=tv-power slot3=`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			values, err := parseSlotAssignments(args)
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeGeneric, "invalid slot assignment", err)
			}

			return withDevice(cmd, opts, func(a *app, c *device.Controller) error {
				if err := c.EditSlots(a.ctx(), values); err != nil {
					return a.out.Fail(ExitFailure, ErrCodeDevice, "slot edit refused", err)
				}
				if a.out.JSON() {
					return a.out.Success(values)
				}
				fmt.Fprintf(a.out.Writer, "Updated %d slot(s)\n", len(values))
				return nil
			})
		},
	}
}

// parseSlotAssignments parses "slotN=value" arguments. A key may appear
// only once.
func parseSlotAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%q is not of the form <key>=<name>", arg)
		}
		key = strings.TrimSpace(key)
		if _, ok := slots.Index(key); !ok {
			return nil, fmt.Errorf("%q is not a slot key", key)
		}
		if _, dup := values[key]; dup {
			return nil, fmt.Errorf("slot %s is set twice", key)
		}
		values[key] = strings.TrimSpace(value)
	}
	return values, nil
}
