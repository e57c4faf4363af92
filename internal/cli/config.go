package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rmlearn/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(opts))
	cmd.AddCommand(newConfigShowCommand(opts))
	return cmd
}

func newConfigInitCommand(opts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)

			path := config.DefaultPath()
			switch {
			case len(args) == 1:
				path = args[0]
			case opts.Config != "":
				path = opts.Config
			}

			if _, err := os.Stat(path); err == nil && !force {
				return out.Fail(ExitCommandError, ErrCodeConfig,
					fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return out.Fail(ExitCommandError, ErrCodeConfig, "cannot check config path", err)
			}

			if err := config.DefaultConfig().Save(path); err != nil {
				return out.Fail(ExitCommandError, ErrCodeConfig, "failed to write config", err)
			}
			if out.JSON() {
				return out.Success(map[string]string{"path": path})
			}
			fmt.Fprintf(out.Writer, "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			cfg, err := loadConfigOnly(opts)
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
			}
			if out.JSON() {
				return out.Success(cfg)
			}

			data, err := cfg.Marshal()
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeConfig, "failed to render config", err)
			}
			if f := cfg.File(); f != "" {
				fmt.Fprintf(out.Writer, "# %s\n", f)
			}
			_, err = out.Writer.Write(data)
			return err
		},
	}
}
