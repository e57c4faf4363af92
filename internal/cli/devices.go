package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rmlearn/internal/catalog"
	"github.com/roach88/rmlearn/internal/device"
)

// DeviceInfo describes one configured device.
type DeviceInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type"`
	Model string `json:"model,omitempty"`
	IR    string `json:"ir,omitempty"`
	RF    string `json:"rf,omitempty"`
	Slots int    `json:"slots,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewDevicesCommand creates the devices command.
func NewDevicesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List configured devices and their resolved models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			infos := make([]DeviceInfo, 0, len(a.cfg.Devices))
			for _, d := range a.cfg.Devices {
				info := DeviceInfo{ID: d.ID, Name: d.Name, Type: d.Type}
				if m, err := a.resolveModel(d); err != nil {
					info.Error = err.Error()
				} else {
					info.Model, info.IR, info.RF, info.Slots = m.ID, m.IR, m.RF, m.Slots
				}
				infos = append(infos, info)
			}

			if a.out.JSON() {
				return a.out.Success(infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(a.out.Writer, "No devices configured.")
				return nil
			}
			w := tabwriter.NewWriter(a.out.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tMODEL\tIR\tRF\tSLOTS")
			for _, d := range infos {
				if d.Error != "" {
					fmt.Fprintf(w, "%s\t%s\t%s\t! %s\t\t\t\n", d.ID, d.Name, d.Type, d.Error)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n", d.ID, d.Name, d.Type, d.Model, d.IR, d.RF, d.Slots)
			}
			return w.Flush()
		},
	}
}

// ModelInfo is a catalog model with its identifier.
type ModelInfo struct {
	ID string `json:"id"`
	catalog.Model
}

// NewModelsCommand creates the models command.
func NewModelsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models of the device catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			cfg, err := loadConfigOnly(opts)
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeConfig, "failed to load model catalog", err)
			}

			models := cat.Models()
			if out.JSON() {
				infos := make([]ModelInfo, len(models))
				for i, m := range models {
					infos[i] = ModelInfo{ID: m.ID, Model: m}
				}
				return out.Success(infos)
			}
			return writeModels(out, models)
		},
	}
}

func writeModels(out *OutputFormatter, models []catalog.Model) error {
	w := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tIR\tRF\tSLOTS\tTYPES")
	for _, m := range models {
		types := make([]string, len(m.Types))
		for i, t := range m.Types {
			types[i] = fmt.Sprintf("0x%04x", t)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", m.ID, m.Name, m.IR, m.RF, m.Slots, strings.Join(types, ","))
	}
	return w.Flush()
}

// SensorInfo is the reading of a device with sensors.
type SensorInfo struct {
	Device      string  `json:"device"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// NewSensorsCommand creates the sensors command.
func NewSensorsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sensors",
		Short: "Read the temperature and humidity of a device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, opts, func(a *app, c *device.Controller) error {
				if !c.Model().Sensors {
					return a.out.Fail(ExitFailure, ErrCodeDevice,
						fmt.Sprintf("model %s has no sensors", c.Model().ID), nil)
				}
				r, ok := c.Reading()
				if !ok {
					return a.out.Fail(ExitFailure, ErrCodeDevice, "device did not report a sensor reading", nil)
				}
				info := SensorInfo{Device: c.ID(), Temperature: r.Temperature, Humidity: r.Humidity}
				if a.out.JSON() {
					return a.out.Success(info)
				}
				fmt.Fprintf(a.out.Writer, "Temperature: %.1f °C\nHumidity: %.1f %%\n", info.Temperature, info.Humidity)
				return nil
			})
		},
	}
}
