package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rmlearn/internal/catalog"
	"github.com/roach88/rmlearn/internal/config"
	"github.com/roach88/rmlearn/internal/device"
	"github.com/roach88/rmlearn/internal/learn"
	"github.com/roach88/rmlearn/internal/notify"
	"github.com/roach88/rmlearn/internal/settings"
	"github.com/roach88/rmlearn/internal/transport"
)

// app is the wiring shared by every device command: config, model catalog,
// settings database and logger.
type app struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	settings *settings.Store
	logger   *slog.Logger
	registry *device.Registry
	out      *OutputFormatter
	cmd      *cobra.Command
}

// loadApp reads the configuration and opens the settings database.
// Callers must call close.
func loadApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	out := opts.formatter(cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	logger := newLogger(cmd, opts.Verbose || cfg.Debug.Logging)
	if f := cfg.File(); f != "" {
		logger.Debug("config loaded", "file", f)
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "failed to load model catalog", err)
	}

	st, err := settings.Open(cfg.SettingsDB)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "failed to open settings database", err)
	}
	logger.Debug("settings database ready", "path", cfg.SettingsDB)

	return &app{
		cfg:      cfg,
		catalog:  cat,
		settings: st,
		logger:   logger,
		registry: device.NewRegistry(),
		out:      out,
		cmd:      cmd,
	}, nil
}

func loadConfigOnly(opts *RootOptions) (*config.Config, error) {
	return config.Load(opts.Config)
}

func newLogger(cmd *cobra.Command, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog != "" {
		return catalog.LoadFile(cfg.Catalog)
	}
	return catalog.Builtin()
}

func (a *app) close() {
	a.registry.Close()
	if err := a.settings.Close(); err != nil {
		a.logger.Error("error closing settings database", "error", err)
	}
}

func (a *app) ctx() context.Context {
	if ctx := a.cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// deviceConfig picks the device named by id, or the only configured
// device when id is empty.
func (a *app) deviceConfig(id string) (config.DeviceConfig, error) {
	if id != "" {
		d, ok := a.cfg.Device(id)
		if !ok {
			return config.DeviceConfig{}, a.out.Fail(ExitCommandError, ErrCodeDevice,
				fmt.Sprintf("device %q is not configured", id), nil)
		}
		return d, nil
	}
	switch len(a.cfg.Devices) {
	case 0:
		return config.DeviceConfig{}, a.out.Fail(ExitCommandError, ErrCodeDevice, "no devices configured", nil)
	case 1:
		return a.cfg.Devices[0], nil
	default:
		ids := make([]string, len(a.cfg.Devices))
		for i, d := range a.cfg.Devices {
			ids[i] = d.ID
		}
		return config.DeviceConfig{}, a.out.Fail(ExitCommandError, ErrCodeDevice,
			fmt.Sprintf("several devices configured, pick one with --device (%s)", strings.Join(ids, ", ")), nil)
	}
}

// resolveModel maps a configured device to its catalog model.
func (a *app) resolveModel(d config.DeviceConfig) (catalog.Model, error) {
	devType, err := d.TypeCode()
	if err != nil {
		return catalog.Model{}, err
	}
	return a.catalog.Resolve(devType, d.Model, a.cfg.Debug.Compat)
}

// openDevice resolves, wires and opens one configured device.
func (a *app) openDevice(id string) (*device.Controller, error) {
	d, err := a.deviceConfig(id)
	if err != nil {
		return nil, err
	}

	model, err := a.resolveModel(d)
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, ErrCodeDevice, fmt.Sprintf("device %s", d.ID), err)
	}

	tr, err := openTransport(d)
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, ErrCodeDevice, fmt.Sprintf("device %s", d.ID), err)
	}

	namer, err := learn.ParseNamer(a.cfg.Naming)
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, ErrCodeConfig, "invalid naming strategy", err)
	}

	label := d.Name
	if label == "" {
		label = d.ID
	}
	console := a.out.Writer
	if a.out.JSON() {
		console = a.out.GetErrWriter()
	}
	notifier := notify.Multi{
		notify.NewConsole(console, label, d.Speech),
		notify.NewJournal(a.settings, d.ID, a.logger),
		notify.NewLog(a.logger.With("device", d.ID)),
	}

	c, err := a.registry.Add(a.ctx(), device.Config{
		ID:             d.ID,
		Name:           d.Name,
		Model:          model,
		DataDir:        a.cfg.DataDir,
		Transport:      tr,
		Slots:          a.settings.Slots(d.ID),
		Notifier:       notifier,
		Namer:          namer,
		Logger:         a.logger,
		Debounce:       a.cfg.Debounce,
		CaptureTimeout: a.cfg.CaptureTimeout,
		NoticeTTL:      a.cfg.NoticeTTL,
	})
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, ErrCodeDevice, fmt.Sprintf("failed to open device %s", d.ID), err)
	}
	return c, nil
}

// openTransport builds the transport of a device. Only the scripted
// simulator ships with rmlearn.
func openTransport(d config.DeviceConfig) (transport.Transport, error) {
	if d.Simulate == "" {
		return nil, fmt.Errorf("no transport configured (set simulate to a script file)")
	}
	script, err := transport.LoadScript(d.Simulate)
	if err != nil {
		return nil, err
	}
	sim, err := transport.NewSimulatorFromScript(script)
	if err != nil {
		return nil, fmt.Errorf("simulator script %s: %w", d.Simulate, err)
	}
	return sim, nil
}

// withDevice runs fn against the device selected by the global --device
// flag.
func withDevice(cmd *cobra.Command, opts *RootOptions, fn func(a *app, c *device.Controller) error) error {
	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()

	c, err := a.openDevice(opts.Device)
	if err != nil {
		return err
	}
	return fn(a, c)
}
