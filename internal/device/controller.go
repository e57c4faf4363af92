// Package device ties a command store, a slot list and a learning session
// together into one controllable remote-control device.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/rmlearn/internal/catalog"
	"github.com/roach88/rmlearn/internal/clock"
	"github.com/roach88/rmlearn/internal/learn"
	"github.com/roach88/rmlearn/internal/notify"
	"github.com/roach88/rmlearn/internal/slots"
	"github.com/roach88/rmlearn/internal/store"
	"github.com/roach88/rmlearn/internal/transport"
)

// Config describes one device. ID, DataDir, Transport and Slots are
// required.
type Config struct {
	// ID is the stable device identifier (MAC address hex). It names the
	// command file.
	ID      string
	Name    string
	Model   catalog.Model
	DataDir string

	Transport transport.Transport
	Slots     slots.Mapping
	Notifier  notify.Notifier
	Clock     clock.Clock
	Namer     learn.Namer
	Tokens    learn.TokenGenerator
	Logger    *slog.Logger

	Debounce       time.Duration
	CaptureTimeout time.Duration
	NoticeTTL      time.Duration
	// SensorInterval is the sensor poll period of models with sensors.
	// Zero uses DefaultSensorInterval.
	SensorInterval time.Duration

	// OnOutcome, when set, is called with every finished learning attempt.
	OnOutcome func(learn.Outcome)

	StoreOptions []store.Option
}

// Controller is one device.
//
// Thread-safety: All methods are safe for concurrent use. Store mutations
// from learning and from slot edits are serialized.
type Controller struct {
	cfg     Config
	logger  *slog.Logger
	store   *store.Store
	slots   *slots.Synchronizer
	session *learn.Session
	notices *notify.Notices

	// mu serializes store mutations.
	mu sync.Mutex

	waitMu  sync.Mutex
	waiters []chan learn.Outcome

	sensorMu sync.Mutex
	sensors  *sensorPoller
}

// Open loads the device's commands and reconciles its slot list.
//
// A corrupted command file is discarded and the device starts empty.
func Open(ctx context.Context, cfg Config) (*Controller, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("open device: empty id")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = learn.DefaultNoticeTTL
	}
	if cfg.Model.Slots <= 0 {
		cfg.Model.Slots = 50
	}
	logger := cfg.Logger.With("device", cfg.ID)

	opts := append([]store.Option{store.WithLogger(logger)}, cfg.StoreOptions...)
	st := store.New(cfg.DataDir, cfg.ID, opts...)
	if err := st.Load(ctx); err != nil {
		if !store.IsCorrupted(err) {
			return nil, fmt.Errorf("open device %s: %w", cfg.ID, err)
		}
		logger.Warn("command file corrupted, starting empty", "error", err)
		if err := st.Discard(ctx); err != nil {
			return nil, fmt.Errorf("open device %s: %w", cfg.ID, err)
		}
	}

	c := &Controller{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		slots:   slots.New(cfg.Slots, cfg.Model.Slots, slots.WithLogger(logger)),
		notices: notify.NewNotices(cfg.Notifier, cfg.Clock),
	}

	if err := c.slots.ReconcileAll(ctx, st.ListNames()); err != nil {
		return nil, fmt.Errorf("open device %s: %w", cfg.ID, err)
	}

	c.session = learn.New(learn.Config{
		DeviceID:       cfg.ID,
		Model:          cfg.Model,
		Transport:      cfg.Transport,
		Store:          guardedStore{c},
		Slots:          guardedSlots{c},
		Notifier:       cfg.Notifier,
		Notices:        c.notices,
		Clock:          cfg.Clock,
		Namer:          cfg.Namer,
		Tokens:         cfg.Tokens,
		Logger:         cfg.Logger,
		Debounce:       cfg.Debounce,
		CaptureTimeout: cfg.CaptureTimeout,
		NoticeTTL:      cfg.NoticeTTL,
		OnOutcome:      c.deliver,
	})

	c.startSensors(ctx)

	logger.Info("device ready", "model", cfg.Model.ID, "commands", st.Len())
	return c, nil
}

// ID returns the device identifier.
func (c *Controller) ID() string { return c.cfg.ID }

// Name returns the display name, falling back to the ID.
func (c *Controller) Name() string {
	if c.cfg.Name != "" {
		return c.cfg.Name
	}
	return c.cfg.ID
}

// Model returns the device model.
func (c *Controller) Model() catalog.Model { return c.cfg.Model }

// Commands returns command names in store order.
func (c *Controller) Commands() []string { return c.store.ListNames() }

// Records returns every command with its payload.
func (c *Controller) Records() []store.Record { return c.store.Records() }

// StorePath returns the command file path.
func (c *Controller) StorePath() string { return c.store.Path() }

// SlotValues returns every slot value in slot order.
func (c *Controller) SlotValues(ctx context.Context) ([]string, error) {
	return c.slots.Values(ctx)
}

// State returns the learning session state.
func (c *Controller) State() learn.State { return c.session.State() }

// LastOutcome returns the most recent finished learning attempt.
func (c *Controller) LastOutcome() (learn.Outcome, bool) { return c.session.LastOutcome() }

// Learn forwards a learning toggle to the session.
func (c *Controller) Learn(mode learn.Mode, on bool) error {
	return c.session.Request(mode, on)
}

// LearnAndWait starts learning in mode and blocks until the attempt
// finishes or ctx is done.
func (c *Controller) LearnAndWait(ctx context.Context, mode learn.Mode) (learn.Outcome, error) {
	ch := make(chan learn.Outcome, 1)
	c.waitMu.Lock()
	c.waiters = append(c.waiters, ch)
	c.waitMu.Unlock()
	defer c.dropWaiter(ch)

	if err := c.session.Request(mode, true); err != nil {
		return learn.Outcome{}, err
	}

	select {
	case out := <-ch:
		return out, nil
	case <-ctx.Done():
		return learn.Outcome{}, ctx.Err()
	}
}

func (c *Controller) deliver(out learn.Outcome) {
	if c.cfg.OnOutcome != nil {
		c.cfg.OnOutcome(out)
	}

	c.waitMu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.waitMu.Unlock()

	for _, ch := range waiters {
		select {
		case ch <- out:
		default:
		}
	}
}

func (c *Controller) dropWaiter(ch chan learn.Outcome) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	c.waiters = slices.DeleteFunc(c.waiters, func(w chan learn.Outcome) bool { return w == ch })
}

// Send transmits the named command and fires the command-sent events.
func (c *Controller) Send(ctx context.Context, name string) error {
	payload, err := c.store.Payload(name)
	if err != nil {
		return err
	}

	if err := c.cfg.Transport.Transmit(ctx, payload); err != nil {
		c.logger.Warn("send failed", "name", name, "error", err)
		return fmt.Errorf("send %s: %w", name, err)
	}
	c.logger.Debug("command sent", "name", name, "bytes", len(payload))

	name = store.NormalizeName(name)
	c.cfg.Notifier.Trigger(notify.Event{Kind: notify.EventCommandSentSpecific, Command: name})
	c.cfg.Notifier.Trigger(notify.Event{
		Kind:    notify.EventCommandSentAny,
		Command: name,
		Tokens:  map[string]string{"CommandSent": name},
	})
	return nil
}

// Autocomplete returns command names containing query, case-insensitively,
// most recently learned first.
func (c *Controller) Autocomplete(query string) []string {
	names := c.store.ListNames()
	slices.Reverse(names)

	q := strings.ToLower(query)
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), q) {
			out = append(out, n)
		}
	}
	return out
}

// Remove deletes every command and clears the slot list. The device can
// not learn afterwards.
func (c *Controller) Remove(ctx context.Context) error {
	c.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("remove device %s: %w", c.cfg.ID, err)
	}
	if err := c.slots.ReconcileAll(ctx, nil); err != nil {
		return fmt.Errorf("remove device %s: %w", c.cfg.ID, err)
	}
	c.logger.Info("device removed")
	return nil
}

// Close stops the learning session, sensor polling and pending notices.
func (c *Controller) Close() {
	c.stopSensors()
	c.session.Close()
	c.notices.Stop()
}

// guardedStore hands the session a store whose mutations are serialized
// with slot edits.
type guardedStore struct{ c *Controller }

func (g guardedStore) ListNames() []string {
	return g.c.store.ListNames()
}

func (g guardedStore) Add(ctx context.Context, name string, payload store.Payload) error {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	return g.c.store.Add(ctx, name, payload)
}

type guardedSlots struct{ c *Controller }

func (g guardedSlots) ReserveFirstFree(ctx context.Context, name string) (string, bool, error) {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	return g.c.slots.ReserveFirstFree(ctx, name)
}
