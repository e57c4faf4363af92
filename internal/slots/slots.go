// Package slots keeps a fixed-capacity, operator-editable slot list
// ("slot0" ... "slotN") in step with a device's command names.
//
// The slot list itself is owned elsewhere (the settings database, an
// operator UI); the Synchronizer only reads and writes it through Mapping.
package slots

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// KeyPrefix prefixes every slot key.
const KeyPrefix = "slot"

// Key returns the key of slot i.
func Key(i int) string {
	return KeyPrefix + strconv.Itoa(i)
}

// Index parses a slot key. It returns false for keys that are not of the
// form "slot<n>".
func Index(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 || strconv.Itoa(i) != rest {
		return 0, false
	}
	return i, true
}

// Mapping is the external key/value surface holding slot values.
// Unset keys read as "".
type Mapping interface {
	Get(ctx context.Context, key string) (string, error)
	// Set writes every pair at once; implementations apply it atomically
	// where the backing store allows.
	Set(ctx context.Context, values map[string]string) error
}

// Synchronizer maps command names onto slots.
type Synchronizer struct {
	m        Mapping
	capacity int
	logger   *slog.Logger
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger used for exhaustion warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Synchronizer over m with the given number of slots.
func New(m Mapping, capacity int, opts ...Option) *Synchronizer {
	s := &Synchronizer{m: m, capacity: max(capacity, 0), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity returns the number of slots.
func (s *Synchronizer) Capacity() int {
	return s.capacity
}

// Owns reports whether key is a slot key within capacity.
func (s *Synchronizer) Owns(key string) bool {
	i, ok := Index(key)
	return ok && i < s.capacity
}

// ReconcileAll clears every slot and fills slots 0..k-1 with names in
// order, k = min(capacity, len(names)). Names beyond capacity stay
// unreserved and are reported in the log.
func (s *Synchronizer) ReconcileAll(ctx context.Context, names []string) error {
	values := make(map[string]string, s.capacity)
	for i := 0; i < s.capacity; i++ {
		v := ""
		if i < len(names) {
			v = names[i]
		}
		values[Key(i)] = v
	}

	if excess := len(names) - s.capacity; excess > 0 {
		s.logger.Warn("not enough slots, commands left unreserved",
			"capacity", s.capacity, "unreserved", names[s.capacity:])
	}

	if err := s.m.Set(ctx, values); err != nil {
		return fmt.Errorf("reconcile slots: %w", err)
	}
	return nil
}

// ReserveFirstFree stores name in the first empty slot and returns its key.
//
// If name already occupies a slot that slot is returned unchanged, so a
// name is never reserved twice. When every slot is taken, ok is false and
// nothing is written.
func (s *Synchronizer) ReserveFirstFree(ctx context.Context, name string) (key string, ok bool, err error) {
	values, err := s.Values(ctx)
	if err != nil {
		return "", false, err
	}

	free := -1
	for i, v := range values {
		if v == name {
			return Key(i), true, nil
		}
		if v == "" && free < 0 {
			free = i
		}
	}

	if free < 0 {
		s.logger.Warn("no free slot", "name", name, "capacity", s.capacity)
		return "", false, nil
	}

	key = Key(free)
	if err := s.m.Set(ctx, map[string]string{key: name}); err != nil {
		return "", false, fmt.Errorf("reserve slot %s: %w", key, err)
	}
	return key, true, nil
}

// Values returns every slot value in index order, "" for empty slots.
func (s *Synchronizer) Values(ctx context.Context) ([]string, error) {
	values := make([]string, s.capacity)
	for i := range values {
		v, err := s.m.Get(ctx, Key(i))
		if err != nil {
			return nil, fmt.Errorf("read slots: %w", err)
		}
		values[i] = v
	}
	return values, nil
}

// Names returns the non-empty slot values in slot order.
func (s *Synchronizer) Names(ctx context.Context) ([]string, error) {
	values, err := s.Values(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			names = append(names, v)
		}
	}
	return names, nil
}

// Lookup returns the key of the slot holding name.
func (s *Synchronizer) Lookup(ctx context.Context, name string) (string, bool, error) {
	values, err := s.Values(ctx)
	if err != nil {
		return "", false, err
	}
	for i, v := range values {
		if v == name {
			return Key(i), true, nil
		}
	}
	return "", false, nil
}

// Put writes a single slot value.
func (s *Synchronizer) Put(ctx context.Context, key, value string) error {
	if err := s.m.Set(ctx, map[string]string{key: value}); err != nil {
		return fmt.Errorf("write slot %s: %w", key, err)
	}
	return nil
}

// PutAll writes several slot values in one Set call.
func (s *Synchronizer) PutAll(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	if err := s.m.Set(ctx, values); err != nil {
		return fmt.Errorf("write slots: %w", err)
	}
	return nil
}
