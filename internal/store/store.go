package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxAttempts is the number of write-validate cycles before a
// mutation is reported as a persistence failure.
const DefaultMaxAttempts = 3

// Record is one named command.
type Record struct {
	Name    string
	Payload Payload
}

// Store is the ordered, uniquely named command collection of one device.
//
// Insertion order is preserved; it drives slot assignment after a load.
// All methods are safe for concurrent use, but a store must only be owned
// by a single device.
type Store struct {
	mu          sync.RWMutex
	path        string
	records     []Record
	fs          FileSystem
	logger      *slog.Logger
	maxAttempts int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFileSystem replaces the file system used for reads and writes.
// Tests use it to inject write or validation failures.
func WithFileSystem(fs FileSystem) Option {
	return func(s *Store) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// New creates an empty store bound to <dir>/<id>.json. It does not touch
// the file system; call Load to read persisted state.
func New(dir, id string, opts ...Option) *Store {
	s := &Store{
		path:        filepath.Join(dir, id+".json"),
		fs:          OSFileSystem{},
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("store", s.path)
	return s
}

// Open creates a store and loads it. A corrupted file is reported as a
// CORRUPTED_STORE error together with nil; use New and Load to recover.
func Open(ctx context.Context, dir, id string, opts ...Option) (*Store, error) {
	s := New(dir, id, opts...)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// NormalizeName returns the canonical (NFC) form of a command name.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// Len returns the number of committed records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Find returns the index of name in store order, or -1.
func (s *Store) Find(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(NormalizeName(name))
}

// Has reports whether a command with name exists.
func (s *Store) Has(name string) bool {
	return s.Find(name) >= 0
}

func (s *Store) find(name string) int {
	for i := range s.records {
		if s.records[i].Name == name {
			return i
		}
	}
	return -1
}

// ListNames returns command names in store order.
//
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ListNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.records))
	for i := range s.records {
		names[i] = s.records[i].Name
	}
	return names
}

// Payload returns a copy of the payload stored under name.
func (s *Store) Payload(name string) (Payload, error) {
	name = NormalizeName(name)

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.find(name)
	if idx < 0 {
		s.logger.Debug("command data not found", "name", name)
		return nil, NewNotFoundError(name)
	}
	return clonePayload(s.records[idx].Payload), nil
}

// Records returns a copy of every record in store order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = Record{Name: r.Name, Payload: clonePayload(r.Payload)}
	}
	return out
}

func clonePayload(p Payload) Payload {
	if p == nil {
		return Payload{}
	}
	out := make(Payload, len(p))
	copy(out, p)
	return out
}
