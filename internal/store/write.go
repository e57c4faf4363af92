package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// Add appends a new command and persists the store.
//
// Returns a NAME_COLLISION error, without touching the store, when name is
// already taken. The payload is copied.
func (s *Store) Add(ctx context.Context, name string, payload Payload) error {
	name = NormalizeName(name)
	if name == "" {
		return &Error{Code: ErrCodeInvalidName, Message: "command name must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(name) >= 0 {
		s.logger.Debug("command already exists", "name", name)
		return NewNameCollisionError(name)
	}

	prev := s.records
	s.records = append(s.records[:len(s.records):len(s.records)], Record{Name: name, Payload: clonePayload(payload)})

	if err := s.persist(ctx); err != nil {
		s.records = prev
		return fmt.Errorf("add command %s: %w", name, err)
	}

	s.logger.Debug("command added", "name", name, "bytes", len(payload))
	return nil
}

// Rename changes the name of a command in place and persists the store.
//
// Renaming a command to its own name is a no-op. Returns NAME_COLLISION if
// newName is taken by another command and NOT_FOUND if oldName is absent.
func (s *Store) Rename(ctx context.Context, oldName, newName string) error {
	oldName = NormalizeName(oldName)
	newName = NormalizeName(newName)
	if newName == "" {
		return &Error{Code: ErrCodeInvalidName, Message: "command name must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if oldName != newName && s.find(newName) >= 0 {
		s.logger.Debug("rename target already exists", "from", oldName, "to", newName)
		return NewNameCollisionError(newName)
	}

	idx := s.find(oldName)
	if idx < 0 {
		s.logger.Debug("rename source not found", "name", oldName)
		return NewNotFoundError(oldName)
	}
	if oldName == newName {
		return nil
	}

	s.records[idx].Name = newName
	if err := s.persist(ctx); err != nil {
		s.records[idx].Name = oldName
		return fmt.Errorf("rename command %s: %w", oldName, err)
	}

	s.logger.Debug("command renamed", "from", oldName, "to", newName)
	return nil
}

// Delete removes the named command and persists the store.
// Deleting an absent command is a no-op.
func (s *Store) Delete(ctx context.Context, name string) error {
	name = NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.find(name)
	if idx < 0 {
		s.logger.Debug("delete of absent command ignored", "name", name)
		return nil
	}

	prev := s.records
	next := make([]Record, 0, len(s.records)-1)
	next = append(next, s.records[:idx]...)
	next = append(next, s.records[idx+1:]...)
	s.records = next

	if err := s.persist(ctx); err != nil {
		s.records = prev
		return fmt.Errorf("delete command %s: %w", name, err)
	}

	s.logger.Debug("command deleted", "name", name)
	return nil
}

// Clear empties the store, persists the empty snapshot and removes the
// backing file. A missing backing file is not an error.
//
// The store stays empty even if the empty snapshot cannot be written;
// only a failure to remove the file is returned.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	if err := s.persist(ctx); err != nil {
		s.logger.Warn("failed to store commands before deleting", "error", err)
	}

	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear commands: remove %s: %w", s.path, err)
	}

	s.logger.Debug("all commands cleared")
	return nil
}

// Discard drops a corrupted backing file and resets the store to empty.
func (s *Store) Discard(ctx context.Context) error {
	s.logger.Warn("discarding command file")
	return s.Clear(ctx)
}

// persist writes the current records using the write-validate-rename cycle.
// Callers must hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	data, err := marshalRecords(s.records)
	if err != nil {
		return newPersistenceError(s.path, 0, err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return newPersistenceError(s.path, 0, err)
	}

	tmp := s.path + ".tmp"
	want := len(s.records)

	var (
		lastErr  error
		attempts int
	)
	for attempts < s.maxAttempts {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts++

		s.logger.Debug("storing commands", "tmp", tmp, "attempt", attempts)
		lastErr = s.writeValidated(tmp, data, want)
		if lastErr == nil {
			return nil
		}

		s.logger.Warn("storing commands failed", "attempt", attempts, "error", lastErr)
		if err := s.fs.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("cannot remove temp file", "tmp", tmp, "error", err)
		}
	}

	return newPersistenceError(s.path, attempts, lastErr)
}

func (s *Store) writeValidated(tmp string, data []byte, want int) error {
	if err := s.fs.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	written, err := s.fs.ReadFile(tmp)
	if err != nil {
		return fmt.Errorf("read back temp file: %w", err)
	}
	if err := validateSnapshot(written, want); err != nil {
		return err
	}

	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
