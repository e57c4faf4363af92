package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// Load replaces the in-memory records with the persisted snapshot.
//
// A missing or inaccessible file leaves the store empty and returns nil.
// An unparseable file leaves the store empty and returns a CORRUPTED_STORE
// error so the caller can Discard it. Duplicate names in the file are
// dropped, first occurrence wins.
func (s *Store) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("load commands: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil

	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			s.logger.Debug("command file does not exist or no access", "error", err)
			return nil
		}
		return fmt.Errorf("load commands: %w", err)
	}

	records, err := unmarshalRecords(data)
	if err != nil {
		s.logger.Warn("command file parse failed", "error", err)
		return newCorruptedError(s.path, err)
	}

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		r.Name = NormalizeName(r.Name)
		if seen[r.Name] {
			s.logger.Warn("dropping duplicate command on load", "name", r.Name)
			continue
		}
		seen[r.Name] = true
		s.records = append(s.records, r)
	}

	s.logger.Debug("commands loaded", "count", len(s.records))
	return nil
}
