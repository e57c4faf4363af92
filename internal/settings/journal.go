package settings

import (
	"context"
	"fmt"
	"time"
)

// Entry is one journal row.
type Entry struct {
	Seq       int64
	DeviceID  string
	Kind      string
	Message   string
	Token     string
	CreatedAt time.Time
}

// AppendJournal stamps e with the next seq and inserts it.
// CreatedAt defaults to the current time when zero.
func (s *Store) AppendJournal(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	seq := s.nextSeq()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal (device_id, seq, kind, message, token, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		e.DeviceID,
		seq,
		e.Kind,
		e.Message,
		e.Token,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("append journal: %w", err)
	}
	return seq, nil
}

// Journal returns the most recent journal entries of a device in seq order.
// A limit <= 0 returns every entry.
//
// Returns an empty slice (not nil) when the device has no history.
func (s *Store) Journal(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, device_id, kind, message, token, created_at FROM (
			SELECT id, seq, device_id, kind, message, token, created_at
			FROM journal
			WHERE device_id = ?
			ORDER BY seq DESC, id DESC
			LIMIT ?
		)
		ORDER BY seq ASC, id ASC
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.Seq, &e.DeviceID, &e.Kind, &e.Message, &e.Token, &created); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse journal time: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}

	return entries, nil
}
