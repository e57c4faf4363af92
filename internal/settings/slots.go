package settings

import (
	"context"
	"fmt"
)

// DeviceSlots is the slot setting surface of a single device.
// It satisfies slots.Mapping.
type DeviceSlots struct {
	store    *Store
	deviceID string
}

// Slots returns the slot setting surface scoped to deviceID.
func (s *Store) Slots(deviceID string) *DeviceSlots {
	return &DeviceSlots{store: s, deviceID: deviceID}
}

// Get returns the value stored under key. Unset keys read as "".
func (d *DeviceSlots) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := d.store.db.QueryRowContext(ctx, `
		SELECT COALESCE(
			(SELECT value FROM slot_settings WHERE device_id = ? AND key = ?),
			''
		)
	`, d.deviceID, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get slot %s: %w", key, err)
	}
	return value, nil
}

// All returns every stored key/value pair of the device.
func (d *DeviceSlots) All(ctx context.Context) (map[string]string, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT key, value FROM slot_settings
		WHERE device_id = ?
		ORDER BY key COLLATE BINARY ASC
	`, d.deviceID)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return values, nil
}

// Set writes all given key/value pairs in a single transaction.
func (d *DeviceSlots) Set(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set slots: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO slot_settings (device_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id, key) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("set slots: prepare: %w", err)
	}
	defer stmt.Close()

	for key, value := range values {
		if _, err := stmt.ExecContext(ctx, d.deviceID, key, value); err != nil {
			return fmt.Errorf("set slot %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set slots: commit: %w", err)
	}
	return nil
}
