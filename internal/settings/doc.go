// Package settings provides SQLite-backed storage for the operator-facing
// device settings surface and the notification journal.
//
// Two tables live in one database shared by every device:
//   - slot_settings: the per-device "slot0".."slotN" key/value mapping that
//     the operator edits and the slot synchronizer mirrors
//   - journal: an append-only record of notifications emitted by devices
//     (learn results, prompts, command-sent events)
//
// # Ordering
//
// Journal rows carry a seq INTEGER stamped from a logical clock that is
// resumed from MAX(seq) when the database is opened. Reads order by
// seq ASC, id ASC so history is stable regardless of wall time.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//
// The store is safe for use by several devices at once; rows are always
// scoped by device_id.
package settings
