// Package store provides the durable, file-backed command store of a device.
//
// A store is an ordered list of uniquely named binary payloads persisted as a
// single JSON file:
//
//	[{"name":"cmd1","cmd":[38,0,12,...]}, ...]
//
// # Persistence
//
// Every mutation rewrites the full snapshot:
//  1. write <file>.tmp
//  2. read it back and validate structure, names, payload fields and record count
//  3. rename over the live file
//
// The cycle is retried up to DefaultMaxAttempts times. When every attempt
// fails the mutation is not committed: the live file is untouched, the
// in-memory change is rolled back and a PERSISTENCE_FAILURE error is returned.
//
// # Loading
//
//   - missing or inaccessible file: empty store, no error
//   - parseable file: records loaded, payloads coerced to bytes
//   - unparseable file: CORRUPTED_STORE error; callers discard and continue
//
// Names are NFC-normalized at every entry point so visually identical names
// compare equal.
//
// A Store is not meant to be shared between devices.
package store
