package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const testDeviceID = "34ea34b4c5d6"

// createTestStore creates an empty store under t.TempDir().
func createTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), dir, testDeviceID, opts...)
	require.NoError(t, err)
	return s, dir
}

// writeCommandFile writes raw content as the backing file of testDeviceID.
func writeCommandFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, testDeviceID+".json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

var errInjected = errors.New("injected failure")

// faultyFS wraps OSFileSystem and injects failures on temp file operations.
type faultyFS struct {
	OSFileSystem

	mu           sync.Mutex
	failWrites   int  // number of WriteFile calls to fail
	truncate     bool // write only half of every temp file
	dropLast     bool // write every temp file as valid JSON minus its last record
	failRenames  int  // number of Rename calls to fail
	writeCalls   int
	renameCalls  int
	removedPaths []string
}

func (f *faultyFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	f.mu.Lock()
	f.writeCalls++
	fail := f.failWrites > 0
	if fail {
		f.failWrites--
	}
	truncate := f.truncate
	dropLast := f.dropLast
	f.mu.Unlock()

	if fail {
		return errInjected
	}
	if truncate && strings.HasSuffix(name, ".tmp") {
		data = data[:len(data)/2]
	}
	if dropLast && strings.HasSuffix(name, ".tmp") {
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return err
		}
		if len(records) > 0 {
			records = records[:len(records)-1]
		}
		short, err := json.Marshal(records)
		if err != nil {
			return err
		}
		data = short
	}
	return f.OSFileSystem.WriteFile(name, data, perm)
}

func (f *faultyFS) Rename(oldpath, newpath string) error {
	f.mu.Lock()
	f.renameCalls++
	fail := f.failRenames > 0
	if fail {
		f.failRenames--
	}
	f.mu.Unlock()

	if fail {
		return errInjected
	}
	return f.OSFileSystem.Rename(oldpath, newpath)
}

func (f *faultyFS) Remove(name string) error {
	f.mu.Lock()
	f.removedPaths = append(f.removedPaths, name)
	f.mu.Unlock()
	return f.OSFileSystem.Remove(name)
}
