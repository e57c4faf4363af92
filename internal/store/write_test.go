package store

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_AlreadyExists(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	require.NoError(t, s.Add(ctx, "tv", Payload{1}))
	err := s.Add(ctx, "tv", Payload{2})
	require.Error(t, err)
	assert.True(t, IsNameCollision(err))

	p, err := s.Payload("tv")
	require.NoError(t, err)
	assert.Equal(t, Payload{1}, p, "existing payload must be untouched")
	assert.Equal(t, 1, s.Len())
}

func TestAdd_EmptyName(t *testing.T) {
	s, _ := createTestStore(t)

	err := s.Add(context.Background(), "", Payload{1})
	assert.True(t, IsInvalidName(err))
	assert.Equal(t, 0, s.Len())
}

func TestAdd_CopiesPayload(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	p := Payload{1, 2, 3}
	require.NoError(t, s.Add(ctx, "a", p))
	p[0] = 42

	got, err := s.Payload("a")
	require.NoError(t, err)
	assert.Equal(t, Payload{1, 2, 3}, got)
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	s, dir := createTestStore(t)

	require.NoError(t, s.Add(ctx, "cmd1", Payload{1}))
	require.NoError(t, s.Add(ctx, "cmd2", Payload{2}))
	require.NoError(t, s.Rename(ctx, "cmd1", "tv-on"))

	assert.Equal(t, []string{"tv-on", "cmd2"}, s.ListNames(), "rename keeps position")

	reopened, err := Open(ctx, dir, testDeviceID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tv-on", "cmd2"}, reopened.ListNames())
}

func TestRename_Collision(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	require.NoError(t, s.Add(ctx, "a", Payload{1}))
	require.NoError(t, s.Add(ctx, "b", Payload{2}))

	err := s.Rename(ctx, "a", "b")
	require.Error(t, err)
	assert.True(t, IsNameCollision(err))

	pa, err := s.Payload("a")
	require.NoError(t, err)
	pb, err := s.Payload("b")
	require.NoError(t, err)
	assert.Equal(t, Payload{1}, pa)
	assert.Equal(t, Payload{2}, pb)
}

func TestRename_NotFound(t *testing.T) {
	s, _ := createTestStore(t)

	err := s.Rename(context.Background(), "missing", "new")
	assert.True(t, IsNotFound(err))
}

func TestRename_SameName(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)
	require.NoError(t, s.Add(ctx, "a", Payload{1}))

	assert.NoError(t, s.Rename(ctx, "a", "a"))
	assert.True(t, IsNotFound(s.Rename(ctx, "zz", "zz")))
}

func TestRename_EmptyTarget(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)
	require.NoError(t, s.Add(ctx, "a", Payload{1}))

	assert.True(t, IsInvalidName(s.Rename(ctx, "a", "")))
	assert.True(t, s.Has("a"))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s, dir := createTestStore(t)

	require.NoError(t, s.Add(ctx, "a", Payload{1}))
	require.NoError(t, s.Add(ctx, "b", Payload{2}))
	require.NoError(t, s.Add(ctx, "c", Payload{3}))
	require.NoError(t, s.Delete(ctx, "b"))

	assert.Equal(t, []string{"a", "c"}, s.ListNames())

	reopened, err := Open(ctx, dir, testDeviceID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, reopened.ListNames())
}

func TestDelete_AbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	fs := &faultyFS{}
	s, _ := createTestStore(t, WithFileSystem(fs))

	assert.NoError(t, s.Delete(ctx, "missing"))
	assert.Equal(t, 0, fs.writeCalls, "no-op delete must not write")
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, dir := createTestStore(t)

	require.NoError(t, s.Add(ctx, "a", Payload{1}))
	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, 0, s.Len())
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "backing file must be removed")

	reopened, err := Open(ctx, dir, testDeviceID)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Len())
}

func TestClear_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
}

func TestClear_PersistFailureStillRemovesFile(t *testing.T) {
	ctx := context.Background()
	fs := &faultyFS{}
	s, _ := createTestStore(t, WithFileSystem(fs))
	require.NoError(t, s.Add(ctx, "a", Payload{1}))

	fs.failWrites = DefaultMaxAttempts
	require.NoError(t, s.Clear(ctx))

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestPersist_EmptyStoreIsValid(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	require.NoError(t, s.Add(ctx, "a", Payload{1}))
	require.NoError(t, s.Delete(ctx, "a"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestPersist_RetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	fs := &faultyFS{failWrites: DefaultMaxAttempts - 1}
	s, dir := createTestStore(t, WithFileSystem(fs))

	require.NoError(t, s.Add(ctx, "a", Payload{1}))
	assert.Equal(t, DefaultMaxAttempts, fs.writeCalls)

	reopened, err := Open(ctx, dir, testDeviceID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, reopened.ListNames())
}

// Atomic persistence: a failure during temp-file write, validation or
// rename leaves the committed file byte-for-byte unchanged.
func TestPersist_FailureLeavesCommittedFileUnchanged(t *testing.T) {
	cases := map[string]func(fs *faultyFS){
		"write fails":     func(fs *faultyFS) { fs.failWrites = DefaultMaxAttempts },
		"truncated write": func(fs *faultyFS) { fs.truncate = true },
		"record dropped":  func(fs *faultyFS) { fs.dropLast = true },
		"rename fails":    func(fs *faultyFS) { fs.failRenames = DefaultMaxAttempts },
	}

	for name, inject := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			fs := &faultyFS{}
			s, _ := createTestStore(t, WithFileSystem(fs))

			require.NoError(t, s.Add(ctx, "a", Payload{1, 2, 3}))
			before, err := os.ReadFile(s.Path())
			require.NoError(t, err)

			inject(fs)
			err = s.Add(ctx, "b", Payload{4, 5, 6})
			require.Error(t, err)
			assert.True(t, IsPersistenceFailure(err), "got %v", err)

			after, err := os.ReadFile(s.Path())
			require.NoError(t, err)
			assert.Equal(t, before, after)

			_, err = os.Stat(s.Path() + ".tmp")
			assert.True(t, os.IsNotExist(err), "temp file must be cleaned up")

			assert.Equal(t, []string{"a"}, s.ListNames(), "failed add is rolled back")
		})
	}
}

// A temp file that parses but holds fewer records than were written is
// rejected by the record count, never renamed over the live file.
func TestPersist_RecordCountMismatchRejected(t *testing.T) {
	ctx := context.Background()
	fs := &faultyFS{}
	s, _ := createTestStore(t, WithFileSystem(fs))
	require.NoError(t, s.Add(ctx, "a", Payload{1}))
	require.NoError(t, s.Add(ctx, "b", Payload{2}))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	fs.dropLast = true
	err = s.Add(ctx, "c", Payload{3})
	require.Error(t, err)
	assert.True(t, IsPersistenceFailure(err), "got %v", err)
	assert.Contains(t, err.Error(), "2 records, wrote 3")
	assert.Equal(t, DefaultMaxAttempts, fs.writeCalls-2)
	assert.Equal(t, 2, fs.renameCalls, "only the two committed writes were renamed")

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"a", "b"}, s.ListNames())
}

func TestPersist_RenameFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	fs := &faultyFS{}
	s, _ := createTestStore(t, WithFileSystem(fs))
	require.NoError(t, s.Add(ctx, "a", Payload{1}))
	require.NoError(t, s.Add(ctx, "b", Payload{2}))

	fs.failRenames = DefaultMaxAttempts
	assert.True(t, IsPersistenceFailure(s.Rename(ctx, "a", "z")))
	assert.Equal(t, []string{"a", "b"}, s.ListNames())

	fs.failRenames = DefaultMaxAttempts
	assert.True(t, IsPersistenceFailure(s.Delete(ctx, "a")))
	assert.Equal(t, []string{"a", "b"}, s.ListNames())
}

func TestPersist_MaxAttemptsOption(t *testing.T) {
	ctx := context.Background()
	fs := &faultyFS{failWrites: 100}
	s, _ := createTestStore(t, WithFileSystem(fs), WithMaxAttempts(5))

	err := s.Add(ctx, "a", Payload{1})
	assert.True(t, IsPersistenceFailure(err))
	assert.Equal(t, 5, fs.writeCalls)
}

func TestPersist_CancelledContext(t *testing.T) {
	s, _ := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Add(ctx, "a", Payload{1})
	assert.True(t, IsPersistenceFailure(err))
	assert.Equal(t, 0, s.Len())
}

// Uniqueness: no sequence of add/rename calls produces two records with the
// same name, in memory or on disk.
func TestUniqueness_RandomOperations(t *testing.T) {
	ctx := context.Background()
	s, dir := createTestStore(t)
	rng := rand.New(rand.NewSource(42))
	names := []string{"a", "b", "c", "d", "e"}

	for i := 0; i < 200; i++ {
		n1 := names[rng.Intn(len(names))]
		n2 := names[rng.Intn(len(names))]
		switch rng.Intn(3) {
		case 0:
			_ = s.Add(ctx, n1, Payload{byte(i)})
		case 1:
			_ = s.Rename(ctx, n1, n2)
		case 2:
			_ = s.Delete(ctx, n1)
		}

		seen := map[string]bool{}
		for _, n := range s.ListNames() {
			require.False(t, seen[n], "duplicate %q after op %d", n, i)
			seen[n] = true
		}
	}

	reopened, err := Open(ctx, dir, testDeviceID)
	require.NoError(t, err)
	assert.Equal(t, s.ListNames(), reopened.ListNames())
}

func TestConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Add(ctx, fmt.Sprintf("cmd%d", i), Payload{byte(i)}))
	}

	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				_ = s.ListNames()
				_, _ = s.Payload("cmd3")
			}
		}()
	}
	require.NoError(t, s.Add(ctx, "late", Payload{1}))
	for g := 0; g < 4; g++ {
		<-done
	}
	assert.Equal(t, 11, s.Len())
}
