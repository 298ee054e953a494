package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/aline/internal/storage"
)

// setupTestStorage creates an in-memory SQLite database for testing
func setupTestStorage(t testing.TB) storage.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")

	return store
}

// createTestFile creates a file below dir for testing
func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	err := os.MkdirAll(filepath.Dir(filePath), 0755)
	require.NoError(t, err)

	err = os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(t, err)

	return filePath
}

// storedLines returns the text of every stored line of a file
func storedLines(t *testing.T, store storage.Storage, path string) []string {
	t.Helper()
	ctx := context.Background()

	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	s, err := store.GetStream(ctx, filepath.ToSlash(abs))
	require.NoError(t, err)

	lines, err := store.ListLines(ctx, s.ID, 0, 0)
	require.NoError(t, err)

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l.Content)
	}
	return out
}

// TestNew verifies indexer initialization
func TestNew(t *testing.T) {
	store := setupTestStorage(t)
	defer store.Close()

	idx := New(store)

	assert.NotNil(t, idx)
	assert.NotNil(t, idx.storage)
	assert.Equal(t, runtime.NumCPU(), idx.workers)
	assert.False(t, idx.Indexing())
}

func TestDiscoverFiles(t *testing.T) {
	tmpDir := t.TempDir()

	createTestFile(t, tmpDir, "app.log", "a\n")
	createTestFile(t, tmpDir, "sub/db.log", "b\n")
	createTestFile(t, tmpDir, "sub/notes.txt", "c\n")
	createTestFile(t, tmpDir, ".git/HEAD", "ref\n")
	createTestFile(t, tmpDir, "sub/.cache/x.log", "d\n")

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    int
	}{
		{"everything visible", nil, nil, 3},
		{"include logs", []string{"*.log"}, nil, 2},
		{"exclude logs", nil, []string{"*.log"}, 1},
		{"include and exclude", []string{"*.log"}, []string{"db.*"}, 1},
		{"no match", []string{"*.csv"}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := discoverFiles(tmpDir, &Config{Include: tt.include, Exclude: tt.exclude})
			require.NoError(t, err)
			assert.Len(t, files, tt.want)
		})
	}
}

func TestDiscoverFiles_SkipsSymlinks(t *testing.T) {
	tmpDir := t.TempDir()
	target := createTestFile(t, tmpDir, "real.txt", "x\n")
	if err := os.Symlink(target, filepath.Join(tmpDir, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files, err := discoverFiles(tmpDir, &Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{target}, files)
}

func TestComputeFileHash(t *testing.T) {
	tmpDir := t.TempDir()
	a := createTestFile(t, tmpDir, "a.txt", "same\n")
	b := createTestFile(t, tmpDir, "b.txt", "same\n")
	c := createTestFile(t, tmpDir, "c.txt", "different\n")

	hashA, sizeA, err := computeFileHash(a)
	require.NoError(t, err)
	hashB, _, err := computeFileHash(b)
	require.NoError(t, err)
	hashC, _, err := computeFileHash(c)
	require.NoError(t, err)

	assert.Equal(t, int64(5), sizeA)
	assert.Equal(t, hashA, hashB)
	assert.NotEqual(t, hashA, hashC)

	_, _, err = computeFileHash(filepath.Join(tmpDir, "missing"))
	assert.Error(t, err)
}

func TestReadLines_SmallReads(t *testing.T) {
	content := "first line\nsecond\n\nlast without newline"

	// Read sizes below, at and above the line lengths
	for _, size := range []int{1, 3, 7, 11, 4096} {
		t.Run(fmt.Sprintf("read_%d", size), func(t *testing.T) {
			lines, err := readLines(strings.NewReader(content), []byte("\n"), size)
			require.NoError(t, err)
			require.Len(t, lines, 4)

			want := []string{"first line\n", "second\n", "\n", "last without newline"}
			var offset int64
			for i, l := range lines {
				assert.Equal(t, want[i], string(l.Content))
				assert.Equal(t, i+1, l.Number)
				assert.Equal(t, offset, l.Offset)
				offset = l.End()
			}
			assert.True(t, lines[2].Terminated)
			assert.False(t, lines[3].Terminated)
		})
	}
}

func TestReadLines_MultiByteSeparator(t *testing.T) {
	lines, err := readLines(strings.NewReader("a\r\nb\r\nc"), []byte("\r\n"), 1)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "a\r\n", string(lines[0].Content))
	assert.Equal(t, "b\r\n", string(lines[1].Content))
	assert.Equal(t, "c", string(lines[2].Content))
}

func TestReadLines_Empty(t *testing.T) {
	lines, err := readLines(strings.NewReader(""), []byte("\n"), 16)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestIndexPath_Success(t *testing.T) {
	tmpDir := t.TempDir()
	app := createTestFile(t, tmpDir, "app.log", "INFO start\nERROR boom\nINFO stop")
	createTestFile(t, tmpDir, "sub/other.log", "one\ntwo\n")

	store := setupTestStorage(t)
	defer store.Close()

	idx := New(store)
	stats, err := idx.IndexPath(context.Background(), tmpDir, &Config{Workers: 2, ReadSize: 4})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesSkipped)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 5, stats.LinesStored)
	assert.Equal(t, int64(39), stats.BytesRead)
	assert.Empty(t, stats.ErrorMessages)
	assert.False(t, idx.Indexing())

	assert.Equal(t, []string{"INFO start\n", "ERROR boom\n", "INFO stop"}, storedLines(t, store, app))

	abs, _ := filepath.Abs(app)
	s, err := store.GetStream(context.Background(), filepath.ToSlash(abs))
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalLines)
	assert.True(t, s.Unterminated)
	assert.Equal(t, []byte("\n"), s.Separator)
	assert.False(t, s.LastIndexedAt.IsZero())

	// Stored lines are searchable
	results, err := store.SearchLines(context.Background(), "boom", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Line.LineNumber)
}

func TestIndexPath_SingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := createTestFile(t, tmpDir, "only.txt", "x\ny\n")

	store := setupTestStorage(t)
	defer store.Close()

	stats, err := New(store).IndexPath(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, []string{"x\n", "y\n"}, storedLines(t, store, path))
}

func TestIndexPath_EmptyDirectory(t *testing.T) {
	store := setupTestStorage(t)
	defer store.Close()

	stats, err := New(store).IndexPath(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesIndexed)
	assert.Equal(t, 0, stats.LinesStored)
}

func TestIndexPath_MissingRoot(t *testing.T) {
	store := setupTestStorage(t)
	defer store.Close()

	_, err := New(store).IndexPath(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestIndexPath_IncrementalUpdate(t *testing.T) {
	tmpDir := t.TempDir()
	a := createTestFile(t, tmpDir, "a.txt", "one\ntwo\n")
	createTestFile(t, tmpDir, "b.txt", "three\n")

	store := setupTestStorage(t)
	defer store.Close()

	idx := New(store)
	ctx := context.Background()

	stats, err := idx.IndexPath(ctx, tmpDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)

	// Nothing changed
	stats, err = idx.IndexPath(ctx, tmpDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesIndexed)
	assert.Equal(t, 2, stats.FilesSkipped)

	// Rewrite one file with fewer lines
	createTestFile(t, tmpDir, "a.txt", "replaced\n")
	stats, err = idx.IndexPath(ctx, tmpDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, []string{"replaced\n"}, storedLines(t, store, a))

	// A different separator forces a re-index
	stats, err = idx.IndexPath(ctx, tmpDir, &Config{Separator: []byte("e")})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, []string{"re", "place", "d\n"}, storedLines(t, store, a))
}

func TestIndexPath_MaxFileBytes(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "small.txt", "ok\n")
	createTestFile(t, tmpDir, "big.txt", strings.Repeat("x", 100)+"\n")

	store := setupTestStorage(t)
	defer store.Close()

	stats, err := New(store).IndexPath(context.Background(), tmpDir, &Config{MaxFileBytes: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
}

func TestIndexPath_UnreadableFile(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "ok.txt", "fine\n")
	locked := createTestFile(t, tmpDir, "locked.txt", "secret\n")
	require.NoError(t, os.Chmod(locked, 0))

	store := setupTestStorage(t)
	defer store.Close()

	stats, err := New(store).IndexPath(context.Background(), tmpDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesFailed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "locked.txt")
}

func TestIndexPath_BatchProcessing(t *testing.T) {
	tmpDir := t.TempDir()
	for i := 0; i < 25; i++ {
		createTestFile(t, tmpDir, fmt.Sprintf("file%02d.txt", i), fmt.Sprintf("line %d\nmore %d\n", i, i))
	}

	store := setupTestStorage(t)
	defer store.Close()

	stats, err := New(store).IndexPath(context.Background(), tmpDir, &Config{Workers: 4, BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 25, stats.FilesIndexed)
	assert.Equal(t, 50, stats.LinesStored)

	streams, err := store.ListStreams(context.Background())
	require.NoError(t, err)
	assert.Len(t, streams, 25)
}

func TestIndexPath_ConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "zero workers", config: &Config{Workers: 0}},
		{name: "negative batch size", config: &Config{Workers: 1, BatchSize: -1}},
		{name: "negative read size", config: &Config{ReadSize: -5}},
		{name: "bad glob", config: &Config{Include: []string{"["}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			createTestFile(t, tmpDir, "main.txt", "hello\n")

			store := setupTestStorage(t)
			defer store.Close()

			stats, err := New(store).IndexPath(context.Background(), tmpDir, tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, stats.FilesIndexed)
		})
	}
}

func TestIndexPath_ConcurrentCalls(t *testing.T) {
	store := setupTestStorage(t)
	defer store.Close()

	idx := New(store)
	require.True(t, idx.lock.TryAcquire())
	assert.True(t, idx.Indexing())

	_, err := idx.IndexPath(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrIndexingInProgress)

	idx.lock.Release()
	_, err = idx.IndexPath(context.Background(), t.TempDir(), nil)
	assert.NoError(t, err)
}

func TestIndexPath_ContextCancellation(t *testing.T) {
	tmpDir := t.TempDir()
	for i := 0; i < 50; i++ {
		createTestFile(t, tmpDir, fmt.Sprintf("file%d.txt", i), "data\n")
	}

	store := setupTestStorage(t)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(store).IndexPath(ctx, tmpDir, &Config{Workers: 1, BatchSize: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetryWithBackoff(t *testing.T) {
	config := RetryConfig{
		MaxRetries: 4,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
		Multiplier: 2,
		Retryable:  isLockError,
	}
	ctx := context.Background()

	t.Run("succeeds after lock errors", func(t *testing.T) {
		calls := 0
		got, err := retryWithBackoff(ctx, config, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("database is locked (5) (SQLITE_BUSY)")
			}
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := retryWithBackoff(ctx, config, func() (int, error) {
			calls++
			return 0, errors.New("database is locked")
		})
		assert.Error(t, err)
		assert.Equal(t, 4, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		_, err := retryWithBackoff(ctx, config, func() (int, error) {
			calls++
			return 0, errors.New("constraint failed")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := retryWithBackoff(cctx, config, func() (int, error) {
			return 0, errors.New("database is locked")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// TestIndexLock_ConcurrentAcquisition tests IndexLock behavior under concurrent access
func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	var lock IndexLock
	const numGoroutines = 100

	acquired := make([]bool, numGoroutines)
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(idx int) {
			defer wg.Done()
			acquired[idx] = lock.TryAcquire()
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, success := range acquired {
		if success {
			successCount++
		}
	}
	assert.Equal(t, 1, successCount, "Exactly one goroutine should acquire the lock")

	lock.Release()
	assert.True(t, lock.TryAcquire(), "Lock should be available after Release")
	lock.Release()
}
