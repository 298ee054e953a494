package indexer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/aline/internal/storage"
	"github.com/dshills/aline/internal/stream"
	"github.com/dshills/aline/pkg/types"
)

const (
	// DefaultBatchSize is the number of files committed per transaction
	DefaultBatchSize = 20
	// DefaultReadSize is the size of each read fed to the engine
	DefaultReadSize = 4096
	// DefaultMaxFileBytes is the largest file indexed by default
	DefaultMaxFileBytes = 16 << 20
)

// ErrFileTooLarge marks files skipped because they exceed Config.MaxFileBytes
var ErrFileTooLarge = errors.New("file exceeds size limit")

// Indexer coordinates the indexing pipeline: read -> align -> store
type Indexer struct {
	storage storage.Storage
	retry   RetryConfig
	lock    IndexLock

	// Worker pool configuration
	workers int
}

// Config contains configuration for the indexer
type Config struct {
	Workers      int      // Number of concurrent readers (default: runtime.NumCPU())
	BatchSize    int      // Number of files to commit per transaction (default: 20)
	ReadSize     int      // Bytes per read fed to the engine (default: 4096)
	MaxFileBytes int64    // Files larger than this are skipped (default: 16 MiB)
	Separator    []byte   // Line separator (default: "\n")
	Include      []string // Base-name globs; empty means every file
	Exclude      []string // Base-name globs skipped even when included
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() *Config {
	return &Config{
		Workers:      runtime.NumCPU(),
		BatchSize:    DefaultBatchSize,
		ReadSize:     DefaultReadSize,
		MaxFileBytes: DefaultMaxFileBytes,
		Separator:    []byte(types.DefaultSeparator),
	}
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	LinesStored   int
	BytesRead     int64
	Duration      time.Duration
	ErrorMessages []string
}

// fileResult is one aligned file waiting to be written
type fileResult struct {
	name       string
	sourcePath string
	hash       [32]byte
	size       int64
	lines      []*types.Line
	existing   *storage.Stream
}

// New creates a new Indexer instance
func New(store storage.Storage) *Indexer {
	return &Indexer{
		storage: store,
		retry:   DefaultRetryConfig(),
		workers: runtime.NumCPU(),
	}
}

// IndexPath indexes every matching file below root. Unchanged files are
// skipped by content hash.
func (idx *Indexer) IndexPath(ctx context.Context, root string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	config, err := normalizeConfig(config)
	if err != nil {
		return nil, err
	}
	idx.workers = config.Workers

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}

	// A single file is indexed as a root of its own
	var files []string
	if info.IsDir() {
		files, err = discoverFiles(absRoot, config)
		if err != nil {
			return nil, fmt.Errorf("failed to discover files: %w", err)
		}
	} else {
		files = []string{absRoot}
	}

	known, err := idx.knownStreams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load streams: %w", err)
	}

	if err := idx.indexFiles(ctx, absRoot, files, known, config, stats); err != nil {
		return nil, fmt.Errorf("failed to index files: %w", err)
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// Indexing reports whether an IndexPath run is active
func (idx *Indexer) Indexing() bool {
	return idx.lock.Held()
}

// normalizeConfig fills zero values with defaults and validates globs
func normalizeConfig(config *Config) (*Config, error) {
	defaults := DefaultConfig()
	if config == nil {
		return defaults, nil
	}

	c := *config
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.ReadSize <= 0 {
		c.ReadSize = defaults.ReadSize
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = defaults.MaxFileBytes
	}
	if len(c.Separator) == 0 {
		c.Separator = defaults.Separator
	}
	for _, pattern := range append(append([]string{}, c.Include...), c.Exclude...) {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
	}
	return &c, nil
}

// knownStreams maps stream names to their stored records
func (idx *Indexer) knownStreams(ctx context.Context) (map[string]*storage.Stream, error) {
	streams, err := idx.storage.ListStreams(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]*storage.Stream, len(streams))
	for _, s := range streams {
		known[s.Name] = s
	}
	return known, nil
}

// discoverFiles finds all regular files below rootPath that match the config
func discoverFiles(rootPath string, config *Config) ([]string, error) {
	var files []string

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			// Skip hidden directories
			if path != rootPath && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks, devices and sockets are not streams
		if !info.Mode().IsRegular() {
			return nil
		}

		if !matchesConfig(info.Name(), config) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// matchesConfig applies the include and exclude globs to a base name
func matchesConfig(name string, config *Config) bool {
	for _, pattern := range config.Exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return false
		}
	}
	if len(config.Include) == 0 {
		return true
	}
	for _, pattern := range config.Include {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// indexFiles aligns files concurrently and writes them in batches. Readers
// never touch the database; a single writer owns the transactions.
func (idx *Indexer) indexFiles(ctx context.Context, root string, files []string,
	known map[string]*storage.Stream, config *Config, stats *Statistics) error {

	// Create worker pool with semaphore
	semaphore := make(chan struct{}, idx.workers)

	// Track progress with atomic counters
	var (
		indexed   int32
		skipped   int32
		failed    int32
		lines     int64
		bytesRead int64
	)

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // Protect stats.ErrorMessages
	results := make(chan *fileResult, config.BatchSize)

	recordFailure := func(path string, err error) {
		atomic.AddInt32(&failed, 1)
		mu.Lock()
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
		mu.Unlock()
	}

	// Writer, started first so readers never block on a full channel
	g.Go(func() error {
		batch := make([]*fileResult, 0, config.BatchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, err := retryWithBackoff(gctx, idx.retry, func() (int, error) {
				return idx.writeBatch(gctx, batch, config.Separator)
			})
			if err != nil {
				return err
			}
			atomic.AddInt32(&indexed, int32(len(batch)))
			atomic.AddInt64(&lines, int64(n))
			batch = batch[:0]
			return nil
		}

		for res := range results {
			batch = append(batch, res)
			if len(batch) >= config.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})

	// Readers
	var readers sync.WaitGroup
	for _, path := range files {
		select {
		case <-gctx.Done():
		case semaphore <- struct{}{}:
			// Acquire semaphore
		}
		if gctx.Err() != nil {
			break
		}

		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			defer func() { <-semaphore }() // Release semaphore

			res, err := idx.alignFile(root, path, known, config)
			if errors.Is(err, errSkip) || errors.Is(err, ErrFileTooLarge) {
				atomic.AddInt32(&skipped, 1)
				return nil
			}
			if err != nil {
				// Continue with other files
				recordFailure(path, err)
				return nil
			}
			atomic.AddInt64(&bytesRead, res.size)

			select {
			case results <- res:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	go func() {
		readers.Wait()
		close(results)
	}()

	// Wait for all goroutines to complete
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return err
	}

	// Update statistics
	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)
	stats.FilesFailed = int(failed)
	stats.LinesStored = int(lines)
	stats.BytesRead = bytesRead

	return nil
}

// errSkip marks files whose stored copy is current
var errSkip = errors.New("unchanged")

// alignFile hashes a file and, when it changed, splits it into lines
func (idx *Indexer) alignFile(root, path string, known map[string]*storage.Stream, config *Config) (*fileResult, error) {
	name := streamName(root, path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > config.MaxFileBytes {
		return nil, ErrFileTooLarge
	}

	// Compute file hash
	hash, size, err := computeFileHash(path)
	if err != nil {
		return nil, err
	}

	existing := known[name]
	if existing != nil && existing.ContentHash == hash && bytes.Equal(existing.Separator, config.Separator) {
		return nil, errSkip
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	lines, err := readLines(f, config.Separator, config.ReadSize)
	if err != nil {
		return nil, err
	}

	return &fileResult{
		name:       name,
		sourcePath: path,
		hash:       hash,
		size:       size,
		lines:      lines,
		existing:   existing,
	}, nil
}

// readLines streams r through a readline-mode engine in fixed-size reads
func readLines(r io.Reader, separator []byte, readSize int) ([]*types.Line, error) {
	var lines []*types.Line
	var offset int64

	w, err := stream.NewEmitWriter(func(chunk []byte) error {
		// Emissions may alias the read buffer
		line := types.NewLine(len(lines)+1, offset, bytes.Clone(chunk), separator)
		lines = append(lines, line)
		offset = line.End()
		return nil
	}, types.Options{Separator: separator, Readline: true})
	if err != nil {
		return nil, err
	}

	// Hide any WriterTo on r so every read really is readSize bytes
	buf := make([]byte, readSize)
	if _, err := io.CopyBuffer(w, struct{ io.Reader }{r}, buf); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return lines, nil
}

// writeBatch stores a batch of files within one transaction and returns the
// number of lines written
func (idx *Indexer) writeBatch(ctx context.Context, batch []*fileResult, separator []byte) (int, error) {
	// Start a transaction for this batch
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	total := 0
	for _, res := range batch {
		n, err := writeFile(ctx, tx, res, separator)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", res.name, err)
		}
		total += n
	}

	// Commit the batch
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return total, nil
}

// writeFile replaces the stored lines of one stream
func writeFile(ctx context.Context, tx storage.Tx, res *fileResult, separator []byte) (int, error) {
	rec := &storage.Stream{
		Name:          res.name,
		SourcePath:    res.sourcePath,
		Separator:     separator,
		ContentHash:   res.hash,
		SizeBytes:     res.size,
		TotalLines:    len(res.lines),
		Unterminated:  len(res.lines) > 0 && !res.lines[len(res.lines)-1].Terminated,
		LastIndexedAt: time.Now(),
	}

	if res.existing != nil {
		rec.ID = res.existing.ID
		if _, err := tx.DeleteLines(ctx, rec.ID); err != nil {
			return 0, fmt.Errorf("failed to delete old lines: %w", err)
		}
		if err := tx.UpdateStream(ctx, rec); err != nil {
			return 0, fmt.Errorf("failed to update stream: %w", err)
		}
	} else if err := tx.CreateStream(ctx, rec); err != nil {
		return 0, fmt.Errorf("failed to create stream: %w", err)
	}

	stored := make([]*storage.Line, len(res.lines))
	for i, l := range res.lines {
		stored[i] = storage.FromTypesLine(l, rec.ID, separator)
	}
	n, err := tx.AppendLines(ctx, rec.ID, stored)
	if err != nil {
		return 0, fmt.Errorf("failed to store lines: %w", err)
	}
	return n, nil
}

// streamName is the stored name of a file: its slash-separated absolute path
func streamName(root, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// computeFileHash computes SHA-256 hash and size of a file
func computeFileHash(filePath string) ([32]byte, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer func() { _ = file.Close() }()

	// Compute hash
	hash := sha256.New()
	n, err := io.Copy(hash, file)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var result [32]byte
	copy(result[:], hash.Sum(nil))

	return result, n, nil
}
