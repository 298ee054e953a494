// Package indexer stores files line by line using the readline-mode engine.
//
// Every file below a root is read in fixed-size pieces, realigned on the
// configured separator and written to storage as one row per line, so a
// line torn across two reads is always stored whole.
//
// # Basic Usage
//
//	idx := indexer.New(store)
//
//	stats, err := idx.IndexPath(ctx, "/var/log/app", &indexer.Config{
//	    Include: []string{"*.log"},
//	})
//
//	fmt.Printf("Indexed %d files (%d lines) in %v\n",
//	    stats.FilesIndexed, stats.LinesStored, stats.Duration)
//
// # Indexing Pipeline
//
//  1. Discovery: walk the root, skip hidden directories and non-regular
//     files, apply Include and Exclude globs to base names
//  2. Incremental decision: compare SHA-256 content hashes with the stored
//     stream, skip unchanged files
//  3. Align: stream each changed file through stream.NewEmitWriter (parallel)
//  4. Store: a single writer commits batches of files per transaction
//
// # Incremental Indexing
//
//	stats1, _ := idx.IndexPath(ctx, root, nil)
//	// Files: 40 indexed, 0 skipped
//
//	stats2, _ := idx.IndexPath(ctx, root, nil)
//	// Files: 0 indexed, 40 skipped
//
// A stream is also re-indexed when the separator differs from the one it
// was stored with. Changed files have their old lines replaced.
//
// # Concurrency
//
// Readers run in an errgroup bounded by a semaphore of Config.Workers slots.
// They never touch the database. Results flow over a channel to the writer,
// which retries a batch with exponential backoff when SQLite reports lock
// contention.
//
// Only one IndexPath call runs at a time per Indexer; a concurrent call
// fails fast with ErrIndexingInProgress.
//
// # Error Handling
//
// Per-file read errors are collected in Statistics.ErrorMessages and the run
// continues. Storage errors and context cancellation abort the run.
package indexer
