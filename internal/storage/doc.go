// Package storage provides SQLite-based persistence for realigned streams.
//
// Every stream that passes through the readline-mode engine can be stored
// line by line. The storage layer manages:
//   - Stream metadata (name, source, separator, content hash)
//   - Lines with their number, byte offset and termination flag
//   - A full-text search index over line text
//
// # Database Schema
//
// Tables:
//   - schema_version: Applied migrations
//   - streams: One row per stream, unique by name
//   - lines: Line content (BLOB) and text, unique by (stream_id, line_number)
//   - lines_fts: FTS5 external-content index over lines.text, kept in sync by triggers
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.aline/lines.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	stream := &storage.Stream{Name: "app.log", Separator: []byte("\n")}
//	if err := db.CreateStream(ctx, stream); err != nil {
//	    return err
//	}
//	_, err = db.AppendLines(ctx, stream.ID, lines)
//
// # Transactions
//
// Use transactions for atomic operations:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_, _ = tx.DeleteLines(ctx, stream.ID)
//	_, _ = tx.AppendLines(ctx, stream.ID, lines)
//
//	return tx.Commit()
//
// The connection pool holds a single connection, so calls on the parent
// Storage block while a transaction is open.
//
// # Search
//
// SearchLines runs a BM25 query against lines_fts. Free text is split on
// whitespace and every term is quoted, so FTS5 operators in user input are
// matched literally. Lower scores rank first.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go, FTS5 built in). Build
// with -tags "sqlite_cgo,fts5" to use github.com/mattn/go-sqlite3 instead.
//
// # Migrations
//
// Schema versions are semver strings compared with Masterminds/semver.
// ApplyMigrations runs every migration newer than the recorded version and
// RollbackMigration reverts the newest one.
package storage
