package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// Both drivers report it in the message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Stream operations

const streamColumns = `id, name, source_path, separator, content_hash, size_bytes, total_lines,
		       unterminated, last_indexed_at, created_at, updated_at`

// scanStream scans a row selected with streamColumns
func scanStream(scan func(dest ...interface{}) error) (*Stream, error) {
	var stream Stream
	var sourcePath sql.NullString
	var contentHash []byte
	var lastIndexedAt sql.NullTime
	err := scan(
		&stream.ID, &stream.Name, &sourcePath, &stream.Separator, &contentHash,
		&stream.SizeBytes, &stream.TotalLines, &stream.Unterminated,
		&lastIndexedAt, &stream.CreatedAt, &stream.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	stream.SourcePath = sourcePath.String
	copy(stream.ContentHash[:], contentHash)
	if lastIndexedAt.Valid {
		stream.LastIndexedAt = lastIndexedAt.Time
	}
	return &stream, nil
}

// createStreamWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createStreamWithQuerier(ctx context.Context, q querier, stream *Stream) error {
	query := `
		INSERT INTO streams (name, source_path, separator, content_hash, size_bytes, total_lines,
		                     unterminated, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	var lastIndexedAt interface{}
	if !stream.LastIndexedAt.IsZero() {
		lastIndexedAt = stream.LastIndexedAt
	}
	result, err := q.ExecContext(ctx, query,
		stream.Name, stream.SourcePath, stream.Separator, stream.ContentHash[:],
		stream.SizeBytes, stream.TotalLines, stream.Unterminated, lastIndexedAt, now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("stream %q: %w", stream.Name, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	stream.ID = id
	stream.CreatedAt = now
	stream.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateStream(ctx context.Context, stream *Stream) error {
	return s.createStreamWithQuerier(ctx, s.querier(), stream)
}

// getStreamWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getStreamWithQuerier(ctx context.Context, q querier, name string) (*Stream, error) {
	query := `SELECT ` + streamColumns + ` FROM streams WHERE name = ?`
	stream, err := scanStream(q.QueryRowContext(ctx, query, name).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return stream, err
}

func (s *SQLiteStorage) GetStream(ctx context.Context, name string) (*Stream, error) {
	return s.getStreamWithQuerier(ctx, s.querier(), name)
}

// getStreamByIDWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getStreamByIDWithQuerier(ctx context.Context, q querier, streamID int64) (*Stream, error) {
	query := `SELECT ` + streamColumns + ` FROM streams WHERE id = ?`
	stream, err := scanStream(q.QueryRowContext(ctx, query, streamID).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return stream, err
}

func (s *SQLiteStorage) GetStreamByID(ctx context.Context, streamID int64) (*Stream, error) {
	return s.getStreamByIDWithQuerier(ctx, s.querier(), streamID)
}

// updateStreamWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) updateStreamWithQuerier(ctx context.Context, q querier, stream *Stream) error {
	query := `
		UPDATE streams
		SET source_path = ?, separator = ?, content_hash = ?, size_bytes = ?, total_lines = ?,
		    unterminated = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		stream.SourcePath, stream.Separator, stream.ContentHash[:], stream.SizeBytes,
		stream.TotalLines, stream.Unterminated, stream.LastIndexedAt, now, stream.ID)
	if err != nil {
		return fmt.Errorf("failed to update stream: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	stream.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateStream(ctx context.Context, stream *Stream) error {
	return s.updateStreamWithQuerier(ctx, s.querier(), stream)
}

// listStreamsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listStreamsWithQuerier(ctx context.Context, q querier) ([]*Stream, error) {
	query := `SELECT ` + streamColumns + ` FROM streams ORDER BY name`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	streams := make([]*Stream, 0)
	for rows.Next() {
		stream, err := scanStream(rows.Scan)
		if err != nil {
			return nil, err
		}
		streams = append(streams, stream)
	}
	return streams, rows.Err()
}

func (s *SQLiteStorage) ListStreams(ctx context.Context) ([]*Stream, error) {
	return s.listStreamsWithQuerier(ctx, s.querier())
}

// deleteStreamWithQuerier is the internal implementation that uses a querier.
// Lines are removed by the foreign key cascade.
func (s *SQLiteStorage) deleteStreamWithQuerier(ctx context.Context, q querier, streamID int64) error {
	query := `DELETE FROM streams WHERE id = ?`
	_, err := q.ExecContext(ctx, query, streamID)
	return err
}

func (s *SQLiteStorage) DeleteStream(ctx context.Context, streamID int64) error {
	return s.deleteStreamWithQuerier(ctx, s.querier(), streamID)
}

// Line operations

const lineColumns = `l.id, l.stream_id, l.line_number, l.byte_offset, l.content, l.text,
		       l.terminated, l.content_hash, l.created_at`

// lineRow collects the lineColumns of one result row
type lineRow struct {
	line Line
	hash []byte
}

func (r *lineRow) dest(extra ...interface{}) []interface{} {
	dest := []interface{}{
		&r.line.ID, &r.line.StreamID, &r.line.LineNumber, &r.line.ByteOffset, &r.line.Content,
		&r.line.Text, &r.line.Terminated, &r.hash, &r.line.CreatedAt,
	}
	return append(dest, extra...)
}

func (r *lineRow) result() *Line {
	line := r.line
	copy(line.ContentHash[:], r.hash)
	return &line
}

// appendLinesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) appendLinesWithQuerier(ctx context.Context, q querier, streamID int64, lines []*Line) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO lines (stream_id, line_number, byte_offset, content, text, terminated, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stream_id, line_number) DO UPDATE SET
			byte_offset = excluded.byte_offset,
			content = excluded.content,
			text = excluded.text,
			terminated = excluded.terminated,
			content_hash = excluded.content_hash
		RETURNING id
	`
	now := time.Now()
	for _, line := range lines {
		line.StreamID = streamID
		if line.ContentHash == ([32]byte{}) {
			line.ContentHash = line.ToTypesLine().Hash()
		}
		err := q.QueryRowContext(ctx, query,
			streamID, line.LineNumber, line.ByteOffset, line.Content, line.Text,
			line.Terminated, line.ContentHash[:], now).Scan(&line.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to store line %d: %w", line.LineNumber, err)
		}
		line.CreatedAt = now
	}
	return len(lines), nil
}

func (s *SQLiteStorage) AppendLines(ctx context.Context, streamID int64, lines []*Line) (int, error) {
	return s.appendLinesWithQuerier(ctx, s.querier(), streamID, lines)
}

// listLinesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listLinesWithQuerier(ctx context.Context, q querier, streamID int64, offset, limit int) ([]*Line, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT ` + lineColumns + `
		FROM lines l
		WHERE l.stream_id = ?
		ORDER BY l.line_number
		LIMIT ? OFFSET ?
	`
	rows, err := q.QueryContext(ctx, query, streamID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lines := make([]*Line, 0)
	for rows.Next() {
		var row lineRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		lines = append(lines, row.result())
	}
	return lines, rows.Err()
}

func (s *SQLiteStorage) ListLines(ctx context.Context, streamID int64, offset, limit int) ([]*Line, error) {
	return s.listLinesWithQuerier(ctx, s.querier(), streamID, offset, limit)
}

// countLinesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) countLinesWithQuerier(ctx context.Context, q querier, streamID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM lines WHERE stream_id = ?", streamID).Scan(&count)
	return count, err
}

func (s *SQLiteStorage) CountLines(ctx context.Context, streamID int64) (int, error) {
	return s.countLinesWithQuerier(ctx, s.querier(), streamID)
}

// deleteLinesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteLinesWithQuerier(ctx context.Context, q querier, streamID int64) (int, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM lines WHERE stream_id = ?", streamID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete lines: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStorage) DeleteLines(ctx context.Context, streamID int64) (int, error) {
	return s.deleteLinesWithQuerier(ctx, s.querier(), streamID)
}

// Status operations

// getStatusWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier, streamID int64) (*StreamStatus, error) {
	stream, err := s.getStreamByIDWithQuerier(ctx, q, streamID)
	if err != nil {
		return nil, err
	}

	status := &StreamStatus{Stream: stream}

	// Count lines and stored bytes
	var bytesStored sql.NullInt64
	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(LENGTH(content)) FROM lines WHERE stream_id = ?
	`, streamID).Scan(&status.LinesCount, &bytesStored)
	if err != nil {
		return nil, err
	}
	status.BytesStored = bytesStored.Int64

	// Calculate database size
	var pageCount, pageSize int
	err = q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	// Check health status
	var ftsName string
	ftsErr := q.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='lines_fts'").Scan(&ftsName)
	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		FTSIndexBuilt:       ftsErr == nil,
		LineCountConsistent: status.LinesCount == stream.TotalLines,
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, streamID int64) (*StreamStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier(), streamID)
}

// Transaction implementations - delegate to the storage helpers with the
// transaction as querier

func (t *sqliteTx) CreateStream(ctx context.Context, stream *Stream) error {
	return t.storage.createStreamWithQuerier(ctx, t.querier(), stream)
}

func (t *sqliteTx) GetStream(ctx context.Context, name string) (*Stream, error) {
	return t.storage.getStreamWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) GetStreamByID(ctx context.Context, streamID int64) (*Stream, error) {
	return t.storage.getStreamByIDWithQuerier(ctx, t.querier(), streamID)
}

func (t *sqliteTx) UpdateStream(ctx context.Context, stream *Stream) error {
	return t.storage.updateStreamWithQuerier(ctx, t.querier(), stream)
}

func (t *sqliteTx) ListStreams(ctx context.Context) ([]*Stream, error) {
	return t.storage.listStreamsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) DeleteStream(ctx context.Context, streamID int64) error {
	return t.storage.deleteStreamWithQuerier(ctx, t.querier(), streamID)
}

func (t *sqliteTx) AppendLines(ctx context.Context, streamID int64, lines []*Line) (int, error) {
	return t.storage.appendLinesWithQuerier(ctx, t.querier(), streamID, lines)
}

func (t *sqliteTx) ListLines(ctx context.Context, streamID int64, offset, limit int) ([]*Line, error) {
	return t.storage.listLinesWithQuerier(ctx, t.querier(), streamID, offset, limit)
}

func (t *sqliteTx) CountLines(ctx context.Context, streamID int64) (int, error) {
	return t.storage.countLinesWithQuerier(ctx, t.querier(), streamID)
}

func (t *sqliteTx) DeleteLines(ctx context.Context, streamID int64) (int, error) {
	return t.storage.deleteLinesWithQuerier(ctx, t.querier(), streamID)
}

func (t *sqliteTx) GetStatus(ctx context.Context, streamID int64) (*StreamStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier(), streamID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}
