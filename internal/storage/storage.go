package storage

import (
	"context"
	"time"

	"github.com/dshills/aline/pkg/types"
)

// Storage defines the interface for persisting and querying aligned lines
type Storage interface {
	// Stream operations
	CreateStream(ctx context.Context, stream *Stream) error
	GetStream(ctx context.Context, name string) (*Stream, error)
	GetStreamByID(ctx context.Context, streamID int64) (*Stream, error)
	UpdateStream(ctx context.Context, stream *Stream) error
	ListStreams(ctx context.Context) ([]*Stream, error)
	DeleteStream(ctx context.Context, streamID int64) error

	// Line operations
	AppendLines(ctx context.Context, streamID int64, lines []*Line) (int, error)
	ListLines(ctx context.Context, streamID int64, offset, limit int) ([]*Line, error)
	CountLines(ctx context.Context, streamID int64) (int, error)
	DeleteLines(ctx context.Context, streamID int64) (deletedCount int, err error)

	// Search operations
	SearchLines(ctx context.Context, query string, limit int, filters *SearchFilters) ([]*SearchResult, error)

	// Status operations
	GetStatus(ctx context.Context, streamID int64) (*StreamStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Stream represents one realigned byte stream, usually a file
type Stream struct {
	ID            int64
	Name          string // Unique; file path relative to the indexed root
	SourcePath    string
	Separator     []byte
	ContentHash   [32]byte
	SizeBytes     int64
	TotalLines    int
	Unterminated  bool // Final line has no trailing separator
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Line represents a stored readline-mode emission
type Line struct {
	ID          int64
	StreamID    int64
	LineNumber  int
	ByteOffset  int64
	Content     []byte // Raw bytes, separator included when Terminated
	Text        string // Content without the separator, indexed for search
	Terminated  bool
	ContentHash [32]byte
	CreatedAt   time.Time
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	StreamIDs        []int64 // Restrict to these streams
	NamePattern      string  // SQL LIKE pattern on stream names
	UnterminatedOnly bool    // Only dangling final fragments
}

// SearchResult represents a line matched by full-text search
type SearchResult struct {
	Line       *Line
	StreamName string
	BM25Score  float64 // Lower is better, as reported by FTS5
}

// StreamStatus contains statistics about a stored stream
type StreamStatus struct {
	Stream         *Stream
	LinesCount     int
	BytesStored    int64
	DatabaseSizeMB float64
	Health         HealthStatus
}

// HealthStatus represents the health of the line store
type HealthStatus struct {
	DatabaseAccessible  bool
	FTSIndexBuilt       bool
	LineCountConsistent bool // Stored lines match Stream.TotalLines
}

// ToTypesLine converts a storage Line to types.Line
func (l *Line) ToTypesLine() *types.Line {
	return &types.Line{
		Number:     l.LineNumber,
		Offset:     l.ByteOffset,
		Content:    l.Content,
		Terminated: l.Terminated,
	}
}

// FromTypesLine converts types.Line to a storage Line
func FromTypesLine(l *types.Line, streamID int64, separator []byte) *Line {
	return &Line{
		StreamID:    streamID,
		LineNumber:  l.Number,
		ByteOffset:  l.Offset,
		Content:     l.Content,
		Text:        l.Text(separator),
		Terminated:  l.Terminated,
		ContentHash: l.Hash(),
	}
}
