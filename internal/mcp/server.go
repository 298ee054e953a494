package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/aline/internal/config"
	"github.com/dshills/aline/internal/indexer"
	"github.com/dshills/aline/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "aline"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	cfg     *config.Config
	storage storage.Storage
	indexer *indexer.Indexer

	// Stream sessions keyed by session_id. Eviction aborts the session.
	sessionsMu sync.Mutex
	sessions   *lru.Cache[string, *session]
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Options().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	dbPath, err := cfg.ResolvedDBPath()
	if err != nil {
		return nil, err
	}

	// Create directory if it doesn't exist
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		cfg:     cfg,
		storage: store,
		indexer: indexer.New(store),
	}

	size := cfg.SessionCacheSize
	if size <= 0 {
		size = config.DefaultSessionCacheSize
	}
	s.sessions, err = lru.NewWithEvict[string, *session](size, s.onEvict)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close aborts open sessions and closes the line store
func (s *Server) Close() error {
	s.sessionsMu.Lock()
	s.sessions.Purge()
	s.sessionsMu.Unlock()
	return s.storage.Close()
}

// onEvict runs when a session leaves the cache. Sessions ended normally
// are marked first; anything else is an abort and its tail is dropped.
func (s *Server) onEvict(id string, sess *session) {
	if pending := sess.abort(); pending >= 0 {
		log.Printf("aline: session %q aborted, discarded %d pending bytes", id, pending)
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(alignChunksTool(), s.handleAlignChunks)
	s.mcp.AddTool(streamPushTool(), s.handleStreamPush)
	s.mcp.AddTool(streamEndTool(), s.handleStreamEnd)
	s.mcp.AddTool(indexPathTool(), s.handleIndexPath)
	s.mcp.AddTool(searchLinesTool(), s.handleSearchLines)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	return nil
}
