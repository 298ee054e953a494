package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/aline/internal/chunker"
	"github.com/dshills/aline/internal/config"
	"github.com/dshills/aline/internal/indexer"
	"github.com/dshills/aline/internal/storage"
	"github.com/dshills/aline/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodePathNotFound       = -32001 // Specified path does not exist or is unreadable
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Stream not stored
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeSessionNotFound    = -32005 // Unknown or already ended session
)

const (
	encodingText   = "text"
	encodingBase64 = "base64"
)

// handleAlignChunks handles the align_chunks tool invocation
func (s *Server) handleAlignChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	encoding, err := parseEncoding(args)
	if err != nil {
		return nil, err
	}

	raw, ok := args["chunks"].([]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunks parameter is required", map[string]interface{}{
			"param":  "chunks",
			"reason": "missing or not an array",
		})
	}
	chunks := make([][]byte, len(raw))
	for i, item := range raw {
		text, ok := item.(string)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "chunks must be strings", map[string]interface{}{
				"param": "chunks",
				"index": i,
			})
		}
		if chunks[i], err = decodeData(text, encoding, "chunks"); err != nil {
			return nil, err
		}
	}

	opts, err := s.parseOptions(args)
	if err != nil {
		return nil, err
	}

	emissions, err := chunker.Align(opts, chunks)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "alignment failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"emissions": encodeData(emissions, encoding),
		"count":     len(emissions),
		"encoding":  encoding,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStreamPush handles the stream_push tool invocation
func (s *Server) handleStreamPush(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireString(args, "session_id")
	if err != nil {
		return nil, err
	}

	encoding, err := parseEncoding(args)
	if err != nil {
		return nil, err
	}

	text, ok := args["data"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "data parameter is required", map[string]interface{}{
			"param":  "data",
			"reason": "missing or not a string",
		})
	}
	data, err := decodeData(text, encoding, "data")
	if err != nil {
		return nil, err
	}

	opts, err := s.parseOptions(args)
	if err != nil {
		return nil, err
	}

	sess, err := s.openSession(id, opts, hasOptions(args))
	if err != nil {
		return nil, err
	}

	emissions, pending, err := sess.push(data)
	if errors.Is(err, types.ErrClosed) {
		return nil, newMCPError(ErrorCodeSessionNotFound, "session already ended", map[string]interface{}{
			"session_id": id,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "push failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"session_id":    id,
		"emissions":     encodeData(emissions, encoding),
		"pending_bytes": pending,
		"encoding":      encoding,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStreamEnd handles the stream_end tool invocation
func (s *Server) handleStreamEnd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireString(args, "session_id")
	if err != nil {
		return nil, err
	}

	encoding, err := parseEncoding(args)
	if err != nil {
		return nil, err
	}

	s.sessionsMu.Lock()
	sess, ok := s.sessions.Get(id)
	s.sessionsMu.Unlock()
	if !ok {
		return nil, newMCPError(ErrorCodeSessionNotFound, "unknown session", map[string]interface{}{
			"session_id": id,
		})
	}

	emissions, err := sess.end()

	// Ended sessions are marked done before removal, so eviction stays quiet
	s.sessionsMu.Lock()
	if cur, ok := s.sessions.Peek(id); ok && cur == sess {
		s.sessions.Remove(id)
	}
	s.sessionsMu.Unlock()

	if errors.Is(err, types.ErrClosed) {
		return nil, newMCPError(ErrorCodeSessionNotFound, "session already ended", map[string]interface{}{
			"session_id": id,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "flush failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"session_id": id,
		"emissions":  encodeData(emissions, encoding),
		"ended":      true,
		"encoding":   encoding,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexPath handles the index_path tool invocation
func (s *Server) handleIndexPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	// Validate path exists and is accessible
	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if !errors.Is(err, ErrPathNotAbsolute) {
			code = ErrorCodePathNotFound
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	// Parse optional parameters
	include, err := getStringSlice(args, "include")
	if err != nil {
		return nil, err
	}
	exclude, err := getStringSlice(args, "exclude")
	if err != nil {
		return nil, err
	}
	opts, err := s.parseOptions(args)
	if err != nil {
		return nil, err
	}

	// Create indexer config
	cfg := &indexer.Config{
		Workers:   s.cfg.Workers,
		Separator: opts.Separator,
		Include:   include,
		Exclude:   exclude,
	}

	// Run indexing
	stats, err := s.indexer.IndexPath(ctx, path, cfg)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Format response
	response := map[string]interface{}{
		"indexed":       true,
		"files_indexed": stats.FilesIndexed,
		"files_skipped": stats.FilesSkipped,
		"files_failed":  stats.FilesFailed,
		"lines_stored":  stats.LinesStored,
		"bytes_read":    stats.BytesRead,
		"duration_ms":   stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchLines handles the search_lines tool invocation
func (s *Server) handleSearchLines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	// Parse optional parameters
	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	filters := &storage.SearchFilters{
		NamePattern:      getStringDefault(args, "stream_pattern", ""),
		UnterminatedOnly: getBoolDefault(args, "unterminated_only", false),
	}

	results, err := s.storage.SearchLines(ctx, query, limit, filters)
	if errors.Is(err, storage.ErrEmptyQuery) {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query has no search terms", map[string]interface{}{
			"param": "query",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, len(results))
	for i, r := range results {
		items[i] = map[string]interface{}{
			"stream":      r.StreamName,
			"line_number": r.Line.LineNumber,
			"byte_offset": r.Line.ByteOffset,
			"text":        r.Line.Text,
			"terminated":  r.Line.Terminated,
			"score":       r.BM25Score,
		}
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(items),
		"results": items,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Arguments are optional for this tool
	args, _ := request.Params.Arguments.(map[string]interface{})

	name := getStringDefault(args, "stream", "")
	if name == "" {
		return s.serverStatus(ctx)
	}

	stream, err := s.storage.GetStream(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		// Stream not stored
		response := map[string]interface{}{
			"indexed": false,
			"stream":  name,
			"message": "Stream not indexed. Use index_path tool to store it.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get stream", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Get detailed status
	status, err := s.storage.GetStatus(ctx, stream.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Format response
	response := map[string]interface{}{
		"indexed": true,
		"stream": map[string]interface{}{
			"name":            stream.Name,
			"source_path":     stream.SourcePath,
			"separator":       config.FormatSeparator(stream.Separator),
			"size_bytes":      stream.SizeBytes,
			"unterminated":    stream.Unterminated,
			"last_indexed_at": stream.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"statistics": map[string]interface{}{
			"lines_count":   status.LinesCount,
			"bytes_stored":  status.BytesStored,
			"index_size_mb": fmt.Sprintf("%.2f", status.DatabaseSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":   status.Health.DatabaseAccessible,
			"fts_index_built":       status.Health.FTSIndexBuilt,
			"line_count_consistent": status.Health.LineCountConsistent,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// serverStatus summarises the whole server
func (s *Server) serverStatus(ctx context.Context) (*mcp.CallToolResult, error) {
	streams, err := s.storage.ListStreams(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list streams", map[string]interface{}{
			"error": err.Error(),
		})
	}

	names := make([]string, len(streams))
	totalLines := 0
	for i, st := range streams {
		names[i] = st.Name
		totalLines += st.TotalLines
	}

	s.sessionsMu.Lock()
	openSessions := s.sessions.Len()
	s.sessionsMu.Unlock()

	response := map[string]interface{}{
		"streams":        names,
		"streams_count":  len(streams),
		"lines_count":    totalLines,
		"open_sessions":  openSessions,
		"indexing":       s.indexer.Indexing(),
		"separator":      config.FormatSeparator(s.cfg.Separator),
		"schema_version": storage.CurrentSchemaVersion,
		"build_mode":     storage.BuildMode,
		"sqlite_driver":  storage.DriverName,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// openSession returns the session for id, creating it with opts on first
// use. Explicit options on a later push must match the session's.
func (s *Server) openSession(id string, opts types.Options, explicit bool) (*session, error) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if sess, ok := s.sessions.Get(id); ok {
		if explicit && !sess.matches(opts) {
			return nil, newMCPError(ErrorCodeInvalidParams, "options differ from the open session", map[string]interface{}{
				"session_id": id,
			})
		}
		return sess, nil
	}

	sess, err := newSession(opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid options", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.sessions.Add(id, sess)
	return sess, nil
}

// parseOptions builds engine options from tool arguments and server defaults
func (s *Server) parseOptions(args map[string]interface{}) (types.Options, error) {
	opts := s.cfg.Options()

	if raw, ok := args["separator"]; ok {
		text, ok := raw.(string)
		if !ok {
			return opts, newMCPError(ErrorCodeInvalidParams, "separator must be a string", map[string]interface{}{
				"param": "separator",
			})
		}
		sep, err := config.ParseSeparator(text)
		if err != nil {
			return opts, newMCPError(ErrorCodeInvalidParams, "invalid separator", map[string]interface{}{
				"param":  "separator",
				"reason": err.Error(),
			})
		}
		opts.Separator = sep
	}

	opts.Readline = getBoolDefault(args, "readline", opts.Readline)
	return opts, nil
}

// hasOptions reports whether the caller set any engine option explicitly
func hasOptions(args map[string]interface{}) bool {
	_, sep := args["separator"]
	_, rl := args["readline"]
	return sep || rl
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is accessible
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrPathNotFound
	} else if err != nil {
		return ErrPathNotReadable
	}

	// Check if it is readable
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// parseEncoding reads the encoding argument
func parseEncoding(args map[string]interface{}) (string, error) {
	encoding := getStringDefault(args, "encoding", encodingText)
	if encoding != encodingText && encoding != encodingBase64 {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid encoding", map[string]interface{}{
			"param":   "encoding",
			"value":   encoding,
			"allowed": []string{encodingText, encodingBase64},
		})
	}
	return encoding, nil
}

// decodeData converts a request string into bytes
func decodeData(text, encoding, param string) ([]byte, error) {
	if encoding == encodingText {
		return []byte(text), nil
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid base64 data", map[string]interface{}{
			"param":  param,
			"reason": err.Error(),
		})
	}
	return data, nil
}

// encodeData converts emissions into response strings
func encodeData(chunks [][]byte, encoding string) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		if encoding == encodingBase64 {
			out[i] = base64.StdEncoding.EncodeToString(c)
		} else {
			out[i] = string(c)
		}
	}
	return out
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// requireString extracts a mandatory non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts an optional array of strings
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, key+" must be an array of strings", map[string]interface{}{
			"param": key,
		})
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, key+" must be an array of strings", map[string]interface{}{
				"param": key,
			})
		}
		out = append(out, str)
	}
	return out, nil
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
)
