package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Shared property definitions
var (
	separatorProperty = map[string]interface{}{
		"type":        "string",
		"description": "Separator as text; escapes such as \\n, \\r\\n, \\t, \\0 and \\xNN are decoded (default: server setting, usually \\n)",
	}
	readlineProperty = map[string]interface{}{
		"type":        "boolean",
		"description": "If true, emit one line per emission instead of one aligned block",
	}
	encodingProperty = map[string]interface{}{
		"type":        "string",
		"description": "Encoding of data in requests and responses; use base64 for binary streams",
		"enum":        []string{encodingText, encodingBase64},
		"default":     encodingText,
	}
)

// alignChunksTool returns the tool definition for align_chunks
func alignChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "align_chunks",
		Description: "Realign a complete sequence of chunks so every emission ends on a separator; the unterminated tail is emitted last",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chunks": map[string]interface{}{
					"type":        "array",
					"description": "Chunks in stream order",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"separator": separatorProperty,
				"readline":  readlineProperty,
				"encoding":  encodingProperty,
			},
			Required: []string{"chunks"},
		},
	}
}

// streamPushTool returns the tool definition for stream_push
func streamPushTool() mcp.Tool {
	return mcp.Tool{
		Name:        "stream_push",
		Description: "Push one chunk into a stateful stream session and receive the aligned emissions it completes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Caller-chosen session identifier; the first push opens the session",
				},
				"data": map[string]interface{}{
					"type":        "string",
					"description": "Chunk bytes",
				},
				"separator": separatorProperty,
				"readline":  readlineProperty,
				"encoding":  encodingProperty,
			},
			Required: []string{"session_id", "data"},
		},
	}
}

// streamEndTool returns the tool definition for stream_end
func streamEndTool() mcp.Tool {
	return mcp.Tool{
		Name:        "stream_end",
		Description: "End a stream session, emitting any pending tail verbatim",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session to end",
				},
				"encoding": encodingProperty,
			},
			Required: []string{"session_id"},
		},
	}
}

// indexPathTool returns the tool definition for index_path
func indexPathTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_path",
		Description: "Split every file below a path into lines and store them for search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a file or directory",
				},
				"include": map[string]interface{}{
					"type":        "array",
					"description": "Base-name globs to index (e.g., '*.log'); default is every file",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"exclude": map[string]interface{}{
					"type":        "array",
					"description": "Base-name globs to skip",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"separator": separatorProperty,
			},
			Required: []string{"path"},
		},
	}
}

// searchLinesTool returns the tool definition for search_lines
func searchLinesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_lines",
		Description: "Full-text search over stored lines, ranked by BM25",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search terms; every term must match",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"stream_pattern": map[string]interface{}{
					"type":        "string",
					"description": "SQL LIKE pattern on stream names (e.g., '%/app.log')",
				},
				"unterminated_only": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, only match final fragments that had no trailing separator",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report statistics for one stored stream, or an overview of the server when no stream is given",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"stream": map[string]interface{}{
					"type":        "string",
					"description": "Stream name (the absolute path of an indexed file)",
				},
			},
		},
	}
}
