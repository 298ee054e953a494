// Package mcp implements the Model Context Protocol (MCP) server for aline.
//
// The server exposes the realignment engine and the line store as tools:
//   - align_chunks: Realign a complete list of chunks in one call
//   - stream_push: Feed one chunk into a stateful session
//   - stream_end: End a session and flush its tail
//   - index_path: Store every line of the files below a path
//   - search_lines: Full-text search over stored lines
//   - get_status: Per-stream statistics or a server overview
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is typically started via the serve command:
//
//	aline serve
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Tool: align_chunks
//
//	Request:
//	{
//	  "name": "align_chunks",
//	  "arguments": {
//	    "chunks": ["Hello\nWor", "ld"],
//	    "separator": "\\n",
//	    "readline": false
//	  }
//	}
//
//	Response:
//	{
//	  "count": 2,
//	  "emissions": ["Hello\n", "World"],
//	  "encoding": "text"
//	}
//
// Binary streams use "encoding": "base64" for both chunks and emissions.
//
// # Tools: stream_push and stream_end
//
// A session is opened by the first stream_push for a session_id and holds
// one engine. Each push returns the emissions it completed and the number
// of bytes still waiting for a separator; stream_end flushes the tail and
// forgets the session.
//
// Sessions live in a bounded LRU cache (ALINE_SESSION_CACHE_SIZE). A session
// pushed out of the cache is aborted: its tail is discarded, a line is
// logged, and later calls report it as unknown. Calls on one session are
// serialised.
//
// # Tool: index_path
//
//	{
//	  "name": "index_path",
//	  "arguments": {"path": "/var/log/app", "include": ["*.log"]}
//	}
//
// Files are aligned in readline mode and stored one line per row. Unchanged
// files are skipped by content hash. Only one indexing run is active at a
// time.
//
// # Tool: search_lines
//
//	{
//	  "name": "search_lines",
//	  "arguments": {"query": "disk quota", "limit": 10, "stream_pattern": "%/app.log"}
//	}
//
// Every term must match. Results carry the stream name, line number, byte
// offset and BM25 score (lower ranks first).
//
// # Error Handling
//
// Errors are returned as *MCPError with JSON-RPC codes:
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32001  path not found
//	-32002  indexing in progress
//	-32003  stream not indexed
//	-32004  empty query
//	-32005  unknown or ended session
package mcp
