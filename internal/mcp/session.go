package mcp

import (
	"bytes"
	"sync"
	"time"

	"github.com/dshills/aline/internal/chunker"
	"github.com/dshills/aline/pkg/types"
)

// session is one stateful stream driven by stream_push and stream_end.
// Calls for the same session are serialised by mu.
type session struct {
	mu      sync.Mutex
	chunker *chunker.Chunker
	started time.Time
	done    bool
}

func newSession(opts types.Options) (*session, error) {
	c, err := chunker.New(opts)
	if err != nil {
		return nil, err
	}
	return &session{chunker: c, started: time.Now()}, nil
}

// push feeds one chunk and returns the emissions it produced
func (s *session) push(chunk []byte) ([][]byte, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil, 0, types.ErrClosed
	}
	var out [][]byte
	err := s.chunker.Transform(chunk, collect(&out))
	return out, s.chunker.Pending(), err
}

// end flushes the tail and closes the session
func (s *session) end() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil, types.ErrClosed
	}
	var out [][]byte
	err := s.chunker.Flush(collect(&out))
	s.done = true
	return out, err
}

// abort drops the tail of a live session and reports how many bytes were
// lost, or -1 if the session had already ended
func (s *session) abort() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return -1
	}
	pending := s.chunker.Pending()
	s.chunker.Reset()
	s.done = true
	return pending
}

// matches reports whether opts describe the session's engine
func (s *session) matches(opts types.Options) bool {
	return bytes.Equal(s.chunker.Separator(), opts.Separator) && s.chunker.Readline() == opts.Readline
}

// collect returns an EmitFunc appending copies of emissions to out
func collect(out *[][]byte) types.EmitFunc {
	return func(chunk []byte) error {
		*out = append(*out, bytes.Clone(chunk))
		return nil
	}
}
