package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/aline/pkg/types"
)

func TestPipe(t *testing.T) {
	in := make(chan []byte)
	out := make(chan []byte, 8)

	errCh := make(chan error, 1)
	go func() {
		errCh <- Pipe(context.Background(), in, out, types.Options{Separator: []byte("\n"), Readline: true})
	}()

	in <- []byte("fo")
	in <- []byte("o\nbar\nbaz")
	close(in)

	var got []string
	for chunk := range out {
		got = append(got, string(chunk))
	}

	require.NoError(t, <-errCh)
	assert.Equal(t, []string{"foo\n", "bar\n", "baz"}, got)
}

func TestPipe_CancelDiscardsTail(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan []byte)
	out := make(chan []byte, 8)

	errCh := make(chan error, 1)
	go func() {
		errCh <- Pipe(ctx, in, out, types.DefaultOptions())
	}()

	in <- []byte("done\npending")
	assert.Equal(t, "done\n", string(<-out))
	cancel()

	var rest []string
	for chunk := range out {
		rest = append(rest, string(chunk))
	}

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Empty(t, rest, "the pending tail is never flushed")
}

func TestPipe_InvalidOptions(t *testing.T) {
	out := make(chan []byte)
	err := Pipe(context.Background(), nil, out, types.Options{})
	assert.ErrorIs(t, err, types.ErrEmptySeparator)

	_, open := <-out
	assert.False(t, open, "out is closed on return")
}

func TestRun(t *testing.T) {
	input := strings.Repeat("0123456789\n", 1000) + "last"

	var lines []string
	err := Run(context.Background(), iotest.OneByteReader(strings.NewReader(input)), ReaderOptions{
		Options:  types.Options{Separator: []byte("\n"), Readline: true},
		ReadSize: 7,
	}, func(chunk []byte) error {
		lines = append(lines, string(chunk))
		return nil
	})
	require.NoError(t, err)

	require.Len(t, lines, 1001)
	assert.Equal(t, "0123456789\n", lines[0])
	assert.Equal(t, "last", lines[1000])
	assert.Equal(t, input, strings.Join(lines, ""))
}

func TestRun_HandlerError(t *testing.T) {
	boom := errors.New("sink rejected line")
	input := strings.Repeat("x\n", 10000)

	calls := 0
	err := Run(context.Background(), strings.NewReader(input), ReaderOptions{
		Options:  types.Options{Separator: []byte("\n"), Readline: true},
		ReadSize: 64,
	}, func([]byte) error {
		calls++
		if calls == 3 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRun_SourceErrorSkipsFlush(t *testing.T) {
	boom := errors.New("read failed")
	src := io.MultiReader(strings.NewReader("ok\npartial"), iotest.ErrReader(boom))

	var got []string
	err := Run(context.Background(), src, ReaderOptions{Options: types.DefaultOptions()}, func(chunk []byte) error {
		got = append(got, string(chunk))
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, got, "partial")
}

func TestRun_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	pr, pw := io.Pipe()
	defer pw.Close()

	go func() {
		_, _ = pw.Write([]byte("first\n"))
		<-ctx.Done()
		_ = pw.CloseWithError(ctx.Err())
	}()

	var got []string
	err := Run(ctx, pr, ReaderOptions{Options: types.DefaultOptions()}, func(chunk []byte) error {
		got = append(got, string(chunk))
		return nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"first\n"}, got)
}

func TestRun_InvalidOptions(t *testing.T) {
	err := Run(context.Background(), strings.NewReader("x"), ReaderOptions{}, func([]byte) error { return nil })
	assert.ErrorIs(t, err, types.ErrEmptySeparator)
}
