package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingWriter keeps every Write call separately
type recordingWriter struct {
	writes []string
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, string(p))
	return len(p), nil
}

func TestRun_Version(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"--version"}, nil, &out, &errOut)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Version: dev")
	assert.Contains(t, out.String(), "SQLite Driver:")
}

func TestRun_FilterStdin(t *testing.T) {
	out := &recordingWriter{}
	var errOut bytes.Buffer

	code := run([]string{"-b", "3"}, strings.NewReader("alpha\nbeta\ngam"), out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	assert.Equal(t, "alpha\nbeta\ngam", strings.Join(out.writes, ""))
	for _, w := range out.writes[:len(out.writes)-1] {
		assert.True(t, strings.HasSuffix(w, "\n"), "write %q must end on the separator", w)
	}
	assert.Equal(t, "gam", out.writes[len(out.writes)-1])
}

func TestRun_FilterReadline(t *testing.T) {
	out := &recordingWriter{}
	var errOut bytes.Buffer

	code := run([]string{"-r", "-s", `\r\n`}, strings.NewReader("a\r\nb\r\nc"), out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Equal(t, []string{"a\r\n", "b\r\n", "c"}, out.writes)
}

func TestRun_FilterFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "one.txt")
	second := filepath.Join(dir, "two.txt")
	require.NoError(t, os.WriteFile(first, []byte("x\ny"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("z\n"), 0644))

	out := &recordingWriter{}
	var errOut bytes.Buffer
	code := run([]string{"-r", first, "-", second}, strings.NewReader("-mid-"), out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Equal(t, []string{"x\n", "y-mid-z\n"}, out.writes)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{filepath.Join(t.TempDir(), "nope")}},
		{"empty separator", []string{"-s", ""}},
		{"bad escape", []string{"-s", `\q`}},
		{"unknown flag", []string{"-z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			code := run(tt.args, strings.NewReader(""), &out, &errOut)
			assert.Equal(t, 1, code)
			assert.NotEmpty(t, errOut.String())
			assert.Empty(t, out.String())
		})
	}
}

func TestRun_Help(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"-h"}, strings.NewReader(""), &out, &errOut)
	assert.Equal(t, 0, code)
	assert.Contains(t, errOut.String(), "Usage:")
}
