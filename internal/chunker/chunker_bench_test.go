package chunker

import (
	"bytes"
	"testing"

	"github.com/dshills/aline/pkg/types"
)

func benchInput() []byte {
	var buf bytes.Buffer
	for buf.Len() < 1<<20 {
		buf.WriteString("2025-01-02T15:04:05Z level=info msg=\"request served\" status=200\n")
	}
	return buf.Bytes()
}

func benchmarkTransform(b *testing.B, opts types.Options, chunkSize int) {
	input := benchInput()
	noop := func([]byte) error { return nil }

	b.SetBytes(int64(len(input)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := MustNew(opts)
		for off := 0; off < len(input); off += chunkSize {
			end := off + chunkSize
			if end > len(input) {
				end = len(input)
			}
			if err := c.Transform(input[off:end], noop); err != nil {
				b.Fatal(err)
			}
		}
		if err := c.Flush(noop); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTransform_4K(b *testing.B) {
	benchmarkTransform(b, types.DefaultOptions(), 4096)
}

func BenchmarkTransform_64K(b *testing.B) {
	benchmarkTransform(b, types.DefaultOptions(), 64*1024)
}

func BenchmarkTransform_Readline_4K(b *testing.B) {
	benchmarkTransform(b, types.Options{Separator: []byte("\n"), Readline: true}, 4096)
}

func BenchmarkTransform_CRLF_4K(b *testing.B) {
	benchmarkTransform(b, types.Options{Separator: []byte("\r\n")}, 4096)
}
