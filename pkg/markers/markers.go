// Package markers multiplexes already-formatted block streams from nested
// invocations into an outer plain-text stream.
//
// A nested span starts with 0x02 and ends with 0x03. It holds NUL-terminated
// block records that are passed through untouched. Everything outside is
// plain tool output.
package markers

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/ternarybob/quickfix/pkg/stream"
)

const (
	Start = '\x02'
	End   = '\x03'
)

// Span is a piece of a demultiplexed stream.
type Span struct {
	// Nested is true for a single record from inside the markers, terminator
	// included.
	Nested bool
	Text   string
}

// Split demultiplexes r. Outer text is yielded one line at a time, nested
// content one record at a time.
func Split(r io.Reader) stream.Stream[Span] {
	br := bufio.NewReader(r)
	var (
		nested bool
		buf    strings.Builder
		queue  []Span
		eof    bool
	)
	flush := func(isNested bool) {
		if buf.Len() > 0 {
			queue = append(queue, Span{Nested: isNested, Text: buf.String()})
			buf.Reset()
		}
	}
	return stream.FromFunc(func() (Span, bool, error) {
		for len(queue) == 0 {
			if eof {
				return Span{}, false, nil
			}
			c, err := br.ReadByte()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					return Span{}, false, err
				}
				eof = true
				flush(nested)
				continue
			}
			switch {
			case c == Start:
				flush(false)
				nested = true
			case c == End:
				flush(true)
				nested = false
			default:
				buf.WriteByte(c)
				if (nested && c == 0) || (!nested && c == '\n') {
					flush(nested)
				}
			}
		}
		s := queue[0]
		queue = queue[1:]
		return s, true, nil
	})
}

// Writer wraps NUL-terminated records in a nested span. The start marker is
// written lazily so that an empty record stream produces no output at all.
type Writer struct {
	w       io.Writer
	started bool
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (mw *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !mw.started {
		if _, err := mw.w.Write([]byte{Start}); err != nil {
			return 0, err
		}
		mw.started = true
	}
	return mw.w.Write(p)
}

// Close writes the end marker if anything was written.
func (mw *Writer) Close() error {
	if !mw.started {
		return nil
	}
	_, err := mw.w.Write([]byte{End})
	return err
}
