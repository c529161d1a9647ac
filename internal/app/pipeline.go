package app

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/ternarybob/quickfix/pkg/annotate"
	"github.com/ternarybob/quickfix/pkg/block"
	"github.com/ternarybob/quickfix/pkg/markers"
	"github.com/ternarybob/quickfix/pkg/parser"
	"github.com/ternarybob/quickfix/pkg/stream"
	"github.com/ternarybob/quickfix/pkg/tool"
)

// engine turns tool output lines into blocks.
type engine func(ctx context.Context, lines stream.Stream[string]) stream.Stream[block.Block]

// pipeline converts a command's output into wire records.
type pipeline struct {
	name   string
	engine engine
	top    bool
}

func splitterEngine(_ context.Context, lines stream.Stream[string]) stream.Stream[block.Block] {
	return parser.Blocks(lines)
}

func (a *App) annotated(f annotate.Format) engine {
	return func(ctx context.Context, lines stream.Stream[string]) stream.Stream[block.Block] {
		return a.Adapter.Blocks(ctx, f, lines)
	}
}

// pipeline picks the engine: -f, then -p, then the detected tool, then the
// regex splitter.
func (a *App) pipeline(ctx context.Context, opts Options) (*pipeline, error) {
	p := &pipeline{top: opts.Top}
	switch {
	case opts.FormatName != "":
		f, err := a.Adapter.Resolve(ctx, opts.FormatName)
		if errors.Is(err, tool.ErrUnsupported) {
			return nil, configErrorf("%v (see -f/--format-name or -p/--pattern)", err)
		}
		if err != nil {
			return nil, err
		}
		p.name, p.engine = opts.FormatName, a.annotated(f)
		p.top = p.top || (f.Tool != nil && f.Tool.BuildSystem)
	case len(opts.Patterns) > 0:
		p.name, p.engine = "patterns", a.annotated(annotate.Format{Patterns: opts.Patterns})
	default:
		name := tool.Detect(opts.Args)
		if t, ok := tool.Lookup(name); ok {
			p.name, p.engine = t.Name, a.annotated(annotate.Format{Tool: t})
			p.top = p.top || t.BuildSystem
		} else {
			p.name, p.engine = "splitter", splitterEngine
		}
	}
	a.Logger.Debug().Str("engine", p.name).Str("top", strconv.FormatBool(p.top)).Msg("Selected engine")
	return p, nil
}

// records returns the encoded blocks of r.
func (p *pipeline) records(ctx context.Context, r io.Reader) stream.Stream[string] {
	if p.top {
		return p.topRecords(ctx, r)
	}
	return stream.Map(p.engine(ctx, stream.Lines(r)), block.Encode)
}

// topRecords demultiplexes r. Each run of outer lines goes through the
// engine; records from nested invocations are passed through as they are.
func (p *pipeline) topRecords(ctx context.Context, r io.Reader) stream.Stream[string] {
	spans := markers.Split(r)
	var (
		pending *markers.Span
		cur     stream.Stream[string]
	)
	next := func() (markers.Span, bool) {
		if pending != nil {
			s := *pending
			pending = nil
			return s, true
		}
		if spans.Next() {
			return spans.Value(), true
		}
		return markers.Span{}, false
	}

	return stream.FromFunc(func() (string, bool, error) {
		for {
			if cur != nil {
				if cur.Next() {
					return cur.Value(), true, nil
				}
				if err := cur.Err(); err != nil {
					return "", false, err
				}
				cur = nil
			}
			s, ok := next()
			if !ok {
				return "", false, spans.Err()
			}
			if s.Nested {
				if !strings.HasSuffix(s.Text, string(block.RecordEnd)) {
					s.Text += string(block.RecordEnd)
				}
				return s.Text, true, nil
			}
			pending = &s
			run := stream.FromFunc(func() (string, bool, error) {
				s, ok := next()
				if !ok {
					return "", false, nil
				}
				if s.Nested {
					pending = &s
					return "", false, nil
				}
				return s.Text, true, nil
			})
			cur = stream.Map(p.engine(ctx, run), block.Encode)
		}
	})
}

// writeRecords copies records to w and returns how many were written.
func writeRecords(w io.Writer, records stream.Stream[string]) (int, error) {
	n := 0
	for records.Next() {
		if _, err := io.WriteString(w, records.Value()); err != nil {
			return n, err
		}
		n++
	}
	return n, records.Err()
}

// closedPipe reports a write to a reader that has gone away.
func closedPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}
