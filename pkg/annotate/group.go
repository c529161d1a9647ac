package annotate

import (
	"strings"

	"github.com/ternarybob/quickfix/pkg/stream"
)

type grouper interface {
	push(e Entry, emit func(Entry))
	flush(emit func(Entry))
}

func group(in stream.Stream[Entry], g grouper) stream.Stream[Entry] {
	var queue []Entry
	flushed := false
	emit := func(e Entry) { queue = append(queue, e) }
	return stream.FromFunc(func() (Entry, bool, error) {
		for len(queue) == 0 {
			if flushed {
				return Entry{}, false, nil
			}
			if in.Next() {
				g.push(in.Value(), emit)
				continue
			}
			if err := in.Err(); err != nil {
				return Entry{}, false, err
			}
			g.flush(emit)
			flushed = true
		}
		e := queue[0]
		queue = queue[1:]
		return e, true, nil
	})
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

// GroupByLocation attaches context notes (entries without a line number) to
// the next entry of the same file and merges consecutive entries that share
// filename, line and column.
func GroupByLocation(in stream.Stream[Entry]) stream.Stream[Entry] {
	return group(in, &locationGrouper{})
}

type locationGrouper struct {
	note  *Entry
	block *Entry
}

func (g *locationGrouper) push(e Entry, emit func(Entry)) {
	if e.Line == 0 {
		// A note opens the context of the next diagnostic, so whatever was
		// pending is complete.
		if g.block != nil {
			emit(*g.block)
			g.block = nil
		}
		switch {
		case g.note != nil && g.note.Filename != e.Filename:
			emit(*g.note)
			g.note = &e
		case g.note != nil:
			g.note.Lines = concat(g.note.Lines, e.Lines)
		default:
			g.note = &e
		}
		return
	}

	if g.note != nil {
		if g.note.Filename != e.Filename {
			emit(*g.note)
		} else {
			e.Lines = concat(g.note.Lines, e.Lines)
		}
		g.note = nil
	}

	if g.block != nil && g.block.sameLocation(e) {
		g.block.Lines = concat(g.block.Lines, e.Lines)
		return
	}
	if g.block != nil {
		emit(*g.block)
	}
	g.block = &e
}

func (g *locationGrouper) flush(emit func(Entry)) {
	if g.block != nil {
		emit(*g.block)
	}
	if g.note != nil {
		emit(*g.note)
	}
}

// GroupByHeading groups single-line test-runner entries into blocks delimited
// by "===" headings, "___" headings and "_ _ _" frame separators. A
// location-bearing line gives its location to a pending unlocated block,
// except for the "===" prolog which is flushed first.
func GroupByHeading(in stream.Stream[Entry]) stream.Stream[Entry] {
	return group(in, &headingGrouper{})
}

type headingGrouper struct {
	pending *Entry
	prolog  bool
}

func framed(line, edge string) bool {
	return len(line) >= 6 && strings.HasPrefix(line, edge) && strings.HasSuffix(line, edge)
}

func (g *headingGrouper) start(e Entry, prolog bool, emit func(Entry)) {
	if g.pending != nil {
		emit(*g.pending)
	}
	g.pending = &e
	g.prolog = prolog
}

func (g *headingGrouper) push(e Entry, emit func(Entry)) {
	line := ""
	if len(e.Lines) > 0 {
		line = e.Lines[0]
	}

	switch {
	case framed(line, "==="):
		if g.pending != nil && g.prolog {
			g.pending.Lines = concat(g.pending.Lines, e.Lines)
			return
		}
		g.start(e, true, emit)
	case framed(line, "___") || strings.HasPrefix(line, "_ _ _"):
		g.start(e, false, emit)
	case e.Line > 0:
		if g.pending != nil && !g.prolog && g.pending.Filename == "" {
			e.Lines = concat(g.pending.Lines, e.Lines)
			g.pending = &e
			return
		}
		g.start(e, false, emit)
	case g.pending != nil:
		g.pending.Lines = concat(g.pending.Lines, e.Lines)
	default:
		g.start(e, false, emit)
	}
}

func (g *headingGrouper) flush(emit func(Entry)) {
	if g.pending != nil {
		emit(*g.pending)
	}
}
