package parser

import (
	"strings"

	"github.com/ternarybob/quickfix/pkg/stream"
)

type state int

const (
	stateStart state = iota
	stateNormal
	stateNoteContext
	stateSummary
	statePytestBlock
)

// Splitter turns a line stream into a chunk stream where a lone "\x00" chunk
// marks a block boundary. Concatenating the chunks reproduces the input with
// blank-line runs collapsed and no trailing newline after the last block.
type Splitter struct {
	state      state
	pendingNL  string
	prevLoc    string
	notePath   string
	firstBlock bool
}

// NewSplitter returns a splitter in its initial state.
func NewSplitter() *Splitter {
	return &Splitter{firstBlock: true}
}

// Process consumes one line, including its trailing newline if present, and
// appends the chunks it produces to out.
func (s *Splitter) Process(line string, out []string) []string {
	raw, nl := line, ""
	if strings.HasSuffix(raw, "\n") {
		raw, nl = raw[:len(raw)-1], "\n"
	}
	text := StripANSI(raw)
	kind := Classify(text)

	if kind == Blank {
		if s.pendingNL != "" {
			out = append(out, s.pendingNL)
		}
		if s.state != stateSummary && s.state != statePytestBlock {
			s.reset()
		}
		return out
	}

	loc := ""
	if kind == Location {
		loc = LocationKey(text)
	}

	if s.state == stateStart || s.startsBlock(kind, text, loc) {
		if !s.firstBlock {
			out = append(out, "\x00")
		}
		s.pendingNL = ""
	}
	s.firstBlock = false

	if s.pendingNL != "" {
		out = append(out, s.pendingNL)
	}
	out = append(out, raw)
	s.pendingNL = nl

	s.advance(kind, text, loc)
	return out
}

func (s *Splitter) startsBlock(kind LineType, text, loc string) bool {
	switch kind {
	case Note, Separator:
		return true
	case Summary:
		return s.state != stateSummary
	case Location:
		switch {
		case s.state == stateNoteContext:
			return s.notePath != pathOf(loc)
		case s.state == stateSummary:
			return true
		case s.state == statePytestBlock && strings.HasPrefix(text, "E "):
			return false
		}
		return s.prevLoc != "" && loc != s.prevLoc
	}
	return false
}

func (s *Splitter) advance(kind LineType, text, loc string) {
	switch kind {
	case Note:
		s.state = stateNoteContext
		s.notePath = pathOf(text)
		s.prevLoc = ""
	case Location:
		if s.state == stateNoteContext {
			if s.notePath != pathOf(loc) {
				s.state = stateNormal
				s.notePath = ""
			}
		} else if s.state != statePytestBlock {
			s.state = stateNormal
			s.notePath = ""
		}
		s.prevLoc = loc
	case Separator:
		s.state = statePytestBlock
		s.prevLoc = ""
		s.notePath = ""
	case Summary:
		s.state = stateSummary
		s.prevLoc = ""
		s.notePath = ""
	default:
		if s.state == stateStart {
			s.state = stateNormal
		}
	}
}

func (s *Splitter) reset() {
	s.state = stateStart
	s.pendingNL = ""
	s.prevLoc = ""
	s.notePath = ""
}

func pathOf(s string) string {
	path, _, _ := strings.Cut(s, ":")
	return path
}

// Split runs a fresh Splitter over lines and yields its chunks.
func Split(lines stream.Stream[string]) stream.Stream[string] {
	sp := NewSplitter()
	var buf []string
	return stream.FromFunc(func() (string, bool, error) {
		for len(buf) == 0 {
			if !lines.Next() {
				return "", false, lines.Err()
			}
			buf = sp.Process(lines.Value(), buf[:0])
		}
		c := buf[0]
		buf = buf[1:]
		return c, true, nil
	})
}
