// Package annotate drives the errorformat annotator to extract locations from
// tool output, groups its entries into logical diagnostics and converts them
// to blocks.
package annotate

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ternarybob/quickfix/pkg/block"
)

// Entry is one record produced by the annotator. Zero numeric fields are
// absent.
type Entry struct {
	Filename  string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
	Lines     []string
	Text      string
	Type      rune
	Valid     bool
}

func parseEntry(record string) (Entry, error) {
	if !gjson.Valid(record) {
		return Entry{}, fmt.Errorf("invalid annotator record: %q", record)
	}
	r := gjson.Parse(record)
	e := Entry{
		Filename:  r.Get("filename").String(),
		Line:      int(r.Get("lnum").Int()),
		Column:    int(r.Get("col").Int()),
		EndLine:   int(r.Get("end_lnum").Int()),
		EndColumn: int(r.Get("end_col").Int()),
		Text:      r.Get("text").String(),
		Type:      rune(r.Get("type").Int()),
		Valid:     r.Get("valid").Bool(),
	}
	for _, l := range r.Get("lines").Array() {
		e.Lines = append(e.Lines, l.String())
	}
	return e, nil
}

func (e Entry) sameLocation(o Entry) bool {
	return e.Filename == o.Filename && e.Line == o.Line && e.Column == o.Column
}

// Block converts the entry, passing every line through restore. Entries
// without a line number become informational blocks.
func (e Entry) Block(restore func(string) string) block.Block {
	lines := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = restore(l)
	}
	b := block.Block{Text: strings.Join(lines, "\n")}
	if e.Filename != "" && e.Line > 0 {
		b.Location = block.Location{
			File:      e.Filename,
			Line:      e.Line,
			Column:    e.Column,
			EndLine:   e.EndLine,
			EndColumn: e.EndColumn,
		}
	}
	return b
}

// Summary renders the entry's fields for verbose tracing.
func (e Entry) Summary() string {
	words := []string{fmt.Sprintf("f=%q", e.Filename)}
	for _, f := range []struct {
		key string
		val int
	}{{"l", e.Line}, {"c", e.Column}, {"el", e.EndLine}, {"ec", e.EndColumn}} {
		if f.val > 0 {
			words = append(words, fmt.Sprintf("%s=%d", f.key, f.val))
		}
	}
	if e.Type != 0 {
		words = append(words, "t="+string(e.Type))
	}
	words = append(words, fmt.Sprintf("v=%t", e.Valid), fmt.Sprintf("#=%d", len(e.Lines)))
	return strings.Join(words, " ")
}
