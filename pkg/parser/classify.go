// Package parser segments raw compiler, linter and test-runner output into
// blocks using line classification and a small state machine.
package parser

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// LineType is the classification of one stripped output line.
type LineType int

const (
	Blank LineType = iota
	Note
	Location
	Summary
	Separator
	Other
)

func (t LineType) String() string {
	switch t {
	case Blank:
		return "blank"
	case Note:
		return "note"
	case Location:
		return "location"
	case Summary:
		return "summary"
	case Separator:
		return "separator"
	default:
		return "other"
	}
}

// The file name may not start with whitespace, a colon or a quote, and may not
// contain quotes. Quoted text is the payload of an assertion diff, not a path.
const filePattern = `[^\s:'"][^:\n'"]*`

var (
	// file:line[:col][:endline:endcol]: message
	locationRe = regexp.MustCompile(`^(` + filePattern + `:\d+(?::\d+)?)(?::\d+:\d+)?: .+`)
	// file: note: context, no line number
	noteRe      = regexp.MustCompile(`^[^\s:][^:]*: note: `)
	summaryRe   = regexp.MustCompile(`^Found \d+ error|^={3,}.+?={3,}$`)
	separatorRe = regexp.MustCompile(`^(_{3,}|_ (_ )+_)`)

	blockLocationRe = regexp.MustCompile(`(?m)^(` + filePattern + `:\d+(?::\d+)?)(?::\d+:\d+)?: `)
	arrowLocationRe = regexp.MustCompile(`(?m)^ *--> ([^:\n]+:\d+:\d+)$`)
)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return ansi.Strip(s)
}

// Classify returns the type of a line with ANSI escapes already removed.
// Patterns are tried in order; the first match wins.
func Classify(text string) LineType {
	switch {
	case text == "":
		return Blank
	case noteRe.MatchString(text):
		return Note
	case locationRe.MatchString(text):
		return Location
	case summaryRe.MatchString(text):
		return Summary
	case separatorRe.MatchString(text):
		return Separator
	default:
		return Other
	}
}

// LocationKey returns the "file:line[:col]" prefix of a location line, or ""
// if the line is not one. ANSI escapes are ignored.
func LocationKey(line string) string {
	m := locationRe.FindStringSubmatch(StripANSI(line))
	if m == nil {
		return ""
	}
	return m[1]
}
