package editor

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/shlex"
	"github.com/ternarybob/quickfix/pkg/block"
)

// Templates are user-supplied editor command lines with {file}, {line} and
// {column} placeholders. {col} is accepted for {column}.
type Templates struct {
	// Line is used when the location has no column, or LineColumn is unset.
	Line string
	// LineColumn is used when the location has a column.
	LineColumn string
}

var placeholder = regexp.MustCompile(`\{([^{}]*)\}`)

// Validate checks both templates against a sample location.
func (t Templates) Validate() error {
	sample := block.Location{File: "test.py", Line: 1, Column: 1}
	if t.Line != "" {
		if _, err := expand(t.Line, block.Location{File: sample.File, Line: 1}, false); err != nil {
			return fmt.Errorf("invalid line template: %w", err)
		}
	}
	if t.LineColumn != "" {
		if _, err := expand(t.LineColumn, sample, true); err != nil {
			return fmt.Errorf("invalid line-column template: %w", err)
		}
	}
	return nil
}

// Command expands the template matching loc. ok is false when no template
// applies.
func (t Templates) Command(loc block.Location) (cmd Command, ok bool, err error) {
	switch {
	case loc.Column > 0 && t.LineColumn != "":
		args, err := expand(t.LineColumn, loc, true)
		return Exec{Args: args}, true, err
	case t.Line != "":
		args, err := expand(t.Line, loc, false)
		return Exec{Args: args}, true, err
	}
	return nil, false, nil
}

// expand splits the template into words before substituting, so file names
// containing spaces stay one argument.
func expand(template string, loc block.Location, withColumn bool) ([]string, error) {
	words, err := shlex.Split(template)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty template")
	}
	values := map[string]string{
		"file": loc.File,
		"line": strconv.Itoa(loc.Line),
	}
	if withColumn {
		values["column"] = strconv.Itoa(loc.Column)
		values["col"] = values["column"]
	}

	out := make([]string, len(words))
	for i, w := range words {
		var missing string
		out[i] = placeholder.ReplaceAllStringFunc(w, func(m string) string {
			v, ok := values[m[1:len(m)-1]]
			if !ok && missing == "" {
				missing = m
			}
			return v
		})
		if missing != "" {
			return nil, fmt.Errorf("unknown placeholder %s", missing)
		}
	}
	return out, nil
}
