package app

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/ternarybob/quickfix/pkg/block"
	"github.com/ternarybob/quickfix/pkg/editor"
	"github.com/ternarybob/quickfix/pkg/parser"
)

// parseSelection reads the fields fzf passes for the selected record:
// FILE LINE COL END_LINE END_COL and optionally TEXT.
func parseSelection(fields []string) (block.Location, string, error) {
	if len(fields) < 5 || len(fields) > 6 {
		return block.Location{}, "", configErrorf("--select takes FILE LINE COL END_LINE END_COL [TEXT], got %d arguments", len(fields))
	}
	loc := block.Location{File: fields[0]}
	for i, p := range []*int{&loc.Line, &loc.Column, &loc.EndLine, &loc.EndColumn} {
		f := fields[i+1]
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return block.Location{}, "", configErrorf("--select: invalid number %q", f)
		}
		*p = n
	}
	var text string
	if len(fields) == 6 {
		text = fields[5]
	}
	return loc, text, nil
}

// selectLocation opens the editor at the selected block. Informational
// blocks have no location and are ignored; when the fields are empty the
// location is searched for in the text.
func (a *App) selectLocation(ctx context.Context, fields []string) error {
	loc, text, err := parseSelection(fields)
	if err != nil {
		return err
	}
	if !loc.Valid() && text != "" {
		if found, err := parser.Locate(text); err == nil {
			loc = found
		}
	}
	if !loc.Valid() {
		a.Console.Verbosef("No location in selection (informational block)")
		return nil
	}

	cmd, err := editor.For(editor.Config{
		Editor: a.Config.Editor.Command,
		Templates: editor.Templates{
			Line:       a.Config.Editor.Line,
			LineColumn: a.Config.Editor.LineColumn,
		},
	}, loc, a.Getenv)
	if errors.Is(err, editor.ErrUnsupported) || errors.Is(err, editor.ErrNoEditor) {
		return configErrorf("%v", err)
	}
	if err != nil {
		return err
	}

	a.Console.Command(cmd.Words())
	if err := cmd.Run(ctx); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			a.Console.Errorf("", "Editor exit status: %d", exitErr.ExitCode())
			return &ExitError{Code: 1}
		}
		return fmt.Errorf("open editor: %w", err)
	}
	return nil
}
