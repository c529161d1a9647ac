// Package editor builds the command that opens an editor at a file location.
//
// Editors are recognised by the base name of their executable. Each family
// has its own way of receiving the line and column:
//
//	vim, nvim, vi                 vim +L "+normal! Cl" FILE
//	emacs, emacsclient, gedit, kak emacs +L:C FILE
//	nano                          nano +L,C FILE
//	joe, ee                       joe +L FILE
//	subl, hx, helix, zed          subl FILE:L:C
//	micro                         micro FILE +L:C
//	o                             o FILE +L +C
//	code, code-oss, surf, cursor  vscode://file/ABS:L:C, or --goto with --wait
//	idea                          idea://open?file=..., or --line/--column with --wait
//	charm, pycharm                pycharm://open?file=...
package editor

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/google/shlex"
	"github.com/ternarybob/quickfix/pkg/block"
)

var (
	// ErrUnsupported is returned for an editor with no known command syntax.
	ErrUnsupported = errors.New("unsupported editor")
	// ErrNoEditor is returned when neither templates nor an editor are set.
	ErrNoEditor = errors.New("no editor configured: set EDITOR or VISUAL")
)

// Family groups editors sharing a command syntax.
type Family int

const (
	Vim Family = iota
	Emacs
	Nano
	Joe
	FileColon
	Micro
	O
	VSCode
	IDEA
	PyCharm
)

var families = map[string]Family{
	"vim":         Vim,
	"nvim":        Vim,
	"vi":          Vim,
	"emacs":       Emacs,
	"emacsclient": Emacs,
	"gedit":       Emacs,
	"kak":         Emacs,
	"nano":        Nano,
	"joe":         Joe,
	"ee":          Joe,
	"subl":        FileColon,
	"helix":       FileColon,
	"hx":          FileColon,
	"zed":         FileColon,
	"micro":       Micro,
	"o":           O,
	"code":        VSCode,
	"code-oss":    VSCode,
	"surf":        VSCode,
	"windsurf":    VSCode,
	"cursor":      VSCode,
	"idea":        IDEA,
	"charm":       PyCharm,
	"pycharm":     PyCharm,
}

var vscodeSchemes = map[string]string{
	"code":     "vscode",
	"code-oss": "code-oss",
	"surf":     "windsurf",
	"windsurf": "windsurf",
	"cursor":   "cursor",
}

// Editor is a parsed editor command line.
type Editor struct {
	Name   string
	Family Family
	Path   string
	Args   []string
}

// Parse splits an editor setting such as "code --wait" and identifies the
// editor family.
func Parse(setting string) (Editor, error) {
	words, err := shlex.Split(setting)
	if err != nil {
		return Editor{}, fmt.Errorf("parse editor %q: %w", setting, err)
	}
	if len(words) == 0 {
		return Editor{}, ErrNoEditor
	}
	name := filepath.Base(words[0])
	family, ok := families[name]
	if !ok {
		return Editor{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	return Editor{Name: name, Family: family, Path: words[0], Args: words[1:]}, nil
}

// Command returns the command opening loc.File at loc.Line and, when set,
// loc.Column.
func (e Editor) Command(loc block.Location) (Command, error) {
	line := strconv.Itoa(loc.Line)
	col := strconv.Itoa(loc.Column)
	hasCol := loc.Column > 0
	argv := func(extra ...string) Exec {
		return Exec{Args: slices.Concat([]string{e.Path}, e.Args, extra)}
	}

	switch e.Family {
	case Vim:
		if hasCol {
			return argv("+"+line, "+normal! "+col+"l", loc.File), nil
		}
		return argv("+"+line, loc.File), nil
	case Emacs:
		return argv(plusPosition(line, col, hasCol, ":"), loc.File), nil
	case Nano:
		return argv(plusPosition(line, col, hasCol, ","), loc.File), nil
	case Joe:
		return argv("+"+line, loc.File), nil
	case FileColon:
		return argv(colonPosition(loc)), nil
	case Micro:
		return argv(loc.File, plusPosition(line, col, hasCol, ":")), nil
	case O:
		if hasCol {
			return argv(loc.File, "+"+line, "+"+col), nil
		}
		return argv(loc.File, "+"+line), nil
	case VSCode:
		if e.waits() {
			return argv("--goto", colonPosition(loc)), nil
		}
		abs, err := filepath.Abs(loc.File)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", loc.File, err)
		}
		u := vscodeSchemes[e.Name] + "://file" + filepath.ToSlash(abs) + ":" + line
		if hasCol {
			u += ":" + col
		}
		return newURL(u), nil
	case IDEA:
		if e.waits() {
			extra := []string{"--line", line}
			if hasCol {
				extra = append(extra, "--column", col)
			}
			return argv(append(extra, loc.File)...), nil
		}
		return jetbrainsURL("idea", loc)
	case PyCharm:
		return jetbrainsURL("pycharm", loc)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, e.Name)
}

func (e Editor) waits() bool {
	return slices.Contains(e.Args, "--wait")
}

func plusPosition(line, col string, hasCol bool, sep string) string {
	if hasCol {
		return "+" + line + sep + col
	}
	return "+" + line
}

func colonPosition(loc block.Location) string {
	dest := loc.File + ":" + strconv.Itoa(loc.Line)
	if loc.Column > 0 {
		dest += ":" + strconv.Itoa(loc.Column)
	}
	return dest
}

// jetbrainsURL requires the file to exist: the IDE resolves it by absolute path.
func jetbrainsURL(scheme string, loc block.Location) (Command, error) {
	abs, err := filepath.Abs(loc.File)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", loc.File, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", loc.File, err)
	}
	u := scheme + "://open?file=" + url.PathEscape(abs) + "&line=" + strconv.Itoa(loc.Line)
	if loc.Column > 0 {
		u += "&column=" + strconv.Itoa(loc.Column)
	}
	return newURL(u), nil
}

// Config selects how an editor is launched. Templates take precedence over
// Editor, which takes precedence over $EDITOR and $VISUAL.
type Config struct {
	Editor    string
	Templates Templates
}

// For returns the command opening loc according to cfg. getenv supplies
// $EDITOR and $VISUAL; nil means os.Getenv.
func For(cfg Config, loc block.Location, getenv func(string) string) (Command, error) {
	if cmd, ok, err := cfg.Templates.Command(loc); ok || err != nil {
		return cmd, err
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	setting := cfg.Editor
	for _, name := range []string{"EDITOR", "VISUAL"} {
		if setting != "" {
			break
		}
		setting = getenv(name)
	}
	if setting == "" {
		return nil, ErrNoEditor
	}
	ed, err := Parse(setting)
	if err != nil {
		return nil, err
	}
	return ed.Command(loc)
}
