// Package fzf builds and runs the fzf picker that displays blocks.
//
// Blocks reach fzf as NUL-terminated records of six 0x1f-separated fields;
// fields 1 to 5 hold the location and are hidden, field 6 is displayed.
package fzf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/ternarybob/quickfix/pkg/block"
)

// ErrNotFound is returned when fzf is not on PATH.
var ErrNotFound = errors.New("fzf not found, install it from https://github.com/junegunn/fzf")

// Env names fzf exports to commands it runs.
const (
	EnvAPIKey = "FZF_API_KEY"
	EnvPort   = "FZF_PORT"
)

// Exit statuses of fzf.
const (
	ExitOK        = 0
	ExitNoMatch   = 1
	ExitError     = 2
	ExitDenied    = 126
	ExitNoCommand = 127
	ExitAborted   = 130
)

// Callbacks are the shell commands fzf runs on events. Each is already
// quoted for the shell; fields and messages are appended to Select and
// Message.
type Callbacks struct {
	Start   string
	Reload  string
	Select  string
	Message string
}

// Options configures the picker.
type Options struct {
	// Header is the quoted command being listed.
	Header string
	Theme  Theme
	// Verbose binds LOAD, RELOAD and ZERO event messages.
	Verbose bool
	// Preview shows the preview window at start.
	Preview bool
	// Bat is the path to bat, empty when it is not installed.
	Bat string
	// BatThemeSet is true when $BAT_THEME overrides the theme.
	BatThemeSet bool
}

// Args returns fzf's arguments, without the program name.
func Args(cb Callbacks, opts Options) []string {
	running := opts.Header + " Running..."
	bindings := []string{
		"start:change-header(" + running + ")",
		"start:+execute-silent(" + cb.Start + ")",
		"load:change-header(" + opts.Header + ")",
	}
	bindings = append(bindings, opts.event("load", cb.Message, "LOAD", true)...)
	bindings = append(bindings,
		"enter:execute("+cb.Select+" {1} {2} {3} {4} {5} {6})",
		"r:change-header("+running+")",
	)
	bindings = append(bindings, opts.event("r", cb.Message, "RELOAD", true)...)
	bindings = append(bindings, "r:+reload("+cb.Reload+")", "q:abort")
	bindings = append(bindings, opts.event("zero", cb.Message, "ZERO", false)...)
	bindings = append(bindings,
		"zero:+accept",
		"space:down",
		"backspace:up",
		"/,ctrl-/:toggle-preview",
		"home:first",
		"end:last",
	)

	color := "--color=" + string(opts.Theme)
	if opts.Theme == BW {
		color = "--no-color"
	}
	return []string{
		"--listen", "--read0", "--track",
		"--no-sort", "--reverse", "--header-border",
		"--ansi", color, "--highlight-line", "--wrap",
		"--delimiter=" + string(block.FieldSep), "--with-nth=6",
		"--preview", opts.previewCommand(),
		"--preview-window", opts.previewWindow(),
		"--disabled", "--no-input",
		"--bind", strings.Join(bindings, ","),
	}
}

func (o Options) event(key, prefix, message string, chained bool) []string {
	if !o.Verbose {
		return nil
	}
	plus := ""
	if chained {
		plus = "+"
	}
	return []string{key + ":" + plus + "execute-silent(" + prefix + " " + message + ")"}
}

func (o Options) previewCommand() string {
	if o.Bat == "" {
		return "echo 'Preview requires bat (https://github.com/sharkdp/bat)'"
	}
	cmd := []string{o.Bat}
	switch {
	case o.BatThemeSet:
		cmd = append(cmd, "-f")
	case o.Theme != BW:
		cmd = append(cmd, "-f", "--theme="+string(o.Theme))
	}
	cmd = append(cmd, "--style=numbers,grid", "--highlight-line={2}", "{1}")
	return strings.Join(cmd, " ")
}

func (o Options) previewWindow() string {
	// Single column below 88 columns, centred on the error line.
	w := "right,50%,border-line,info,<88(top),+{2}/2"
	if !o.Preview {
		w += ",hidden"
	}
	return w
}

// ExitMessage describes an fzf exit status. ok is false for failures.
func ExitMessage(code int) (msg string, ok bool) {
	switch code {
	case ExitOK:
		return "normal exit (0)", true
	case ExitNoMatch:
		return "no match (1)", true
	case ExitError:
		return "error (2)", false
	case ExitDenied:
		return "become command denied (126)", false
	case ExitNoCommand:
		return "become command not found (127)", false
	case ExitAborted:
		return "aborted by user (130)", true
	}
	return fmt.Sprintf("exited with status %d", code), false
}

// Picker is a running fzf process reading records from Input.
type Picker struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// Start launches fzf attached to the terminal. path is fzf's path; empty
// looks it up on PATH.
func Start(ctx context.Context, path string, args, env []string) (*Picker, error) {
	if path == "" {
		p, err := exec.LookPath("fzf")
		if err != nil {
			return nil, ErrNotFound
		}
		path = p
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("fzf stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start fzf: %w", err)
	}
	return &Picker{cmd: cmd, stdin: stdin}, nil
}

// Input receives wire-format records. Closing it ends fzf's input; fzf keeps
// running until the user leaves.
func (p *Picker) Input() io.WriteCloser {
	return p.stdin
}

// Wait returns fzf's exit status. A non-zero status is not an error. Input is
// closed once fzf has exited, so a blocked writer is released.
func (p *Picker) Wait() (int, error) {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}
