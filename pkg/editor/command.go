package editor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Command opens an editor.
type Command interface {
	// Words returns the command line, for logging.
	Words() []string
	// Run executes the command attached to the current terminal.
	Run(ctx context.Context) error
}

// Exec runs an editor process directly.
type Exec struct {
	Args []string
}

// Words implements Command.
func (e Exec) Words() []string {
	return e.Args
}

// Run implements Command.
func (e Exec) Run(ctx context.Context) error {
	return run(ctx, e.Args)
}

// URL hands an editor URL to the platform opener.
type URL struct {
	URL  string
	GOOS string
}

func newURL(u string) URL {
	return URL{URL: u, GOOS: runtime.GOOS}
}

// Words implements Command.
func (u URL) Words() []string {
	switch u.GOOS {
	case "darwin":
		return []string{"open", u.URL}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", u.URL}
	default:
		return []string{"xdg-open", u.URL}
	}
}

// Run implements Command.
func (u URL) Run(ctx context.Context) error {
	return run(ctx, u.Words())
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("empty editor command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	return nil
}
