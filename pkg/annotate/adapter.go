package annotate

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/quickfix/pkg/block"
	"github.com/ternarybob/quickfix/pkg/stream"
	"github.com/ternarybob/quickfix/pkg/tool"
)

// ErrNotFound is returned when the errorformat binary cannot be started.
var ErrNotFound = errors.New("errorformat not found. Install with:\n" +
	"  go install github.com/reviewdog/errorformat/cmd/errorformat@latest")

// ExitError reports a non-zero annotator exit with its standard error.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("errorformat exited with status %d", e.Code)
	}
	return fmt.Sprintf("errorformat exited with status %d: %s", e.Code, msg)
}

// CommandFunc builds the annotator process for the given arguments.
type CommandFunc func(ctx context.Context, args ...string) *exec.Cmd

// Adapter runs the annotator.
type Adapter struct {
	command CommandFunc
	logger  arbor.ILogger

	listOnce sync.Once
	builtins map[string]bool
	listErr  error
}

// New returns an Adapter running the errorformat binary found on PATH.
func New(logger arbor.ILogger) *Adapter {
	return NewWithCommand(logger, func(ctx context.Context, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "errorformat", args...)
	})
}

// NewWithCommand returns an Adapter using command to build processes.
func NewWithCommand(logger arbor.ILogger, command CommandFunc) *Adapter {
	return &Adapter{command: command, logger: logger}
}

func startError(err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return fmt.Errorf("start errorformat: %w", err)
}

// Builtins returns the format names errorformat knows natively. The list is
// fetched once per Adapter.
func (a *Adapter) Builtins(ctx context.Context) (map[string]bool, error) {
	a.listOnce.Do(func() {
		cmd := a.command(ctx, "-list")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		a.logger.Debug().Strs("command", cmd.Args).Msg("Listing errorformat builtins")
		out, err := cmd.Output()
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				a.listErr = &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
			} else {
				a.listErr = startError(err)
			}
			return
		}
		a.builtins = make(map[string]bool)
		for _, line := range strings.Split(string(out), "\n") {
			if fields := strings.Fields(line); len(fields) > 0 {
				a.builtins[fields[0]] = true
			}
		}
	})
	return a.builtins, a.listErr
}

// Resolve maps a format name to a Format: a registered tool first, then an
// errorformat builtin.
func (a *Adapter) Resolve(ctx context.Context, name string) (Format, error) {
	if t, ok := tool.Lookup(name); ok {
		return Format{Tool: t}, nil
	}
	builtins, err := a.Builtins(ctx)
	if err != nil {
		return Format{}, err
	}
	if !builtins[name] {
		return Format{}, fmt.Errorf("%w: unknown format %q", tool.ErrUnsupported, name)
	}
	return Format{Name: name}, nil
}

// Entries runs the annotator with args over lines and yields its records. A
// separate goroutine feeds the annotator's input so neither pipe can fill up
// and stall the other.
func (a *Adapter) Entries(ctx context.Context, args []string, lines stream.Stream[string]) stream.Stream[Entry] {
	cmd := a.command(ctx, append([]string{"-w=jsonl"}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	fail := func(err error) stream.Stream[Entry] {
		return stream.FromFunc(func() (Entry, bool, error) { return Entry{}, false, err })
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fail(fmt.Errorf("annotator stdin: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(fmt.Errorf("annotator stdout: %w", err))
	}
	a.logger.Debug().Strs("command", cmd.Args).Msg("Starting annotator")
	if err := cmd.Start(); err != nil {
		return fail(startError(err))
	}

	var g errgroup.Group
	g.Go(func() error {
		defer stdin.Close()
		for lines.Next() {
			if _, err := io.WriteString(stdin, lines.Value()); err != nil {
				if errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) {
					return nil
				}
				return fmt.Errorf("write annotator input: %w", err)
			}
		}
		return lines.Err()
	})

	out := bufio.NewReader(stdout)
	finished := false
	finish := func() error {
		finished = true
		werr := g.Wait()
		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
			}
			return fmt.Errorf("wait annotator: %w", err)
		}
		a.logger.Debug().Msg("Annotator exited")
		return werr
	}

	return stream.FromFunc(func() (Entry, bool, error) {
		if finished {
			return Entry{}, false, nil
		}
		for {
			record, rerr := out.ReadString('\n')
			if strings.TrimSpace(record) != "" {
				e, perr := parseEntry(strings.TrimSpace(record))
				if perr != nil {
					_ = cmd.Process.Kill()
					_ = finish()
					return Entry{}, false, perr
				}
				a.logger.Debug().Str("entry", e.Summary()).Msg("Annotator entry")
				return e, true, nil
			}
			if rerr != nil {
				if !errors.Is(rerr, io.EOF) {
					_ = finish()
					return Entry{}, false, fmt.Errorf("read annotator output: %w", rerr)
				}
				return Entry{}, false, finish()
			}
		}
	})
}

// Blocks annotates lines with format f, applies the format's grouping and
// returns blocks whose text carries the original, coloured lines.
func (a *Adapter) Blocks(ctx context.Context, f Format, lines stream.Stream[string]) stream.Stream[block.Block] {
	colours := newColourMap()
	entries := a.Entries(ctx, f.Args(), stream.Map(lines, colours.strip))
	switch f.Grouping() {
	case tool.GroupByLocation:
		entries = GroupByLocation(entries)
	case tool.GroupByHeading:
		entries = GroupByHeading(entries)
	}
	return stream.Map(entries, func(e Entry) block.Block {
		return e.Block(colours.restore)
	})
}
