// Package app runs quickfix in one of its modes. The top-level invocation
// lists a command's output in fzf; fzf then calls quickfix back to reload,
// open the editor, announce its port and log events.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quickfix/internal/config"
	"github.com/ternarybob/quickfix/internal/logger"
	"github.com/ternarybob/quickfix/pkg/annotate"
)

// EnvVerbose propagates --verbose to nested invocations.
const EnvVerbose = "QUICKFIX_VERBOSE"

// Mode is what an invocation does.
type Mode int

const (
	// ModeList runs the command and shows its blocks in fzf.
	ModeList Mode = iota
	// ModeReload waits for the previous run to stop, then prints blocks.
	ModeReload
	// ModeSelect opens the editor at the selected block.
	ModeSelect
	// ModeStart tells the session server fzf's listen port.
	ModeStart
	// ModeMessage logs an fzf event.
	ModeMessage
	// ModeFormat prints blocks wrapped in nested-stream markers.
	ModeFormat
)

func (m Mode) String() string {
	switch m {
	case ModeReload:
		return "reload"
	case ModeSelect:
		return "select"
	case ModeStart:
		return "start"
	case ModeMessage:
		return "message"
	case ModeFormat:
		return "format"
	}
	return "list"
}

// Options are the parsed command line.
type Options struct {
	// Args is the command to run, the selection fields for --select, or the
	// message words for --message.
	Args []string

	Reload  bool
	Select  bool
	Start   bool
	Message bool
	Format  bool
	// Top demultiplexes nested quickfix output. Implied for build systems.
	Top bool

	// FormatName selects a registered tool or an errorformat builtin.
	FormatName string
	// Patterns are custom errorformat patterns.
	Patterns []string

	Verbose bool
	// Theme overrides the configured theme when set.
	Theme string
}

const exclusiveMessage = "Options --reload, --select, --start, --message, --format, and --top are mutually exclusive"

// Mode validates the flag combination and returns the selected mode. --top
// combines with --reload and with the default list mode only.
func (o Options) Mode() (Mode, error) {
	modes := []struct {
		on   bool
		mode Mode
	}{
		{o.Reload, ModeReload},
		{o.Select, ModeSelect},
		{o.Start, ModeStart},
		{o.Message, ModeMessage},
		{o.Format, ModeFormat},
	}
	mode, count := ModeList, 0
	for _, m := range modes {
		if m.on {
			mode = m.mode
			count++
		}
	}
	if count > 1 || (o.Top && count == 1 && mode != ModeReload) {
		return ModeList, &ConfigError{Msg: exclusiveMessage}
	}
	if o.FormatName != "" && len(o.Patterns) > 0 {
		return ModeList, &ConfigError{Msg: "Options -f/--format-name and -p/--pattern are mutually exclusive"}
	}
	return mode, nil
}

// ConfigError is a usage or configuration mistake. Nothing has run yet.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// ExitError asks for a specific exit status. The failure has already been
// reported. Err, when set, is the failure that was reported.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Run to a process exit status.
func ExitCode(err error) int {
	var exitErr *ExitError
	var cfgErr *ConfigError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.As(err, &cfgErr):
		return 2
	}
	return 1
}

// App holds what every mode needs. Fields left empty by New may be replaced
// before Run, which tests do to substitute fakes.
type App struct {
	Config  *config.Config
	Console *logger.Console
	Logger  arbor.ILogger
	Adapter *annotate.Adapter

	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	// Environ is the environment passed on to child processes.
	Environ func() []string
	// Self is the command fzf runs for callbacks.
	Self string
	// FzfPath is fzf's path. Empty looks it up on PATH.
	FzfPath string
	// BatPath is bat's path for the preview. Empty looks it up on PATH.
	BatPath string
	// Root is the directory watched for changes.
	Root string
	// LogFile is the shared verbose log, passed on to child processes so
	// their console output lands in it too.
	LogFile string
}

// New returns an App writing to the process's standard streams.
func New(cfg *config.Config, console *logger.Console, log arbor.ILogger) *App {
	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}
	errorformat := cfg.Errorformat.Path
	if errorformat == "" {
		errorformat = "errorformat"
	}
	return &App{
		Config:  cfg,
		Console: console,
		Logger:  log,
		Adapter: annotate.NewWithCommand(log, func(ctx context.Context, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, errorformat, args...)
		}),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Getenv:  os.Getenv,
		Environ: os.Environ,
		Self:    self,
		Root:    ".",
	}
}

// Run executes the mode selected by opts.
func (a *App) Run(ctx context.Context, opts Options) error {
	mode, err := opts.Mode()
	if err != nil {
		return err
	}
	a.Logger.Debug().Str("mode", mode.String()).Strs("args", opts.Args).Msg("Running")

	switch mode {
	case ModeReload:
		return a.reload(ctx, opts)
	case ModeSelect:
		return a.selectLocation(ctx, opts.Args)
	case ModeStart:
		return a.start(ctx)
	case ModeMessage:
		return a.message(opts.Args)
	case ModeFormat:
		return a.format(ctx, opts)
	}
	return a.list(ctx, opts)
}

// childEnv returns the environment for a child process with extra entries
// appended. Later entries win in os/exec.
func (a *App) childEnv(opts Options, extra ...string) []string {
	env := append(a.Environ(), "FORCE_COLOR=1")
	if opts.Verbose {
		env = append(env, EnvVerbose+"=1")
	}
	if a.LogFile != "" {
		env = append(env, logger.EnvLogFile+"="+a.LogFile)
	}
	return append(env, extra...)
}

// command builds the tool process. The command line is shown in verbose
// mode.
func (a *App) command(ctx context.Context, opts Options, env []string) (*exec.Cmd, error) {
	if len(opts.Args) == 0 {
		return nil, configErrorf("no command given")
	}
	cmd := exec.CommandContext(ctx, opts.Args[0], opts.Args[1:]...)
	cmd.Env = env
	a.Console.Command(cmd.Args)
	return cmd, nil
}
