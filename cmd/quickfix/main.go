// Package main provides the quickfix command.
//
// quickfix runs a compiler, checker or test runner and lists its output in
// fzf, one entry per error. Pressing enter opens the editor at the error;
// r reruns the command, and so does saving a file.
//
// Usage:
//
//	quickfix [flags] -- COMMAND [ARGS...]   - list COMMAND's errors in fzf
//	quickfix --top -- make ...              - list a build, with nested quickfix --format output
//	quickfix --format -- COMMAND ...        - inside a build: emit blocks for the top-level list
//
// --reload, --select, --start and --message are called back by fzf.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/quickfix/internal/app"
	"github.com/ternarybob/quickfix/internal/config"
	"github.com/ternarybob/quickfix/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type runFunc func(ctx context.Context, opts app.Options, configPath string, stdout, stderr io.Writer) error

func newRootCmd(run runFunc) *cobra.Command {
	var (
		opts       app.Options
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "quickfix [flags] -- COMMAND [ARGS...]",
		Short: "List compiler and checker errors in fzf and open them in your editor",
		Long: `quickfix runs COMMAND and shows its output in fzf, split into one entry per
error. enter opens the editor at the error, r reruns COMMAND, q quits.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Args = args
			return run(cmd.Context(), opts, configPath, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.SetVersionTemplate("quickfix {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &app.ConfigError{Msg: err.Error()}
	})

	f := cmd.Flags()
	// Flags after the command's name belong to the command.
	f.SetInterspersed(false)
	f.BoolVar(&opts.Reload, "reload", false, "run COMMAND and print blocks (fzf reload action)")
	f.BoolVar(&opts.Select, "select", false, "open the editor at FILE LINE COL END_LINE END_COL [TEXT] (fzf enter action)")
	f.BoolVar(&opts.Start, "start", false, "report fzf's listen port to the session (fzf start action)")
	f.BoolVar(&opts.Message, "message", false, "log an fzf event in verbose mode")
	f.BoolVar(&opts.Format, "format", false, "print blocks for an enclosing quickfix --top, or pass output through")
	f.BoolVar(&opts.Top, "top", false, "treat COMMAND as a build system running nested quickfix --format")
	f.StringVarP(&opts.FormatName, "format-name", "f", "", "errorformat tool or builtin format name")
	f.StringArrayVarP(&opts.Patterns, "pattern", "p", nil, "errorformat pattern (repeatable)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "show commands and fzf events")
	f.StringVar(&opts.Theme, "theme", "", "colour theme: auto, dark, light or bw")
	f.StringVar(&configPath, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	return cmd
}

func execute(ctx context.Context, opts app.Options, configPath string, stdout, stderr io.Writer) error {
	if os.Getenv(app.EnvVerbose) == "1" {
		opts.Verbose = true
	}
	mode, err := opts.Mode()
	if err != nil {
		return err
	}

	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return &app.ConfigError{Msg: err.Error()}
	}
	log := logger.SetupLogger(cfg)
	defer logger.Stop()

	// While fzf owns the terminal, verbose output goes to a file shared with
	// the callbacks and is shown once fzf exits.
	consoleOut := stderr
	logFile := ""
	if opts.Verbose && (mode == app.ModeList || os.Getenv(logger.EnvLogFile) != "") {
		lf, err := logger.OpenLogFile(os.Getenv)
		if err != nil {
			log.Warn().Err(err).Msg("Verbose output stays on stderr")
		} else {
			consoleOut = lf
			logFile = lf.Path()
			defer func() {
				if err := lf.Close(stderr); err != nil {
					log.Warn().Err(err).Msg("Log file replay failed")
				}
			}()
		}
	}
	color := logger.IsTerminal(os.Stderr) && os.Getenv("NO_COLOR") == ""
	console := logger.NewConsole(consoleOut, opts.Verbose, color, log)
	console.Entry(append([]string{filepath.Base(os.Args[0])}, os.Args[1:]...))

	a := app.New(cfg, console, log)
	a.Stdout = stdout
	a.Stderr = stderr
	a.LogFile = logFile
	return a.Run(ctx, opts)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(execute).ExecuteContext(ctx)
	stop()
	if err != nil {
		var exitErr *app.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(app.ExitCode(err))
	}
}
