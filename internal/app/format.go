package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/ternarybob/quickfix/pkg/markers"
	"github.com/ternarybob/quickfix/pkg/session"
)

// format runs a command nested in a build driven by quickfix, for example a
// checker called from a makefile. Inside a session its blocks are wrapped in
// nested-stream markers for the top-level demultiplexer. Outside one the
// command runs untouched. Either way the command's exit status is kept, so
// the build system still sees failures.
func (a *App) format(ctx context.Context, opts Options) error {
	if a.Getenv(session.EnvPort) == "" {
		return a.passthrough(ctx, opts)
	}

	p, err := a.pipeline(ctx, opts)
	if err != nil {
		return err
	}
	cmd, err := a.command(ctx, opts, a.childEnv(opts))
	if err != nil {
		return err
	}
	proc, out, err := session.StartProcess(cmd)
	if err != nil {
		return fmt.Errorf("run %s: %w", opts.Args[0], err)
	}
	defer out.Close()

	w := markers.NewWriter(a.Stdout)
	n, werr := writeRecords(w, p.records(ctx, out))
	cerr := w.Close()
	if werr != nil {
		_ = proc.Kill()
	}
	_ = proc.Wait()
	a.Logger.Debug().Str("blocks", fmt.Sprint(n)).Msg("Formatted nested output")
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return cerr
	}
	if code := proc.ExitCode(); code > 0 {
		return &ExitError{Code: code}
	}
	return nil
}

func (a *App) passthrough(ctx context.Context, opts Options) error {
	if len(opts.Args) == 0 {
		return configErrorf("no command given")
	}
	cmd := exec.CommandContext(ctx, opts.Args[0], opts.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = a.Stdout
	cmd.Stderr = a.Stderr
	cmd.Env = a.Environ()
	a.Console.Command(cmd.Args)
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", opts.Args[0], err)
	}
	return nil
}
