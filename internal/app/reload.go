package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ternarybob/quickfix/pkg/session"
)

// reload is fzf's reload action. The session server stops the previous run
// before answering, then the command's blocks go to fzf through stdout and
// its raw output is saved for replay on abort.
func (a *App) reload(ctx context.Context, opts Options) error {
	client, err := session.ClientFromEnv(a.Getenv)
	if err != nil {
		return err
	}
	if err := client.Reload(ctx); err != nil {
		return err
	}

	p, err := a.pipeline(ctx, opts)
	if err != nil {
		return err
	}
	cmd, err := a.command(ctx, opts, a.childEnv(opts))
	if err != nil {
		return err
	}
	start := time.Now()
	proc, out, err := session.StartProcess(cmd)
	if err != nil {
		return fmt.Errorf("run %s: %w", opts.Args[0], err)
	}
	defer out.Close()

	var raw bytes.Buffer
	n, werr := writeRecords(a.Stdout, p.records(ctx, io.TeeReader(out, &raw)))
	if werr != nil {
		_ = proc.Kill()
	}
	_ = proc.Wait()
	a.Console.Verbosef("Reloaded %d blocks in %s", n, time.Since(start).Round(time.Millisecond))
	if werr != nil && !closedPipe(werr) {
		return werr
	}

	var chunks [][]byte
	if raw.Len() > 0 {
		chunks = [][]byte{raw.Bytes()}
	}
	if err := client.SaveOutput(ctx, chunks); err != nil {
		a.Console.Warnf("Could not save output: %v", err)
	}
	return nil
}
