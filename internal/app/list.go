package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/ternarybob/quickfix/pkg/fzf"
	"github.com/ternarybob/quickfix/pkg/monitor"
	"github.com/ternarybob/quickfix/pkg/session"
	"github.com/ternarybob/quickfix/pkg/shell"
	"github.com/ternarybob/quickfix/pkg/stream"
)

// list runs the command and shows its blocks in fzf. fzf is only started
// once the command has produced a first block.
func (a *App) list(ctx context.Context, opts Options) error {
	if len(opts.Args) == 0 {
		return configErrorf("no command given")
	}
	theme, err := a.theme(opts)
	if err != nil {
		return err
	}
	p, err := a.pipeline(ctx, opts)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := session.NewServer(session.ServerConfig{
		Grace:     a.Config.Reload.Grace,
		IOTimeout: a.Config.Reload.Timeout,
	}, a.Logger)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start session server: %w", err)
	}
	defer srv.Close()

	fzfKey := session.NewAPIKey()
	cb := a.callbacks(opts)
	if a.Config.Monitor.Enabled {
		if mon := a.startMonitor(cb.Reload, fzfKey, srv); mon != nil {
			defer mon.Stop()
		}
	}

	env := a.childEnv(opts, append(srv.Env(), fzf.EnvAPIKey+"="+fzfKey)...)
	cmd, err := a.command(ctx, opts, env)
	if err != nil {
		return err
	}
	proc, out, err := session.StartProcess(cmd)
	if err != nil {
		return fmt.Errorf("run %s: %w", opts.Args[0], err)
	}
	defer out.Close()
	srv.SetProcess(proc)

	var initial bytes.Buffer
	records := p.records(ctx, io.TeeReader(out, &initial))
	if !records.Next() {
		if err := records.Err(); err != nil {
			_ = proc.Kill()
			_ = proc.Wait()
			return err
		}
		_ = proc.Wait()
		a.Console.Verbosef("No output")
		return nil
	}

	args := fzf.Args(cb, fzf.Options{
		Header:      shell.Join(opts.Args),
		Theme:       theme,
		Verbose:     opts.Verbose,
		Preview:     a.Config.UI.Preview,
		Bat:         a.batPath(),
		BatThemeSet: a.Getenv("BAT_THEME") != "",
	})
	fzfPath := a.FzfPath
	if fzfPath == "" {
		fzfPath = a.Config.UI.Fzf
	}
	a.Console.Command(append([]string{"fzf"}, args...))
	picker, err := fzf.Start(ctx, fzfPath, args, env)
	if err != nil {
		_ = proc.Kill()
		_ = proc.Wait()
		return err
	}

	fed := make(chan error, 1)
	go a.feed(picker.Input(), records, fed)
	code, err := picker.Wait()

	// A feed error already sent when fzf exits is a real failure. Later ones
	// come from stopping the command or annotator below.
	var feedErr error
	select {
	case feedErr = <-fed:
		fed = nil
	default:
	}

	// fzf is gone: stop the command so the feeder sees the end of its output.
	if proc.Running() {
		_ = proc.Terminate()
	}
	cancel()
	if fed != nil {
		if late := <-fed; late != nil {
			a.Logger.Debug().Err(late).Msg("Feeding fzf stopped")
		}
	}
	_ = proc.Wait()

	if err != nil {
		return fmt.Errorf("wait for fzf: %w", err)
	}
	if feedErr != nil {
		a.Console.Errorf("", "%v", feedErr)
	}
	if err := a.fzfExit(code, srv, &initial); err != nil {
		return err
	}
	if feedErr != nil {
		return &ExitError{Code: 1, Err: feedErr}
	}
	return nil
}

// feed writes the current record and the rest of records to fzf's input.
// The result is sent before the input is closed, so it is in fed by the time
// fzf sees the end of its input.
func (a *App) feed(w io.WriteCloser, records stream.Stream[string], fed chan<- error) {
	defer w.Close()
	if _, err := io.WriteString(w, records.Value()); err != nil {
		if closedPipe(err) {
			err = nil
		}
		fed <- err
		return
	}
	n, err := writeRecords(w, records)
	a.Logger.Debug().Str("records", fmt.Sprint(n+1)).Msg("Fed fzf")
	if closedPipe(err) {
		err = nil
	}
	fed <- err
}

// fzfExit reports fzf's exit status. On abort the latest output is printed so
// it stays visible after fzf clears the screen.
func (a *App) fzfExit(code int, srv *session.Server, initial *bytes.Buffer) error {
	msg, ok := fzf.ExitMessage(code)
	if !ok {
		a.Console.Errorf("fzf:", "%s", msg)
		return &ExitError{Code: code}
	}
	a.Console.Successf("fzf: %s", msg)
	if code == fzf.ExitAborted {
		if srv.Output().HasOutput() {
			_, err := srv.Output().WriteTo(a.Stdout)
			return err
		}
		_, err := initial.WriteTo(a.Stdout)
		return err
	}
	return nil
}

func (a *App) theme(opts Options) (fzf.Theme, error) {
	option := a.Config.UI.Theme
	if opts.Theme != "" {
		option = opts.Theme
	}
	t, err := fzf.ParseTheme(option)
	if err != nil {
		return "", configErrorf("%v", err)
	}
	return fzf.DetectTheme(t, a.Getenv), nil
}

func (a *App) batPath() string {
	if a.BatPath != "" {
		return a.BatPath
	}
	for _, name := range []string{a.Config.UI.Bat, "bat", "batcat"} {
		if name == "" {
			continue
		}
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// callbacks builds the commands fzf runs. They call this executable back
// with the flags that shape the output, so a reload formats like the first
// run.
func (a *App) callbacks(opts Options) fzf.Callbacks {
	self := []string{a.Self}
	if opts.Verbose {
		self = append(self, "--verbose")
	}
	with := func(words ...string) string {
		return shell.Join(append(append([]string(nil), self...), words...))
	}

	reload := []string{"--reload"}
	if opts.Top {
		reload = append(reload, "--top")
	}
	if opts.FormatName != "" {
		reload = append(reload, "--format-name", opts.FormatName)
	}
	for _, p := range opts.Patterns {
		reload = append(reload, "--pattern", p)
	}
	reload = append(append(reload, "--"), opts.Args...)

	return fzf.Callbacks{
		Start:   with("--start"),
		Reload:  with(reload...),
		Select:  with("--select", "--"),
		Message: with("--message"),
	}
}

func (a *App) startMonitor(reloadCommand, apiKey string, srv *session.Server) *monitor.Monitor {
	mon, err := monitor.New(monitor.Config{
		Root:          a.Root,
		ReloadCommand: reloadCommand,
		APIKey:        apiKey,
		Debounce:      a.Config.Monitor.Debounce,
		MaxWait:       a.Config.Monitor.MaxWait,
	}, srv, a.Logger)
	if err == nil {
		err = mon.Start()
	}
	if err != nil {
		a.Console.Warnf("File monitor disabled: %v", err)
		return nil
	}
	return mon
}
