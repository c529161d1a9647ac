package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quickfix/internal/config"
	"github.com/ternarybob/quickfix/internal/logger"
	"github.com/ternarybob/quickfix/pkg/annotate"
)

// fakeErrorformat re-executes the test binary as a minimal errorformat.
func fakeErrorformat(ctx context.Context, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

// failingErrorformat is fakeErrorformat exiting with status 3 after its
// first record.
func failingErrorformat(ctx context.Context, args ...string) *exec.Cmd {
	cmd := fakeErrorformat(ctx, args...)
	cmd.Env = append(cmd.Env, "GO_HELPER_FAIL=1")
	return cmd
}

var fakeLocation = regexp.MustCompile(`^([^:\s]+):(\d+): `)

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) > 0 && args[0] == "-list" {
		fmt.Println("golint\t\tlinter for Go source code")
		os.Exit(0)
	}
	sc := bufio.NewScanner(os.Stdin)
	enc := json.NewEncoder(os.Stdout)
	for sc.Scan() {
		line := sc.Text()
		rec := map[string]any{"lines": []string{line}, "text": line}
		if m := fakeLocation.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[2])
			rec["filename"], rec["lnum"], rec["valid"] = m[1], n, true
		}
		_ = enc.Encode(rec)
		if os.Getenv("GO_HELPER_FAIL") == "1" {
			fmt.Fprintln(os.Stderr, "errorformat: pattern blew up")
			os.Exit(3)
		}
	}
	os.Exit(0)
}

func mapEnv(env map[string]string) func(string) string {
	return func(k string) string { return env[k] }
}

func sh(script string) []string {
	return []string{"sh", "-c", script}
}

// newTestApp returns an App with its output and console captured. The
// monitor is off and the theme fixed so nothing probes the terminal.
func newTestApp(t *testing.T, verbose bool) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	cfg := config.DefaultConfig()
	cfg.Monitor.Enabled = false
	cfg.UI.Theme = "dark"

	var stdout, console bytes.Buffer
	log := arbor.NewLogger()
	a := New(cfg, logger.NewConsole(&console, verbose, false, log), log)
	a.Stdout = &stdout
	a.Stderr = &console
	a.Adapter = annotate.NewWithCommand(log, fakeErrorformat)
	a.Getenv = mapEnv(nil)
	a.Self = "quickfix"
	a.BatPath = "bat"
	return a, &stdout, &console
}

func TestOptions_Mode(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    Mode
		wantErr string
	}{
		{name: "default", opts: Options{}, want: ModeList},
		{name: "top list", opts: Options{Top: true}, want: ModeList},
		{name: "reload", opts: Options{Reload: true}, want: ModeReload},
		{name: "reload top", opts: Options{Reload: true, Top: true}, want: ModeReload},
		{name: "select", opts: Options{Select: true}, want: ModeSelect},
		{name: "start", opts: Options{Start: true}, want: ModeStart},
		{name: "message", opts: Options{Message: true}, want: ModeMessage},
		{name: "format", opts: Options{Format: true}, want: ModeFormat},
		{name: "reload select", opts: Options{Reload: true, Select: true}, wantErr: "mutually exclusive"},
		{name: "select top", opts: Options{Select: true, Top: true}, wantErr: "--top are mutually exclusive"},
		{name: "format top", opts: Options{Format: true, Top: true}, wantErr: "mutually exclusive"},
		{name: "name and pattern", opts: Options{FormatName: "mypy", Patterns: []string{"%f:%l: %m"}}, wantErr: "-f/--format-name and -p/--pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.Mode()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, 2, ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 130, ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: 130})))
	assert.Equal(t, 2, ExitCode(&ConfigError{Msg: "bad"}))
	assert.Equal(t, 1, ExitCode(assert.AnError))
}

func TestCallbacks(t *testing.T) {
	a := &App{Self: "/usr/bin/quickfix"}

	cb := a.callbacks(Options{Args: []string{"make", "-k"}, Top: true, Verbose: true})
	assert.Equal(t, "/usr/bin/quickfix --verbose --reload --top -- make -k", cb.Reload)
	assert.Equal(t, "/usr/bin/quickfix --verbose --select --", cb.Select)
	assert.Equal(t, "/usr/bin/quickfix --verbose --start", cb.Start)
	assert.Equal(t, "/usr/bin/quickfix --verbose --message", cb.Message)

	cb = a.callbacks(Options{Args: []string{"make"}})
	assert.Equal(t, "/usr/bin/quickfix --reload -- make", cb.Reload)

	cb = a.callbacks(Options{Args: []string{"tool", "a b"}, Patterns: []string{"%f:%l: %m"}})
	assert.Equal(t, "/usr/bin/quickfix --reload --pattern '%f:%l: %m' -- tool 'a b'", cb.Reload)
}

func TestPipeline_Selection(t *testing.T) {
	a, _, _ := newTestApp(t, false)
	ctx := context.Background()

	tests := []struct {
		name     string
		opts     Options
		wantName string
		wantTop  bool
	}{
		{name: "registered tool", opts: Options{Args: []string{"mypy", "src"}}, wantName: "mypy"},
		{name: "build system implies top", opts: Options{Args: []string{"make"}}, wantName: "make", wantTop: true},
		{name: "explicit top", opts: Options{Args: []string{"tox"}, Top: true}, wantName: "splitter", wantTop: true},
		{name: "unknown tool", opts: Options{Args: []string{"tox"}}, wantName: "splitter"},
		{name: "patterns", opts: Options{Args: []string{"tox"}, Patterns: []string{"%f:%l: %m"}}, wantName: "patterns"},
		{name: "format name override", opts: Options{Args: []string{"tox"}, FormatName: "mypy"}, wantName: "mypy"},
		{name: "errorformat builtin", opts: Options{Args: []string{"tox"}, FormatName: "golint"}, wantName: "golint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := a.pipeline(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.name)
			assert.Equal(t, tt.wantTop, p.top)
		})
	}

	_, err := a.pipeline(ctx, Options{Args: []string{"tox"}, FormatName: "nope"})
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, err.Error(), "-f/--format-name")
}

// fakeFzf writes a picker script that saves its input and exits with code.
func fakeFzf(t *testing.T, code int) (path, input string) {
	t.Helper()
	dir := t.TempDir()
	input = filepath.Join(dir, "input")
	path = filepath.Join(dir, "fzf")
	script := fmt.Sprintf("#!/bin/sh\ncat > '%s'\nexit %d\n", input, code)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path, input
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const twoBlocks = "a.py\x1f1\x1f\x1f\x1f\x1fa.py:1: error\x00b.py\x1f2\x1f\x1f\x1f\x1fb.py:2: warning\x00"

func TestList_FeedsBlocksToFzf(t *testing.T) {
	a, stdout, _ := newTestApp(t, false)
	var input string
	a.FzfPath, input = fakeFzf(t, 0)

	err := a.Run(context.Background(), Options{Args: sh(`printf 'a.py:1: error\nb.py:2: warning\n'`)})
	require.NoError(t, err)
	assert.Equal(t, twoBlocks, readFile(t, input))
	assert.Empty(t, stdout.String())
}

func TestList_EnvironmentContract(t *testing.T) {
	a, _, _ := newTestApp(t, false)
	var input string
	a.FzfPath, input = fakeFzf(t, 0)

	script := `test -n "$QUICKFIX_PORT" && test -n "$QUICKFIX_API_KEY" && test -n "$FZF_API_KEY" && echo "color=$FORCE_COLOR"`
	require.NoError(t, a.Run(context.Background(), Options{Args: sh(script)}))
	assert.Equal(t, "\x1f\x1f\x1f\x1f\x1fcolor=1\x00", readFile(t, input))
}

func TestList_PassesLogFileToChildren(t *testing.T) {
	a, _, _ := newTestApp(t, false)
	var input string
	a.FzfPath, input = fakeFzf(t, 0)
	a.LogFile = filepath.Join(t.TempDir(), "quickfix.log")

	require.NoError(t, a.Run(context.Background(), Options{Args: sh(`echo "log=$QUICKFIX_LOG_FILE"`)}))
	assert.Equal(t, "\x1f\x1f\x1f\x1f\x1flog="+a.LogFile+"\x00", readFile(t, input))
	assert.NotEqual(t, a.LogFile, os.Getenv(logger.EnvLogFile))
}

func TestList_NoOutputSkipsFzf(t *testing.T) {
	a, _, _ := newTestApp(t, true)
	var input string
	a.FzfPath, input = fakeFzf(t, 0)

	require.NoError(t, a.Run(context.Background(), Options{Args: []string{"true"}}))
	_, err := os.Stat(input)
	assert.True(t, os.IsNotExist(err))
}

func TestList_AbortPrintsOutput(t *testing.T) {
	a, stdout, _ := newTestApp(t, false)
	a.FzfPath, _ = fakeFzf(t, 130)

	err := a.Run(context.Background(), Options{Args: sh(`printf 'a.py:1: error\nb.py:2: warning\n'`)})
	require.NoError(t, err)
	assert.Equal(t, "a.py:1: error\nb.py:2: warning\n", stdout.String())
}

func TestList_FzfFailure(t *testing.T) {
	a, _, console := newTestApp(t, false)
	a.FzfPath, _ = fakeFzf(t, 2)

	err := a.Run(context.Background(), Options{Args: sh(`echo a.py:1: error`)})
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, console.String(), "fzf: error (2)")
}

func TestList_AnnotatorFailureIsReported(t *testing.T) {
	a, _, console := newTestApp(t, false)
	a.Adapter = annotate.NewWithCommand(arbor.NewLogger(), failingErrorformat)
	var input string
	a.FzfPath, input = fakeFzf(t, 0)

	err := a.Run(context.Background(), Options{
		Args:     sh(`printf 'a.py:1: error\nb.py:2: warning\n'`),
		Patterns: []string{"%f:%l: %m"},
	})
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	var annErr *annotate.ExitError
	require.ErrorAs(t, err, &annErr)
	assert.Equal(t, 3, annErr.Code)
	assert.Contains(t, console.String(), "pattern blew up")
	assert.Equal(t, "a.py\x1f1\x1f\x1f\x1f\x1fa.py:1: error\x00", readFile(t, input))
}

func TestList_TopModePassesNestedRecords(t *testing.T) {
	a, _, _ := newTestApp(t, false)
	var input string
	a.FzfPath, input = fakeFzf(t, 0)

	script := `printf 'building\n\002a.py\0371\037\037\037\037a.py:1: e\000\003done\n'`
	require.NoError(t, a.Run(context.Background(), Options{Args: sh(script), Top: true}))
	assert.Equal(t,
		"\x1f\x1f\x1f\x1f\x1fbuilding\x00"+
			"a.py\x1f1\x1f\x1f\x1f\x1fa.py:1: e\x00"+
			"\x1f\x1f\x1f\x1f\x1fdone\x00",
		readFile(t, input))
}

func TestList_NoCommand(t *testing.T) {
	a, _, _ := newTestApp(t, false)
	err := a.Run(context.Background(), Options{})
	assert.Equal(t, 2, ExitCode(err))
}
