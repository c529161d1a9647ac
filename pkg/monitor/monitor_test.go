package monitor

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// fakePicker records the actions posted to its remote-control endpoint.
type fakePicker struct {
	mu      sync.Mutex
	actions []string
	keys    []string
	server  *httptest.Server
}

func newFakePicker(t *testing.T) *fakePicker {
	t.Helper()
	p := &fakePicker{}
	r := chi.NewRouter()
	r.Post("/", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		p.mu.Lock()
		p.actions = append(p.actions, string(body))
		p.keys = append(p.keys, req.Header.Get(HeaderAPIKey))
		p.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	p.server = httptest.NewServer(r)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePicker) port(t *testing.T) int {
	_, port, err := net.SplitHostPort(p.server.Listener.Addr().String())
	require.NoError(t, err)
	n, err := strconv.Atoi(port)
	require.NoError(t, err)
	return n
}

func (p *fakePicker) posted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

type staticPorts struct {
	ready chan struct{}
	port  int
}

func readyPorts(port int) *staticPorts {
	ch := make(chan struct{})
	close(ch)
	return &staticPorts{ready: ch, port: port}
}

func (s *staticPorts) Ready() <-chan struct{} { return s.ready }
func (s *staticPorts) FzfPort() int           { return s.port }

func TestAction(t *testing.T) {
	assert.Equal(t, "reload(quickfix --reload -- make)", Action("quickfix --reload -- make"))
}

func TestMonitor_Reload(t *testing.T) {
	picker := newFakePicker(t)
	m, err := New(Config{
		Root:          t.TempDir(),
		ReloadCommand: "quickfix --reload -- ruff check",
		APIKey:        "secret",
	}, readyPorts(picker.port(t)), arbor.NewLogger())
	require.NoError(t, err)
	defer m.Stop()

	require.NoError(t, m.Reload(t.Context()))
	assert.Equal(t, []string{"reload(quickfix --reload -- ruff check)"}, picker.posted())
	assert.Equal(t, []string{"secret"}, picker.keys)
}

func TestMonitor_ReloadWithoutPort(t *testing.T) {
	m, err := New(Config{Root: t.TempDir()}, &staticPorts{ready: make(chan struct{})}, arbor.NewLogger())
	require.NoError(t, err)
	defer m.Stop()

	assert.Error(t, m.Reload(t.Context()))
}

func TestMonitor_ReloadOnChange(t *testing.T) {
	root := t.TempDir()
	picker := newFakePicker(t)
	m, err := New(Config{
		Root:          root,
		ReloadCommand: "true",
		Debounce:      20 * time.Millisecond,
		MaxWait:       100 * time.Millisecond,
	}, readyPorts(picker.port(t)), arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("x = 1\n"), 0o644))

	require.Eventually(t, func() bool {
		return len(picker.posted()) > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "reload(true)", picker.posted()[0])
}

func TestMonitor_IgnoresChangesBeforeReady(t *testing.T) {
	root := t.TempDir()
	picker := newFakePicker(t)
	ports := &staticPorts{ready: make(chan struct{}), port: picker.port(t)}
	m, err := New(Config{
		Root:     root,
		Debounce: 10 * time.Millisecond,
		MaxWait:  50 * time.Millisecond,
	}, ports, arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, picker.posted())
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	m, err := New(Config{Root: t.TempDir()}, readyPorts(1), arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, m.Start())
	require.NoError(t, m.Stop())
	assert.NoError(t, m.Stop())
	assert.Error(t, m.Start())
}
