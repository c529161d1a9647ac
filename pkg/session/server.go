// Package session coordinates the processes of one quickfix invocation over a
// small authenticated line protocol on a loopback TCP socket.
//
// Every request is one connection:
//
//	secret: <api-key>
//	<command>
//
// Commands are "fzf_port: <port>", "reload", "save-output" followed by
// length-prefixed chunks and "end", and "shutdown".
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/ternarybob/arbor"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// APIKey authenticates requests. Generated when empty.
	APIKey string
	// Fs holds captured output. Defaults to the OS filesystem.
	Fs afero.Fs
	// Grace is how long a superseded process gets between terminate and
	// kill. Zero waits without a bound.
	Grace time.Duration
	// IOTimeout bounds every read and write on a connection.
	IOTimeout time.Duration
}

const defaultIOTimeout = 30 * time.Second

// Server owns the state shared by the processes of one invocation: the
// running command, the picker's remote-control port and the saved output.
type Server struct {
	cfg    ServerConfig
	logger arbor.ILogger
	output *OutputStore

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	proc     Process
	fzfPort  int
	closed   bool
	ready    chan struct{}
	readyOne sync.Once
}

// NewServer returns an unstarted server.
func NewServer(cfg ServerConfig, logger arbor.ILogger) *Server {
	if cfg.APIKey == "" {
		cfg.APIKey = NewAPIKey()
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = defaultIOTimeout
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		output: NewOutputStore(cfg.Fs),
		ready:  make(chan struct{}),
	}
}

// Start listens on an ephemeral loopback port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.wg.Add(1)
	go s.serve()
	s.logger.Debug().Str("addr", ln.Addr().String()).Msg("Session server started")
	return nil
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// APIKey returns the shared secret clients must present.
func (s *Server) APIKey() string {
	return s.cfg.APIKey
}

// Output returns the saved-output store.
func (s *Server) Output() *OutputStore {
	return s.output
}

// SetProcess records the running command. A later reload request terminates
// it if it is still running.
func (s *Server) SetProcess(p Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = p
}

// Ready is closed once the picker has announced its remote-control port.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// FzfPort returns the announced remote-control port, or 0.
func (s *Server) FzfPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fzfPort
}

// Close stops accepting connections and waits for the serve loop to exit.
func (s *Server) Close() error {
	s.stopListening()
	s.wg.Wait()
	return s.output.Close()
}

func (s *Server) stopListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.listener.Close()
}

// serve handles one connection at a time. Requests are short, and handling
// them in order is what serializes reloads.
func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn().Err(err).Msg("Session accept failed")
			}
			return
		}
		shutdown := s.handle(conn)
		_ = conn.Close()
		if shutdown {
			s.stopListening()
			return
		}
	}
}

type conn struct {
	net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

func (c *conn) readLine() (string, error) {
	_ = c.SetReadDeadline(time.Now().Add(c.timeout))
	line, err := c.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *conn) reply(msg string) {
	_ = c.SetWriteDeadline(time.Now().Add(c.timeout))
	_, _ = io.WriteString(c, msg+"\n")
}

func (s *Server) handle(nc net.Conn) (shutdown bool) {
	c := &conn{Conn: nc, r: bufio.NewReader(nc), timeout: s.cfg.IOTimeout}

	auth, err := c.readLine()
	if err != nil {
		return false
	}
	key, ok := strings.CutPrefix(auth, "secret: ")
	if !ok {
		c.reply("error: invalid auth format")
		return false
	}
	if key != s.cfg.APIKey {
		c.reply("error: invalid api key")
		return false
	}

	command, err := c.readLine()
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(command, "fzf_port: "):
		s.handlePort(c, strings.TrimPrefix(command, "fzf_port: "))
	case command == "reload":
		s.supersede()
		c.reply("go")
	case command == "save-output":
		s.handleSaveOutput(c)
	case command == "shutdown":
		c.reply("ok")
		return true
	default:
		c.reply("error: unknown command")
	}
	return false
}

func (s *Server) handlePort(c *conn, value string) {
	port, err := strconv.Atoi(value)
	if err != nil || port <= 0 || port > 65535 {
		c.reply("error: invalid port")
		return
	}
	s.mu.Lock()
	if s.fzfPort == 0 {
		s.fzfPort = port
	}
	s.mu.Unlock()
	s.readyOne.Do(func() { close(s.ready) })
	s.logger.Debug().Str("port", value).Msg("Picker port announced")
	c.reply("ok")
}

// supersede terminates the recorded process if it is still running and waits
// for it to exit. After the grace period it is killed.
func (s *Server) supersede() {
	s.mu.Lock()
	p := s.proc
	s.mu.Unlock()
	if p == nil || !p.Running() {
		return
	}

	s.logger.Info().Msg("Terminating reload command")
	if err := p.Terminate(); err != nil {
		s.logger.Warn().Err(err).Msg("Terminate failed")
	}
	if s.cfg.Grace <= 0 {
		_ = p.Wait()
		return
	}

	done := make(chan struct{})
	go func() {
		_ = p.Wait()
		close(done)
	}()
	timer := time.NewTimer(s.cfg.Grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn().Str("grace", s.cfg.Grace.String()).Msg("Command ignored terminate, killing")
		if err := p.Kill(); err != nil {
			s.logger.Warn().Err(err).Msg("Kill failed")
		}
		<-done
	}
}

// handleSaveOutput reads length-prefixed chunks until "end". Anything short
// of a well-formed "end" discards the capture.
func (s *Server) handleSaveOutput(c *conn) {
	capture, err := s.output.Begin()
	if err != nil {
		s.logger.Error().Err(err).Msg("Cannot capture output")
		c.reply("error: " + err.Error())
		return
	}
	for {
		line, err := c.readLine()
		if err != nil || line == "" {
			capture.Discard()
			return
		}
		if line == "end" {
			capture.Commit()
			c.reply("ok")
			return
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 {
			capture.Discard()
			c.reply(fmt.Sprintf("error: invalid length: %q", line))
			return
		}
		_ = c.SetReadDeadline(time.Now().Add(c.timeout))
		if _, err := io.CopyN(capture, c.r, int64(n)); err != nil {
			capture.Discard()
			return
		}
	}
}
