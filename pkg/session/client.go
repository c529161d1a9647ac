package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Environment variables locating the server for child processes.
const (
	EnvPort   = "QUICKFIX_PORT"
	EnvAPIKey = "QUICKFIX_API_KEY"
)

var (
	// ErrNoServer is returned when the environment does not name a server.
	ErrNoServer = errors.New("missing environment variables: " + EnvPort + " or " + EnvAPIKey)
	// ErrRejected is returned when the server answers with an error.
	ErrRejected = errors.New("server rejected request")
)

// Client talks to a Server.
type Client struct {
	Addr    string
	APIKey  string
	Timeout time.Duration
}

// NewClient returns a client for a server on the loopback port.
func NewClient(port int, apiKey string) *Client {
	return &Client{
		Addr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		APIKey:  apiKey,
		Timeout: defaultIOTimeout,
	}
}

// ClientFromEnv builds a client from EnvPort and EnvAPIKey as returned by
// getenv.
func ClientFromEnv(getenv func(string) string) (*Client, error) {
	port, key := getenv(EnvPort), getenv(EnvAPIKey)
	if port == "" || key == "" {
		return nil, ErrNoServer
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvPort, port, err)
	}
	return NewClient(n, key), nil
}

// Env returns the environment entries pointing children at this server.
func (s *Server) Env() []string {
	return []string{
		EnvPort + "=" + strconv.Itoa(s.Port()),
		EnvAPIKey + "=" + s.APIKey(),
	}
}

func (c *Client) request(ctx context.Context, command string, body func(w *bufio.Writer) error, want string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("connect to session server: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	w := bufio.NewWriter(conn)
	fmt.Fprintf(w, "secret: %s\n%s\n", c.APIKey, command)
	if body != nil {
		if err := body(w); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("send %s: %w", command, err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	reply = strings.TrimSpace(reply)
	if reply == "" && err != nil {
		return fmt.Errorf("read %s reply: %w", command, err)
	}
	if reply != want {
		return fmt.Errorf("%w: %s", ErrRejected, reply)
	}
	return nil
}

// Reload asks the server to stop the previous run and waits for approval.
func (c *Client) Reload(ctx context.Context) error {
	return c.request(ctx, "reload", nil, "go")
}

// NotifyPort announces the picker's remote-control port.
func (c *Client) NotifyPort(ctx context.Context, port int) error {
	return c.request(ctx, "fzf_port: "+strconv.Itoa(port), nil, "ok")
}

// SaveOutput replaces the server's saved output with chunks.
func (c *Client) SaveOutput(ctx context.Context, chunks [][]byte) error {
	return c.request(ctx, "save-output", func(w *bufio.Writer) error {
		for _, chunk := range chunks {
			fmt.Fprintf(w, "%d\n", len(chunk))
			if _, err := w.Write(chunk); err != nil {
				return err
			}
		}
		_, err := w.WriteString("end\n")
		return err
	}, "ok")
}

// Shutdown stops the server's serve loop.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.request(ctx, "shutdown", nil, "ok")
}
