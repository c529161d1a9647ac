package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/quickfix/pkg/fzf"
	"github.com/ternarybob/quickfix/pkg/session"
)

// start is fzf's start action: it tells the session server which port fzf
// listens on, which lets the monitor post reloads.
func (a *App) start(ctx context.Context) error {
	value := a.Getenv(fzf.EnvPort)
	if value == "" {
		return fmt.Errorf("missing environment variable: %s", fzf.EnvPort)
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", fzf.EnvPort, value, err)
	}
	client, err := session.ClientFromEnv(a.Getenv)
	if err != nil {
		return err
	}
	return client.NotifyPort(ctx, port)
}

// message logs an fzf event in verbose mode.
func (a *App) message(words []string) error {
	a.Console.Event(strings.Join(words, " "))
	return nil
}
