// Package monitor reloads the picker when files under the working tree change.
package monitor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/romdo/go-debounce"
	"github.com/ternarybob/arbor"
)

// HeaderAPIKey carries the picker's remote-control secret.
const HeaderAPIKey = "x-api-key"

// PortSource reports the picker's remote-control port once it is known.
type PortSource interface {
	Ready() <-chan struct{}
	FzfPort() int
}

// Config configures a Monitor.
type Config struct {
	// Root is the directory tree to watch.
	Root string
	// ReloadCommand is sent to the picker as reload(<ReloadCommand>).
	ReloadCommand string
	// APIKey is the picker's remote-control secret.
	APIKey string
	// Debounce is the quiet period after the last change.
	Debounce time.Duration
	// MaxWait bounds how long a steady stream of changes can delay a reload.
	MaxWait time.Duration
	// Timeout bounds each request to the picker.
	Timeout time.Duration
}

const (
	defaultDebounce = 200 * time.Millisecond
	defaultMaxWait  = 2 * time.Second
	defaultTimeout  = 5 * time.Second
)

// Monitor watches Config.Root and posts a reload action to the picker after
// each burst of changes.
type Monitor struct {
	cfg     Config
	ports   PortSource
	logger  arbor.ILogger
	watcher *Watcher
	client  *resty.Client

	trigger func()
	cancel  func()

	mu       sync.Mutex
	running  bool
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a stopped monitor.
func New(cfg Config, ports PortSource, logger arbor.ILogger) (*Monitor, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.MaxWait < cfg.Debounce {
		cfg.MaxWait = max(defaultMaxWait, cfg.Debounce)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	w, err := NewWatcher(cfg.Root, logger)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:     cfg,
		ports:   ports,
		logger:  logger,
		watcher: w,
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader(HeaderAPIKey, cfg.APIKey),
		stopCh: make(chan struct{}),
	}
	m.trigger, m.cancel = debounce.NewWithMaxWait(cfg.Debounce, cfg.MaxWait, func() {
		if err := m.Reload(context.Background()); err != nil {
			m.logger.Warn().Err(err).Msg("Monitor reload failed")
		}
	})
	return m, nil
}

// Start begins watching. Changes seen before the picker announces its port
// are dropped: the first run is still in flight.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	if m.stopped {
		return fmt.Errorf("monitor stopped")
	}
	if err := m.watcher.Start(); err != nil {
		return err
	}
	m.running = true

	m.wg.Add(1)
	go m.loop()
	m.logger.Debug().Str("root", m.cfg.Root).Msg("Monitor started")
	return nil
}

// Stop stops watching and cancels any pending reload.
func (m *Monitor) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.running = false
		m.stopped = true
		close(m.stopCh)
		m.mu.Unlock()

		m.cancel()
		err = m.watcher.Close()
		m.wg.Wait()
	})
	return err
}

func (m *Monitor) loop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case path, ok := <-m.watcher.Changes():
			if !ok {
				return
			}
			select {
			case <-m.ports.Ready():
			default:
				m.logger.Debug().Str("path", path).Msg("Change before picker ready, ignored")
				continue
			}
			m.logger.Debug().Str("path", path).Msg("Change detected")
			m.trigger()
		}
	}
}

// Reload posts reload(<ReloadCommand>) to the picker.
func (m *Monitor) Reload(ctx context.Context) error {
	port := m.ports.FzfPort()
	if port == 0 {
		return fmt.Errorf("picker port not announced")
	}
	url := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(Action(m.cfg.ReloadCommand)).
		Post(url)
	if err != nil {
		return fmt.Errorf("post reload: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post reload: status %d", resp.StatusCode())
	}
	m.logger.Info().Str("port", strconv.Itoa(port)).Msg("Reload requested")
	return nil
}

// Action formats the picker action that reruns command.
func Action(command string) string {
	return "reload(" + command + ")"
}
