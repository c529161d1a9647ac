// Package config provides configuration management for quickfix.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment overrides.
const (
	EnvPreview          = "QUICKFIX_PREVIEW"
	EnvTheme            = "QUICKFIX_THEME"
	EnvEditor           = "QUICKFIX_EDITOR"
	EnvEditorLine       = "QUICKFIX_EDITOR_LINE"
	EnvEditorLineColumn = "QUICKFIX_EDITOR_LINE_COLUMN"
	EnvLogLevel         = "QUICKFIX_LOG_LEVEL"
	EnvConfig           = "QUICKFIX_CONFIG"
)

// Config represents the quickfix configuration.
type Config struct {
	UI          UIConfig          `toml:"ui"`
	Editor      EditorConfig      `toml:"editor"`
	Monitor     MonitorConfig     `toml:"monitor"`
	Reload      ReloadConfig      `toml:"reload"`
	Errorformat ErrorformatConfig `toml:"errorformat"`
	Logging     LoggingConfig     `toml:"logging"`
}

// UIConfig contains picker settings.
type UIConfig struct {
	// Preview shows the bat preview window at start.
	Preview bool `toml:"preview"`
	// Theme is auto, dark, light or bw.
	Theme string `toml:"theme"`
	// Fzf and Bat override executable lookup on PATH.
	Fzf string `toml:"fzf"`
	Bat string `toml:"bat"`
}

// EditorConfig selects the editor. Templates take precedence over Command,
// which takes precedence over $EDITOR and $VISUAL.
type EditorConfig struct {
	Command    string `toml:"command"`
	Line       string `toml:"line"`
	LineColumn string `toml:"line_column"`
}

// MonitorConfig contains file watching settings.
type MonitorConfig struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
	MaxWait  time.Duration `toml:"max_wait"`
}

// ReloadConfig contains session server settings.
type ReloadConfig struct {
	// Grace is how long a superseded run may take to exit before it is killed.
	Grace time.Duration `toml:"grace"`
	// Timeout bounds reads and writes on session connections.
	Timeout time.Duration `toml:"timeout"`
}

// ErrorformatConfig locates the errorformat annotator.
type ErrorformatConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig contains diagnostic log settings.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	Format     string `toml:"format"` // "json" or "text"
	TimeFormat string `toml:"time_format"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		UI: UIConfig{
			Preview: true,
			Theme:   "auto",
		},
		Monitor: MonitorConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
			MaxWait:  2 * time.Second,
		},
		Reload: ReloadConfig{
			Grace:   5 * time.Second,
			Timeout: 30 * time.Second,
		},
		Errorformat: ErrorformatConfig{
			Path: "errorformat",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  10,
			MaxBackups: 1,
		},
	}
}

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "quickfix")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "quickfix")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "quickfix")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "quickfix")
	}
}

// DefaultConfigPath returns $QUICKFIX_CONFIG or config.toml in DefaultConfigDir.
func DefaultConfigPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(DefaultConfigDir(), "config.toml")
}

// Load reads the file at path over the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%s: parse config file: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv(os.Getenv)

	if strings.HasPrefix(cfg.Logging.File, "~/") {
		home, _ := os.UserHomeDir()
		cfg.Logging.File = filepath.Join(home, cfg.Logging.File[2:])
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays the QUICKFIX_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvPreview); v != "" {
		c.UI.Preview = v != "0"
	}
	if v := getenv(EnvTheme); v != "" {
		c.UI.Theme = strings.ToLower(v)
	}
	if v := getenv(EnvEditor); v != "" {
		c.Editor.Command = v
	}
	if v := getenv(EnvEditorLine); v != "" {
		c.Editor.Line = v
	}
	if v := getenv(EnvEditorLineColumn); v != "" {
		c.Editor.LineColumn = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.UI.Theme {
	case "auto", "dark", "light", "bw", "":
	default:
		return fmt.Errorf("invalid ui.theme %q", c.UI.Theme)
	}
	switch c.Logging.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}
	if c.Reload.Grace < 0 {
		return fmt.Errorf("invalid reload.grace %s", c.Reload.Grace)
	}
	return nil
}
