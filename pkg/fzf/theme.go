package fzf

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the colour scheme passed to fzf and bat.
type Theme string

const (
	Dark  Theme = "dark"
	Light Theme = "light"
	BW    Theme = "bw"
	// Auto asks DetectTheme to look at the environment and terminal.
	Auto Theme = "auto"
)

// ParseTheme validates a theme option.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(s)); t {
	case Dark, Light, BW, Auto:
		return t, nil
	case "":
		return Auto, nil
	}
	return "", fmt.Errorf("invalid theme %q: want auto, dark, light or bw", s)
}

// DetectTheme resolves Auto. Order: the option, $CLI_THEME, a non-empty
// $NO_COLOR, then the terminal background as reported to lipgloss.
func DetectTheme(option Theme, getenv func(string) string) Theme {
	if option != Auto && option != "" {
		return option
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if t, err := ParseTheme(getenv("CLI_THEME")); err == nil && t != Auto {
		return t
	}
	if getenv("NO_COLOR") != "" {
		return BW
	}
	if lipgloss.NewRenderer(os.Stderr).HasDarkBackground() {
		return Dark
	}
	return Light
}
