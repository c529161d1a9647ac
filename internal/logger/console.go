package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quickfix/pkg/shell"
)

// Console prints progress for the user. Verbose-only messages are dropped
// unless verbose is set; errors are always printed. Every message is also
// logged to arbor at debug level.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	logger  arbor.ILogger

	dim, bold, event, success, warn, fail lipgloss.Style
}

// NewConsole returns a console writing to w. color forces styling on or off.
func NewConsole(w io.Writer, verbose, color bool, logger arbor.ILogger) *Console {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Console{
		w:       w,
		verbose: verbose,
		logger:  logger,
		dim:     r.NewStyle().Faint(true),
		bold:    r.NewStyle().Bold(true),
		event:   r.NewStyle().Foreground(lipgloss.Color("5")),
		success: r.NewStyle().Foreground(lipgloss.Color("4")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Verbose reports whether verbose messages are printed.
func (c *Console) Verbose() bool {
	return c.verbose
}

// Entry announces a quickfix process starting with the given arguments.
func (c *Console) Entry(args []string) {
	c.logger.Debug().Strs("args", args).Msg("Entry")
	if c.verbose {
		c.println(c.bold.Render(">") + " " + c.styleCommand(args))
	}
}

// Command shows a command about to run.
func (c *Console) Command(words []string) {
	c.logger.Debug().Strs("command", words).Msg("Command")
	if c.verbose {
		c.println(c.dim.Render("  $ " + c.styleCommand(words)))
	}
}

// Event shows a picker event.
func (c *Console) Event(msg string) {
	c.logger.Debug().Str("event", msg).Msg("Event")
	if c.verbose {
		c.println(c.event.Render("> " + msg))
	}
}

// Verbosef prints a dim message in verbose mode.
func (c *Console) Verbosef(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Debug().Msg(msg)
	if c.verbose {
		c.println(c.dim.Render(msg))
	}
}

// Successf prints a completion message in verbose mode.
func (c *Console) Successf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Debug().Msg(msg)
	if c.verbose {
		c.println(c.success.Render(msg))
	}
}

// Warnf prints a warning in verbose mode.
func (c *Console) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Warn().Msg(msg)
	if c.verbose {
		c.println(c.warn.Render(msg))
	}
}

// Errorf prints an error with a bold title. An empty title reads "Error:".
func (c *Console) Errorf(title, format string, args ...any) {
	if title == "" {
		title = "Error:"
	}
	msg := fmt.Sprintf(format, args...)
	c.logger.Error().Str("title", title).Msg(msg)
	c.println(c.fail.Render(c.bold.Render(title) + " " + msg))
}

// styleCommand quotes words and bolds the program. Multi-line words are cut
// at their first line.
func (c *Console) styleCommand(words []string) string {
	quoted := shell.Words(words)
	for i, w := range quoted {
		if first, _, ok := strings.Cut(w, "\n"); ok {
			closing := ""
			if len(w) > 1 && w[0] == w[len(w)-1] && (w[0] == '\'' || w[0] == '"') {
				closing = w[:1]
			}
			w = first + c.fail.Render("···") + closing
		}
		if i == 0 {
			w = c.bold.Render(w)
		}
		quoted[i] = w
	}
	return strings.Join(quoted, " ")
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, s+"\n")
}
