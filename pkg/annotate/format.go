package annotate

import (
	"strings"
	"sync"

	"github.com/ternarybob/quickfix/pkg/parser"
	"github.com/ternarybob/quickfix/pkg/tool"
)

// Format selects the annotator patterns: a registry tool, an errorformat
// builtin by name, or an explicit pattern list.
type Format struct {
	Tool     *tool.Tool
	Name     string
	Patterns []string
}

// Args returns the annotator arguments for the format.
func (f Format) Args() []string {
	switch {
	case f.Tool != nil:
		return f.Tool.Args()
	case f.Name != "":
		return []string{"-name=" + f.Name}
	default:
		return append([]string(nil), f.Patterns...)
	}
}

// Grouping returns the entry grouping for the format.
func (f Format) Grouping() tool.Grouping {
	if f.Tool == nil {
		return tool.GroupNone
	}
	return f.Tool.Grouping
}

// colourMap remembers the original text of every stripped line. It is written
// by the annotator input goroutine and read by the consumer.
type colourMap struct {
	mu    sync.Mutex
	lines map[string]string
}

func newColourMap() *colourMap {
	return &colourMap{lines: make(map[string]string)}
}

func (c *colourMap) strip(line string) string {
	stripped := parser.StripANSI(line)
	c.mu.Lock()
	c.lines[strings.TrimSuffix(stripped, "\n")] = strings.TrimSuffix(line, "\n")
	c.mu.Unlock()
	return stripped
}

func (c *colourMap) restore(line string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if orig, ok := c.lines[line]; ok {
		return orig
	}
	return line
}
