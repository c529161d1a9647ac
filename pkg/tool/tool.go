// Package tool is the registry of tools whose output quickfix knows how to
// annotate, with the patterns and grouping each one needs.
package tool

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Grouping selects the post-processing applied to annotator entries.
type Grouping int

const (
	// GroupNone emits one block per entry.
	GroupNone Grouping = iota
	// GroupByLocation attaches context notes and merges same-location entries.
	GroupByLocation
	// GroupByHeading groups test-runner output by section headings.
	GroupByHeading
)

// Kind says how a tool's patterns reach the annotator.
type Kind int

const (
	// Custom tools carry their own pattern list.
	Custom Kind = iota
	// Override tools replace an inadequate builtin with their own patterns.
	Override
	// Builtin tools are passed to the annotator by name.
	Builtin
)

// ErrUnsupported is returned for a tool with no annotator support.
var ErrUnsupported = errors.New("tool not supported")

// Tool describes one supported command.
type Tool struct {
	Name        string
	Kind        Kind
	Patterns    []string
	Grouping    Grouping
	BuildSystem bool
}

// Args returns the annotator arguments selecting this tool's patterns.
func (t *Tool) Args() []string {
	if t.Kind == Builtin {
		return []string{"-name=" + t.Name}
	}
	return append([]string(nil), t.Patterns...)
}

var buildStub = []string{"%C%m", "%A%m"}

var registry = map[string]*Tool{
	"flake8": {Name: "flake8", Kind: Builtin},
	"make":   {Name: "make", Kind: Custom, Patterns: buildStub, BuildSystem: true},
	"just":   {Name: "just", Kind: Custom, Patterns: buildStub, BuildSystem: true},
	"cmake":  {Name: "cmake", Kind: Custom, Patterns: buildStub, BuildSystem: true},
	"ninja":  {Name: "ninja", Kind: Custom, Patterns: buildStub, BuildSystem: true},
	"pytest": {
		Name: "pytest",
		Kind: Custom,
		Patterns: []string{
			"%E%f:%l: %m",  // tests/test_search.py:133: ValueError
			"%E%f:%l: ",    // tests/test_search.py:142: (no message)
			"%G=%#%m%#=%#", // ===== FAILURES =====
			"%G_%#%m%#_%#", // _____ test_name _____
			"%C%s%m",
		},
		Grouping: GroupByHeading,
	},
	"ruff": {
		Name: "ruff",
		Kind: Custom,
		Patterns: []string{
			"%E%f:%l:%c: %m",
			`%E%[A-Z]\+%[0-9]\+ %.%#`,
			"%C %#--> %f:%l:%c",
			`%C %#%[0-9]%# \+|%.%#`,
			"%Chelp: %.%#",
			"%Z",
			"%GAll checks passed!",
			`%AFound %[0-9]\+ error%.%#`,
			"%CNo fixes available %.%#",
			`%C[*] %[0-9]\+ fixable %.%#`,
			"%+C%.%#",
		},
	},
	"mypy": {
		Name: "mypy",
		Kind: Override,
		Patterns: []string{
			"%E%f:%l:%c:%e:%k: %t%*[a-z]: %m",
			"%E%f:%l:%c: %t%*[a-z]: %m",
			"%E%f:%l: %t%*[a-z]: %m",
			"%I%f: %t%*[a-z]: %m", // note without line number
			"%GFound %.%# error%.%# in %.%# file%.%#",
			"%GSuccess: no issues found%.%#",
			"%C%.%#",
		},
		Grouping: GroupByLocation,
	},
}

var aliases = map[string]string{
	"dmypy": "mypy",
	"gmake": "make",
}

// Lookup returns the registered tool for name, resolving aliases.
func Lookup(name string) (*Tool, bool) {
	if target, ok := aliases[name]; ok {
		name = target
	}
	t, ok := registry[name]
	return t, ok
}

// MustLookup is Lookup returning ErrUnsupported for unknown names.
func MustLookup(name string) (*Tool, error) {
	t, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	return t, nil
}

// Names lists every registered tool name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// launchers are looked through to find the real tool.
var launchers = map[string]int{
	"uv":      1, // uv run TOOL
	"uvx":     0,
	"poetry":  1, // poetry run TOOL
	"pipx":    1, // pipx run TOOL
	"npx":     0,
	"python":  -1,
	"python3": -1,
}

// Detect returns the tool name of a command line: the base name of the first
// word, looking through launchers such as "uv run" and "python -m".
func Detect(command []string) string {
	for len(command) > 0 {
		name := filepath.Base(command[0])
		skip, ok := launchers[name]
		if !ok {
			return name
		}
		rest := command[1:]
		switch {
		case skip == -1:
			if len(rest) >= 2 && rest[0] == "-m" {
				return rest[1]
			}
			return name
		case skip == 1:
			if len(rest) == 0 || strings.HasPrefix(rest[0], "-") {
				return name
			}
			rest = rest[1:]
		}
		command = dropFlags(rest)
	}
	return ""
}

func dropFlags(args []string) []string {
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		args = args[1:]
	}
	return args
}
