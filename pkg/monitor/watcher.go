package monitor

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/ternarybob/arbor"
)

const ignoreFile = ".gitignore"

// Watcher reports changed paths under a directory tree, skipping .git and
// anything matched by the tree's .gitignore files.
type Watcher struct {
	root    string
	logger  arbor.ILogger
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	patterns map[string][]gitignore.Pattern
	matcher  gitignore.Matcher

	changes chan string
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for root. Call Start to begin watching.
func NewWatcher(root string, logger arbor.ILogger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		root:     abs,
		logger:   logger,
		watcher:  fsw,
		patterns: make(map[string][]gitignore.Pattern),
		matcher:  gitignore.NewMatcher(nil),
		changes:  make(chan string, 64),
		done:     make(chan struct{}),
	}, nil
}

// Changes delivers relative paths of changed files. Bursts may be coalesced.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Start adds the tree to the watch list and processes events in the
// background.
func (w *Watcher) Start() error {
	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("add directories: %w", err)
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Close stops watching and closes Changes.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	close(w.done)
	w.wg.Wait()
	return err
}

// Ignored reports whether the relative path is excluded from watching.
func (w *Watcher) Ignored(rel string, isDir bool) bool {
	parts := splitPath(rel)
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if p == ".git" {
			return true
		}
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.matcher.Match(parts, isDir)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel := w.rel(path)
		if w.Ignored(rel, true) {
			return filepath.SkipDir
		}
		w.loadIgnore(path)
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn().Str("path", path).Err(err).Msg("Cannot watch directory")
		}
		return nil
	})
}

// loadIgnore reads dir/.gitignore, scoping its patterns to dir.
func (w *Watcher) loadIgnore(dir string) {
	data, err := os.ReadFile(filepath.Join(dir, ignoreFile))
	domain := splitPath(w.rel(dir))

	w.mu.Lock()
	defer w.mu.Unlock()
	key := strings.Join(domain, "/")
	if err != nil {
		delete(w.patterns, key)
	} else {
		w.patterns[key] = parsePatterns(data, domain)
	}
	// Deeper files are appended last so they take precedence.
	dirs := slices.Sorted(maps.Keys(w.patterns))
	var all []gitignore.Pattern
	for _, d := range dirs {
		all = append(all, w.patterns[d]...)
	}
	w.matcher = gitignore.NewMatcher(all)
}

func parsePatterns(data []byte, domain []string) []gitignore.Pattern {
	var ps []gitignore.Pattern
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(line, domain))
	}
	return ps
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	defer close(w.changes)
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	rel := w.rel(event.Name)
	info, statErr := os.Stat(event.Name)
	isDir := statErr == nil && info.IsDir()
	if w.Ignored(rel, isDir) {
		return
	}

	if filepath.Base(event.Name) == ignoreFile {
		w.loadIgnore(filepath.Dir(event.Name))
	}
	if isDir && event.Has(fsnotify.Create) {
		if err := w.addTree(event.Name); err != nil {
			w.logger.Warn().Str("path", event.Name).Err(err).Msg("Cannot watch new directory")
		}
	}

	select {
	case w.changes <- rel:
	default:
	}
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return rel
}

func splitPath(rel string) []string {
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return nil
	}
	return strings.Split(rel, "/")
}
