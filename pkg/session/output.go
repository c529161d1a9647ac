package session

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/afero"
)

// OutputStore holds the raw output of the last complete run so it can be
// replayed when the picker is aborted.
type OutputStore struct {
	fs    afero.Fs
	mu    sync.Mutex
	saved afero.File
}

// NewOutputStore returns a store keeping its buffers on fs.
func NewOutputStore(fs afero.Fs) *OutputStore {
	return &OutputStore{fs: fs}
}

// Capture is an uncommitted output buffer.
type Capture struct {
	store *OutputStore
	file  afero.File
}

// Begin opens a new capture buffer.
func (o *OutputStore) Begin() (*Capture, error) {
	f, err := afero.TempFile(o.fs, "", "quickfix-output-")
	if err != nil {
		return nil, fmt.Errorf("create output buffer: %w", err)
	}
	return &Capture{store: o, file: f}, nil
}

func (c *Capture) Write(p []byte) (int, error) {
	return c.file.Write(p)
}

// Commit makes the capture the saved output, discarding the previous one.
func (c *Capture) Commit() {
	o := c.store
	o.mu.Lock()
	old := o.saved
	o.saved = c.file
	o.mu.Unlock()
	if old != nil {
		o.remove(old)
	}
}

// Discard drops the capture without touching the saved output.
func (c *Capture) Discard() {
	c.store.remove(c.file)
}

func (o *OutputStore) remove(f afero.File) {
	name := f.Name()
	_ = f.Close()
	_ = o.fs.Remove(name)
}

// HasOutput reports whether a capture has been committed.
func (o *OutputStore) HasOutput() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.saved != nil
}

// WriteTo copies the saved output to w.
func (o *OutputStore) WriteTo(w io.Writer) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.saved == nil {
		return 0, nil
	}
	if _, err := o.saved.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return io.Copy(w, o.saved)
}

// Close removes the saved output.
func (o *OutputStore) Close() error {
	o.mu.Lock()
	saved := o.saved
	o.saved = nil
	o.mu.Unlock()
	if saved != nil {
		o.remove(saved)
	}
	return nil
}
