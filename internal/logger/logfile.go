package logger

import (
	"fmt"
	"io"
	"os"
)

// EnvLogFile names the console log shared by nested quickfix processes.
const EnvLogFile = "QUICKFIX_LOG_FILE"

// LogFile is the console destination while the picker owns the terminal.
// The top-level process creates it and replays it to stderr on Close;
// nested processes append to it.
type LogFile struct {
	*os.File
	path  string
	owner bool
}

// OpenLogFile opens the file named by $QUICKFIX_LOG_FILE for appending, or
// creates a temporary one. Children find a created file through Env.
func OpenLogFile(getenv func(string) string) (*LogFile, error) {
	if path := getenv(EnvLogFile); path != "" {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return &LogFile{File: f, path: path}, nil
	}

	f, err := os.CreateTemp("", "quickfix-*.log")
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	return &LogFile{File: f, path: f.Name(), owner: true}, nil
}

// Path returns the file name.
func (l *LogFile) Path() string {
	return l.path
}

// Env returns the environment entry naming the file for child processes.
func (l *LogFile) Env() string {
	return EnvLogFile + "=" + l.path
}

// Owner reports whether this process created the file.
func (l *LogFile) Owner() bool {
	return l.owner
}

// Close closes the file. The owner copies its contents to replay and removes
// it.
func (l *LogFile) Close(replay io.Writer) error {
	if err := l.File.Close(); err != nil {
		return err
	}
	if !l.owner {
		return nil
	}
	defer func() { _ = os.Remove(l.path) }()
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("replay log file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(replay, f); err != nil {
		return fmt.Errorf("replay log file: %w", err)
	}
	return nil
}
