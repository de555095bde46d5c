// Package runlog reads the log file shared by the export macro and the run
// script. The external tool is the only writer during a run; everything here
// tolerates the file being absent, growing, or deleted between reads.
package runlog

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Log is a handle on one run log file.
type Log struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// Option customizes a Log.
type Option func(*Log)

// WithFs overrides the filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(l *Log) {
		if fsys != nil {
			l.fs = fsys
		}
	}
}

// Open returns a handle for path. The file does not need to exist.
func Open(path string, opts ...Option) *Log {
	l := &Log{fs: afero.NewOsFs(), path: filepath.Clean(path)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the file backing this log.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Exists reports whether the log file is present.
func (l *Log) Exists() bool {
	if l == nil {
		return false
	}
	info, err := l.fs.Stat(l.path)
	return err == nil && !info.IsDir()
}

// Lines returns every line with its line ending removed. Other whitespace is
// kept so sentinel matching sees what findstr sees.
// A missing file yields no lines and no error.
func (l *Log) Lines() ([]string, error) {
	if l == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := l.fs.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("runlog: open %s: %w", l.path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("runlog: read %s: %w", l.path, err)
	}
	return lines, nil
}

// Tail returns up to maxLines of the most recent lines plus the total line
// count.
func (l *Log) Tail(maxLines int) ([]string, int) {
	if maxLines <= 0 {
		return nil, 0
	}
	lines, err := l.Lines()
	if err != nil || len(lines) == 0 {
		return nil, 0
	}
	total := len(lines)
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// Append writes one line the way cmd.exe echo does, CRLF terminated.
func (l *Log) Append(line string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("runlog: open %s: %w", l.path, err)
	}
	defer file.Close()
	if _, err := file.WriteString(strings.TrimRight(line, "\r\n") + "\r\n"); err != nil {
		return fmt.Errorf("runlog: append %s: %w", l.path, err)
	}
	return nil
}

// Remove deletes the log file. A missing file is not an error.
func (l *Log) Remove() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fs.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("runlog: remove %s: %w", l.path, err)
	}
	return nil
}
