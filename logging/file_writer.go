package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// reopeningWriter appends to a log file and reopens it when the file at path
// was removed or replaced, so rotation and cleanup never leave the logger
// writing to an unlinked inode.
type reopeningWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	opened os.FileInfo
}

var _ io.WriteCloser = (*reopeningWriter)(nil)

func newReopeningWriter(path string) *reopeningWriter {
	return &reopeningWriter{path: path}
}

func (w *reopeningWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := w.current()
	if err != nil {
		fmt.Fprintf(os.Stderr, "envwatch-log: %v\n", err)
		return 0, err
	}
	return file.Write(p)
}

func (w *reopeningWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.opened = nil
	return err
}

// current returns the open file, reopening it if the path no longer refers
// to the file we hold.
func (w *reopeningWriter) current() (*os.File, error) {
	if w.file != nil {
		info, err := os.Stat(w.path)
		if err == nil && os.SameFile(info, w.opened) {
			return w.file, nil
		}
		w.file.Close()
		w.file = nil
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	w.file = file
	w.opened = info
	return file, nil
}
