package telemetry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// lineRotator is a log file writer that keeps only the most recent lines.
// The file is compacted to the newest maxLines lines each time it has grown
// to twice that size.
type lineRotator struct {
	file     *os.File
	path     string
	maxLines int
	tail     []string // ring of the newest lines
	next     int
	written  int // lines written since the last compaction
	mu       sync.Mutex
}

func newLineRotator(path string, maxLines int) (*lineRotator, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	r := &lineRotator{
		file:     file,
		path:     path,
		maxLines: maxLines,
	}
	if maxLines > 0 {
		r.tail = make([]string, 0, maxLines)
	}
	return r, nil
}

func (r *lineRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.file.Write(p)
	if err != nil || r.maxLines <= 0 {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		r.remember(line)

		if r.written >= r.maxLines*2 {
			if err := r.compact(); err != nil {
				return n, fmt.Errorf("failed to rotate log file: %w", err)
			}
		}
	}
	return n, nil
}

func (r *lineRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Sync()
}

func (r *lineRotator) remember(line string) {
	if len(r.tail) < r.maxLines {
		r.tail = append(r.tail, line)
	} else {
		r.tail[r.next] = line
	}
	r.next = (r.next + 1) % r.maxLines
	r.written++
}

// lines returns the remembered lines, oldest first.
func (r *lineRotator) lines() []string {
	if len(r.tail) < r.maxLines {
		return r.tail
	}
	return append(append([]string(nil), r.tail[r.next:]...), r.tail[:r.next]...)
}

// compact replaces the file with the remembered lines.
func (r *lineRotator) compact() error {
	var buf bytes.Buffer
	for _, line := range r.lines() {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	temp, err := os.CreateTemp(filepath.Dir(r.path), "temp-log-")
	if err != nil {
		return err
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return err
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	r.file.Close()
	// Windows refuses to rename over an existing file
	os.Remove(r.path)

	if err := os.Rename(tempPath, r.path); err != nil {
		return err
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	r.file = file
	r.written = len(r.tail)
	return nil
}
