package tasks

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/desertthunder/yms/internal/formatter"
	"github.com/desertthunder/yms/internal/models"
)

// Styler decorates a journal line for the console mirror.
type Styler func(outcome models.Outcome, line string) string

// Journal is the append-only, human-readable run log.
//
// Every line goes to the file and, when a console writer is set, to the console.
type Journal struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	console io.Writer
	style   Styler
	lines   int
	closed  bool
}

// OpenJournal opens path for appending and writes the run header.
func OpenJournal(path string, console io.Writer) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &Journal{file: f, buf: bufio.NewWriter(f), console: console}
	if _, err := fmt.Fprintf(j.buf, "\n%s\n", formatter.JournalHeader(time.Now())); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write journal header: %w", err)
	}
	return j, nil
}

// SetStyler sets the console decoration. The file always receives plain text.
func (j *Journal) SetStyler(s Styler) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.style = s
}

// Record writes the line for entry.
func (j *Journal) Record(entry models.LogEntry) error {
	line := formatter.JournalLine(entry)

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return os.ErrClosed
	}

	if _, err := fmt.Fprintln(j.buf, line); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := j.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	j.lines++

	if j.console != nil {
		if j.style != nil {
			line = j.style(entry.Outcome, line)
		}
		fmt.Fprintln(j.console, line)
	}
	return nil
}

// Note writes a free-form line, e.g. the playlist creation notice.
func (j *Journal) Note(line string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return os.ErrClosed
	}

	if _, err := fmt.Fprintln(j.buf, line); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if j.console != nil {
		fmt.Fprintln(j.console, line)
	}
	return j.buf.Flush()
}

// Lines returns how many track entries were recorded.
func (j *Journal) Lines() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lines
}

// Close flushes and closes the file. Calling it again is a no-op.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return errors.Join(j.buf.Flush(), j.file.Close())
}
