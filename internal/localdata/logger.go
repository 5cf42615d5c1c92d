package localdata

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	flushEveryWrites = 16
	flushThreshold   = 32 * 1024
)

// ServerLogger is a dedicated, buffered append-only writer for one
// server/purpose log stream. The descriptor is
// never shared across goroutines; callers serialize writes through the
// owning pipeline goroutine.
type ServerLogger struct {
	mu          sync.Mutex
	file        *os.File
	writer      *bufio.Writer
	writesSince int
}

// Logger opens (creating if needed) a fresh timestamped log file for the
// given server/purpose and updates the latest.log symlink to point at it.
func (p *Paths) Logger(id uuid.UUID, purpose Purpose) (*ServerLogger, error) {
	dir := p.LogDir(id, purpose)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%d.log", time.Now().UnixNano())
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	latest := filepath.Join(dir, "latest.log")
	_ = os.Remove(latest)
	if err := os.Symlink(name, latest); err != nil {
		// Non-fatal: the log is still written, just not discoverable
		// via the convenience symlink.
	}

	return &ServerLogger{file: f, writer: bufio.NewWriter(f)}, nil
}

// Write appends a chunk, flushing every flushEveryWrites writes or once
// the buffered bytes exceed flushThreshold.
func (l *ServerLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.writer.Write(p)
	if err != nil {
		return n, err
	}

	l.writesSince++
	if l.writesSince >= flushEveryWrites || l.writer.Buffered() >= flushThreshold {
		if ferr := l.writer.Flush(); ferr != nil {
			return n, ferr
		}
		l.writesSince = 0
	}
	return n, nil
}

// Close flushes any buffered data and closes the underlying file.
func (l *ServerLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
