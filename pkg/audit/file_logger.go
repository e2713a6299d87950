package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const currentLogName = "audit.log"

// FileLogger appends audit events to a JSON-lines file with optional
// size-based rotation.
type FileLogger struct {
	basePath string
	rotate   bool
	maxSize  int64
	maxFiles int

	mu      sync.Mutex
	file    *os.File
	out     *countingWriter
	encoder *json.Encoder
}

// countingWriter tracks bytes written so Log can decide on rotation
// without a stat syscall per event.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	BasePath string // Base directory for audit logs
	Rotate   bool   // Enable log rotation
	MaxSize  int64  // Max file size in bytes (default: 100MB)
	MaxFiles int    // Max number of rotated files to keep (default: 10)
}

// DefaultFileLoggerConfig returns default configuration
func DefaultFileLoggerConfig() FileLoggerConfig {
	return FileLoggerConfig{
		BasePath: "/var/log/snaplock/audit",
		Rotate:   true,
		MaxSize:  100 * 1024 * 1024,
		MaxFiles: 10,
	}
}

// NewFileLogger opens the current log file under config.BasePath,
// creating the directory as needed. An already-oversized file is
// rotated away immediately.
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	logger := &FileLogger{
		basePath: config.BasePath,
		rotate:   config.Rotate,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}

	if logger.maxSize == 0 {
		logger.maxSize = 100 * 1024 * 1024
	}
	if logger.maxFiles == 0 {
		logger.maxFiles = 10
	}

	if err := logger.open(); err != nil {
		return nil, err
	}

	if logger.rotate && logger.out.n >= logger.maxSize {
		logger.mu.Lock()
		err := logger.rotateLocked()
		logger.mu.Unlock()
		if err != nil {
			logger.Close()
			return nil, err
		}
	}

	return logger, nil
}

// open opens the current log file in append mode and seeds the byte
// counter from its size.
func (l *FileLogger) open() error {
	filename := filepath.Join(l.basePath, currentLogName)

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat audit log file: %w", err)
	}

	l.file = file
	l.out = &countingWriter{w: file, n: info.Size()}
	l.encoder = json.NewEncoder(l.out)

	return nil
}

// rotateLocked renames the current file to a timestamped name, prunes
// files beyond the retention count, and reopens a fresh current file.
// The name carries nanoseconds so rotations within the same second
// cannot clobber each other.
func (l *FileLogger) rotateLocked() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	current := filepath.Join(l.basePath, currentLogName)
	stamp := time.Now().Format("2006-01-02-15-04-05.000000000")
	rotated := filepath.Join(l.basePath, fmt.Sprintf("audit-%s.log", stamp))

	if err := os.Rename(current, rotated); err != nil {
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	if err := l.prune(); err != nil {
		// Rotation already succeeded; losing the prune is not fatal.
		fmt.Fprintf(os.Stderr, "failed to cleanup old audit logs: %v\n", err)
	}

	return l.open()
}

// prune removes rotated files beyond the retention limit. Glob results
// are sorted, and the timestamped names order chronologically, so the
// head of the slice is the oldest.
func (l *FileLogger) prune() error {
	pattern := filepath.Join(l.basePath, "audit-*.log")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	if len(files) > l.maxFiles {
		for _, file := range files[:len(files)-l.maxFiles] {
			if err := os.Remove(file); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old audit log %s: %v\n", file, err)
			}
		}
	}

	return nil
}

// Log writes an audit event as one JSON line, rotating first when the
// current file has reached the size limit.
func (l *FileLogger) Log(ctx context.Context, event *AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New("audit log is closed")
	}

	if l.rotate && l.out.n >= l.maxSize {
		if err := l.rotateLocked(); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return nil
}

// Close closes the file logger
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}

	return nil
}

// ReadLogs reads up to count events from the current log file, oldest
// first. A count of zero reads everything. Rotated files are not
// consulted; use an exporter over the journal for history.
func (l *FileLogger) ReadLogs(count int) ([]*AuditEvent, error) {
	filename := filepath.Join(l.basePath, currentLogName)

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*AuditEvent
	decoder := json.NewDecoder(file)

	for {
		var event AuditEvent
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode audit log entry: %w", err)
		}
		events = append(events, &event)

		if count > 0 && len(events) >= count {
			break
		}
	}

	return events, nil
}
