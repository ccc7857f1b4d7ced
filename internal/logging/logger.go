package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LookupLog represents a single air-quality lookup
type LookupLog struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	SpanID     string    `json:"span_id,omitempty"`
	City       string    `json:"city"`
	CacheKey   string    `json:"cache_key"`
	Cache      string    `json:"cache"` // hit, miss, stale
	Outcome    string    `json:"outcome"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	Shared     bool      `json:"shared,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Logger handles lookup logging
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
	out     io.Writer
}

var defaultLogger = &Logger{enabled: true, console: true, out: os.Stdout}

// Default returns the default logger
func Default() *Logger {
	return defaultLogger
}

// NewLogger creates a logger that writes console lines to out.
func NewLogger(out io.Writer) *Logger {
	return &Logger{enabled: true, console: out != nil, out: out}
}

// SetOutput sets the JSON-lines log file
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes a lookup log entry
func (l *Logger) Log(entry *LookupLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if l.console && l.out != nil {
		status := "✓"
		if entry.Status >= 400 {
			status = "✗"
		}
		shared := ""
		if entry.Shared {
			shared = " [shared]"
		}
		fmt.Fprintf(l.out, "[lookup] %s %q %s %s %d %dms%s\n",
			status, entry.City, entry.Cache, entry.Outcome, entry.Status, entry.DurationMs, shared)
		if entry.Error != "" {
			fmt.Fprintf(l.out, "[lookup]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
