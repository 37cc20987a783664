package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// StepLog represents a single compiled-step execution entry, persisted
// alongside the operational log so a runbook's history can be replayed
// for audit without re-reading the gate's in-memory results.
type StepLog struct {
	Timestamp  time.Time `json:"timestamp"`
	RunbookID  string    `json:"runbook_id"`
	StepID     string    `json:"step_id"`
	Verb       string    `json:"verb"`
	DurationMs int64     `json:"duration_ms"`
	Outcome    string    `json:"outcome"` // completed, parked, failed, skipped
	Error      string    `json:"error,omitempty"`
	Parked     string    `json:"parked_key,omitempty"`
}

// Logger handles step-execution logging, independent of the operational
// logger returned by Op(). It is used by the execution gate to keep a
// durable trail of step outcomes.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the default step logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file.
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

// SetConsole enables/disables console output.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes a step log entry.
func (l *Logger) Log(entry *StepLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "✓"
		if entry.Outcome == "failed" {
			status = "✗"
		} else if entry.Outcome == "parked" {
			status = "…"
		} else if entry.Outcome == "skipped" {
			status = "-"
		}
		fmt.Printf("[step] %s %s %s %s %dms\n",
			status, entry.RunbookID, entry.StepID, entry.Verb, entry.DurationMs)
		if entry.Error != "" {
			fmt.Printf("[step]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
