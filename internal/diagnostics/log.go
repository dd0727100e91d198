// Package diagnostics exercises the push pipeline step by step and records what it saw.
package diagnostics

import (
	"fmt"
	"sync"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Entry struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Step    string    `json:"step"`
	Message string    `json:"message"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s [%-7s] %-18s %s", e.Time.Format("15:04:05.000"), e.Level, e.Step, e.Message)
}

// Log is append-only and safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

func (l *Log) Append(level Level, step, format string, args ...interface{}) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{Time: l.now().UTC(), Level: level, Step: step, Message: fmt.Sprintf(format, args...)}
	l.entries = append(l.entries, e)
	return e
}

// Entries returns a snapshot.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Since returns the entries appended after the first n.
func (l *Log) Since(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n >= len(l.entries) {
		return nil
	}
	out := make([]Entry, len(l.entries)-n)
	copy(out, l.entries[n:])
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
