package logger

import (
	"context"
	"sync"
)

// Entry is a single log line captured by the test logger.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// TestLogger captures entries in memory so tests can assert on them.
type TestLogger struct {
	mu      sync.RWMutex
	entries []Entry
	fields  map[string]interface{}
}

func NewTestLogger() *TestLogger {
	return &TestLogger{fields: map[string]interface{}{}}
}

func (l *TestLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.record("debug", msg, fields)
}

func (l *TestLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.record("info", msg, fields)
}

func (l *TestLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.record("warn", msg, fields)
}

func (l *TestLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	l.record("error", msg, fields)
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{entries: l.entries, fields: merged}
}

func (l *TestLogger) record(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	l.entries = append(l.entries, Entry{Level: level, Message: msg, Fields: merged})
}

// Entries returns a copy of everything captured so far.
func (l *TestLogger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// HasEntry reports whether an entry with the given level and message was captured.
func (l *TestLogger) HasEntry(level, msg string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}
