package testutil

import "sync"

// LogEntry is one captured call to a CapturingLogger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// CapturingLogger records every call so tests can assert on log content
// without parsing a tab-separated log file.
type CapturingLogger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

func NewCapturingLogger() *CapturingLogger { return &CapturingLogger{} }

func (l *CapturingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *CapturingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args) }
func (l *CapturingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args) }
func (l *CapturingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args) }
func (l *CapturingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args) }
