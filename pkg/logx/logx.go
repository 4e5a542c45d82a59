// Package logx provides structured logging with context-aware, domain-filtered debug output.
package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// Logger writes timestamped lines tagged with a component name.
type Logger struct {
	component string
}

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // nil enables every domain
}

// LogEntry is a captured log line kept in the in-memory buffer.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Component string `json:"component"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Domain    string `json:"domain,omitempty"`
	ActionID  string `json:"action_id,omitempty"`
}

// InMemoryLogBuffer stores the most recent log entries.
type InMemoryLogBuffer struct {
	entries []LogEntry
	mutex   sync.RWMutex
	maxSize int
}

type ctxKey struct{}

//nolint:gochecknoglobals // process-wide logging state
var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex

	logWriter     io.Writer
	logWriterLock sync.Mutex

	logBuffer = &InMemoryLogBuffer{maxSize: 500}
)

func init() { //nolint:gochecknoinits // env-driven debug switches
	initDebugFromEnv()
}

// initDebugFromEnv reads DEBUG and DEBUG_DOMAINS.
func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = parseDomains(strings.Split(domains, ","))
	}
}

func parseDomains(domains []string) map[string]bool {
	if len(domains) == 0 {
		return nil
	}
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		if d = strings.TrimSpace(d); d != "" {
			set[d] = true
		}
	}
	return set
}

// NewLogger creates a logger for the named component.
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// SetOutput redirects all log output. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	logWriterLock.Lock()
	logWriter = w
	logWriterLock.Unlock()
}

// SetDebug toggles debug output and restricts it to the given domains (none = all).
func SetDebug(enabled bool, domains ...string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugConfig.Enabled = enabled
	debugConfig.Domains = parseDomains(domains)
}

func debugEnabled(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

// WithActionID tags ctx with the id of the workflow execution it belongs to.
func WithActionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ActionID returns the action id carried by ctx, if any.
func ActionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// AddLogEntry appends an entry, trimming to the buffer capacity.
func (b *InMemoryLogBuffer) AddLogEntry(entry *LogEntry) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.entries = append(b.entries, *entry)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// GetLogEntries returns a copy of the buffered entries, optionally filtered by domain.
func (b *InMemoryLogBuffer) GetLogEntries(domain string) []LogEntry {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	out := make([]LogEntry, 0, len(b.entries))
	for i := range b.entries {
		if domain != "" && !strings.EqualFold(b.entries[i].Domain, domain) {
			continue
		}
		out = append(out, b.entries[i])
	}
	return out
}

// Recent returns buffered entries for domain ("" for all) logged at or
// after since. A zero since returns everything buffered.
func Recent(domain string, since time.Time) []LogEntry {
	entries := logBuffer.GetLogEntries(domain)
	if since.IsZero() {
		return entries
	}
	mark := since.UTC().Format(timestampFormat)
	out := entries[:0]
	for i := range entries {
		if entries[i].Timestamp >= mark {
			out = append(out, entries[i])
		}
	}
	return out
}

// String formats the entry as it is written to the log output.
func (e LogEntry) String() string {
	if e.Domain != "" {
		return fmt.Sprintf("[%s] [%s] %s: [%s] %s", e.Timestamp, e.Component, e.Level, e.Domain, e.Message)
	}
	return fmt.Sprintf("[%s] [%s] %s: %s", e.Timestamp, e.Component, e.Level, e.Message)
}

func emit(entry *LogEntry) {
	line := entry.String()

	logWriterLock.Lock()
	w := logWriter
	if w == nil {
		w = os.Stderr
	}
	_, _ = fmt.Fprintln(w, line)
	logWriterLock.Unlock()

	logBuffer.AddLogEntry(entry)
}

func (l *Logger) log(level Level, format string, args ...any) {
	emit(&LogEntry{
		Timestamp: time.Now().UTC().Format(timestampFormat),
		Component: l.component,
		Level:     string(level),
		Message:   fmt.Sprintf(format, args...),
	})
}

// Debug logs when debug output is enabled for any domain.
func (l *Logger) Debug(format string, args ...any) {
	debugMutex.RLock()
	enabled := debugConfig.Enabled
	debugMutex.RUnlock()
	if !enabled {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Debug logs a domain-scoped debug line. The action id in ctx, if any,
// is used as the component so lines from one execution group together.
//
//	DEBUG=1                              # all domains
//	DEBUG=1 DEBUG_DOMAINS=workflow,poll  # selected domains
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !debugEnabled(domain) {
		return
	}
	component := "system"
	id := ActionID(ctx)
	if id != "" {
		component = id
	}
	emit(&LogEntry{
		Timestamp: time.Now().UTC().Format(timestampFormat),
		Component: component,
		Level:     string(LevelDebug),
		Message:   fmt.Sprintf(format, args...),
		Domain:    domain,
		ActionID:  id,
	})
}

// DebugState logs a state transition for domain.
func DebugState(ctx context.Context, domain, from, to string) {
	Debug(ctx, domain, "State %s -> %s", from, to)
}

var defaultLogger = NewLogger("system") //nolint:gochecknoglobals

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err and returns the wrapped error. Nil stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
