package logs

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
	DEBUG Level = "DEBUG"
)

// levelPriority defines the priority of each log level
// higher value = more severe
var levelPriority = map[Level]int{
	DEBUG: 1,
	INFO:  2,
	WARN:  3,
	ERROR: 4,
}

// ParseLevel maps a config string to a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	lvl := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[lvl]; ok {
		return lvl
	}
	return INFO
}

type Entry struct {
	TimeStamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

// Logger keeps the most recent entries in memory so the health analyzer can
// read them back. Entries are optionally mirrored to an io.Writer.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
	level   Level
	out     io.Writer
}

// level: minimum log level to record (e.g., INFO, WARN, ERROR, DEBUG)
//
// maxSize: maximum number of log entries kept in memory
func NewLogger(maxSize int, level Level) *Logger {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Logger{
		entries: make([]Entry, 0, maxSize),
		maxSize: maxSize,
		level:   level,
	}
}

// WithOutput mirrors every recorded entry to w, one line per entry.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
	return l
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// log applies level filtering and ring buffer behavior
func (l *Logger) log(level Level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// filter logs below the current level
	if levelPriority[level] < levelPriority[l.level] {
		return
	}

	if len(l.entries) >= l.maxSize {
		// remove oldest entry (ring behavior)
		l.entries = l.entries[1:]
	}

	entry := Entry{
		TimeStamp: time.Now(),
		Level:     level,
		Message:   msg,
	}
	l.entries = append(l.entries, entry)

	if l.out != nil {
		fmt.Fprintf(l.out, "%s %-5s %s\n", entry.TimeStamp.Format(time.RFC3339), level, msg)
	}
}

func (l *Logger) Debug(msg string) {
	l.log(DEBUG, msg)
}

func (l *Logger) Info(msg string) {
	l.log(INFO, msg)
}

func (l *Logger) Warn(msg string) {
	l.log(WARN, msg)
}

func (l *Logger) Error(msg string) {
	l.log(ERROR, msg)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.log(DEBUG, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(INFO, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(WARN, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(ERROR, fmt.Sprintf(format, args...))
}

func (l *Logger) GetLast(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > len(l.entries) {
		out := make([]Entry, len(l.entries))
		copy(out, l.entries)
		return out
	}

	start := len(l.entries) - n
	out := make([]Entry, n)
	copy(out, l.entries[start:])
	return out
}
