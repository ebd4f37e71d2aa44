package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level orders log messages by severity
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelTrace || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel parses a level name, case-insensitively. Unknown names fall
// back to INFO.
func ParseLevel(s string) Level {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return LevelWarn
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i)
		}
	}
	return LevelInfo
}

// MaxLines is how many lines a file-backed log keeps before it drops the oldest
const MaxLines = 5000

// Logger writes leveled, timestamped lines. When backed by a file the file is
// kept to the last MaxLines lines.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	lines int
	level Level
	now   func() time.Time
}

// New creates a logger writing to w
func New(w io.Writer, level Level) *Logger {
	l := &Logger{out: w, level: level, now: time.Now}
	if f, ok := w.(*os.File); ok && f != os.Stderr && f != os.Stdout {
		l.file = f
		l.lines = countLines(f)
	}
	return l
}

// OpenFile opens (or creates) path for appending and installs the result as
// the package logger.
func OpenFile(path string, level Level) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l := New(f, level)
	SetDefault(l)
	return l, nil
}

var (
	defaultMu sync.RWMutex
	std       = New(os.Stderr, LevelInfo)
)

// SetDefault replaces the package logger
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	std = l
}

// Default returns the package logger
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return std
}

// SetLevel changes the minimum level written
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Enabled reports whether messages at level are written
func (l *Logger) Enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

func (l *Logger) logf(level Level, format string, v ...any) {
	if !l.Enabled(level) {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n", l.now().Format("2006/01/02 15:04:05"), level, fmt.Sprintf(format, v...))
	_, _ = l.Write([]byte(line))
}

func (l *Logger) Debug(format string, v ...any) { l.logf(LevelDebug, format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.logf(LevelInfo, format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.logf(LevelWarn, format, v...) }
func (l *Logger) Error(format string, v ...any) { l.logf(LevelError, format, v...) }

// Write implements io.Writer so the logger can back other writers
func (l *Logger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.out.Write(p)
	if err != nil || l.file == nil {
		return n, err
	}

	l.lines += strings.Count(string(p[:n]), "\n")
	if l.lines > MaxLines {
		l.truncate()
	}
	return n, nil
}

// truncate rewrites the file with only its last MaxLines lines
func (l *Logger) truncate() {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return
	}
	var lines []string
	scanner := bufio.NewScanner(l.file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > MaxLines {
		lines = lines[len(lines)-MaxLines:]
	}

	if err := l.file.Truncate(0); err != nil {
		return
	}
	_, _ = l.file.Seek(0, io.SeekStart)
	w := bufio.NewWriter(l.file)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	_ = w.Flush()
	l.lines = len(lines)
}

// Close closes the backing file, if any
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func countLines(f *os.File) int {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0
	}
	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	_, _ = f.Seek(0, io.SeekEnd)
	return count
}

var noop = func() {}

// Trace returns a func that logs the elapsed time at TRACE level.
// Usage: defer logger.Trace("operation")()
func Trace(name string) func() {
	l := Default()
	if !l.Enabled(LevelTrace) {
		return noop
	}
	start := l.now()
	return func() {
		l.logf(LevelTrace, "%s: %v", name, l.now().Sub(start))
	}
}

func Debug(format string, v ...any) { Default().Debug(format, v...) }
func Info(format string, v ...any)  { Default().Info(format, v...) }
func Warn(format string, v ...any)  { Default().Warn(format, v...) }
func Error(format string, v ...any) { Default().Error(format, v...) }

// Fatal logs at ERROR and exits
func Fatal(format string, v ...any) {
	Default().Error(format, v...)
	os.Exit(1)
}
