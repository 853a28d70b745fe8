// Package logger provides a small leveled logging facility shared by
// every subsystem of the server. Named loggers write timestamped,
// level-colored lines to stderr and, optionally, tee to a log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

// LogLevel orders the verbosity of a Logger. Messages below the
// configured global level are dropped.
type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var globalLevel int32 = int32(INFO)

// SetGlobalLogLevel changes the verbosity threshold for every Logger.
func SetGlobalLogLevel(level LogLevel) {
	atomic.StoreInt32(&globalLevel, int32(level))
}

var (
	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
)

func colorFor(level LogLevel) *color.Color {
	switch level {
	case DEBUG:
		return debugColor
	case WARN:
		return warnColor
	case ERROR:
		return errorColor
	default:
		return infoColor
	}
}

// Logger is a named, leveled writer. The zero value is not usable;
// construct one with New or use one of the package-level loggers.
type Logger struct {
	tag string
	mu  sync.Mutex
	out io.Writer
	tee *os.File
}

// New creates a Logger tagged with name, writing to stderr.
func New(name string) *Logger {
	return &Logger{tag: name, out: os.Stderr}
}

// Package-level loggers used across the server's subsystems, named
// after the component they instrument.
var (
	Server    = New("server")
	Room      = New("room")
	Client    = New("client")
	Heartbeat = New("heartbeat")
)

// SetFile makes l additionally write every line to the file at path,
// appending if it already exists. Passing an empty path disables the
// file tee.
func (l *Logger) SetFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tee != nil {
		l.tee.Close()
		l.tee = nil
	}
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("logger: open log file: %w", err)
	}
	l.tee = f
	return nil
}

// InitializeFileLogging points every package-level logger at a dated
// file under dir, creating dir if necessary.
func InitializeFileLogging(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("logger: create log dir: %w", err)
	}
	name := fmt.Sprintf("ttt-server-%s.log", time.Now().Format("20060102"))
	path := filepath.Join(dir, name)

	for _, l := range []*Logger{Server, Room, Client, Heartbeat} {
		if err := l.SetFile(path); err != nil {
			return err
		}
	}
	return nil
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < LogLevel(atomic.LoadInt32(&globalLevel)) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("2006-01-02 15:04:05")
	plain := fmt.Sprintf("[%s] %-5s %s: %s\n", ts, level, l.tag, msg)

	l.mu.Lock()
	defer l.mu.Unlock()

	c := colorFor(level)
	c.Fprintf(l.out, "[%s] %-5s %s: %s\n", ts, level, l.tag, msg)

	if l.tee != nil {
		l.tee.WriteString(plain)
	}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// Fatal logs at ERROR level and terminates the process, matching the
// teacher's logger.Server.Fatal call sites in cmd/server/main.go.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
	os.Exit(1)
}
