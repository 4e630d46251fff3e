package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2/data/binding"

	"github.com/ConserveLee/pxlreact/internal/constants"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelError
	LevelDebug
)

// AppLogger handles application logging to UI and console
type AppLogger struct {
	mu          sync.Mutex
	dataBinding binding.StringList
	out         *slog.Logger
	level       *slog.LevelVar
}

// NewAppLogger creates a new logger instance. data may be nil for headless use.
func NewAppLogger(data binding.StringList) *AppLogger {
	return New(os.Stdout, data, false)
}

// New creates a logger writing structured lines to w and, when data is set, to the UI list.
func New(w io.Writer, data binding.StringList, debug bool) *AppLogger {
	l := &AppLogger{
		dataBinding: data,
		level:       new(slog.LevelVar),
	}
	l.out = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l.level}))
	l.SetDebug(debug)
	return l
}

// Discard returns a logger that drops everything.
func Discard() *AppLogger {
	return New(io.Discard, nil, false)
}

// SetDebug toggles debug output at runtime.
func (l *AppLogger) SetDebug(on bool) {
	if on {
		l.level.Set(slog.LevelDebug)
		return
	}
	l.level.Set(slog.LevelInfo)
}

// Info logs an informational message
func (l *AppLogger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Error logs an error message
func (l *AppLogger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Debug logs a debug message to the console only (to keep UI clean)
func (l *AppLogger) Debug(format string, args ...interface{}) {
	if !l.out.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.out.Debug(fmt.Sprintf(format, args...))
}

// Slog exposes the structured backend for callers that want key/value records.
func (l *AppLogger) Slog() *slog.Logger {
	return l.out
}

// log handles the formatting and appending
func (l *AppLogger) log(level LogLevel, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	tag := "INFO"
	switch level {
	case LevelError:
		tag = "ERROR"
		l.out.Error(msg)
	default:
		l.out.Info(msg)
	}

	if l.dataBinding == nil {
		return
	}

	timestamp := time.Now().Format("15:04:05")
	formattedMsg := fmt.Sprintf("[%s] %s: %s", timestamp, tag, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.dataBinding.Append(formattedMsg)

	// Keep log size manageable
	list, _ := l.dataBinding.Get()
	if len(list) > constants.LogHistoryLines {
		l.dataBinding.Set(list[len(list)-constants.LogHistoryLines:])
	}
}
