package async

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	logifaceslog "github.com/joeycumines/logiface-slog"
)

// Logger wraps a logiface event logger for this package's own lifecycle
// events (scheduler start/stop, fd registration failures, process
// reaping). It follows a package-level SetGlobalLogger/GlobalLogger
// pattern: unconfigured, every Scheduler is silent.
type Logger struct {
	l *logiface.Logger[*logifaceslog.Event]
}

// NewLogger wraps an existing logiface logger built against the slog
// event type, for callers that want full control over the
// logiface.Option chain (sampling, rate limiting via go-catrate, etc.).
func NewLogger(l *logiface.Logger[*logifaceslog.Event]) *Logger {
	return &Logger{l: l}
}

// NewDefaultLogger builds a ready-to-use Logger writing JSON lines to
// os.Stderr via slog.
func NewDefaultLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stderr, nil)
	return NewLogger(logiface.New[*logifaceslog.Event](logifaceslog.NewLogger(handler)))
}

func (l *Logger) debug() *logiface.Builder[*logifaceslog.Event] {
	if l == nil || l.l == nil {
		return nil
	}
	return l.l.Debug()
}

func (l *Logger) warn() *logiface.Builder[*logifaceslog.Event] {
	if l == nil || l.l == nil {
		return nil
	}
	return l.l.Warning()
}

func (l *Logger) err() *logiface.Builder[*logifaceslog.Event] {
	if l == nil || l.l == nil {
		return nil
	}
	return l.l.Err()
}

func logDebug(l *Logger, msg string, fields func(*logiface.Builder[*logifaceslog.Event])) {
	b := l.debug()
	if b == nil {
		return
	}
	if fields != nil {
		fields(b)
	}
	b.Log(msg)
}

func logWarn(l *Logger, msg string, fields func(*logiface.Builder[*logifaceslog.Event])) {
	b := l.warn()
	if b == nil {
		return
	}
	if fields != nil {
		fields(b)
	}
	b.Log(msg)
}

func logErr(l *Logger, msg string, err error) {
	b := l.err()
	if b == nil {
		return
	}
	if err != nil {
		b = b.Err(err)
	}
	b.Log(msg)
}

// Debug logs msg at debug level, building fields via the supplied
// callback. External collaborator packages (such as process) use this, and
// Warn/Error below, to log through a Logger obtained from WithLogger
// without needing access to this package's unexported log-level helpers.
func (l *Logger) Debug(msg string, fields func(*logiface.Builder[*logifaceslog.Event])) {
	logDebug(l, msg, fields)
}

// Warn logs msg at warning level.
func (l *Logger) Warn(msg string, fields func(*logiface.Builder[*logifaceslog.Event])) {
	logWarn(l, msg, fields)
}

// Error logs msg at error level, attaching err if non-nil.
func (l *Logger) Error(msg string, err error) {
	logErr(l, msg, err)
}

// global holds a process-wide default configuration point for contexts
// (tests, example programs) that don't wire a Logger through Option
// explicitly.
var global struct {
	mu     sync.RWMutex
	logger *Logger
	set    atomic.Bool
}

// SetGlobalLogger installs the process-wide default Logger.
func SetGlobalLogger(l *Logger) {
	global.mu.Lock()
	global.logger = l
	global.mu.Unlock()
	global.set.Store(true)
}

// GlobalLogger returns the process-wide default Logger, or nil if none
// was installed.
func GlobalLogger() *Logger {
	if !global.set.Load() {
		return nil
	}
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.logger
}
