package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String returns the MCP logging level name.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warning"
	case LogLevelError:
		return "error"
	default:
		return "unknown"
	}
}

func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

type LogFormat int

const (
	LogFormatJSON LogFormat = iota
	LogFormatText
)

func ParseLogFormat(s string) LogFormat {
	if s == "text" {
		return LogFormatText
	}
	return LogFormatJSON
}

// Sink receives one log line at a time. Implementations must be safe for
// concurrent use and must not panic.
type Sink interface {
	Log(level LogLevel, msg string)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(level LogLevel, msg string)

func (f SinkFunc) Log(level LogLevel, msg string) {
	if f != nil {
		f(level, msg)
	}
}

// Discard drops everything.
var Discard Sink = SinkFunc(func(LogLevel, string) {})

// MultiSink fans a line out to every sink. A panicking sink is skipped so
// the caller's error path is never interrupted by logging.
type MultiSink []Sink

func (m MultiSink) Log(level LogLevel, msg string) {
	for _, s := range m {
		if s == nil {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			s.Log(level, msg)
		}()
	}
}

type Logger struct {
	mu       *sync.Mutex
	level    LogLevel
	format   LogFormat
	output   io.Writer
	fields   map[string]interface{}
	serverID string
	now      func() time.Time
}

func NewLogger(level LogLevel, format LogFormat, output io.Writer, serverID string) *Logger {
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		mu:       &sync.Mutex{},
		level:    level,
		format:   format,
		output:   output,
		fields:   make(map[string]interface{}),
		serverID: serverID,
		now:      time.Now,
	}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newLogger := *l
	newLogger.fields = make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newLogger.fields[k] = v
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return &newLogger
}

// Log implements Sink.
func (l *Logger) Log(level LogLevel, msg string) {
	l.log(level, msg)
}

func (l *Logger) log(level LogLevel, msg string) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.now().UTC().Format(time.RFC3339)

	if l.format == LogFormatJSON {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level.String(),
			"message":   msg,
			"server":    l.serverID,
		}
		for k, v := range l.fields {
			entry[k] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			data, _ = json.Marshal(map[string]interface{}{
				"timestamp": timestamp,
				"level":     level.String(),
				"message":   msg,
				"server":    l.serverID,
			})
		}
		fmt.Fprintln(l.output, string(data))
		return
	}

	fmt.Fprintf(l.output, "[%s] %s: %s", timestamp, level.String(), msg)
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(l.output, " %s=%v", k, l.fields[k])
	}
	fmt.Fprintln(l.output)
}

func (l *Logger) Debug(msg string) {
	l.log(LogLevelDebug, msg)
}

func (l *Logger) Info(msg string) {
	l.log(LogLevelInfo, msg)
}

func (l *Logger) Warn(msg string) {
	l.log(LogLevelWarn, msg)
}

func (l *Logger) Error(msg string) {
	l.log(LogLevelError, msg)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LogLevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LogLevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LogLevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LogLevelError, fmt.Sprintf(format, args...))
}
