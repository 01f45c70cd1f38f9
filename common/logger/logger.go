package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

func (l Level) color() *color.Color {
	switch l {
	case DEBUG:
		return color.New(color.FgCyan)
	case INFO:
		return color.New(color.FgGreen)
	case WARN:
		return color.New(color.FgYellow)
	case ERROR:
		return color.New(color.FgRed)
	}
	return color.New(color.FgMagenta, color.Bold)
}

// ParseLevel maps a level name to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	}
	return INFO
}

// Context keys read by WithContext. The router stores the request id and the
// authenticated user id under them.
type ctxKey string

const (
	RequestIDKey ctxKey = "requestID"
	UserIDKey    ctxKey = "userID"
)

// Config holds logger configuration
type Config struct {
	Level       Level
	Output      io.Writer
	JSONFormat  bool
	EnableColor bool
	ShowCaller  bool
	TimeFormat  string
	ServiceName string
}

// DefaultConfig reads LOG_LEVEL, LOG_FORMAT, LOG_COLOR and SERVICE_NAME.
func DefaultConfig() *Config {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "seatmap-services"
	}
	return &Config{
		Level:       ParseLevel(os.Getenv("LOG_LEVEL")),
		Output:      os.Stdout,
		JSONFormat:  os.Getenv("LOG_FORMAT") == "json",
		EnableColor: os.Getenv("LOG_COLOR") != "false",
		ShowCaller:  true,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		ServiceName: service,
	}
}

// LogEntry is one JSON log line.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Service   string                 `json:"service,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// sink is shared by a logger and all of its children so concurrent lines
// never interleave.
type sink struct {
	config *Config
	mu     sync.Mutex
}

// Logger is a structured logger. Children made by With* share the parent's
// output and copy its fields; a Logger is never mutated after creation.
type Logger struct {
	out    *sink
	fields map[string]interface{}
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New creates a logger; a nil config means DefaultConfig.
func New(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Logger{out: &sink{config: config}}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return New(&Config{Level: FATAL + 1, Output: io.Discard})
}

// Default returns the process-wide logger.
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(nil)
	})
	return defaultLogger
}

func (l *Logger) With(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{out: l.out, fields: merged}
}

// WithError adds an "error" field; a nil error returns l unchanged.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.With("error", err.Error())
}

// WithContext adds request_id and user_id when ctx carries them.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := map[string]interface{}{}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		fields["request_id"] = requestID
	}
	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		fields["user_id"] = userID
	}
	if len(fields) == 0 {
		return l
	}
	return l.WithFields(fields)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(ERROR, msg, args...) }

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log(FATAL, msg, args...)
	os.Exit(1)
}

// log is called exactly two frames below the user's call site.
func (l *Logger) log(level Level, msg string, args ...interface{}) {
	cfg := l.out.config
	if level < cfg.Level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	entry := LogEntry{
		Timestamp: time.Now().Format(cfg.TimeFormat),
		Level:     level.String(),
		Message:   msg,
		Service:   cfg.ServiceName,
	}
	if len(l.fields) > 0 {
		entry.Fields = l.fields
	}
	if cfg.ShowCaller {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.Caller = fmt.Sprintf("%s:%d", shortenPath(file), line)
		}
	}

	var line string
	if cfg.JSONFormat {
		data, err := json.Marshal(entry)
		if err != nil {
			data, _ = json.Marshal(LogEntry{Timestamp: entry.Timestamp, Level: entry.Level,
				Message: msg, Fields: map[string]interface{}{"log_error": err.Error()}})
		}
		line = string(data)
	} else {
		line = formatText(level, entry, cfg.EnableColor)
	}

	l.out.mu.Lock()
	fmt.Fprintln(cfg.Output, line)
	l.out.mu.Unlock()
}

// formatText renders "<ts> [LEVEL] [caller] message | k=v, k=v" with keys sorted.
func formatText(level Level, entry LogEntry, colored bool) string {
	var sb strings.Builder
	sb.WriteString(entry.Timestamp)
	sb.WriteByte(' ')

	tag := fmt.Sprintf("[%-5s]", entry.Level)
	if colored {
		tag = level.color().Sprint(tag)
	}
	sb.WriteString(tag)
	sb.WriteByte(' ')

	if entry.Caller != "" {
		fmt.Fprintf(&sb, "[%s] ", entry.Caller)
	}
	sb.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" | ")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, entry.Fields[k])
		}
	}
	return sb.String()
}

func shortenPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], "/")
	}
	return path
}

// ============================================================
// Access log
// ============================================================

// RequestLog describes one served HTTP request.
type RequestLog struct {
	Method    string
	Path      string
	Status    int
	Duration  time.Duration
	ClientIP  string
	UserAgent string
	RequestID string
}

// LogRequest logs at INFO, WARN for 4xx and ERROR for 5xx.
func (l *Logger) LogRequest(req RequestLog) {
	level := INFO
	switch {
	case req.Status >= 500:
		level = ERROR
	case req.Status >= 400:
		level = WARN
	}

	l.WithFields(map[string]interface{}{
		"method":      req.Method,
		"path":        req.Path,
		"status":      req.Status,
		"duration_ms": req.Duration.Milliseconds(),
		"client_ip":   req.ClientIP,
		"user_agent":  req.UserAgent,
		"request_id":  req.RequestID,
	}).log(level, "%s %s -> %d (%s)", req.Method, req.Path, req.Status, req.Duration)
}

// ============================================================
// Business events
// ============================================================

// EventLog is a business event such as one seat map synchronization.
type EventLog struct {
	Event      string
	Entity     string
	EntityID   string
	Action     string
	Success    bool
	DurationMs int64
	Metadata   map[string]interface{}
	Error      string
}

// LogEvent logs at INFO, or ERROR when the event failed.
func (l *Logger) LogEvent(evt EventLog) {
	level := INFO
	if !evt.Success {
		level = ERROR
	}

	fields := map[string]interface{}{
		"event":       evt.Event,
		"action":      evt.Action,
		"entity":      evt.Entity,
		"entity_id":   evt.EntityID,
		"success":     evt.Success,
		"duration_ms": evt.DurationMs,
	}
	for k, v := range evt.Metadata {
		fields[k] = v
	}
	if evt.Error != "" {
		fields["error"] = evt.Error
	}

	l.WithFields(fields).log(level, "[%s] %s %s (ID: %s)", evt.Event, evt.Action, evt.Entity, evt.EntityID)
}
