package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel falls back to INFO for anything unrecognised.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "warn", "WARN":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	outMu  sync.Mutex
	out    io.Writer = os.Stdout
	minLvl           = LevelDebug
)

// SetOutput redirects every logger; nil restores stdout.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

func SetLevel(l Level) {
	outMu.Lock()
	defer outMu.Unlock()
	minLvl = l
}

type Logger struct {
	service string
	fields  map[string]any
}

func New(service string) *Logger { return &Logger{service: service} }

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{service: l.service, fields: merged}
}

func (l *Logger) log(level Level, action, msg string, fields map[string]any, err error) {
	outMu.Lock()
	defer outMu.Unlock()
	if level < minLvl {
		return
	}
	entry := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"level":      level.String(),
		"service":    l.service,
		"action":     action,
		"message":    msg,
		"hostname":   hostname(),
		"request_id": "",
	}
	for k, v := range l.fields {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}
	if err != nil {
		entry["error"] = map[string]any{"msg": err.Error(), "stack": fmt.Sprintf("%T", err)}
	}
	_ = json.NewEncoder(out).Encode(entry)
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.log(LevelInfo, action, action, fields, nil)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.log(LevelDebug, action, action, fields, nil)
}

func (l *Logger) Warn(action string, err error, fields map[string]any) {
	l.log(LevelWarn, action, action, fields, err)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log(LevelError, action, action, fields, err)
}

func hostname() string {
	h, _ := os.Hostname()
	return h
}
