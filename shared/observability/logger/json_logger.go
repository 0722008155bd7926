// Package logger writes one JSON object per line, the format Loki and
// CloudWatch Logs Insights index without a parser.
package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/balu-bunny/lambdaTest/shared/observability/types"
)

// LogLevel orders severities, lowest first.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{DebugLevel: "debug", InfoLevel: "info", WarnLevel: "warn", ErrorLevel: "error"}

// ParseLevel maps a level name to a LogLevel. "warning" is accepted and
// anything unknown is InfoLevel.
func ParseLevel(level string) LogLevel {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		return WarnLevel
	}
	for l, n := range levelNames {
		if n == name {
			return LogLevel(l)
		}
	}
	return InfoLevel
}

func (l LogLevel) String() string {
	if l < DebugLevel || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// sink is shared by a logger and every child made with WithFields.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.out.Write(append(line, '\n'))
}

// JSONLogger implements types.Logger.
type JSONLogger struct {
	sink     *sink
	base     types.Fields
	minLevel LogLevel
	fields   types.Fields
}

// New returns a logger stamping service, env and hostname on every line.
// A nil output means os.Stdout.
func New(serviceName, environment, logLevel string, output io.Writer, additionalFields types.Fields) *JSONLogger {
	if output == nil {
		output = os.Stdout
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}

	return &JSONLogger{
		sink:     &sink{out: output},
		base:     types.Fields{"service": serviceName, "env": environment, "hostname": host},
		minLevel: ParseLevel(logLevel),
		fields:   additionalFields,
	}
}

func (l *JSONLogger) Debug(ctx context.Context, msg string, fields types.Fields) {
	l.log(ctx, DebugLevel, msg, nil, fields)
}

func (l *JSONLogger) Info(ctx context.Context, msg string, fields types.Fields) {
	l.log(ctx, InfoLevel, msg, nil, fields)
}

func (l *JSONLogger) Warn(ctx context.Context, msg string, fields types.Fields) {
	l.log(ctx, WarnLevel, msg, nil, fields)
}

// Error records err as "error" and its concrete type as "error_type". An
// error carrying a Code, anywhere in its chain, adds "error_code".
func (l *JSONLogger) Error(ctx context.Context, msg string, err error, fields types.Fields) {
	l.log(ctx, ErrorLevel, msg, err, fields)
}

// WithFields returns a child writing to the same output.
func (l *JSONLogger) WithFields(fields types.Fields) types.Logger {
	child := *l
	child.fields = merge(l.fields, fields)
	return &child
}

func merge(sets ...types.Fields) types.Fields {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make(types.Fields, n)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

type coded interface {
	Code() string
}

func (l *JSONLogger) log(ctx context.Context, level LogLevel, msg string, err error, fields types.Fields) {
	if level < l.minLevel {
		return
	}

	entry := merge(l.base, l.fields, fields)
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["message"] = msg

	if ctx != nil {
		for _, key := range types.ContextKeys {
			if v, _ := ctx.Value(key).(string); v != "" {
				entry[string(key)] = v
			}
		}
	}

	if err != nil {
		entry["error"] = err.Error()
		entry["error_type"] = fmt.Sprintf("%T", err)
		var c coded
		if errors.As(err, &c) {
			entry["error_code"] = c.Code()
		}
	}

	line, mErr := json.Marshal(entry)
	if mErr != nil {
		line, _ = json.Marshal(map[string]string{
			"timestamp": entry["timestamp"].(string),
			"level":     level.String(),
			"service":   fmt.Sprint(l.base["service"]),
			"message":   msg,
			"log_error": mErr.Error(),
		})
	}
	l.sink.write(line)
}
