// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clog provides context aware logging.
// It stores the run id and arbitrary labels (sdk version, header, job)
// in each context, so log entries of concurrent jobs can be told apart.
//
// Entries are cloud logging.Entry values, and are written with glog.
package clog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/logging"
	"github.com/golang/glog"
)

type contextKeyType int

var contextKey contextKeyType

// DefaultFormatter prefixes the payload with the entry's labels,
// sorted by key.
func DefaultFormatter(e logging.Entry) string {
	if len(e.Labels) == 0 {
		return fmt.Sprintf("%v", e.Payload)
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, k := range slices.Sorted(maps.Keys(e.Labels)) {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%s", k, e.Labels[k])
	}
	sb.WriteString("] ")
	fmt.Fprintf(&sb, "%v", e.Payload)
	return sb.String()
}

// glogSink writes msg to glog. depth is the number of frames above the
// caller of the package's logging function.
func glogSink(severity logging.Severity, depth int, msg string) {
	depth++
	switch severity {
	case logging.Info:
		glog.InfoDepth(depth, msg)
	case logging.Warning:
		glog.WarningDepth(depth, msg)
	case logging.Error:
		glog.ErrorDepth(depth, msg)
	case logging.Critical:
		glog.FatalDepth(depth, msg)
	case logging.Emergency:
		glog.ExitDepth(depth, msg)
	default:
		glog.InfoDepth(depth, fmt.Sprintf("%s %s", severity, msg))
	}
}

var defaultLogger = New()

// New creates a new Logger writing to glog.
func New() *Logger {
	return &Logger{
		Formatter: DefaultFormatter,
		Sink:      glogSink,
	}
}

// NewContext sets the given logger to the context.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey, logger)
}

// NewRun sets a logger for the run identified by runID to the context.
func NewRun(ctx context.Context, runID string) context.Context {
	return NewContext(ctx, FromContext(ctx).Run(runID))
}

// WithLabels sets a logger with the additional labels to the context.
// kv is a list of key, value pairs.
func WithLabels(ctx context.Context, kv ...string) context.Context {
	return NewContext(ctx, FromContext(ctx).With(kv...))
}

// FromContext returns a logger in the context, or the default logger if
// it's not set.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey).(*Logger)
	if !ok || logger == nil {
		return defaultLogger
	}
	return logger
}

// Logger holds the run id and labels of the context.
// It also can have custom formatter to generate a log content.
type Logger struct {
	// Formatter is a formatter of the entry.
	// Default to DefaultFormatter.
	Formatter func(e logging.Entry) string

	// Sink writes a formatted entry. Default to glog.
	Sink func(severity logging.Severity, depth int, msg string)

	// trace is the run id.
	trace  string
	labels map[string]string
}

// Run returns a sub logger for the run.
func (l *Logger) Run(runID string) *Logger {
	return &Logger{
		Formatter: l.Formatter,
		Sink:      l.Sink,
		trace:     runID,
		labels:    l.labels,
	}
}

// With returns a sub logger with the labels added.
func (l *Logger) With(kv ...string) *Logger {
	labels := maps.Clone(l.labels)
	if labels == nil {
		labels = make(map[string]string)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		labels[kv[i]] = kv[i+1]
	}
	return &Logger{
		Formatter: l.Formatter,
		Sink:      l.Sink,
		trace:     l.trace,
		labels:    labels,
	}
}

// RunID returns the run id of the logger.
func (l *Logger) RunID() string {
	return l.trace
}

func (l *Logger) log(e logging.Entry) {
	format := l.Formatter
	if format == nil {
		format = DefaultFormatter
	}
	sink := l.Sink
	if sink == nil {
		sink = glogSink
	}
	sink(e.Severity, 2, format(e))
}

// Infof logs at info log level in the manner of fmt.Printf.
func (l *Logger) Infof(format string, args ...any) {
	l.log(l.Entry(logging.Info, fmt.Sprintf(format, args...)))
}

// Infof logs at info log level in the manner of fmt.Printf.
func Infof(ctx context.Context, format string, args ...any) {
	logger := FromContext(ctx)
	logger.log(logger.Entry(logging.Info, fmt.Sprintf(format, args...)))
}

// Warningf logs at warning log level in the manner of fmt.Printf.
func (l *Logger) Warningf(format string, args ...any) {
	l.log(l.Entry(logging.Warning, fmt.Sprintf(format, args...)))
}

// Warningf logs at warning log level in the manner of fmt.Printf.
func Warningf(ctx context.Context, format string, args ...any) {
	logger := FromContext(ctx)
	logger.log(logger.Entry(logging.Warning, fmt.Sprintf(format, args...)))
}

// Errorf logs at error log level in the manner of fmt.Printf.
func (l *Logger) Errorf(format string, args ...any) {
	l.log(l.Entry(logging.Error, fmt.Sprintf(format, args...)))
}

// Errorf logs at error log level in the manner of fmt.Printf.
func Errorf(ctx context.Context, format string, args ...any) {
	logger := FromContext(ctx)
	logger.log(logger.Entry(logging.Error, fmt.Sprintf(format, args...)))
}

// Fatalf logs at fatal log level in the manner of fmt.Printf with stacktrace, and exit.
func (l *Logger) Fatalf(format string, args ...any) {
	l.log(l.Entry(logging.Critical, fmt.Sprintf(format, args...)))
}

// Fatalf logs at fatal log level in the manner of fmt.Printf with stacktrace, and exit.
func Fatalf(ctx context.Context, format string, args ...any) {
	logger := FromContext(ctx)
	logger.log(logger.Entry(logging.Critical, fmt.Sprintf(format, args...)))
}

// Exitf logs at fatal log level in the manner of fmt.Printf, and exit.
func (l *Logger) Exitf(format string, args ...any) {
	l.log(l.Entry(logging.Emergency, fmt.Sprintf(format, args...)))
}

// Exitf logs at fatal log level in the manner of fmt.Printf, and exit.
func Exitf(ctx context.Context, format string, args ...any) {
	logger := FromContext(ctx)
	logger.log(logger.Entry(logging.Emergency, fmt.Sprintf(format, args...)))
}

// Entry creates a new log entry for the given severity.
func (l *Logger) Entry(severity logging.Severity, payload any) logging.Entry {
	return logging.Entry{
		Timestamp: time.Now(),
		Severity:  severity,
		Payload:   payload,
		Labels:    l.labels,
		Trace:     l.trace,
	}
}

// V checks at verbose log level.
func (l *Logger) V(level int) bool {
	return bool(glog.V(glog.Level(level)))
}

// V checks at verbose log level.
func V(ctx context.Context, level int) bool {
	return FromContext(ctx).V(level)
}

// Close closes the logger. it will flush log entries.
func (l *Logger) Close() {
	glog.Flush()
}
