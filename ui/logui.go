// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

type logSpinner struct {
	started time.Time
	msg     string
}

// Start logs the start of the operation.
func (l *logSpinner) Start(format string, args ...any) {
	l.started = time.Now()
	l.msg = fmt.Sprintf(format, args...)
	log.Info(l.msg)
}

// Stop logs how long the operation took.
func (l *logSpinner) Stop(err error) {
	if err != nil {
		log.Warn(l.msg, "failed", err, "duration", FormatDuration(time.Since(l.started)))
		return
	}
	log.Info(l.msg, "done", FormatDuration(time.Since(l.started)))
}

// Done logs the result of the operation.
func (l *logSpinner) Done(format string, args ...any) {
	log.Info(l.msg, "result", fmt.Sprintf(format, args...), "duration", FormatDuration(time.Since(l.started)))
}

// LogUI is a log-based UI.
type LogUI struct{}

// PrintLines logs msgs, stripping ansi escape sequence.
func (LogUI) PrintLines(msgs ...string) {
	for _, msg := range msgs {
		if msg == "\n" || msg == "" {
			continue
		}
		log.Info(StripANSIEscapeCodes(msg))
	}
}

// NewSpinner returns a log-based spinner.
func (LogUI) NewSpinner() Spinner {
	return &logSpinner{}
}

// Infof reports to stdout, stripping ansi escape sequence.
func (LogUI) Infof(format string, args ...any) {
	log.Helper()
	log.Info(StripANSIEscapeCodes(fmt.Sprintf(format, args...)))
}

// Warningf reports to stderr, stripping ansi escape sequence.
func (LogUI) Warningf(format string, args ...any) {
	log.Helper()
	log.Warn(StripANSIEscapeCodes(fmt.Sprintf(format, args...)))
}

// Errorf reports to stderr, stripping ansi escape sequence.
func (LogUI) Errorf(format string, args ...any) {
	log.Helper()
	log.Error(StripANSIEscapeCodes(fmt.Sprintf(format, args...)))
}
