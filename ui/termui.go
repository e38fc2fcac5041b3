// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

type termSpinner struct {
	quit, done chan struct{}
	started    time.Time
	msg        string
}

// Start starts the spinner.
func (s *termSpinner) Start(format string, args ...any) {
	s.started = time.Now()
	s.msg = fmt.Sprintf(format, args...)
	fmt.Printf("%s... ", s.msg)
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		const chars = `/-\|`
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for n := 0; ; n = (n + 1) % len(chars) {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				fmt.Printf("\b%c", chars[n])
			}
		}
	}()
}

func (s *termSpinner) stop() time.Duration {
	close(s.quit)
	<-s.done
	return time.Since(s.started)
}

// Stop stops the spinner.
func (s *termSpinner) Stop(err error) {
	d := s.stop()
	if err != nil {
		fmt.Printf("\r\033[K%6s %s %s %v\n", FormatDuration(d), s.msg, SGR(Red, "failed"), err)
		return
	}
	if d < DurationThreshold {
		fmt.Printf("\r\033[K")
		return
	}
	fmt.Printf("\r\033[K%6s %s\n", FormatDuration(d), s.msg)
}

// Done finishes the spinner with message.
func (s *termSpinner) Done(format string, args ...any) {
	d := s.stop()
	fmt.Printf("\r\033[K%6s %s %s\n", FormatDuration(d), s.msg, fmt.Sprintf(format, args...))
}

// TermUI is a terminal-based UI.
type TermUI struct {
	width int

	mu sync.Mutex
	// status is set while a status line is displayed.
	status bool
}

func (t *TermUI) init() {
	t.width, _, _ = term.GetSize(int(os.Stdout.Fd()))
}

// PrintLines prints msgs. The last message is a status line replaced
// by the next call.
func (t *TermUI) PrintLines(msgs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sb strings.Builder
	if t.status {
		sb.WriteString("\r\033[K")
	}
	below := len(msgs) > 0 && msgs[0] == "\n"
	if below {
		msgs = msgs[1:]
		if t.status {
			sb.WriteString("\n")
		}
	}
	for i, msg := range msgs {
		if i < len(msgs)-1 || below {
			sb.WriteString(msg)
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(elideMiddle(msg, t.width))
	}
	t.status = !below && len(msgs) > 0
	os.Stdout.WriteString(sb.String())
}

// NewSpinner returns a terminal-based spinner.
func (*TermUI) NewSpinner() Spinner {
	return &termSpinner{}
}

func (t *TermUI) printf(prefix, format string, args ...any) {
	t.PrintLines("\n", prefix+fmt.Sprintf(format, args...))
}

// Infof prints a message.
func (t *TermUI) Infof(format string, args ...any) {
	t.printf("", format, args...)
}

// Warningf prints a warning.
func (t *TermUI) Warningf(format string, args ...any) {
	t.printf(SGR(Yellow, "WARNING")+" ", format, args...)
}

// Errorf prints an error.
func (t *TermUI) Errorf(format string, args ...any) {
	t.printf(SGR(Red, "ERROR")+" ", format, args...)
}
