// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package execute runs commands.
package execute

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Executor is an interface to run the cmd.
type Executor interface {
	Run(ctx context.Context, cmd *Cmd) error
}

// Cmd includes all the information required to run a front-end command.
type Cmd struct {
	// ID is used as a unique identifier for this command in logs.
	ID string

	// Desc is a short, human-readable identifier of the cmd.
	// Example: "AST um/d3d12.h"
	Desc string

	// Args holds command line arguments.
	Args []string

	// Env specifies the environment of the process.
	// If nil, the process inherits the current environment.
	Env []string

	// Dir specifies the working directory of the cmd.
	Dir string

	stdoutWriter, stderrWriter io.Writer
	stdoutBuffer, stderrBuffer bytes.Buffer

	result *Result
}

// Result is the result of a cmd execution.
type Result struct {
	ExitCode int
	Start    time.Time
	End      time.Time

	// Rusage is the resource usage of the process, if available.
	Rusage *Rusage
}

// Rusage is the resource usage of a process.
type Rusage struct {
	MaxRSS int64
	Utime  time.Duration
	Stime  time.Duration
}

func (r *Result) String() string {
	s := fmt.Sprintf("exit=%d duration=%s", r.ExitCode, r.End.Sub(r.Start))
	if r.Rusage != nil {
		s += fmt.Sprintf(" maxrss=%d utime=%s stime=%s", r.Rusage.MaxRSS, r.Rusage.Utime, r.Rusage.Stime)
	}
	return s
}

// String returns an ID of the cmd.
func (c *Cmd) String() string {
	return c.ID
}

// Command returns a command line string.
func (c *Cmd) Command() string {
	var sb strings.Builder
	for i, arg := range c.Args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if arg == "" || strings.ContainsAny(arg, " \t\n\"'\\") {
			arg = strconv.Quote(arg)
		}
		sb.WriteString(arg)
	}
	return sb.String()
}

// SetStdoutWriter sets w for stdout.
func (c *Cmd) SetStdoutWriter(w io.Writer) {
	c.stdoutWriter = w
}

// SetStderrWriter sets w for stderr.
func (c *Cmd) SetStderrWriter(w io.Writer) {
	c.stderrWriter = w
}

// StdoutWriter returns a writer set for stdout.
func (c *Cmd) StdoutWriter() io.Writer {
	c.stdoutBuffer.Reset()
	if c.stdoutWriter == nil {
		return &c.stdoutBuffer
	}
	return io.MultiWriter(c.stdoutWriter, &c.stdoutBuffer)
}

// StderrWriter returns a writer set for stderr.
func (c *Cmd) StderrWriter() io.Writer {
	c.stderrBuffer.Reset()
	if c.stderrWriter == nil {
		return &c.stderrBuffer
	}
	return io.MultiWriter(c.stderrWriter, &c.stderrBuffer)
}

// Stdout returns stdout output of the cmd.
func (c *Cmd) Stdout() []byte {
	return c.stdoutBuffer.Bytes()
}

// Stderr returns stderr output of the cmd.
func (c *Cmd) Stderr() []byte {
	return c.stderrBuffer.Bytes()
}

// SetResult sets the execution result of the cmd.
func (c *Cmd) SetResult(result *Result) {
	c.result = result
}

// Result returns the execution result of the cmd, or nil if it has not
// run.
func (c *Cmd) Result() *Result {
	return c.result
}

// ExitError is an error of cmd exit.
type ExitError struct {
	ExitCode int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit=%d", e.ExitCode)
}
