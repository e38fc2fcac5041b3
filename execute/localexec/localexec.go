// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package localexec implements local command execution.
package localexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"go.chromium.org/infra/build/specregen/execute"
	"go.chromium.org/infra/build/specregen/o11y/clog"
	"go.chromium.org/infra/build/specregen/sync/semaphore"
)

// LocalExec implements execute.Executor interface that runs commands locally.
type LocalExec struct{}

// Run runs cmd with LocalExec.
func Run(ctx context.Context, cmd *execute.Cmd) error {
	return LocalExec{}.Run(ctx, cmd)
}

// Run runs a cmd.
func (LocalExec) Run(ctx context.Context, cmd *execute.Cmd) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("no arguments in the command. ID: %s", cmd.ID)
	}
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdout = cmd.StdoutWriter()
	c.Stderr = cmd.StderrWriter()

	s := time.Now()
	err := forkSema.Do(ctx, func(ctx context.Context) error {
		return c.Start()
	})
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Args[0], err)
	}
	err = c.Wait()
	result := &execute.Result{
		ExitCode: exitCode(err),
		Start:    s,
		End:      time.Now(),
	}
	if c.ProcessState != nil {
		result.Rusage = rusage(c)
	}
	cmd.SetResult(result)
	if clog.V(ctx, 1) {
		clog.Infof(ctx, "%s %s stdout=%d stderr=%d", cmd.ID, result, len(cmd.Stdout()), len(cmd.Stderr()))
	}
	if result.ExitCode != 0 {
		return &execute.ExitError{ExitCode: result.ExitCode}
	}
	return nil
}

// forkSema limits concurrent process starts. On windows, too many
// concurrent forks fail with "Not enough memory resources".
var forkSema = semaphore.New("fork", runtime.NumCPU())

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var eerr *exec.ExitError
	if !errors.As(err, &eerr) {
		return 1
	}
	if w, ok := eerr.ProcessState.Sys().(syscall.WaitStatus); ok {
		return w.ExitStatus()
	}
	return 1
}
