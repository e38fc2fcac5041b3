// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package localexec

import (
	"errors"
	"testing"

	"go.chromium.org/infra/build/specregen/execute"
)

func TestRun(t *testing.T) {
	ctx := t.Context()
	cmd := &execute.Cmd{
		ID:   "test",
		Args: []string{"/bin/sh", "-c", "echo out; echo err >&2"},
	}
	err := Run(ctx, cmd)
	if err != nil {
		t.Fatalf("Run(ctx, %q)=%v; want nil error", cmd.Command(), err)
	}
	if got, want := string(cmd.Stdout()), "out\n"; got != want {
		t.Errorf("Stdout()=%q; want %q", got, want)
	}
	if got, want := string(cmd.Stderr()), "err\n"; got != want {
		t.Errorf("Stderr()=%q; want %q", got, want)
	}
	if res := cmd.Result(); res == nil || res.ExitCode != 0 {
		t.Errorf("Result()=%v; want exit=0", res)
	}
}

func TestRunExitCode(t *testing.T) {
	ctx := t.Context()
	cmd := &execute.Cmd{
		ID:   "test",
		Args: []string{"/bin/sh", "-c", "exit 3"},
	}
	err := Run(ctx, cmd)
	var eerr *execute.ExitError
	if !errors.As(err, &eerr) || eerr.ExitCode != 3 {
		t.Errorf("Run(ctx, %q)=%v; want exit=3", cmd.Command(), err)
	}
}

func TestRunNoArgs(t *testing.T) {
	err := Run(t.Context(), &execute.Cmd{ID: "empty"})
	if err == nil {
		t.Errorf("Run(ctx, empty)=nil; want error")
	}
}
