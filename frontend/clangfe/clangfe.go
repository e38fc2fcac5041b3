// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clangfe implements frontend.Frontend with the clang executable.
package clangfe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/specregen/execute"
	"go.chromium.org/infra/build/specregen/execute/localexec"
	"go.chromium.org/infra/build/specregen/frontend"
	"go.chromium.org/infra/build/specregen/frontend/cexpr"
	"go.chromium.org/infra/build/specregen/o11y/clog"
	"go.chromium.org/infra/build/specregen/sync/semaphore"
)

// DefaultFlags are the flags passed to clang before the header's flags.
// SDK headers are parsed as for x64 Windows with the Microsoft extensions.
var DefaultFlags = []string{
	"--target=x86_64-pc-windows-msvc",
	"-fms-extensions",
	"-fms-compatibility",
	"-Wno-everything",
}

// Frontend parses headers with clang and evaluates constant expressions
// with cexpr.
type Frontend struct {
	// Clang is the clang executable.
	Clang string
	// Flags are passed to clang before the header's flags.
	Flags []string
	// Executor runs clang.
	Executor execute.Executor
	// Evaluator evaluates constant expressions.
	Evaluator cexpr.Evaluator

	sema *semaphore.Semaphore

	mu      sync.Mutex
	version []byte
}

var (
	_ frontend.Frontend      = (*Frontend)(nil)
	_ frontend.Fingerprinter = (*Frontend)(nil)
)

// New returns a Frontend running clang at most n at once.
func New(clang string, n int) *Frontend {
	if clang == "" {
		clang = "clang"
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Frontend{
		Clang:     clang,
		Flags:     DefaultFlags,
		Executor:  localexec.LocalExec{},
		Evaluator: cexpr.Evaluator{Target: cexpr.Windows},
		sema:      semaphore.New("clang", n),
	}
}

func (fe *Frontend) command(desc string, args []string, path string, mode ...string) *execute.Cmd {
	cmdArgs := []string{fe.Clang}
	cmdArgs = append(cmdArgs, fe.Flags...)
	cmdArgs = append(cmdArgs, args...)
	cmdArgs = append(cmdArgs, mode...)
	cmdArgs = append(cmdArgs, path)
	return &execute.Cmd{
		ID:   uuid.New().String(),
		Desc: desc + " " + filepath.Base(path),
		Args: cmdArgs,
		Dir:  filepath.Dir(path),
	}
}

// run runs cmd and returns its stdout. A non-zero exit is tolerated when
// clang still produced output, as declarations are extracted from headers
// that may not fully compile for the target.
func (fe *Frontend) run(ctx context.Context, cmd *execute.Cmd) ([]byte, error) {
	run := func(ctx context.Context) error {
		return fe.Executor.Run(ctx, cmd)
	}
	var err error
	if fe.sema != nil {
		err = fe.sema.Do(ctx, run)
	} else {
		err = run(ctx)
	}
	stdout := cmd.Stdout()
	var eerr *execute.ExitError
	switch {
	case errors.As(err, &eerr) && len(stdout) > 0:
		clog.Warningf(ctx, "%s: %v\n%s", cmd.Desc, err, firstLines(cmd.Stderr(), 10))
	case err != nil:
		return nil, fmt.Errorf("%s: %s: %w\n%s", cmd.Desc, cmd.Command(), err, cmd.Stderr())
	}
	return stdout, nil
}

func firstLines(b []byte, n int) []byte {
	i := 0
	for range n {
		j := bytes.IndexByte(b[i:], '\n')
		if j < 0 {
			return b
		}
		i += j + 1
	}
	return b[:i]
}

// Parse parses the header at path with clang.
func (fe *Frontend) Parse(ctx context.Context, path string, args []string) (*frontend.TranslationUnit, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tu := &frontend.TranslationUnit{MainFile: path}
	warn := func(format string, args ...any) {
		clog.Warningf(ctx, "%s: %s", filepath.Base(path), fmt.Sprintf(format, args...))
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		cmd := fe.command("AST", args, path, "-fsyntax-only", "-Xclang", "-ast-dump=json")
		out, err := fe.run(gctx, cmd)
		if err != nil {
			return err
		}
		tu.Decls, err = decodeAST(bytes.NewReader(out), path, src, fe.Evaluator.Target, warn)
		if err != nil {
			return fmt.Errorf("failed to decode ast of %s: %w", path, err)
		}
		return nil
	})
	eg.Go(func() error {
		cmd := fe.command("PP", args, path, "-E", "-dD")
		out, err := fe.run(gctx, cmd)
		if err != nil {
			return err
		}
		tu.Macros, err = parseMacros(bytes.NewReader(out), path, warn)
		if err != nil {
			return fmt.Errorf("failed to parse macros of %s: %w", path, err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if clog.V(ctx, 1) {
		clog.Infof(ctx, "%s: %d decls, %d macros", path, len(tu.Decls), tu.Macros.Len())
	}
	return tu, nil
}

// Fingerprint returns the output of `clang --version` followed by the
// header preprocessed with args, which holds the macros of every
// included file.
func (fe *Frontend) Fingerprint(ctx context.Context, path string, args []string) ([]byte, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	version, err := fe.clangVersion(ctx)
	if err != nil {
		return nil, err
	}
	out, err := fe.run(ctx, fe.command("PP", args, path, "-E", "-dD"))
	if err != nil {
		return nil, err
	}
	fp := make([]byte, 0, len(version)+len(out))
	fp = append(fp, version...)
	fp = append(fp, out...)
	return fp, nil
}

// clangVersion returns the output of `clang --version`, run once.
func (fe *Frontend) clangVersion(ctx context.Context) ([]byte, error) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	if fe.version != nil {
		return fe.version, nil
	}
	cmd := &execute.Cmd{
		ID:   uuid.New().String(),
		Desc: "version " + filepath.Base(fe.Clang),
		Args: []string{fe.Clang, "--version"},
	}
	if err := fe.Executor.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf("%s: %w\n%s", cmd.Command(), err, cmd.Stderr())
	}
	fe.version = cmd.Stdout()
	clog.Infof(ctx, "clang: %s", firstLines(fe.version, 1))
	return fe.version, nil
}

// Evaluate evaluates expr with cexpr.
func (fe *Frontend) Evaluate(ctx context.Context, expr string, args []string) (frontend.Value, bool) {
	v, err := fe.Evaluator.Evaluate(expr, args)
	if err != nil {
		if clog.V(ctx, 2) {
			clog.Infof(ctx, "evaluate %q: %v", expr, err)
		}
		return frontend.Value{}, false
	}
	return v, true
}
