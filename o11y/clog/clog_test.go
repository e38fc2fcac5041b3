// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clog_test is a test for clog package.
package clog_test

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"cloud.google.com/go/logging"
	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/specregen/o11y/clog"
)

type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) sink(severity logging.Severity, depth int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, fmt.Sprintf("%s: %s", severity, msg))
}

func Test(t *testing.T) {
	r := &recorder{}
	l := clog.New()
	l.Sink = r.sink
	ctx := clog.NewContext(t.Context(), l)
	ctx = clog.NewRun(ctx, "run1")

	clog.Infof(ctx, "Info")
	clog.Warningf(ctx, "Warning")
	clog.Errorf(ctx, "Error")

	var wg sync.WaitGroup
	for _, header := range []string{"d3d12.h", "dxgi.h"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx := clog.WithLabels(ctx, "sdk", "1.615.0", "header", header)
			clog.Infof(cctx, "Child Info")
			clog.Errorf(cctx, "Child Error")
			if got := clog.FromContext(cctx).RunID(); got != "run1" {
				t.Errorf("RunID()=%q; want %q", got, "run1")
			}
		}()
	}
	wg.Wait()

	want := []string{
		"Error: Error",
		"Error: [header=d3d12.h sdk=1.615.0] Child Error",
		"Error: [header=dxgi.h sdk=1.615.0] Child Error",
		"Info: Info",
		"Info: [header=d3d12.h sdk=1.615.0] Child Info",
		"Info: [header=dxgi.h sdk=1.615.0] Child Info",
		"Warning: Warning",
	}
	got := r.entries
	sort.Strings(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("log entries diff -want +got:\n%s", diff)
	}
}

func TestFromContextDefault(t *testing.T) {
	l := clog.FromContext(t.Context())
	if l == nil {
		t.Fatal("FromContext(background)=nil; want default logger")
	}
	if got := l.RunID(); got != "" {
		t.Errorf("default RunID()=%q; want empty", got)
	}
}

func TestWithLabelsDoesNotMutateParent(t *testing.T) {
	r := &recorder{}
	l := clog.New()
	l.Sink = r.sink
	ctx := clog.NewContext(t.Context(), l)
	parent := clog.WithLabels(ctx, "sdk", "1")
	_ = clog.WithLabels(parent, "header", "a.h")
	clog.Infof(parent, "x")
	want := []string{"Info: [sdk=1] x"}
	if diff := cmp.Diff(want, r.entries); diff != "" {
		t.Errorf("log entries diff -want +got:\n%s", diff)
	}
}
