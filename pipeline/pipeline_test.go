// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"go.chromium.org/infra/build/specregen/frontend"
	"go.chromium.org/infra/build/specregen/introspect"
	"go.chromium.org/infra/build/specregen/jobs"
	"go.chromium.org/infra/build/specregen/sdkconfig"
	"go.chromium.org/infra/build/specregen/sdkinfo"
	"go.chromium.org/infra/build/specregen/snapcache"
)

// fakeFrontend parses headers made of an enum name line followed by
// NAME=VALUE lines. A header "!fail" fails to parse, and a header
// "!invariant" has an enum without a name.
type fakeFrontend struct {
	parses atomic.Int32
}

func (f *fakeFrontend) Parse(ctx context.Context, path string, args []string) (*frontend.TranslationUnit, error) {
	f.parses.Add(1)
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tu := &frontend.TranslationUnit{MainFile: path}
	switch strings.TrimSpace(string(buf)) {
	case "!fail":
		return nil, errors.New("fake parse error")
	case "!invariant":
		tu.Decls = append(tu.Decls, &frontend.EnumDecl{IntegerType: "int"})
		return tu, nil
	}
	s := bufio.NewScanner(bytes.NewReader(buf))
	d := &frontend.EnumDecl{IntegerType: "int"}
	for s.Scan() {
		line := s.Text()
		if d.Name == "" {
			d.Name = line
			continue
		}
		name, value, _ := strings.Cut(line, "=")
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, err
		}
		d.Enumerators = append(d.Enumerators, frontend.Enumerator{Name: name, Value: v})
	}
	tu.Decls = append(tu.Decls, d)
	return tu, nil
}

func (f *fakeFrontend) Evaluate(ctx context.Context, expr string, args []string) (frontend.Value, bool) {
	return frontend.Value{}, false
}

const testConfig = `
def init(ctx):
    return struct(headers = ["um/a.h", "um/b.h"])
`

func setupRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		fname := filepath.Join(root, "versions", filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(fname, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func testOptions(t *testing.T, root string, fe frontend.Frontend) Options {
	t.Helper()
	ctx := t.Context()
	cfg, err := sdkconfig.New(ctx, "test.star", []byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	pool := jobs.New(ctx, 4)
	t.Cleanup(pool.Shutdown)
	return Options{
		Root:        root,
		Frontend:    fe,
		Jobs:        pool,
		Config:      cfg,
		ToolVersion: "test",
	}
}

var twoVersions = map[string]string{
	"1.0/um/a.h": "COLOR\nRED=0\nGREEN=1\n",
	"1.0/um/b.h": "MODE\nM0=0\n",
	"1.1/um/a.h": "COLOR\nRED=0\nGREEN=1\nBLUE=2\n",
	"1.1/um/b.h": "MODE\nM0=0\n",
}

func colorEnum(names ...string) sdkinfo.Enum {
	e := sdkinfo.Enum{Name: "COLOR", Type: sdkinfo.Int32}
	for _, name := range names {
		v := map[string]uint64{"RED": 0, "GREEN": 1, "BLUE": 2}[name]
		e.Ordinals = append(e.Ordinals, sdkinfo.Ordinal{Name: name, Type: sdkinfo.Int32, Value: v})
	}
	return e
}

var modeEnum = sdkinfo.Enum{
	Name:     "MODE",
	Type:     sdkinfo.Int32,
	Ordinals: []sdkinfo.Ordinal{{Name: "M0", Type: sdkinfo.Int32}},
}

func TestRun(t *testing.T) {
	ctx := t.Context()
	root := setupRoot(t, twoVersions)
	fe := &fakeFrontend{}
	opts := testOptions(t, root, fe)
	opts.Reduce = true
	var progress atomic.Int32
	opts.Progress = func(jobs.Stats) { progress.Add(1) }

	got, err := Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run(ctx, opts)=_, %v; want nil error", err)
	}

	newer := colorEnum("BLUE")
	newer.Append = true
	want := []sdkinfo.SDK{
		{
			Version: "1.0",
			Headers: []sdkinfo.Header{
				{Name: "um/a.h", Enums: []sdkinfo.Enum{colorEnum("RED", "GREEN")}},
				{Name: "um/b.h", Enums: []sdkinfo.Enum{modeEnum}},
			},
		},
		{
			Version: "1.1",
			Headers: []sdkinfo.Header{
				{Name: "um/a.h", Enums: []sdkinfo.Enum{newer}},
				{Name: "um/b.h"},
			},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Run(ctx, opts) diff -want +got:\n%s", diff)
	}
	if n := fe.parses.Load(); n != 4 {
		t.Errorf("parses=%d; want 4", n)
	}
	if progress.Load() == 0 {
		t.Errorf("progress was not reported")
	}
}

func TestRunNoReduce(t *testing.T) {
	ctx := t.Context()
	root := setupRoot(t, twoVersions)
	opts := testOptions(t, root, &fakeFrontend{})

	got, err := Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run(ctx, opts)=_, %v; want nil error", err)
	}
	want := []sdkinfo.SDK{
		{
			Version: "1.0",
			Headers: []sdkinfo.Header{
				{Name: "um/a.h", Enums: []sdkinfo.Enum{colorEnum("RED", "GREEN")}},
				{Name: "um/b.h", Enums: []sdkinfo.Enum{modeEnum}},
			},
		},
		{
			Version: "1.1",
			Headers: []sdkinfo.Header{
				{Name: "um/a.h", Enums: []sdkinfo.Enum{colorEnum("RED", "GREEN", "BLUE")}},
				{Name: "um/b.h", Enums: []sdkinfo.Enum{modeEnum}},
			},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Run(ctx, opts) diff -want +got:\n%s", diff)
	}
}

func TestRunManifest(t *testing.T) {
	ctx := t.Context()
	files := map[string]string{
		"sdk.versions": "1.1\nmissing\n1.0\n",
	}
	for k, v := range twoVersions {
		files[k] = v
	}
	root := setupRoot(t, files)
	opts := testOptions(t, root, &fakeFrontend{})

	got, err := Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run(ctx, opts)=_, %v; want nil error", err)
	}
	var versions []string
	for _, sdk := range got {
		versions = append(versions, sdk.Version)
	}
	if diff := cmp.Diff([]string{"1.1", "1.0"}, versions); diff != "" {
		t.Errorf("versions diff -want +got:\n%s", diff)
	}
}

func TestRunExtractError(t *testing.T) {
	ctx := t.Context()
	root := setupRoot(t, map[string]string{
		"1.0/um/a.h": "COLOR\nRED=0\n",
		"1.0/um/b.h": "!fail\n",
	})
	opts := testOptions(t, root, &fakeFrontend{})

	got, err := Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run(ctx, opts)=_, %v; want nil error", err)
	}
	want := []sdkinfo.SDK{
		{
			Version: "1.0",
			Headers: []sdkinfo.Header{
				{Name: "um/a.h", Enums: []sdkinfo.Enum{colorEnum("RED")}},
				{Name: "um/b.h"},
			},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Run(ctx, opts) diff -want +got:\n%s", diff)
	}
}

func TestRunInvariant(t *testing.T) {
	ctx := t.Context()
	root := setupRoot(t, map[string]string{
		"1.0/um/a.h": "COLOR\nRED=0\n",
		"1.0/um/b.h": "!invariant\n",
	})
	opts := testOptions(t, root, &fakeFrontend{})

	_, err := Run(ctx, opts)
	var ierr *introspect.InvariantError
	if !errors.As(err, &ierr) {
		t.Fatalf("Run(ctx, opts)=_, %v; want InvariantError", err)
	}
	if ierr.Header != "um/b.h" {
		t.Errorf("Header=%q; want %q", ierr.Header, "um/b.h")
	}
}

func TestRunNoVersions(t *testing.T) {
	ctx := t.Context()
	opts := testOptions(t, t.TempDir(), &fakeFrontend{})
	if _, err := Run(ctx, opts); err == nil {
		t.Errorf("Run(ctx, opts)=_, nil; want error")
	}
}

func TestRunCache(t *testing.T) {
	ctx := t.Context()
	root := setupRoot(t, twoVersions)
	cacheDir := t.TempDir()

	fe := &fakeFrontend{}
	opts := testOptions(t, root, fe)
	opts.Reduce = true
	opts.Cache = snapcache.New(cacheDir)
	first, err := Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run(ctx, opts)=_, %v; want nil error", err)
	}
	if n := fe.parses.Load(); n != 4 {
		t.Errorf("parses=%d; want 4", n)
	}

	fe = &fakeFrontend{}
	opts = testOptions(t, root, fe)
	opts.Reduce = true
	opts.Cache = snapcache.New(cacheDir)
	second, err := Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run(ctx, opts)=_, %v; want nil error", err)
	}
	if n := fe.parses.Load(); n != 0 {
		t.Errorf("parses=%d; want 0 with warm cache", n)
	}
	if diff := cmp.Diff(first, second, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("cached run diff -first +second:\n%s", diff)
	}
}

func TestRunNoFrontend(t *testing.T) {
	if _, err := Run(t.Context(), Options{Root: t.TempDir()}); err == nil {
		t.Errorf("Run(ctx, Options{})=_, nil; want error")
	}
}

// includingFrontend is a fakeFrontend whose headers all include
// shared/common.h of their version.
type includingFrontend struct {
	fakeFrontend
	version string
}

func (f *includingFrontend) Fingerprint(ctx context.Context, path string, args []string) ([]byte, error) {
	common := filepath.Join(filepath.Dir(filepath.Dir(path)), "shared", "common.h")
	buf, err := os.ReadFile(common)
	if err != nil {
		return nil, err
	}
	return append([]byte(f.version+"\n"), buf...), nil
}

func TestRunCacheIncludedHeader(t *testing.T) {
	ctx := t.Context()
	files := map[string]string{
		"1.0/shared/common.h": "#define COMMON 1\n",
		"1.1/shared/common.h": "#define COMMON 1\n",
	}
	for name, content := range twoVersions {
		files[name] = content
	}
	root := setupRoot(t, files)
	cacheDir := t.TempDir()

	run := func(version string) int32 {
		t.Helper()
		fe := &includingFrontend{version: version}
		opts := testOptions(t, root, fe)
		opts.Cache = snapcache.New(cacheDir)
		if _, err := Run(ctx, opts); err != nil {
			t.Fatalf("Run(ctx, opts)=_, %v; want nil error", err)
		}
		return fe.parses.Load()
	}

	if n := run("clang 19"); n != 4 {
		t.Errorf("parses=%d; want 4 with cold cache", n)
	}
	if n := run("clang 19"); n != 0 {
		t.Errorf("parses=%d; want 0 with warm cache", n)
	}
	err := os.WriteFile(filepath.Join(root, "versions", "1.1", "shared", "common.h"), []byte("#define COMMON 2\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	if n := run("clang 19"); n != 2 {
		t.Errorf("parses=%d; want 2 after an included header of 1.1 changed", n)
	}
	if n := run("clang 20"); n != 4 {
		t.Errorf("parses=%d; want 4 after the front end changed", n)
	}
}
