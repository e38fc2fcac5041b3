// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sdkconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/specregen/sdkversion"
)

func testVersion() sdkversion.Version {
	return sdkversion.Version{
		Name: "1.615.0",
		Path: filepath.Join("sdk", "versions", "1.615.0"),
		DXGIs: []sdkversion.DXGI{
			{Major: 1, Minor: 1, Path: "shared/dxgi.h"},
			{Major: 1, Minor: 6, Path: "shared/dxgi1_6.h"},
		},
		Headers: []string{"shared/dxgi.h", "shared/dxgi1_6.h", "um/d3d12.h"},
	}
}

func TestBuiltin(t *testing.T) {
	ctx := t.Context()
	cfg, err := Load(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Load(ctx, dir)=_, %v; want nil error", err)
	}
	v := testVersion()
	got, err := cfg.Init(ctx, v)
	if err != nil {
		t.Fatalf("Init(ctx, %q)=_, %v; want nil error", v.Name, err)
	}
	want := Settings{
		Headers: v.Headers,
		Args:    v.Args(),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Init(ctx, %q) diff -want +got:\n%s", v.Name, diff)
	}
}

func TestInit(t *testing.T) {
	v := testVersion()
	for _, tc := range []struct {
		name string
		src  string
		want Settings
	}{
		{
			name: "none",
			src: `
def init(ctx):
    print("version", ctx.version)
`,
			want: Settings{Headers: v.Headers, Args: v.Args()},
		},
		{
			name: "dict",
			src: `
def init(ctx):
    return {"headers": [h for h in ctx.headers if h != "um/d3d12.h"]}
`,
			want: Settings{Headers: []string{"shared/dxgi.h", "shared/dxgi1_6.h"}, Args: v.Args()},
		},
		{
			name: "struct",
			src: `
def init(ctx):
    latest = ctx.dxgis[-1]
    return struct(
        headers = [latest.path],
        args = ctx.args + ["-DDXGI_MINOR=%d" % latest.minor],
    )
`,
			want: Settings{
				Headers: []string{"shared/dxgi1_6.h"},
				Args:    append(v.Args(), "-DDXGI_MINOR=6"),
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := t.Context()
			cfg, err := New(ctx, "test.star", []byte(tc.src))
			if err != nil {
				t.Fatalf("New(ctx, %q, src)=_, %v; want nil error", "test.star", err)
			}
			got, err := cfg.Init(ctx, v)
			if err != nil {
				t.Fatalf("Init(ctx, %q)=_, %v; want nil error", v.Name, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Init(ctx, %q) diff -want +got:\n%s", v.Name, diff)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	ctx := t.Context()
	root := t.TempDir()
	dir := filepath.Join(root, sdkversion.VersionsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(`
def init(ctx):
    return struct(args = ["-x", "c++"])
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(ctx, root)
	if err != nil {
		t.Fatalf("Load(ctx, root)=_, %v; want nil error", err)
	}
	v := testVersion()
	got, err := cfg.Init(ctx, v)
	if err != nil {
		t.Fatalf("Init(ctx, %q)=_, %v; want nil error", v.Name, err)
	}
	if diff := cmp.Diff([]string{"-x", "c++"}, got.Args); diff != "" {
		t.Errorf("Init(ctx, %q).Args diff -want +got:\n%s", v.Name, diff)
	}
}

func TestErrors(t *testing.T) {
	ctx := t.Context()
	for _, src := range []string{
		"x = 1\n",
		"init = 1\n",
		"def init(ctx:\n",
	} {
		_, err := New(ctx, "bad.star", []byte(src))
		if err == nil {
			t.Errorf("New(ctx, %q)=_, nil; want error", src)
		}
	}

	v := testVersion()
	for _, src := range []string{
		"def init(ctx):\n    return 1\n",
		"def init(ctx):\n    return struct(headers = [1])\n",
		"def init(ctx):\n    return {\"args\": 3}\n",
	} {
		cfg, err := New(ctx, "bad.star", []byte(src))
		if err != nil {
			t.Fatalf("New(ctx, %q)=_, %v; want nil error", src, err)
		}
		_, err = cfg.Init(ctx, v)
		if err == nil {
			t.Errorf("Init(ctx, %q) for %q=_, nil; want error", v.Name, src)
		}
	}

	cfg, err := New(ctx, "fail.star", []byte("def init(ctx):\n    fail(\"broken\")\n"))
	if err != nil {
		t.Fatalf("New(ctx, fail.star)=_, %v; want nil error", err)
	}
	_, err = cfg.Init(ctx, v)
	var herr HandlerError
	if !errors.As(err, &herr) {
		t.Errorf("Init(ctx, %q)=_, %v; want HandlerError", v.Name, err)
	}
}
