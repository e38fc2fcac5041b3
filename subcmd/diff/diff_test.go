// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package diff

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"go.chromium.org/infra/build/specregen/sdkinfo"
)

func testSDK(version string, ordinals ...string) sdkinfo.SDK {
	e := sdkinfo.Enum{Name: "D3D12_COLOR"}
	for i, name := range ordinals {
		e.Ordinals = append(e.Ordinals, sdkinfo.Ordinal{Name: name, Value: uint64(i)})
	}
	return sdkinfo.SDK{
		Version: version,
		Headers: []sdkinfo.Header{
			{
				Name:      "um/d3d12.h",
				Enums:     []sdkinfo.Enum{e},
				Constants: []sdkinfo.Constant{{Name: "D3D12_SDK_VERSION", Type: "int", Value: version}},
			},
		},
	}
}

func writeDoc(t *testing.T, sdks ...sdkinfo.SDK) string {
	t.Helper()
	buf, err := sdkinfo.MarshalDocument(sdks)
	if err != nil {
		t.Fatal(err)
	}
	fname := filepath.Join(t.TempDir(), "spec.xml")
	if err := os.WriteFile(fname, buf, 0644); err != nil {
		t.Fatal(err)
	}
	return fname
}

func TestRun(t *testing.T) {
	ctx := t.Context()
	c := &run{
		older:  writeDoc(t, testSDK("600", "RED"), testSDK("610", "RED", "GREEN")),
		newer:  writeDoc(t, testSDK("615", "RED", "GREEN", "BLUE")),
		output: filepath.Join(t.TempDir(), "out.xml"),
	}
	if err := c.run(ctx, nil); err != nil {
		t.Fatalf("run(ctx, nil)=%v; want nil error", err)
	}
	f, err := os.Open(c.output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := sdkinfo.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	want := []sdkinfo.SDK{
		{
			Version: "615",
			Headers: []sdkinfo.Header{
				{
					Name: "um/d3d12.h",
					Enums: []sdkinfo.Enum{{
						Append:   true,
						Name:     "D3D12_COLOR",
						Ordinals: []sdkinfo.Ordinal{{Name: "BLUE", Value: 2}},
					}},
					Constants: []sdkinfo.Constant{{Altered: true, Name: "D3D12_SDK_VERSION", Type: "int", Value: "615"}},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("diff output diff -want +got:\n%s", diff)
	}
}

func TestRunErrors(t *testing.T) {
	ctx := t.Context()
	doc := writeDoc(t, testSDK("600", "RED"))
	empty := writeDoc(t)
	for _, tc := range []struct {
		name     string
		c        *run
		args     []string
		wantHelp bool
	}{
		{name: "no_flags", c: &run{}, wantHelp: true},
		{name: "args", c: &run{older: doc, newer: doc}, args: []string{"x"}, wantHelp: true},
		{name: "missing", c: &run{older: doc, newer: filepath.Join(t.TempDir(), "missing.xml")}},
		{name: "empty", c: &run{older: empty, newer: doc}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.run(ctx, tc.args)
			if err == nil {
				t.Fatalf("run(ctx, %q)=nil; want error", tc.args)
			}
			if got := errors.Is(err, flag.ErrHelp); got != tc.wantHelp {
				t.Errorf("run(ctx, %q)=%v; errors.Is(err, flag.ErrHelp)=%t, want %t", tc.args, err, got, tc.wantHelp)
			}
		})
	}
}

func TestReduceKeepsNewer(t *testing.T) {
	newer := testSDK("615", "RED", "GREEN")
	older := testSDK("610", "RED")
	orig := newer.Clone()

	got := Reduce(&newer, &older)
	if diff := cmp.Diff(orig, &newer); diff != "" {
		t.Errorf("Reduce modified newer: diff -want +got:\n%s", diff)
	}
	if len(got.Headers[0].Enums[0].Ordinals) != 1 {
		t.Errorf("Reduce(...) ordinals=%v; want only GREEN", got.Headers[0].Enums[0].Ordinals)
	}
}
