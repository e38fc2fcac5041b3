// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui_test

import (
	"testing"

	"go.chromium.org/infra/build/specregen/ui"
)

func TestStripANSIEscapeCodes(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{
			in:   "foo\033",
			want: "foo",
		},
		{
			in:   "foo\033[",
			want: "foo",
		},
		{
			in:   "\033[1md3d12.h:286:15: \033[0m\033[0;1;35mwarning: \033[0m\033[1mtypedef redefinition [-Wtypedef-redefinition]\033[0m",
			want: "d3d12.h:286:15: warning: typedef redefinition [-Wtypedef-redefinition]",
		},
		{
			in:   ui.SGR(ui.Green, "1.615.0") + " done",
			want: "1.615.0 done",
		},
	} {
		got := ui.StripANSIEscapeCodes(tc.in)
		if got != tc.want {
			t.Errorf("ui.StripANSIEscapeCodes(%q)=%q; want=%q", tc.in, got, tc.want)
		}
	}
}
