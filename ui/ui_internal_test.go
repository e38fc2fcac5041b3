// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import "testing"

func TestElideMiddle(t *testing.T) {
	for _, tc := range []struct {
		msg   string
		width int
		want  string
	}{
		{
			msg:   "abcdefghijklmnopqrstuvwxyz0123",
			width: 20,
			want:  "abcdefgh...wxyz0123",
		},
		{
			msg:   "abcdefghijklmnopqrstuvwxyz0123",
			width: 40,
			want:  "abcdefghijklmnopqrstuvwxyz0123",
		},
		{
			msg:   "extract \033[32m1.615.0/um/d3d12.h\033[0m pending:12 running:4 done:100",
			width: 20,
			want:  "extract \033[32m1.615.0/um/d3d12.h\033[0m pending:12 running:4 done:100",
		},
		{
			msg:   "abcdefghij",
			width: 5,
			want:  "abcdefghij",
		},
	} {
		got := elideMiddle(tc.msg, tc.width)
		if got != tc.want {
			t.Errorf("elideMiddle(%q, %d)=%q; want %q", tc.msg, tc.width, got, tc.want)
		}
	}
}
