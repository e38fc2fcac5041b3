// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package runtimex

import "testing"

func TestWorkers(t *testing.T) {
	if NumCPU() <= 0 {
		t.Fatalf("NumCPU()=%d; want >0", NumCPU())
	}
	for _, tc := range []struct {
		n    int
		want int
	}{
		{n: 3, want: 3},
		{n: 0, want: NumCPU()},
		{n: -1, want: NumCPU()},
	} {
		if got := Workers(tc.n); got != tc.want {
			t.Errorf("Workers(%d)=%d; want %d", tc.n, got, tc.want)
		}
	}
}
