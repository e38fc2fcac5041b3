// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package introspect

import (
	"math/bits"
	"strings"
)

// HasFlagInName reports whether name contains "flag" in any case.
func HasFlagInName(name string) bool {
	return strings.Contains(strings.ToLower(name), "flag")
}

// MostlySingleBit reports whether more than 4/5 of values have exactly one
// bit set. Zero has no bit set and never counts.
func MostlySingleBit(values []uint64) bool {
	single := 0
	for _, v := range values {
		if bits.OnesCount64(v) == 1 {
			single++
		}
	}
	return single > len(values)*4/5
}

// isFlags reports whether an enum should be classified as a bit mask.
func isFlags(name string, values []uint64) bool {
	return HasFlagInName(name) || MostlySingleBit(values)
}
