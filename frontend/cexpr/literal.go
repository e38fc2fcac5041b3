// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cexpr

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// parseNumber parses an integer or floating point literal.
func (tg Target) parseNumber(text string) (value, error) {
	s := strings.ReplaceAll(text, "'", "")
	lower := strings.ToLower(s)
	hex := strings.HasPrefix(lower, "0x")
	isFloat := strings.Contains(s, ".") ||
		(hex && strings.Contains(lower, "p")) ||
		(!hex && strings.Contains(lower, "e"))
	if isFloat {
		return tg.parseFloat(text, s)
	}
	return tg.parseInt(text, s)
}

func (tg Target) parseFloat(text, s string) (value, error) {
	t := doubleType
	switch s[len(s)-1] {
	case 'f', 'F':
		t = floatType
		s = s[:len(s)-1]
	case 'l', 'L':
		t = ctype{float: true, sem: tg.LongDouble}
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return value{}, fmt.Errorf("invalid floating point literal %q", text)
	}
	return floatValue(t, f), nil
}

func (tg Target) parseInt(text, s string) (value, error) {
	// strip the suffix; "i64" and "ui64" are Microsoft suffixes.
	end := len(s)
	for end > 0 && strings.ContainsRune("uUlL", rune(s[end-1])) {
		end--
	}
	suffix := strings.ToLower(s[end:])
	if strings.HasSuffix(strings.ToLower(s[:end]), "i64") {
		end -= 3
		suffix = "i64"
		if end > 0 && (s[end-1] == 'u' || s[end-1] == 'U') {
			end--
			suffix = "ui64"
		}
	}
	body := s[:end]
	base := 10
	switch {
	case strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X"):
		base, body = 16, body[2:]
	case strings.HasPrefix(body, "0b") || strings.HasPrefix(body, "0B"):
		base, body = 2, body[2:]
	case len(body) > 1 && body[0] == '0':
		base, body = 8, body[1:]
	}
	n, ok := new(big.Int).SetString(body, base)
	if !ok || body == "" {
		return value{}, fmt.Errorf("invalid integer literal %q", text)
	}

	long := ctype{width: tg.LongWidth, signed: true}
	ulong := ctype{width: tg.LongWidth}
	ll := ctype{width: 64, signed: true}
	ull := ctype{width: 64}
	uintT := ctype{width: 32}
	var candidates []ctype
	switch suffix {
	case "":
		if base == 10 {
			candidates = []ctype{intType, long, ll}
		} else {
			candidates = []ctype{intType, uintT, long, ulong, ll, ull}
		}
	case "u":
		candidates = []ctype{uintT, ulong, ull}
	case "l":
		if base == 10 {
			candidates = []ctype{long, ll}
		} else {
			candidates = []ctype{long, ulong, ll, ull}
		}
	case "ul", "lu":
		candidates = []ctype{ulong, ull}
	case "ll":
		if base == 10 {
			candidates = []ctype{ll}
		} else {
			candidates = []ctype{ll, ull}
		}
	case "ull", "llu":
		candidates = []ctype{ull}
	case "i64":
		candidates = []ctype{ll}
	case "ui64":
		candidates = []ctype{ull}
	default:
		return value{}, fmt.Errorf("invalid suffix on integer literal %q", text)
	}
	for _, t := range candidates {
		lo, hi := limits(t)
		if n.Cmp(lo) >= 0 && n.Cmp(hi) <= 0 {
			return intValue(t, n), nil
		}
	}
	return value{}, fmt.Errorf("integer literal %q is too large", text)
}

// parseChar parses a character literal with an optional encoding prefix.
func (tg Target) parseChar(text string) (value, error) {
	prefix, quoted, _ := strings.Cut(text, "'")
	body := strings.TrimSuffix(quoted, "'")
	var t ctype
	switch prefix {
	case "":
		t = ctype{width: 8, signed: tg.CharSigned}
	case "L":
		t = ctype{width: tg.WCharWidth, signed: tg.WCharSigned}
	case "u8":
		t = ctype{width: 8}
	case "u":
		t = ctype{width: 16}
	case "U":
		t = ctype{width: 32}
	default:
		return value{}, fmt.Errorf("invalid character literal %s", text)
	}
	c, rest, err := unescape(body)
	if err != nil {
		return value{}, fmt.Errorf("invalid character literal %s: %w", text, err)
	}
	if rest != "" {
		return value{}, fmt.Errorf("multi-character literal %s", text)
	}
	return wrapTo(t, big.NewInt(int64(c))), nil
}

// unescape decodes the first character of s, which may be an escape
// sequence.
func unescape(s string) (rune, string, error) {
	if s == "" {
		return 0, "", fmt.Errorf("empty character")
	}
	if s[0] != '\\' {
		r, size := utf8.DecodeRuneInString(s)
		return r, s[size:], nil
	}
	if len(s) < 2 {
		return 0, "", fmt.Errorf("incomplete escape")
	}
	switch c := s[1]; c {
	case 'n':
		return '\n', s[2:], nil
	case 't':
		return '\t', s[2:], nil
	case 'r':
		return '\r', s[2:], nil
	case 'v':
		return '\v', s[2:], nil
	case 'f':
		return '\f', s[2:], nil
	case 'a':
		return '\a', s[2:], nil
	case 'b':
		return '\b', s[2:], nil
	case '\\', '\'', '"', '?':
		return rune(c), s[2:], nil
	case 'x':
		i := 2
		for i < len(s) && strings.ContainsRune("0123456789abcdefABCDEF", rune(s[i])) {
			i++
		}
		if i == 2 {
			return 0, "", fmt.Errorf("\\x without digits")
		}
		n, err := strconv.ParseUint(s[2:i], 16, 32)
		if err != nil {
			return 0, "", err
		}
		return rune(n), s[i:], nil
	case 'u', 'U':
		size := 4
		if c == 'U' {
			size = 8
		}
		if len(s) < 2+size {
			return 0, "", fmt.Errorf("incomplete universal character name")
		}
		n, err := strconv.ParseUint(s[2:2+size], 16, 32)
		if err != nil {
			return 0, "", err
		}
		return rune(n), s[2+size:], nil
	}
	if '0' <= s[1] && s[1] <= '7' {
		i := 1
		for i < len(s) && i < 4 && '0' <= s[i] && s[i] <= '7' {
			i++
		}
		n, err := strconv.ParseUint(s[1:i], 8, 32)
		if err != nil {
			return 0, "", err
		}
		return rune(n), s[i:], nil
	}
	return 0, "", fmt.Errorf("unknown escape \\%c", s[1])
}
