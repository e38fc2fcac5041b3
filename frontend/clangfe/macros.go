// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package clangfe

import (
	"bufio"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"go.chromium.org/infra/build/specregen/frontend"
	"go.chromium.org/infra/build/specregen/frontend/cexpr"
)

// dynamicMacros are expanded by the preprocessor itself and never
// appear in `-dD` output.
var dynamicMacros = []string{
	"__FILE__",
	"__LINE__",
	"__COUNTER__",
	"__DATE__",
	"__TIME__",
	"__TIMESTAMP__",
	"__INCLUDE_LEVEL__",
	"__BASE_FILE__",
	"__FILE_NAME__",
}

// parseMacros parses the output of `-E -dD` and returns the macros
// defined at its end. Linemarkers give the file of each definition.
func parseMacros(r io.Reader, mainFile string, warn func(string, ...any)) (*frontend.MacroTable, error) {
	mt := frontend.NewMacroTable()
	for _, name := range dynamicMacros {
		mt.Define(&frontend.Macro{Name: name, Builtin: true, File: "<built-in>"})
	}
	mainFile = filepath.Clean(mainFile)
	var file string
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for s.Scan() {
		line := s.Text()
		if !strings.HasPrefix(line, "#") {
			continue
		}
		directive := strings.TrimLeft(line[1:], " \t")
		switch {
		case strings.HasPrefix(directive, "define "):
			m := parseDefine(strings.TrimPrefix(directive, "define "), warn)
			if m == nil {
				continue
			}
			m.File = file
			m.InMainFile = file != "" && filepath.Clean(file) == mainFile
			mt.Define(m)
		case strings.HasPrefix(directive, "undef "):
			mt.Undef(strings.TrimSpace(strings.TrimPrefix(directive, "undef ")))
		case strings.HasPrefix(directive, "line "):
			if f, ok := parseLinemarker(strings.TrimPrefix(directive, "line ")); ok {
				file = f
			}
		default:
			if f, ok := parseLinemarker(directive); ok {
				file = f
			}
		}
	}
	return mt, s.Err()
}

// parseLinemarker parses `N "file" flags...` and returns the file.
func parseLinemarker(s string) (string, bool) {
	num, rest, ok := strings.Cut(s, " ")
	if !ok {
		return "", false
	}
	if _, err := strconv.Atoi(num); err != nil {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, `"`) {
		return "", false
	}
	// find closing quote, skipping escapes.
	end := -1
	for i := 1; i < len(rest); i++ {
		if rest[i] == '\\' {
			i++
			continue
		}
		if rest[i] == '"' {
			end = i
			break
		}
	}
	if end < 0 {
		return "", false
	}
	f, err := strconv.Unquote(rest[:end+1])
	if err != nil {
		// windows paths may have escapes strconv doesn't know.
		f = rest[1:end]
	}
	return f, true
}

// parseDefine parses `NAME body` or `NAME(params) body`.
func parseDefine(s string, warn func(string, ...any)) *frontend.Macro {
	i := 0
	for i < len(s) && (s[i] == '_' || s[i] == '$' || ('0' <= s[i] && s[i] <= '9') || ('a' <= s[i] && s[i] <= 'z') || ('A' <= s[i] && s[i] <= 'Z')) {
		i++
	}
	if i == 0 {
		warn("bad #define %q", s)
		return nil
	}
	m := &frontend.Macro{Name: s[:i]}
	rest := s[i:]
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			warn("bad #define %q: unterminated parameter list", s)
			return nil
		}
		m.FunctionLike = true
		if params := strings.TrimSpace(rest[1:end]); params != "" {
			for _, p := range strings.Split(params, ",") {
				p = strings.TrimSpace(p)
				if named, ok := strings.CutSuffix(p, "..."); ok && named != "" {
					// GNU named variadic parameter.
					p = named
				}
				m.Params = append(m.Params, p)
			}
		}
		rest = rest[end+1:]
	}
	body := strings.TrimSpace(rest)
	if body == "" {
		return m
	}
	toks, err := cexpr.Tokenize(body)
	if err != nil {
		warn("#define %s: %v; keep body as is", m.Name, err)
		toks = []frontend.Token{{Kind: frontend.Punct, Text: body}}
	}
	m.Tokens = toks
	return m
}
