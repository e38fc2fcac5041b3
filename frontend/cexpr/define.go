// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cexpr

import (
	"fmt"
	"strings"

	"go.chromium.org/infra/build/specregen/frontend"
)

// ParseDefines builds the macro table of the -D and -U flags in args.
// Other flags are ignored. "-DNAME" defines NAME as 1, as compilers do.
func ParseDefines(args []string) (*frontend.MacroTable, error) {
	mt := frontend.NewMacroTable()
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var def, undef string
		switch {
		case arg == "-D" || arg == "-U":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing argument to %s", arg)
			}
			i++
			if arg == "-D" {
				def = args[i]
			} else {
				undef = args[i]
			}
		case strings.HasPrefix(arg, "-D"):
			def = arg[2:]
		case strings.HasPrefix(arg, "-U"):
			undef = arg[2:]
		default:
			continue
		}
		if undef != "" {
			mt.Undef(undef)
			continue
		}
		m, err := parseDefine(def)
		if err != nil {
			return nil, fmt.Errorf("bad definition %q: %w", def, err)
		}
		mt.Define(m)
	}
	return mt, nil
}

func parseDefine(def string) (*frontend.Macro, error) {
	head, body, hasBody := strings.Cut(def, "=")
	if !hasBody {
		body = "1"
	}
	m := &frontend.Macro{Name: head}
	if name, params, ok := strings.Cut(head, "("); ok {
		params, ok = strings.CutSuffix(params, ")")
		if !ok {
			return nil, fmt.Errorf("unterminated parameter list")
		}
		m.Name = name
		m.FunctionLike = true
		if strings.TrimSpace(params) != "" {
			for _, p := range strings.Split(params, ",") {
				m.Params = append(m.Params, strings.TrimSpace(p))
			}
		}
	}
	if m.Name == "" {
		return nil, fmt.Errorf("empty macro name")
	}
	toks, err := Tokenize(body)
	if err != nil {
		return nil, err
	}
	m.Tokens = toks
	return m, nil
}
