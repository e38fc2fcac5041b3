// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.chromium.org/infra/build/specregen/frontend"
)

// maxExpansions bounds the number of macro invocations replaced while
// expanding a single expression.
const maxExpansions = 1 << 14

// ErrExpansionLimit is returned when expanding an expression invokes too
// many macros.
var ErrExpansionLimit = errors.New("macro expansion limit exceeded")

// ptoken is a token with the names of the macros that must not be
// expanded again from it.
type ptoken struct {
	frontend.Token
	hide hideset
}

type hideset map[string]bool

func (hs hideset) with(name string) hideset {
	n := make(hideset, len(hs)+1)
	for k := range hs {
		n[k] = true
	}
	n[name] = true
	return n
}

func (hs hideset) intersect(other hideset) hideset {
	n := make(hideset)
	for k := range hs {
		if other[k] {
			n[k] = true
		}
	}
	return n
}

func (hs hideset) union(other hideset) hideset {
	n := make(hideset, len(hs)+len(other))
	for k := range hs {
		n[k] = true
	}
	for k := range other {
		n[k] = true
	}
	return n
}

// expander expands macros of a table in token sequences.
type expander struct {
	macros *frontend.MacroTable
	n      int
}

// Expand fully macro-expands toks with the macros of mt.
func Expand(toks []frontend.Token, mt *frontend.MacroTable) ([]frontend.Token, error) {
	e := &expander{macros: mt}
	out, err := e.expand(wrap(toks, nil))
	if err != nil {
		return nil, err
	}
	res := make([]frontend.Token, len(out))
	for i, t := range out {
		res[i] = t.Token
	}
	return res, nil
}

func wrap(toks []frontend.Token, hs hideset) []ptoken {
	out := make([]ptoken, len(toks))
	for i, t := range toks {
		out[i] = ptoken{Token: t, hide: hs}
	}
	return out
}

func isPunct(t frontend.Token, text string) bool {
	return t.Kind == frontend.Punct && t.Text == text
}

func (e *expander) expand(in []ptoken) ([]ptoken, error) {
	var out []ptoken
	work := in
	for len(work) > 0 {
		t := work[0]
		if t.Kind != frontend.Identifier || t.hide[t.Text] {
			out = append(out, t)
			work = work[1:]
			continue
		}
		m := e.macros.Lookup(t.Text)
		if m == nil {
			out = append(out, t)
			work = work[1:]
			continue
		}
		if !m.FunctionLike {
			if err := e.count(); err != nil {
				return nil, err
			}
			body, err := e.subst(m, nil, t.hide.with(m.Name))
			if err != nil {
				return nil, err
			}
			work = append(body, work[1:]...)
			continue
		}
		if len(work) < 2 || !isPunct(work[1].Token, "(") {
			out = append(out, t)
			work = work[1:]
			continue
		}
		args, end, err := collectArgs(work, 1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		if err := e.count(); err != nil {
			return nil, err
		}
		args, err = bindArgs(m, args)
		if err != nil {
			return nil, err
		}
		hs := t.hide.intersect(work[end].hide).with(m.Name)
		body, err := e.subst(m, args, hs)
		if err != nil {
			return nil, err
		}
		work = append(body, work[end+1:]...)
	}
	return out, nil
}

func (e *expander) count() error {
	e.n++
	if e.n > maxExpansions {
		return ErrExpansionLimit
	}
	return nil
}

// collectArgs splits the argument list whose opening parenthesis is at
// toks[open]. It returns the index of the closing parenthesis.
func collectArgs(toks []ptoken, open int) ([][]ptoken, int, error) {
	var args [][]ptoken
	var cur []ptoken
	depth := 0
	for i := open + 1; i < len(toks); i++ {
		t := toks[i]
		switch {
		case isPunct(t.Token, "("):
			depth++
		case isPunct(t.Token, ")"):
			if depth == 0 {
				args = append(args, cur)
				return args, i, nil
			}
			depth--
		case isPunct(t.Token, ",") && depth == 0:
			args = append(args, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	return nil, 0, errors.New("unterminated argument list")
}

// bindArgs matches the arguments to m's parameters, folding variadic
// arguments into one.
func bindArgs(m *frontend.Macro, args [][]ptoken) ([][]ptoken, error) {
	nparams := len(m.Params)
	variadic := nparams > 0 && m.Params[nparams-1] == "..."
	if nparams == 0 && len(args) == 1 && len(args[0]) == 0 {
		return nil, nil
	}
	if variadic {
		if len(args) < nparams-1 {
			return nil, fmt.Errorf("%s: got %d arguments; want at least %d", m.Name, len(args), nparams-1)
		}
		if len(args) == nparams-1 {
			return append(args, nil), nil
		}
		va := args[nparams-1]
		for _, a := range args[nparams:] {
			va = append(va, ptoken{Token: frontend.Token{Kind: frontend.Punct, Text: ","}})
			va = append(va, a...)
		}
		return append(args[:nparams-1], va), nil
	}
	if len(args) != nparams {
		return nil, fmt.Errorf("%s: got %d arguments; want %d", m.Name, len(args), nparams)
	}
	return args, nil
}

func paramIndex(m *frontend.Macro, name string) int {
	for i, p := range m.Params {
		if p == name || (p == "..." && name == "__VA_ARGS__") {
			return i
		}
	}
	return -1
}

// subst substitutes args into m's replacement list and adds hs to the
// hide set of every resulting token.
func (e *expander) subst(m *frontend.Macro, args [][]ptoken, hs hideset) ([]ptoken, error) {
	body := m.Tokens
	var out []ptoken
	param := func(t frontend.Token) int {
		if !m.FunctionLike || (t.Kind != frontend.Identifier && t.Kind != frontend.Keyword) {
			return -1
		}
		return paramIndex(m, t.Text)
	}
	for i := 0; i < len(body); i++ {
		t := body[i]
		switch {
		case m.FunctionLike && isPunct(t, "#") && i+1 < len(body) && param(body[i+1]) >= 0:
			out = append(out, ptoken{Token: stringize(args[param(body[i+1])])})
			i++
		case isPunct(t, "##") && i+1 < len(body):
			next := body[i+1]
			i++
			var rhs []ptoken
			if p := param(next); p >= 0 {
				rhs = args[p]
			} else {
				rhs = []ptoken{{Token: next}}
			}
			if len(rhs) == 0 {
				continue
			}
			if len(out) == 0 {
				out = append(out, rhs...)
				continue
			}
			glued, err := glue(out[len(out)-1].Token, rhs[0].Token)
			if err != nil {
				return nil, err
			}
			out[len(out)-1] = ptoken{Token: glued}
			out = append(out, rhs[1:]...)
		case param(t) >= 0:
			arg := args[param(t)]
			if i+1 < len(body) && isPunct(body[i+1], "##") {
				out = append(out, arg...)
				continue
			}
			exp, err := e.expand(arg)
			if err != nil {
				return nil, err
			}
			out = append(out, exp...)
		default:
			out = append(out, ptoken{Token: t})
		}
	}
	for i := range out {
		out[i].hide = out[i].hide.union(hs)
	}
	return out, nil
}

func stringize(arg []ptoken) frontend.Token {
	toks := make([]frontend.Token, len(arg))
	for i, t := range arg {
		toks[i] = t.Token
	}
	return frontend.Token{Kind: frontend.String, Text: strconv.Quote(frontend.Join(toks))}
}

func glue(a, b frontend.Token) (frontend.Token, error) {
	text := a.Text + b.Text
	toks, err := Tokenize(text)
	if err != nil || len(toks) != 1 {
		return frontend.Token{}, fmt.Errorf("pasting %q and %q does not give a valid token", a.Text, b.Text)
	}
	return toks[0], nil
}

// ExpandString tokenizes and expands src.
func ExpandString(src string, mt *frontend.MacroTable) (string, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return "", err
	}
	toks, err = Expand(toks, mt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(frontend.Join(toks)), nil
}
