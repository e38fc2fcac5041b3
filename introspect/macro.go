// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package introspect

import (
	"context"
	"fmt"
	"strings"

	"go.chromium.org/infra/build/specregen/frontend"
	"go.chromium.org/infra/build/specregen/o11y/clog"
	"go.chromium.org/infra/build/specregen/sdkinfo"
)

// maxMacroDepth bounds the dependency chain followed from one macro.
// Deeper chains only occur with cyclic definitions.
const maxMacroDepth = 64

// EvalArgs are the compiler flags every macro evaluation starts with.
var EvalArgs = []string{"-std=c++20"}

// ResolveMacros adds the macros defined in tu's main file to h:
// function-like macros as constexpr functions, others as constants typed
// by evaluating them with fe.
func ResolveMacros(ctx context.Context, fe frontend.Frontend, tu *frontend.TranslationUnit, h *sdkinfo.Header) error {
	for _, m := range tu.Macros.All() {
		if !m.InMainFile || len(m.Tokens) == 0 || strings.HasPrefix(m.Name, "__") {
			continue
		}
		if err := resolveMacro(ctx, fe, tu.Macros, m, h); err != nil {
			return err
		}
	}
	return nil
}

func resolveMacro(ctx context.Context, fe frontend.Frontend, macros *frontend.MacroTable, m *frontend.Macro, h *sdkinfo.Header) error {
	args := append([]string(nil), EvalArgs...)
	r := &resolver{macros: macros, args: args}
	text := r.replacement(m, 0)

	if m.FunctionLike {
		fn := sdkinfo.Function{
			Name:       m.Name,
			ReturnType: "auto",
			Constexpr:  true,
			Impl: sdkinfo.Impl{
				Has:  true,
				Lang: "C++",
				Code: fmt.Sprintf("return %s;", text),
			},
		}
		for _, p := range m.Params {
			if p == "" {
				return &InvariantError{Header: h.Name, Kind: "macro", Entity: m.Name, Reason: "empty parameter name"}
			}
			if p == "..." {
				p = "__VA_ARGS__"
			}
			fn.Args = append(fn.Args, sdkinfo.Arg{Name: p, Type: "auto"})
		}
		h.Functions = append(h.Functions, fn)
		return nil
	}

	c := sdkinfo.Constant{Name: m.Name, Type: "auto", Value: text}
	if r.unresolved {
		if clog.V(ctx, 2) {
			clog.Infof(ctx, "%s: macro %s has unresolved identifiers", h.Name, m.Name)
		}
	} else if v, ok := fe.Evaluate(ctx, text, r.args); ok {
		if t, ok := valueType(v); ok {
			c.Type, c.Value = t, v.Text
		} else {
			clog.Warningf(ctx, "%s: macro %s: %s values are not supported", h.Name, m.Name, v.Kind)
		}
	}
	h.Constants = append(h.Constants, c)
	return nil
}

// resolver collects the definitions a macro depends on.
type resolver struct {
	macros     *frontend.MacroTable
	args       []string
	unresolved bool
}

func isParam(m *frontend.Macro, name string) bool {
	if !m.FunctionLike {
		return false
	}
	if name == "__VA_ARGS__" && m.HasParam("...") {
		return true
	}
	return m.HasParam(name)
}

// replacement returns the replacement text of m, after appending the -D
// definitions of the macros it refers to, dependencies first.
func (r *resolver) replacement(m *frontend.Macro, depth int) string {
	if depth >= maxMacroDepth {
		r.unresolved = true
		return m.Body()
	}
	for _, t := range m.Tokens {
		if t.Kind != frontend.Identifier || isParam(m, t.Text) {
			continue
		}
		dep := r.macros.Lookup(t.Text)
		switch {
		case dep == nil:
			r.unresolved = true
		case dep.Builtin:
		case len(dep.Tokens) == 0:
			r.args = append(r.args, frontend.Define(dep.Name, dep.Params, dep.FunctionLike, ""))
		default:
			body := r.replacement(dep, depth+1)
			r.args = append(r.args, frontend.Define(dep.Name, dep.Params, dep.FunctionLike, body))
		}
	}
	return m.Body()
}

// valueType returns the type tag of an evaluated constant.
func valueType(v frontend.Value) (string, bool) {
	switch v.Kind {
	case frontend.Int:
		if v.Signed {
			return fmt.Sprintf("i%d", v.Width), true
		}
		return fmt.Sprintf("u%d", v.Width), true
	case frontend.Float:
		switch v.Semantics {
		case frontend.IEEEHalf, frontend.BFloat:
			return "f16", true
		case frontend.IEEESingle:
			return "f32", true
		case frontend.IEEEDouble:
			return "f64", true
		case frontend.IEEEQuad, frontend.PPCDoubleDouble:
			return "f128", true
		case frontend.Float8E5M2:
			return "f8", true
		case frontend.X87DoubleExtended:
			return "f80", true
		}
		return "", false
	case frontend.FixedPoint:
		sign := "u"
		if v.Signed {
			sign = "i"
		}
		return fmt.Sprintf("%s%d.%d", sign, v.Width-v.Scale, v.Scale), true
	}
	return "", false
}
