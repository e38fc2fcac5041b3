// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sdkinfo

import "slices"

// Reduce reduces newer to the delta against older, the snapshot of the
// previous SDK version.
//
// Entities identical to their older counterpart are removed, entities
// whose tracked fields differ are marked Altered, and enums or flags that
// keep only new or altered members are marked Append. Headers and
// entities present only in newer are left untouched. Entities present
// only in older are not visited.
func Reduce(newer, older *SDK) {
	ReduceHeader(&newer.Shared, &older.Shared)
	for i := range newer.Headers {
		h := &newer.Headers[i]
		prev := older.Header(h.Name)
		if prev == nil {
			continue
		}
		ReduceHeader(h, prev)
	}
}

// filter returns a new slice holding the elements of s for which keep
// reports true. keep may modify the element it is given.
func filter[T any](s []T, keep func(*T) bool) []T {
	var out []T
	for i := range s {
		if keep(&s[i]) {
			out = append(out, s[i])
		}
	}
	return out
}

// ReduceHeader reduces newer to the delta against older.
func ReduceHeader(newer, older *Header) {
	newer.Enums = filter(newer.Enums, func(e *Enum) bool {
		prev := older.Enum(e.Name)
		if prev == nil {
			return true
		}
		reduceEnum(e, prev)
		if !e.Altered && len(e.Ordinals) == 0 {
			return false
		}
		e.Append = true
		return true
	})

	newer.Flags = filter(newer.Flags, func(f *Flags) bool {
		prev := older.FlagSet(f.Name)
		if prev == nil {
			return true
		}
		reduceFlags(f, prev)
		if !f.Altered && len(f.Flags) == 0 {
			return false
		}
		f.Append = true
		return true
	})

	newer.Constants = filter(newer.Constants, func(c *Constant) bool {
		prev := older.Constant(c.Name)
		if prev == nil {
			return true
		}
		if prev.Value == c.Value && prev.Type == c.Type {
			return false
		}
		c.Altered = true
		return true
	})

	newer.Unions = filter(newer.Unions, func(u *Union) bool {
		prev := older.Union(u.Name)
		if prev == nil {
			return true
		}
		u.Altered = variablesAltered(u.Variables, prev.Variable)
		return u.Altered
	})

	newer.Structs = filter(newer.Structs, func(s *Struct) bool {
		prev := older.Struct(s.Name)
		if prev == nil {
			return true
		}
		s.Altered = variablesAltered(s.Variables, prev.Variable)
		return s.Altered
	})

	// A GUID only in newer is new and kept as is.
	newer.GUIDs = filter(newer.GUIDs, func(g *GUID) bool {
		prev := older.GUID(g.Name)
		if prev == nil {
			return true
		}
		if prev.UUID == g.UUID {
			return false
		}
		g.Altered = true
		return true
	})

	newer.CInterfaces = filter(newer.CInterfaces, func(ci *CInterface) bool {
		prev := older.CInterface(ci.Name)
		if prev == nil {
			return true
		}
		ci.Altered = cinterfaceAltered(ci, prev)
		return ci.Altered
	})

	newer.CFunctions = filter(newer.CFunctions, func(f *CFunction) bool {
		prev := older.CFunction(f.Name)
		if prev == nil {
			return true
		}
		if !slices.Equal(f.Args, prev.Args) || f.ReturnType != prev.ReturnType {
			f.Altered = true
		}
		return f.Altered
	})

	newer.Functions = filter(newer.Functions, func(f *Function) bool {
		prev := older.Function(f.Name)
		if prev == nil {
			return true
		}
		if !slices.Equal(f.TemplateArgs, prev.TemplateArgs) ||
			!slices.Equal(f.Args, prev.Args) ||
			f.ReturnType != prev.ReturnType ||
			f.Constexpr != prev.Constexpr ||
			!implEqual(f.Impl, prev.Impl) {
			f.Altered = true
		}
		return f.Altered
	})
}

// reduceEnum drops the ordinals of newer that have the same value in
// older, and marks the ones whose value changed.
func reduceEnum(newer, older *Enum) {
	newer.Ordinals = filter(newer.Ordinals, func(o *Ordinal) bool {
		prev := older.Ordinal(o.Name)
		if prev == nil {
			return true
		}
		if prev.Value == o.Value {
			return false
		}
		o.Altered = true
		newer.Altered = true
		return true
	})
}

// reduceFlags is reduceEnum for flag sets.
func reduceFlags(newer, older *Flags) {
	newer.Flags = filter(newer.Flags, func(f *Flag) bool {
		prev := older.Flag(f.Name)
		if prev == nil {
			return true
		}
		if prev.Value == f.Value {
			return false
		}
		f.Altered = true
		newer.Altered = true
		return true
	})
}

// variablesAltered reports whether any variable, in declaration order, is
// missing from the older record or has a different type there.
// The comparison stops at the first mismatch.
func variablesAltered(vars []Variable, prev func(string) *Variable) bool {
	for _, v := range vars {
		p := prev(v.Name)
		if p == nil || p.Type != v.Type {
			return true
		}
	}
	return false
}

// implEqual compares implementation bodies. Lang and Code are only
// meaningful when Has is set.
func implEqual(a, b Impl) bool {
	if a.Has != b.Has {
		return false
	}
	if !a.Has {
		return true
	}
	return a.Lang == b.Lang && a.Code == b.Code
}

// cinterfaceAltered compares ci against prev. A different UUID is always
// an alteration; otherwise bases, ABI methods and source methods are
// compared in that order.
func cinterfaceAltered(ci, prev *CInterface) bool {
	if ci.UUID != prev.UUID {
		return true
	}
	for _, base := range ci.Bases {
		if !prev.HasBase(base) {
			return true
		}
	}
	for i := range ci.CMethods {
		m := &ci.CMethods[i]
		p := prev.CMethod(m.Name)
		if p == nil {
			return true
		}
		if !slices.Equal(m.Args, p.Args) ||
			m.ReturnType != p.ReturnType ||
			!implEqual(m.Impl, p.Impl) {
			return true
		}
	}
	for i := range ci.Methods {
		m := &ci.Methods[i]
		p := prev.Method(m.Name)
		if p == nil {
			return true
		}
		if !slices.Equal(m.TemplateArgs, p.TemplateArgs) ||
			!slices.Equal(m.Args, p.Args) ||
			m.ReturnType != p.ReturnType ||
			m.Constexpr != p.Constexpr ||
			!implEqual(m.Impl, p.Impl) {
			return true
		}
	}
	return false
}
