// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package introspect turns the declarations and macros of a parsed
// header into its API snapshot.
package introspect

import (
	"context"
	"fmt"
	"strings"

	"go.chromium.org/infra/build/specregen/frontend"
	"go.chromium.org/infra/build/specregen/o11y/clog"
	"go.chromium.org/infra/build/specregen/sdkinfo"
)

// InvariantError reports a declaration shape that cannot be represented,
// such as an entity without a name. It aborts the run.
type InvariantError struct {
	Header string
	// Kind is the kind of the offending entity, e.g. "enum" or "arg".
	Kind string
	// Entity names the offending entity, or its owner if it has no name.
	Entity string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s %q: %s", e.Header, e.Kind, e.Entity, e.Reason)
}

// integerTypes maps the spelling of an enum's promotion type to its tag.
// long is mapped by rank, not by target width.
var integerTypes = map[string]sdkinfo.IntegerType{
	"bool":               sdkinfo.Bool,
	"char":               sdkinfo.Int8,
	"signed char":        sdkinfo.Int8,
	"unsigned char":      sdkinfo.UInt8,
	"char8_t":            sdkinfo.Char8,
	"wchar_t":            sdkinfo.Char16,
	"char16_t":           sdkinfo.Char16,
	"char32_t":           sdkinfo.Char32,
	"short":              sdkinfo.Int16,
	"unsigned short":     sdkinfo.UInt16,
	"int":                sdkinfo.Int32,
	"unsigned int":       sdkinfo.UInt32,
	"long":               sdkinfo.Int64,
	"unsigned long":      sdkinfo.UInt64,
	"long long":          sdkinfo.Int64,
	"unsigned long long": sdkinfo.UInt64,
	"__int128":           sdkinfo.Int128,
	"unsigned __int128":  sdkinfo.UInt128,
}

// IntegerTypeOf returns the tag of the C integer type spelled s.
func IntegerTypeOf(s string) (sdkinfo.IntegerType, bool) {
	s = strings.Join(strings.Fields(s), " ")
	switch s {
	case "short int", "signed short", "signed short int":
		s = "short"
	case "unsigned short int":
		s = "unsigned short"
	case "signed", "signed int":
		s = "int"
	case "unsigned":
		s = "unsigned int"
	case "long int", "signed long", "signed long int":
		s = "long"
	case "unsigned long int":
		s = "unsigned long"
	case "long long int", "signed long long", "signed long long int":
		s = "long long"
	case "unsigned long long int":
		s = "unsigned long long"
	}
	t, ok := integerTypes[s]
	return t, ok
}

// classifier accumulates the entities of one header.
type classifier struct {
	h *sdkinfo.Header
}

func (c *classifier) invariant(kind, entity, reason string) error {
	return &InvariantError{Header: c.h.Name, Kind: kind, Entity: entity, Reason: reason}
}

// Classify adds the entities declared in tu to h: enums and flag sets,
// structs and unions, interfaces with their GUIDs, and free functions.
// It returns an *InvariantError on a declaration it cannot represent.
func Classify(ctx context.Context, tu *frontend.TranslationUnit, h *sdkinfo.Header) error {
	c := &classifier{h: h}
	for _, d := range tu.Decls {
		var err error
		switch d := d.(type) {
		case *frontend.EnumDecl:
			err = c.enum(d)
		case *frontend.RecordDecl:
			if !d.Complete || d.Anonymous || d.Name == "" {
				continue
			}
			err = c.record(d, d.Name)
		case *frontend.FunctionDecl:
			if !d.Global || d.OverloadedOperator {
				continue
			}
			err = c.function(d)
		default:
			clog.Warningf(ctx, "%s: ignoring declaration %q of type %T", h.Name, d.DeclName(), d)
		}
		if err != nil {
			return err
		}
	}
	if clog.V(ctx, 1) {
		clog.Infof(ctx, "%s: %d enums, %d flags, %d structs, %d unions, %d interfaces, %d functions",
			h.Name, len(h.Enums), len(h.Flags), len(h.Structs), len(h.Unions), len(h.CInterfaces), len(h.CFunctions))
	}
	return nil
}

func (c *classifier) enum(d *frontend.EnumDecl) error {
	if d.Name == "" {
		return c.invariant("enum", "", "empty name")
	}
	t, ok := IntegerTypeOf(d.IntegerType)
	if !ok {
		return c.invariant("enum", d.Name, fmt.Sprintf("unsupported integer type %q", d.IntegerType))
	}
	// values are kept in the form the document codec reads back.
	values := make([]uint64, len(d.Enumerators))
	for i, e := range d.Enumerators {
		if e.Name == "" {
			return c.invariant("ordinal", d.Name, "empty name")
		}
		values[i] = frontend.TruncInt(e.Value, t.Bits(), !t.IsUnsigned())
	}
	if isFlags(d.Name, values) {
		f := sdkinfo.Flags{Name: d.Name, Type: t}
		for i, e := range d.Enumerators {
			f.Flags = append(f.Flags, sdkinfo.Flag{Name: e.Name, Type: t, Value: values[i]})
		}
		c.h.Flags = append(c.h.Flags, f)
		return nil
	}
	en := sdkinfo.Enum{Name: d.Name, Type: t}
	for i, e := range d.Enumerators {
		en.Ordinals = append(en.Ordinals, sdkinfo.Ordinal{Name: e.Name, Type: t, Value: values[i]})
	}
	c.h.Enums = append(c.h.Enums, en)
	return nil
}

// record emits d under name. Unnamed records defined in place of a field
// are emitted first, as "{name}#{i}" where i counts those fields.
func (c *classifier) record(d *frontend.RecordDecl, name string) error {
	if name == "" {
		return c.invariant(d.Tag.String(), "", "empty name")
	}
	if d.Tag != frontend.Union && d.UUID != "" {
		return c.cinterface(d, name)
	}
	var vars []sdkinfo.Variable
	i := 0
	for _, f := range d.Fields {
		v := sdkinfo.Variable{Name: f.Name, Type: f.Type}
		if r := f.Record; r != nil && (r.Anonymous || r.Name == "") {
			anon := fmt.Sprintf("%s#%d", name, i)
			i++
			if err := c.record(r, anon); err != nil {
				return err
			}
			v.Type = anon
		}
		if v.Type == "" {
			return c.invariant("variable", name+"::"+f.Name, "empty type")
		}
		vars = append(vars, v)
	}
	if d.Tag == frontend.Union {
		c.h.Unions = append(c.h.Unions, sdkinfo.Union{Name: name, Variables: vars})
		return nil
	}
	c.h.Structs = append(c.h.Structs, sdkinfo.Struct{Name: name, Variables: vars})
	return nil
}

func (c *classifier) cinterface(d *frontend.RecordDecl, name string) error {
	ci := sdkinfo.CInterface{
		Name:  name,
		UUID:  strings.ToLower(d.UUID),
		Bases: append([]string(nil), d.Bases...),
	}
	for _, m := range d.Methods {
		if m.Implicit {
			continue
		}
		if m.Name == "" {
			return c.invariant("cmethod", name, "empty name")
		}
		if m.ReturnType == "" {
			return c.invariant("cmethod", name+"::"+m.Name, "empty return type")
		}
		args, err := c.args(name+"::"+m.Name, m.Params)
		if err != nil {
			return err
		}
		ci.CMethods = append(ci.CMethods, sdkinfo.CMethod{
			Name:       m.Name,
			ReturnType: m.ReturnType,
			Args:       args,
		})
	}
	c.h.CInterfaces = append(c.h.CInterfaces, ci)
	c.h.GUIDs = append(c.h.GUIDs, sdkinfo.GUID{Name: name, UUID: ci.UUID})
	return nil
}

func (c *classifier) function(d *frontend.FunctionDecl) error {
	if d.Name == "" {
		return c.invariant("cfunction", "", "empty name")
	}
	if d.ReturnType == "" {
		return c.invariant("cfunction", d.Name, "empty return type")
	}
	args, err := c.args(d.Name, d.Params)
	if err != nil {
		return err
	}
	c.h.CFunctions = append(c.h.CFunctions, sdkinfo.CFunction{
		Name:       d.Name,
		ReturnType: d.ReturnType,
		Args:       args,
	})
	return nil
}

func (c *classifier) args(owner string, params []frontend.Param) ([]sdkinfo.Arg, error) {
	var args []sdkinfo.Arg
	for i, p := range params {
		if p.Name == "" {
			return nil, c.invariant("arg", owner, fmt.Sprintf("parameter %d has an empty name", i))
		}
		if p.Type == "" {
			return nil, c.invariant("arg", owner+"("+p.Name+")", "empty type")
		}
		args = append(args, sdkinfo.Arg{Name: p.Name, Type: p.Type, Annotations: p.Annotations})
	}
	return args, nil
}
