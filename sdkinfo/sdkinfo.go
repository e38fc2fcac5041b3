// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sdkinfo provides the snapshot model of an SDK's public API
// surface, the reduction of a snapshot against the previous version and
// the XML document codec.
package sdkinfo

import (
	"fmt"
	"slices"
)

// IntegerType is the underlying integer type of an enum, a flag set or
// their members.
type IntegerType int

const (
	Int32 IntegerType = iota // default
	Bool
	Char8
	Char16
	Char32
	Int8
	Int16
	Int64
	Int128
	UInt8
	UInt16
	UInt32
	UInt64
	UInt128
)

var integerTypeNames = [...]string{
	Int32:   "i32",
	Bool:    "b",
	Char8:   "c8",
	Char16:  "c16",
	Char32:  "c32",
	Int8:    "i8",
	Int16:   "i16",
	Int64:   "i64",
	Int128:  "i128",
	UInt8:   "u8",
	UInt16:  "u16",
	UInt32:  "u32",
	UInt64:  "u64",
	UInt128: "u128",
}

func (t IntegerType) String() string {
	if t < 0 || int(t) >= len(integerTypeNames) {
		return fmt.Sprintf("IntegerType(%d)", int(t))
	}
	return integerTypeNames[t]
}

// IsUnsigned reports whether values of t are unsigned.
// Bool and character types are unsigned.
func (t IntegerType) IsUnsigned() bool {
	switch t {
	case Int8, Int16, Int32, Int64, Int128:
		return false
	}
	return true
}

// Bits returns the bit width of t.
func (t IntegerType) Bits() int {
	switch t {
	case Bool, Char8, Int8, UInt8:
		return 8
	case Char16, Int16, UInt16:
		return 16
	case Char32, Int32, UInt32:
		return 32
	case Int64, UInt64:
		return 64
	case Int128, UInt128:
		return 128
	}
	return 32
}

// ParseIntegerType parses the text form of an integer type.
func ParseIntegerType(s string) (IntegerType, error) {
	for i, name := range integerTypeNames {
		if name == s {
			return IntegerType(i), nil
		}
	}
	return Int32, fmt.Errorf("unknown integer type %q", s)
}

func (t IntegerType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *IntegerType) UnmarshalText(b []byte) error {
	v, err := ParseIntegerType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// SDK is a snapshot of one SDK version.
type SDK struct {
	Version string
	Shared  Header
	Headers []Header
}

// Header is the API surface extracted from one header file.
type Header struct {
	Name        string
	Namespace   string
	Enums       []Enum
	Flags       []Flags
	Constants   []Constant
	Unions      []Union
	Structs     []Struct
	GUIDs       []GUID
	CInterfaces []CInterface
	CFunctions  []CFunction
	Functions   []Function
}

type Enum struct {
	Altered  bool
	Append   bool
	Name     string
	Type     IntegerType
	Ordinals []Ordinal
}

type Ordinal struct {
	Altered bool
	Name    string
	Type    IntegerType
	Value   uint64
}

// Flags is an enum classified as a bit mask.
type Flags struct {
	Altered bool
	Append  bool
	Name    string
	Type    IntegerType
	Flags   []Flag
}

type Flag struct {
	Altered bool
	Name    string
	Type    IntegerType
	Value   uint64
}

type Variable struct {
	Name string
	Type string
}

type Struct struct {
	Altered   bool
	Name      string
	Variables []Variable
}

type Union struct {
	Altered   bool
	Name      string
	Variables []Variable
}

// GUID is the interface identifier paired with the CInterface of the
// same name.
type GUID struct {
	Altered bool
	Name    string
	UUID    string
}

// Impl is an optional inline implementation body.
type Impl struct {
	Has  bool
	Lang string
	Code string
}

type Arg struct {
	Name        string
	Type        string
	Annotations string
}

type TemplateArg struct {
	Name    string
	Type    string
	Concept string
}

// CMethod is an ABI level (virtual) method of a CInterface.
type CMethod struct {
	Name       string
	ReturnType string
	Args       []Arg
	Impl       Impl
}

// Method is a source level method of a CInterface.
type Method struct {
	Name         string
	ReturnType   string
	Constexpr    bool
	TemplateArgs []TemplateArg
	Args         []Arg
	Impl         Impl
}

type CFunction struct {
	Altered    bool
	Name       string
	ReturnType string
	Args       []Arg
}

// Function is a free function that may carry a constant-evaluable body,
// e.g. one derived from a function-like macro.
type Function struct {
	Altered      bool
	Name         string
	ReturnType   string
	Constexpr    bool
	TemplateArgs []TemplateArg
	Args         []Arg
	Impl         Impl
}

// CInterface is a record tagged with a uuid attribute.
type CInterface struct {
	Altered  bool
	Name     string
	UUID     string
	Bases    []string
	CMethods []CMethod
	Methods  []Method
}

// Constant is a macro exposed constant. Type is "auto" when the value
// could not be evaluated, and Value holds the raw replacement text.
type Constant struct {
	Altered bool
	Name    string
	Type    string
	Value   string
}

func find[T any](s []T, name func(*T) string, want string) *T {
	for i := range s {
		if name(&s[i]) == want {
			return &s[i]
		}
	}
	return nil
}

// Header returns the header named name, or nil.
func (s *SDK) Header(name string) *Header {
	return find(s.Headers, func(h *Header) string { return h.Name }, name)
}

// Clone returns a deep copy of s.
func (s *SDK) Clone() *SDK {
	c := &SDK{
		Version: s.Version,
		Shared:  s.Shared.Clone(),
	}
	if s.Headers != nil {
		c.Headers = make([]Header, 0, len(s.Headers))
		for _, h := range s.Headers {
			c.Headers = append(c.Headers, h.Clone())
		}
	}
	return c
}

// Clone returns a deep copy of h.
func (h *Header) Clone() Header {
	c := *h
	c.Enums = cloneEach(h.Enums, func(e Enum) Enum {
		e.Ordinals = slices.Clone(e.Ordinals)
		return e
	})
	c.Flags = cloneEach(h.Flags, func(f Flags) Flags {
		f.Flags = slices.Clone(f.Flags)
		return f
	})
	c.Constants = slices.Clone(h.Constants)
	c.Unions = cloneEach(h.Unions, func(u Union) Union {
		u.Variables = slices.Clone(u.Variables)
		return u
	})
	c.Structs = cloneEach(h.Structs, func(s Struct) Struct {
		s.Variables = slices.Clone(s.Variables)
		return s
	})
	c.GUIDs = slices.Clone(h.GUIDs)
	c.CInterfaces = cloneEach(h.CInterfaces, func(ci CInterface) CInterface {
		ci.Bases = slices.Clone(ci.Bases)
		ci.CMethods = cloneEach(ci.CMethods, func(m CMethod) CMethod {
			m.Args = slices.Clone(m.Args)
			return m
		})
		ci.Methods = cloneEach(ci.Methods, func(m Method) Method {
			m.TemplateArgs = slices.Clone(m.TemplateArgs)
			m.Args = slices.Clone(m.Args)
			return m
		})
		return ci
	})
	c.CFunctions = cloneEach(h.CFunctions, func(f CFunction) CFunction {
		f.Args = slices.Clone(f.Args)
		return f
	})
	c.Functions = cloneEach(h.Functions, func(f Function) Function {
		f.TemplateArgs = slices.Clone(f.TemplateArgs)
		f.Args = slices.Clone(f.Args)
		return f
	})
	return c
}

func cloneEach[T any](s []T, clone func(T) T) []T {
	if s == nil {
		return nil
	}
	c := make([]T, 0, len(s))
	for _, v := range s {
		c = append(c, clone(v))
	}
	return c
}

// IsEmpty reports whether h has no entities.
func (h *Header) IsEmpty() bool {
	return len(h.Enums) == 0 &&
		len(h.Flags) == 0 &&
		len(h.Constants) == 0 &&
		len(h.Unions) == 0 &&
		len(h.Structs) == 0 &&
		len(h.GUIDs) == 0 &&
		len(h.CInterfaces) == 0 &&
		len(h.CFunctions) == 0 &&
		len(h.Functions) == 0
}

func (h *Header) Enum(name string) *Enum {
	return find(h.Enums, func(e *Enum) string { return e.Name }, name)
}

func (h *Header) FlagSet(name string) *Flags {
	return find(h.Flags, func(f *Flags) string { return f.Name }, name)
}

func (h *Header) Constant(name string) *Constant {
	return find(h.Constants, func(c *Constant) string { return c.Name }, name)
}

func (h *Header) Union(name string) *Union {
	return find(h.Unions, func(u *Union) string { return u.Name }, name)
}

func (h *Header) Struct(name string) *Struct {
	return find(h.Structs, func(s *Struct) string { return s.Name }, name)
}

func (h *Header) GUID(name string) *GUID {
	return find(h.GUIDs, func(g *GUID) string { return g.Name }, name)
}

func (h *Header) CInterface(name string) *CInterface {
	return find(h.CInterfaces, func(ci *CInterface) string { return ci.Name }, name)
}

func (h *Header) CFunction(name string) *CFunction {
	return find(h.CFunctions, func(f *CFunction) string { return f.Name }, name)
}

func (h *Header) Function(name string) *Function {
	return find(h.Functions, func(f *Function) string { return f.Name }, name)
}

func (e *Enum) Ordinal(name string) *Ordinal {
	return find(e.Ordinals, func(o *Ordinal) string { return o.Name }, name)
}

func (f *Flags) Flag(name string) *Flag {
	return find(f.Flags, func(fl *Flag) string { return fl.Name }, name)
}

func (s *Struct) Variable(name string) *Variable {
	return find(s.Variables, func(v *Variable) string { return v.Name }, name)
}

func (u *Union) Variable(name string) *Variable {
	return find(u.Variables, func(v *Variable) string { return v.Name }, name)
}

// HasBase reports whether ci derives from name.
func (ci *CInterface) HasBase(name string) bool {
	return slices.Contains(ci.Bases, name)
}

func (ci *CInterface) CMethod(name string) *CMethod {
	return find(ci.CMethods, func(m *CMethod) string { return m.Name }, name)
}

func (ci *CInterface) Method(name string) *Method {
	return find(ci.Methods, func(m *Method) string { return m.Name }, name)
}
