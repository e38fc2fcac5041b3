// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package frontend defines the interface to a C/C++ front end that parses
// a header into declarations and macros, and evaluates constant
// expressions.
package frontend

import (
	"context"
	"strings"
)

// Frontend parses headers and evaluates constant expressions.
type Frontend interface {
	// Parse parses the header at path with the compiler flags args.
	// The returned translation unit only holds the declarations
	// located in path itself, not in included files.
	Parse(ctx context.Context, path string, args []string) (*TranslationUnit, error)

	// Evaluate evaluates expr as a constant expression with the
	// compiler flags args (typically -D definitions).
	// It reports false if expr has no typed constant value, for
	// whatever reason.
	Evaluate(ctx context.Context, expr string, args []string) (Value, bool)
}

// Fingerprinter is implemented by front ends that can tell, without
// parsing, what a parse of a header depends on.
type Fingerprinter interface {
	// Fingerprint returns data that differs whenever Parse of path with
	// args may return a different result, such as the contents of the
	// included files or the front end's version.
	Fingerprint(ctx context.Context, path string, args []string) ([]byte, error)
}

// TranslationUnit is the result of parsing a header.
type TranslationUnit struct {
	// MainFile is the path of the parsed header.
	MainFile string
	// Decls are the top level declarations located in MainFile,
	// in source order.
	Decls []Decl
	// Macros are the macros defined at the end of the translation unit.
	Macros *MacroTable
}

// Decl is one of *EnumDecl, *RecordDecl or *FunctionDecl.
type Decl interface {
	DeclName() string
}

// EnumDecl is an enum declaration.
type EnumDecl struct {
	Name string
	// IntegerType is the C spelling of the enum's integer type,
	// e.g. "int" or "unsigned long long".
	IntegerType string
	Enumerators []Enumerator
}

// Enumerator is an enum constant. Value holds the two's complement bits
// of the value in the enum's integer type, sign extended to 64 bits when
// that type is signed.
type Enumerator struct {
	Name  string
	Value uint64
}

func (d *EnumDecl) DeclName() string { return d.Name }

// TruncInt truncates v to an integer of width bits and returns it sign
// extended to 64 bits if signed is set, zero extended otherwise.
// Widths of 64 bits or more keep v as is.
func TruncInt(v uint64, width int, signed bool) uint64 {
	if width <= 0 || width >= 64 {
		return v
	}
	v &= 1<<width - 1
	if signed && v&(1<<(width-1)) != 0 {
		v |= ^uint64(0) << width
	}
	return v
}

// TagKind is the tag of a record.
type TagKind int

const (
	Struct TagKind = iota
	Union
	Class
)

func (k TagKind) String() string {
	switch k {
	case Struct:
		return "struct"
	case Union:
		return "union"
	case Class:
		return "class"
	}
	return "unknown"
}

// RecordDecl is a struct, union or class declaration.
type RecordDecl struct {
	Tag  TagKind
	Name string
	// Complete is false for forward declarations.
	Complete bool
	// Anonymous is set for records without a name, such as the type of
	// an anonymous struct member.
	Anonymous bool
	// UUID is the argument of the record's uuid attribute, if any.
	UUID    string
	Bases   []string
	Fields  []Field
	Methods []MethodDecl
}

func (d *RecordDecl) DeclName() string { return d.Name }

// Field is a member variable of a record.
type Field struct {
	Name string
	// Type is the spelling of the field's type.
	Type string
	// Record is set when the field's type is an unnamed record
	// defined in place.
	Record *RecordDecl
}

// Param is a function or method parameter.
type Param struct {
	Name string
	Type string
	// Annotations are SAL annotations such as _In_ or _Out_opt_.
	Annotations string
}

// MethodDecl is a member function of a record.
type MethodDecl struct {
	Name       string
	ReturnType string
	Params     []Param
	// Implicit is set for members synthesized by the compiler.
	Implicit bool
}

// FunctionDecl is a function declaration.
type FunctionDecl struct {
	Name       string
	ReturnType string
	Params     []Param
	// Global is set for functions declared at namespace scope.
	Global bool
	// OverloadedOperator is set for operator overloads.
	OverloadedOperator bool
}

func (d *FunctionDecl) DeclName() string { return d.Name }

// Define renders a macro definition as a -D compiler flag, such as
// "-DNAME(a,b)=body" or "-DNAME=body".
func Define(name string, params []string, functionLike bool, body string) string {
	var sb strings.Builder
	sb.WriteString("-D")
	sb.WriteString(name)
	if functionLike {
		sb.WriteByte('(')
		sb.WriteString(strings.Join(params, ","))
		sb.WriteByte(')')
	}
	sb.WriteByte('=')
	sb.WriteString(body)
	return sb.String()
}
