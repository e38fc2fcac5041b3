// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package clangfe

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.chromium.org/infra/build/specregen/frontend"
	"go.chromium.org/infra/build/specregen/frontend/cexpr"
)

// bareLoc is a source location of `-ast-dump=json`.
// The dumper omits "file" when it is the same as the file of the
// previously dumped location.
type bareLoc struct {
	Offset *int64 `json:"offset"`
	File   string `json:"file"`
}

type srcLoc struct {
	bareLoc
	SpellingLoc  *bareLoc `json:"spellingLoc"`
	ExpansionLoc *bareLoc `json:"expansionLoc"`
}

type srcRange struct {
	Begin srcLoc `json:"begin"`
	End   srcLoc `json:"end"`
}

type qualType struct {
	QualType          string `json:"qualType"`
	DesugaredQualType string `json:"desugaredQualType"`
}

// spelling returns the desugared type if any.
func (t *qualType) spelling() string {
	if t.DesugaredQualType != "" {
		return t.DesugaredQualType
	}
	return t.QualType
}

type astBase struct {
	Type qualType `json:"type"`
}

// node is a node of the JSON AST. Only the attributes used to build the
// declarations are decoded.
type node struct {
	Kind                string          `json:"kind"`
	Loc                 srcLoc          `json:"loc"`
	Range               srcRange        `json:"range"`
	IsImplicit          bool            `json:"isImplicit"`
	Name                string          `json:"name"`
	TagUsed             string          `json:"tagUsed"`
	CompleteDefinition  bool            `json:"completeDefinition"`
	Type                qualType        `json:"type"`
	FixedUnderlyingType *qualType       `json:"fixedUnderlyingType"`
	Bases               []astBase       `json:"bases"`
	StorageClass        string          `json:"storageClass"`
	Value               json.RawMessage `json:"value"`
	Inner               []*node         `json:"inner"`

	// resolved file locations, set by walker.
	at, begin position
}

// position is a resolved file location.
type position struct {
	file   string
	offset int64
	valid  bool
}

// walker resolves elided file names in dump order: loc, range begin,
// range end, then inner nodes.
type walker struct {
	file string
}

func (w *walker) bare(l *bareLoc) position {
	if l == nil || l.Offset == nil {
		return position{}
	}
	if l.File != "" {
		w.file = l.File
	}
	return position{file: w.file, offset: *l.Offset, valid: true}
}

// loc returns the expansion location of l.
func (w *walker) loc(l *srcLoc) position {
	if l.SpellingLoc == nil && l.ExpansionLoc == nil {
		return w.bare(&l.bareLoc)
	}
	w.bare(l.SpellingLoc)
	return w.bare(l.ExpansionLoc)
}

func (w *walker) walk(n *node) {
	n.at = w.loc(&n.Loc)
	n.begin = w.loc(&n.Range.Begin)
	w.loc(&n.Range.End)
	for _, c := range n.Inner {
		w.walk(c)
	}
}

// uuidRE matches the uuid attribute as spelled in SDK headers.
var uuidRE = regexp.MustCompile(`(?:uuid|MIDL_INTERFACE|DECLSPEC_UUID)\s*\(\s*"([0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12})"\s*\)`)

// uuidWindow is how far before a record name its uuid attribute is
// searched when the record's begin location is unusable.
const uuidWindow = 512

// extractor builds the declarations located in the main file.
type extractor struct {
	main   string
	src    []byte
	target cexpr.Target
	decls  []frontend.Decl
	warn   func(format string, args ...any)
}

func (x *extractor) inMain(n *node) bool {
	return n.begin.valid && filepath.Clean(n.begin.file) == x.main
}

// visit visits n and its nested declarations.
func (x *extractor) visit(n *node, anonNamespace bool) {
	switch n.Kind {
	case "LinkageSpecDecl":
		for _, c := range n.Inner {
			x.visit(c, anonNamespace)
		}
	case "NamespaceDecl":
		for _, c := range n.Inner {
			x.visit(c, anonNamespace || n.Name == "")
		}
	case "EnumDecl":
		if x.inMain(n) {
			x.decls = append(x.decls, x.enum(n))
		}
	case "CXXRecordDecl", "RecordDecl":
		if n.IsImplicit {
			return
		}
		if x.inMain(n) {
			x.decls = append(x.decls, x.record(n))
		}
		// member functions, static or not, are not free functions.
		for _, c := range n.Inner {
			switch c.Kind {
			case "CXXRecordDecl", "RecordDecl", "EnumDecl":
				x.visit(c, anonNamespace)
			}
		}
	case "FunctionDecl":
		if x.inMain(n) {
			x.decls = append(x.decls, x.function(n, n.StorageClass != "static" && !anonNamespace))
		}
	}
}

func (x *extractor) enum(n *node) *frontend.EnumDecl {
	// The dump has no underlying type for an enum without a fixed one.
	// On the MSVC targets of DefaultFlags it is int whatever the values.
	d := &frontend.EnumDecl{
		Name:        n.Name,
		IntegerType: "int",
	}
	if n.FixedUnderlyingType != nil {
		d.IntegerType = promote(n.FixedUnderlyingType.spelling())
	}
	width, signed, err := x.target.IntegerWidth(d.IntegerType)
	if err != nil {
		x.warn("%s: %v; values are kept as is", n.Name, err)
		width, signed = 64, true
	}
	var next uint64
	for _, c := range n.Inner {
		if c.Kind != "EnumConstantDecl" {
			continue
		}
		v := next
		if iv, ok := initValue(c); ok {
			v = iv
		} else if len(c.Inner) > 0 {
			x.warn("%s::%s: no constant value in ast; assume %d", n.Name, c.Name, int64(v))
		}
		v = frontend.TruncInt(v, width, signed)
		d.Enumerators = append(d.Enumerators, frontend.Enumerator{Name: c.Name, Value: v})
		next = v + 1
	}
	return d
}

// promote returns the promotion type of an enum with the fixed underlying
// type t.
func promote(t string) string {
	switch strings.Join(strings.Fields(t), " ") {
	case "bool", "char", "signed char", "unsigned char", "char8_t",
		"short", "short int", "signed short", "unsigned short", "unsigned short int",
		"wchar_t", "char16_t":
		return "int"
	case "char32_t":
		return "unsigned int"
	}
	return t
}

// initValue returns the value of an enumerator's initializer.
func initValue(n *node) (uint64, bool) {
	for _, c := range n.Inner {
		if len(c.Value) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(c.Value, &s); err != nil {
			continue
		}
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return uint64(v), true
		}
		if v, err := strconv.ParseUint(s, 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func tagKind(tag string) frontend.TagKind {
	switch tag {
	case "union":
		return frontend.Union
	case "class":
		return frontend.Class
	}
	return frontend.Struct
}

// isUnnamedType reports whether t is the type of an unnamed record, e.g.
// "union (unnamed union at d3d12.h:12:5)".
func isUnnamedType(t string) bool {
	return strings.Contains(t, "(unnamed ") || strings.Contains(t, "(anonymous ")
}

func (x *extractor) record(n *node) *frontend.RecordDecl {
	d := &frontend.RecordDecl{
		Tag:       tagKind(n.TagUsed),
		Name:      n.Name,
		Complete:  n.CompleteDefinition,
		Anonymous: n.Name == "",
	}
	for _, b := range n.Bases {
		d.Bases = append(d.Bases, b.Type.QualType)
	}
	var pending *frontend.RecordDecl
	for _, c := range n.Inner {
		switch c.Kind {
		case "UuidAttr":
			d.UUID = x.uuid(n)
		case "CXXRecordDecl", "RecordDecl":
			if !c.IsImplicit && c.Name == "" && c.CompleteDefinition {
				pending = x.record(c)
			}
		case "FieldDecl":
			f := frontend.Field{Name: c.Name, Type: c.Type.QualType}
			if pending != nil && isUnnamedType(f.Type) {
				f.Record = pending
				pending = nil
			}
			d.Fields = append(d.Fields, f)
		case "CXXMethodDecl", "CXXConstructorDecl", "CXXDestructorDecl", "CXXConversionDecl":
			d.Methods = append(d.Methods, frontend.MethodDecl{
				Name:       c.Name,
				ReturnType: returnType(c.Type.QualType),
				Params:     params(c),
				Implicit:   c.IsImplicit,
			})
		}
	}
	return d
}

// uuid recovers the uuid of record n from the header text, as the dumper
// doesn't print the attribute's argument.
func (x *extractor) uuid(n *node) string {
	if !n.at.valid || filepath.Clean(n.at.file) != x.main || n.at.offset > int64(len(x.src)) {
		x.warn("%s: uuid attribute outside of main file", n.Name)
		return ""
	}
	end := n.at.offset
	start := end - uuidWindow
	if x.inMain(n) && n.begin.offset <= end {
		start = n.begin.offset
	}
	start = max(start, 0)
	m := uuidRE.FindAllSubmatch(x.src[start:end], -1)
	if len(m) == 0 {
		x.warn("%s: uuid not found in source", n.Name)
		return ""
	}
	return string(m[len(m)-1][1])
}

func (x *extractor) function(n *node, global bool) *frontend.FunctionDecl {
	return &frontend.FunctionDecl{
		Name:               n.Name,
		ReturnType:         returnType(n.Type.QualType),
		Params:             params(n),
		Global:             global,
		OverloadedOperator: isOverloadedOperator(n.Name),
	}
}

func params(n *node) []frontend.Param {
	var ps []frontend.Param
	for _, c := range n.Inner {
		if c.Kind != "ParmVarDecl" {
			continue
		}
		ps = append(ps, frontend.Param{Name: c.Name, Type: c.Type.QualType})
	}
	return ps
}

var trailingAttrRE = regexp.MustCompile(`\s*__attribute__\(\(.*\)\)$`)

// returnType returns the return type of the function type t,
// e.g. "HRESULT" for "HRESULT (REFIID, void **)".
func returnType(t string) string {
	t = strings.TrimSpace(trailingAttrRE.ReplaceAllString(t, ""))
	// method qualifiers.
	for trimmed := true; trimmed; {
		trimmed = false
		for _, q := range []string{" const", " volatile", " noexcept", " &&", " &"} {
			if s, ok := strings.CutSuffix(t, q); ok {
				t = strings.TrimSpace(s)
				trimmed = true
			}
		}
	}
	if !strings.HasSuffix(t, ")") {
		return t
	}
	depth := 0
	for i := len(t) - 1; i >= 0; i-- {
		switch t[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return strings.TrimSpace(t[:i])
			}
		}
	}
	return t
}

func isOverloadedOperator(name string) bool {
	rest, ok := strings.CutPrefix(name, "operator")
	if !ok || rest == "" {
		return false
	}
	c := rest[0]
	switch {
	case c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
		return false
	case c == '"':
		// user defined literal.
		return false
	case c == ' ':
		switch strings.TrimSpace(rest) {
		case "new", "delete", "new[]", "delete[]":
			return true
		}
		// conversion function.
		return false
	}
	return true
}

// decodeAST decodes the output of `-ast-dump=json` and returns the
// declarations located in mainFile, whose contents are src.
// Top level declarations are decoded one by one to bound memory use.
func decodeAST(r io.Reader, mainFile string, src []byte, target cexpr.Target, warn func(string, ...any)) ([]frontend.Decl, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	w := &walker{}
	x := &extractor{main: filepath.Clean(mainFile), src: src, target: target, warn: warn}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in translation unit", tok)
		}
		if key != "inner" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("bad %s: %w", key, err)
			}
			continue
		}
		if err := expectDelim(dec, '['); err != nil {
			return nil, err
		}
		for dec.More() {
			var n node
			if err := dec.Decode(&n); err != nil {
				return nil, fmt.Errorf("bad declaration: %w", err)
			}
			w.walk(&n)
			x.visit(&n, false)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return x.decls, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("unexpected token %v; want %v", tok, want)
	}
	return nil
}
