// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package frontend

import "strings"

// TokenKind is the kind of a preprocessing token.
type TokenKind int

const (
	Identifier TokenKind = iota
	// Keyword is a C or C++ keyword, such as sizeof or unsigned.
	Keyword
	Number
	String
	Char
	Punct
)

func (k TokenKind) String() string {
	switch k {
	case Identifier:
		return "identifier"
	case Keyword:
		return "keyword"
	case Number:
		return "number"
	case String:
		return "string"
	case Char:
		return "char"
	case Punct:
		return "punct"
	}
	return "unknown"
}

// Token is a preprocessing token of a macro body.
type Token struct {
	Kind TokenKind
	Text string
}

// Macro is a macro definition.
type Macro struct {
	Name         string
	Params       []string
	FunctionLike bool
	Tokens       []Token
	// Builtin is set for macros predefined by the compiler.
	Builtin bool
	// File is the file that defines the macro.
	File string
	// InMainFile is set when the macro is defined in the parsed header.
	InMainFile bool
}

// Body returns the macro's replacement list as the concatenation of its
// tokens' text. See Join.
func (m *Macro) Body() string {
	return Join(m.Tokens)
}

// Join concatenates the text of tokens. White space from the source is
// not kept; a single space is only inserted where two tokens would
// otherwise lex as one, e.g. "unsigned int" or "- -1".
func Join(tokens []Token) string {
	var sb strings.Builder
	for i, t := range tokens {
		if i > 0 && needsSpace(tokens[i-1].Text, t.Text) {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func needsSpace(prev, next string) bool {
	if prev == "" || next == "" {
		return false
	}
	a, b := prev[len(prev)-1], next[0]
	if isWordByte(a) && isWordByte(b) {
		return true
	}
	switch a {
	case '+', '-', '&', '|', '<', '>', '#':
		return a == b
	case '/':
		return b == '/' || b == '*'
	}
	return false
}

// HasParam reports whether name is a parameter of m.
func (m *Macro) HasParam(name string) bool {
	for _, p := range m.Params {
		if p == name {
			return true
		}
	}
	return false
}

// MacroTable is the set of macros defined at the end of a translation
// unit, in definition order.
type MacroTable struct {
	macros []*Macro
	index  map[string]int
}

// NewMacroTable returns an empty table.
func NewMacroTable() *MacroTable {
	return &MacroTable{index: make(map[string]int)}
}

// Define adds m, replacing a previous definition of the same name.
func (t *MacroTable) Define(m *Macro) {
	if i, ok := t.index[m.Name]; ok {
		t.macros[i] = m
		return
	}
	t.index[m.Name] = len(t.macros)
	t.macros = append(t.macros, m)
}

// Undef removes the macro name.
func (t *MacroTable) Undef(name string) {
	i, ok := t.index[name]
	if !ok {
		return
	}
	delete(t.index, name)
	t.macros = append(t.macros[:i], t.macros[i+1:]...)
	for j := i; j < len(t.macros); j++ {
		t.index[t.macros[j].Name] = j
	}
}

// Lookup returns the macro name, or nil if it is not defined.
func (t *MacroTable) Lookup(name string) *Macro {
	if t == nil {
		return nil
	}
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.macros[i]
}

// All returns the macros in definition order.
func (t *MacroTable) All() []*Macro {
	if t == nil {
		return nil
	}
	return t.macros
}

// Len returns the number of macros.
func (t *MacroTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.macros)
}
