// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cexpr

import (
	"fmt"
	"strings"

	"go.chromium.org/infra/build/specregen/frontend"
)

// keywords are the C++ keywords that may appear in constant expressions
// of SDK headers.
var keywords = map[string]bool{
	"alignof":          true,
	"auto":             true,
	"bool":             true,
	"char":             true,
	"char8_t":          true,
	"char16_t":         true,
	"char32_t":         true,
	"const":            true,
	"const_cast":       true,
	"constexpr":        true,
	"decltype":         true,
	"double":           true,
	"dynamic_cast":     true,
	"enum":             true,
	"false":            true,
	"float":            true,
	"int":              true,
	"long":             true,
	"noexcept":         true,
	"nullptr":          true,
	"reinterpret_cast": true,
	"short":            true,
	"signed":           true,
	"sizeof":           true,
	"static_cast":      true,
	"struct":           true,
	"true":             true,
	"typedef":          true,
	"typename":         true,
	"union":            true,
	"unsigned":         true,
	"void":             true,
	"volatile":         true,
	"wchar_t":          true,
	"__int8":           true,
	"__int16":          true,
	"__int32":          true,
	"__int64":          true,
}

// IsKeyword reports whether s is a keyword rather than an identifier.
func IsKeyword(s string) bool {
	return keywords[s]
}

// puncts are the punctuators, longest first.
var puncts = []string{
	"<<=", ">>=", "...", "->*", "<=>",
	"<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "->", "::", "##",
	"+", "-", "*", "/", "%", "<", ">", "=", "!", "~", "&", "|", "^",
	"?", ":", ";", ",", ".", "(", ")", "[", "]", "{", "}", "#",
}

// SyntaxError is an error tokenizing source text.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Msg)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// Tokenize splits src into preprocessing tokens. Comments and white space
// are dropped.
func Tokenize(src string) ([]frontend.Token, error) {
	var toks []frontend.Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
			continue
		case c == '\\' && i+1 < len(src) && (src[i+1] == '\n' || src[i+1] == '\r'):
			// line continuation
			i++
			continue
		case strings.HasPrefix(src[i:], "//"):
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				i = len(src)
				continue
			}
			i += end
			continue
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, &SyntaxError{Offset: i, Msg: "unterminated comment"}
			}
			i += 2 + end + 2
			continue
		}

		start := i
		switch {
		case isIdentStart(c):
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			// encoding prefixes of character and string literals.
			if i < len(src) && (src[i] == '\'' || src[i] == '"') {
				switch src[start:i] {
				case "L", "u", "U", "u8":
					n, kind, err := lexQuoted(src, i)
					if err != nil {
						return nil, err
					}
					i = n
					toks = append(toks, frontend.Token{Kind: kind, Text: src[start:i]})
					continue
				}
			}
			text := src[start:i]
			kind := frontend.Identifier
			if IsKeyword(text) {
				kind = frontend.Keyword
			}
			toks = append(toks, frontend.Token{Kind: kind, Text: text})
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			i = lexNumber(src, i)
			toks = append(toks, frontend.Token{Kind: frontend.Number, Text: src[start:i]})
		case c == '\'' || c == '"':
			n, kind, err := lexQuoted(src, i)
			if err != nil {
				return nil, err
			}
			i = n
			toks = append(toks, frontend.Token{Kind: kind, Text: src[start:i]})
		default:
			p := matchPunct(src[i:])
			if p == "" {
				return nil, &SyntaxError{Offset: i, Msg: fmt.Sprintf("unexpected character %q", c)}
			}
			i += len(p)
			toks = append(toks, frontend.Token{Kind: frontend.Punct, Text: p})
		}
	}
	return toks, nil
}

func matchPunct(s string) string {
	for _, p := range puncts {
		if strings.HasPrefix(s, p) {
			return p
		}
	}
	return ""
}

// lexNumber scans a pp-number starting at i.
func lexNumber(src string, i int) int {
	for i < len(src) {
		c := src[i]
		switch {
		case (c == 'e' || c == 'E' || c == 'p' || c == 'P') && i+1 < len(src) && (src[i+1] == '+' || src[i+1] == '-'):
			i += 2
		case c == '\'' && i+1 < len(src) && isIdentChar(src[i+1]):
			// digit separator
			i += 2
		case isIdentChar(c) || c == '.':
			i++
		default:
			return i
		}
	}
	return i
}

// lexQuoted scans a character or string literal whose quote is at i.
func lexQuoted(src string, i int) (int, frontend.TokenKind, error) {
	quote := src[i]
	kind := frontend.String
	if quote == '\'' {
		kind = frontend.Char
	}
	start := i
	i++
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1, kind, nil
		case '\n':
			return 0, kind, &SyntaxError{Offset: start, Msg: "unterminated literal"}
		}
		i++
	}
	return 0, kind, &SyntaxError{Offset: start, Msg: "unterminated literal"}
}
