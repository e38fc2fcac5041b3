// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package cexpr preprocesses and evaluates C++ constant expressions
// built from literals and macros.
package cexpr

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"go.chromium.org/infra/build/specregen/frontend"
)

// NotConstantError is returned when an expression is well formed but has
// no constant value, e.g. because it names an undeclared identifier or
// divides by zero.
type NotConstantError struct {
	Expr string
	Err  error
}

func (e *NotConstantError) Error() string {
	return fmt.Sprintf("%q is not a constant expression: %v", e.Expr, e.Err)
}

func (e *NotConstantError) Unwrap() error { return e.Err }

// Evaluator evaluates C++ constant expressions over integer, floating
// point, character and string literals.
type Evaluator struct {
	Target Target
}

// Evaluate expands the macros defined by the -D flags of args in expr and
// evaluates the result.
func (ev *Evaluator) Evaluate(expr string, args []string) (frontend.Value, error) {
	mt, err := ParseDefines(args)
	if err != nil {
		return frontend.Value{}, err
	}
	toks, err := Tokenize(expr)
	if err != nil {
		return frontend.Value{}, err
	}
	toks, err = Expand(toks, mt)
	if err != nil {
		return frontend.Value{}, err
	}
	if len(toks) == 0 {
		return frontend.Value{}, &NotConstantError{Expr: expr, Err: errors.New("empty expression")}
	}
	if v, ok := stringValue(toks); ok {
		return v, nil
	}
	p := &parser{target: ev.Target, toks: toks}
	v, err := p.parseExpr(0)
	if err != nil {
		return frontend.Value{}, err
	}
	if !p.eof() {
		return frontend.Value{}, fmt.Errorf("unexpected %q", p.peek().Text)
	}
	if v.err != nil {
		return frontend.Value{}, &NotConstantError{Expr: expr, Err: v.err}
	}
	return v.result(), nil
}

// stringValue handles expressions that are string literals or nullptr,
// which evaluate to addresses rather than numbers.
func stringValue(toks []frontend.Token) (frontend.Value, bool) {
	if len(toks) == 1 && toks[0].Kind == frontend.Keyword && toks[0].Text == "nullptr" {
		return frontend.Value{Kind: frontend.LValue, Text: "nullptr"}, true
	}
	for _, t := range toks {
		if t.Kind != frontend.String {
			return frontend.Value{}, false
		}
	}
	return frontend.Value{Kind: frontend.LValue, Text: frontend.Join(toks)}, true
}

func (v value) result() frontend.Value {
	if v.t.float {
		return frontend.Value{
			Kind:      frontend.Float,
			Semantics: v.t.sem,
			Text:      formatFloat(v.t, v.f),
		}
	}
	return frontend.Value{
		Kind:   frontend.Int,
		Signed: v.t.signed,
		Width:  v.t.width,
		Text:   v.i.String(),
	}
}

func formatFloat(t ctype, f float64) string {
	bits := 64
	if t.sem == frontend.IEEESingle {
		bits = 32
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

type parser struct {
	target Target
	toks   []frontend.Token
	pos    int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.toks)
}

func (p *parser) peek() frontend.Token {
	if p.eof() {
		return frontend.Token{}
	}
	return p.toks[p.pos]
}

func (p *parser) peekPunct(text string) bool {
	return !p.eof() && isPunct(p.toks[p.pos], text)
}

func (p *parser) next() frontend.Token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(text string) error {
	if !p.peekPunct(text) {
		if p.eof() {
			return fmt.Errorf("expected %q at end of expression", text)
		}
		return fmt.Errorf("expected %q; got %q", text, p.peek().Text)
	}
	p.pos++
	return nil
}

// binary operator precedences; higher binds tighter.
var precedence = map[string]int{
	"?":  1,
	"||": 2,
	"&&": 3,
	"|":  4,
	"^":  5,
	"&":  6,
	"==": 7, "!=": 7,
	"<": 8, "<=": 8, ">": 8, ">=": 8,
	"<<": 9, ">>": 9,
	"+": 10, "-": 10,
	"*": 11, "/": 11, "%": 11,
}

// parseExpr parses a binary expression whose operators bind at least as
// tightly as minPrec.
func (p *parser) parseExpr(minPrec int) (value, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return value{}, err
	}
	for !p.eof() {
		op := p.peek()
		if op.Kind != frontend.Punct {
			break
		}
		prec, ok := precedence[op.Text]
		if !ok || prec < minPrec {
			break
		}
		p.pos++
		if op.Text == "?" {
			lhs, err = p.parseConditional(lhs)
			if err != nil {
				return value{}, err
			}
			continue
		}
		rhs, err := p.parseExpr(prec + 1)
		if err != nil {
			return value{}, err
		}
		lhs = binary(op.Text, lhs, rhs)
	}
	return lhs, nil
}

func (p *parser) parseConditional(cond value) (value, error) {
	then, err := p.parseExpr(0)
	if err != nil {
		return value{}, err
	}
	if err := p.expect(":"); err != nil {
		return value{}, err
	}
	els, err := p.parseExpr(precedence["?"])
	if err != nil {
		return value{}, err
	}
	if cond.err != nil {
		return cond, nil
	}
	pick := els
	if !cond.isZero() {
		pick = then
	}
	if pick.err != nil || then.err != nil || els.err != nil {
		return pick, nil
	}
	return convert(pick, common(then.t, els.t)), nil
}

func (p *parser) parseUnary() (value, error) {
	if p.eof() {
		return value{}, errors.New("unexpected end of expression")
	}
	t := p.next()
	switch t.Kind {
	case frontend.Number:
		return p.target.parseNumber(t.Text)
	case frontend.Char:
		return p.target.parseChar(t.Text)
	case frontend.String:
		return bad(fmt.Errorf("string literal %s in arithmetic", t.Text)), nil
	case frontend.Identifier:
		return bad(fmt.Errorf("use of undeclared identifier %q", t.Text)), nil
	case frontend.Keyword:
		return p.parseKeyword(t.Text)
	}
	switch t.Text {
	case "(":
		if !p.eof() && p.peek().Kind == frontend.Keyword && isTypeKeyword(p.peek().Text) {
			ty, err := p.parseTypeName(")")
			if err != nil {
				return value{}, err
			}
			v, err := p.parseUnary()
			if err != nil {
				return value{}, err
			}
			return convert(v, ty), nil
		}
		v, err := p.parseExpr(0)
		if err != nil {
			return value{}, err
		}
		return v, p.expect(")")
	case "+", "-", "~", "!":
		v, err := p.parseUnary()
		if err != nil {
			return value{}, err
		}
		return unary(t.Text, v), nil
	}
	return value{}, fmt.Errorf("unexpected %q", t.Text)
}

func (p *parser) parseKeyword(kw string) (value, error) {
	switch kw {
	case "true":
		return boolValue(true), nil
	case "false":
		return boolValue(false), nil
	case "static_cast":
		if err := p.expect("<"); err != nil {
			return value{}, err
		}
		ty, err := p.parseTypeName(">")
		if err != nil {
			return value{}, err
		}
		if err := p.expect("("); err != nil {
			return value{}, err
		}
		v, err := p.parseExpr(0)
		if err != nil {
			return value{}, err
		}
		return convert(v, ty), p.expect(")")
	}
	if isTypeKeyword(kw) && p.peekPunct("(") {
		// functional cast, e.g. unsigned(1)
		p.pos--
		words := p.typeWords()
		ty, err := p.target.parseType(words)
		if err != nil {
			return value{}, err
		}
		if err := p.expect("("); err != nil {
			return value{}, err
		}
		v, err := p.parseExpr(0)
		if err != nil {
			return value{}, err
		}
		return convert(v, ty), p.expect(")")
	}
	return value{}, fmt.Errorf("unsupported keyword %q", kw)
}

func (p *parser) typeWords() []string {
	var words []string
	for !p.eof() && p.peek().Kind == frontend.Keyword && isTypeKeyword(p.peek().Text) {
		words = append(words, p.next().Text)
	}
	return words
}

// parseTypeName parses type specifiers up to the closing token end.
func (p *parser) parseTypeName(end string) (ctype, error) {
	words := p.typeWords()
	ty, err := p.target.parseType(words)
	if err != nil {
		return ctype{}, err
	}
	return ty, p.expect(end)
}

func unary(op string, v value) value {
	if v.err != nil {
		return v
	}
	switch op {
	case "!":
		return boolValue(v.isZero())
	case "~":
		if v.t.float {
			return bad(errors.New("invalid operand to ~"))
		}
		v = convert(v, promote(v.t))
		return wrapTo(v.t, new(big.Int).Not(v.i))
	}
	if v.t.float {
		if op == "-" {
			return floatValue(v.t, -v.f)
		}
		return v
	}
	v = convert(v, promote(v.t))
	if op == "-" {
		return fit(v.t, new(big.Int).Neg(v.i))
	}
	return v
}

func binary(op string, a, b value) value {
	switch op {
	case "&&":
		if a.err != nil {
			return a
		}
		if a.isZero() {
			return boolValue(false)
		}
		if b.err != nil {
			return b
		}
		return boolValue(!b.isZero())
	case "||":
		if a.err != nil {
			return a
		}
		if !a.isZero() {
			return boolValue(true)
		}
		if b.err != nil {
			return b
		}
		return boolValue(!b.isZero())
	}
	if a.err != nil {
		return a
	}
	if b.err != nil {
		return b
	}
	if op == "<<" || op == ">>" {
		return shift(op, a, b)
	}
	t := common(a.t, b.t)
	a, b = convert(a, t), convert(b, t)
	if a.err != nil {
		return a
	}
	if b.err != nil {
		return b
	}
	if t.float {
		return floatBinary(op, t, a.f, b.f)
	}
	x, y := a.i, b.i
	r := new(big.Int)
	switch op {
	case "+":
		r.Add(x, y)
	case "-":
		r.Sub(x, y)
	case "*":
		r.Mul(x, y)
	case "/", "%":
		if y.Sign() == 0 {
			return bad(errors.New("division by zero"))
		}
		if op == "/" {
			r.Quo(x, y)
		} else {
			r.Rem(x, y)
		}
	case "&":
		r.And(x, y)
	case "|":
		r.Or(x, y)
	case "^":
		r.Xor(x, y)
	case "==":
		return boolValue(x.Cmp(y) == 0)
	case "!=":
		return boolValue(x.Cmp(y) != 0)
	case "<":
		return boolValue(x.Cmp(y) < 0)
	case "<=":
		return boolValue(x.Cmp(y) <= 0)
	case ">":
		return boolValue(x.Cmp(y) > 0)
	case ">=":
		return boolValue(x.Cmp(y) >= 0)
	default:
		return bad(fmt.Errorf("unsupported operator %q", op))
	}
	return fit(t, r)
}

func floatBinary(op string, t ctype, x, y float64) value {
	switch op {
	case "+":
		return floatValue(t, x+y)
	case "-":
		return floatValue(t, x-y)
	case "*":
		return floatValue(t, x*y)
	case "/":
		if y == 0 {
			return bad(errors.New("division by zero"))
		}
		return floatValue(t, x/y)
	case "==":
		return boolValue(x == y)
	case "!=":
		return boolValue(x != y)
	case "<":
		return boolValue(x < y)
	case "<=":
		return boolValue(x <= y)
	case ">":
		return boolValue(x > y)
	case ">=":
		return boolValue(x >= y)
	}
	return bad(fmt.Errorf("invalid operands to %q", op))
}

// shift evaluates a shift; the result has the promoted type of a.
func shift(op string, a, b value) value {
	if a.t.float || b.t.float {
		return bad(fmt.Errorf("invalid operands to %q", op))
	}
	a = convert(a, promote(a.t))
	n := b.i
	if n.Sign() < 0 || n.Cmp(big.NewInt(int64(a.t.width))) >= 0 {
		return bad(fmt.Errorf("shift count %s out of range of %s", n, a.t))
	}
	if op == "<<" {
		return wrapTo(a.t, new(big.Int).Lsh(a.i, uint(n.Int64())))
	}
	return intValue(a.t, new(big.Int).Rsh(a.i, uint(n.Int64())))
}
