// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cexpr

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"go.chromium.org/infra/build/specregen/frontend"
)

// Target describes the data model of the compilation target.
type Target struct {
	LongWidth   int
	WCharWidth  int
	WCharSigned bool
	CharSigned  bool
	LongDouble  frontend.FloatSemantics
}

// Windows is the x64 Windows (LLP64) target the SDK headers are written
// for.
var Windows = Target{
	LongWidth:  32,
	WCharWidth: 16,
	CharSigned: true,
	LongDouble: frontend.IEEEDouble,
}

// ctype is an arithmetic type.
type ctype struct {
	float  bool
	sem    frontend.FloatSemantics
	width  int
	signed bool
}

var (
	boolType   = ctype{width: 1}
	intType    = ctype{width: 32, signed: true}
	floatType  = ctype{float: true, sem: frontend.IEEESingle}
	doubleType = ctype{float: true, sem: frontend.IEEEDouble}
)

func (t ctype) String() string {
	if t.float {
		return t.sem.String()
	}
	if t.signed {
		return fmt.Sprintf("i%d", t.width)
	}
	return fmt.Sprintf("u%d", t.width)
}

// floatRank orders floating point semantics by precision.
func floatRank(s frontend.FloatSemantics) int {
	switch s {
	case frontend.Float8E5M2:
		return 0
	case frontend.IEEEHalf, frontend.BFloat:
		return 1
	case frontend.IEEESingle:
		return 2
	case frontend.IEEEDouble:
		return 3
	case frontend.X87DoubleExtended:
		return 4
	}
	return 5
}

// promote applies the integral promotions.
func promote(t ctype) ctype {
	if !t.float && t.width < intType.width {
		return intType
	}
	return t
}

// common returns the type of the usual arithmetic conversions of a and b.
func common(a, b ctype) ctype {
	switch {
	case a.float && b.float:
		if floatRank(a.sem) >= floatRank(b.sem) {
			return a
		}
		return b
	case a.float:
		return a
	case b.float:
		return b
	}
	a, b = promote(a), promote(b)
	switch {
	case a.width == b.width:
		return ctype{width: a.width, signed: a.signed && b.signed}
	case a.width > b.width:
		return a
	}
	return b
}

// parseType maps a sequence of type specifier keywords to a type.
func (tg Target) parseType(words []string) (ctype, error) {
	var signed, unsigned bool
	var base string
	longs := 0
	for _, w := range words {
		switch w {
		case "const", "volatile":
		case "signed":
			signed = true
		case "unsigned":
			unsigned = true
		case "long":
			longs++
		case "int":
			if base == "" {
				base = "int"
			}
		default:
			if base != "" && base != "int" {
				return ctype{}, fmt.Errorf("invalid type %q", strings.Join(words, " "))
			}
			base = w
		}
	}
	if signed && unsigned {
		return ctype{}, fmt.Errorf("invalid type %q", strings.Join(words, " "))
	}
	integer := func(width int, defaultSigned bool) ctype {
		s := defaultSigned
		if signed {
			s = true
		}
		if unsigned {
			s = false
		}
		return ctype{width: width, signed: s}
	}
	switch base {
	case "", "int":
		switch longs {
		case 0:
			return integer(32, true), nil
		case 1:
			return integer(tg.LongWidth, true), nil
		}
		return integer(64, true), nil
	case "char":
		return integer(8, tg.CharSigned), nil
	case "short":
		return integer(16, true), nil
	case "__int8":
		return integer(8, true), nil
	case "__int16":
		return integer(16, true), nil
	case "__int32":
		return integer(32, true), nil
	case "__int64":
		return integer(64, true), nil
	case "bool":
		return boolType, nil
	case "wchar_t":
		return ctype{width: tg.WCharWidth, signed: tg.WCharSigned}, nil
	case "char8_t":
		return ctype{width: 8}, nil
	case "char16_t":
		return ctype{width: 16}, nil
	case "char32_t":
		return ctype{width: 32}, nil
	case "float":
		return floatType, nil
	case "double":
		if longs > 0 {
			return ctype{float: true, sem: tg.LongDouble}, nil
		}
		return doubleType, nil
	}
	return ctype{}, fmt.Errorf("unsupported type %q", strings.Join(words, " "))
}

// IntegerWidth returns the width in bits and the signedness of the
// integer type spelled s, e.g. "unsigned long long".
func (tg Target) IntegerWidth(s string) (width int, signed bool, err error) {
	t, err := tg.parseType(strings.Fields(s))
	if err != nil {
		return 0, false, err
	}
	if t.float {
		return 0, false, fmt.Errorf("%q is not an integer type", s)
	}
	return t.width, t.signed, nil
}

// isTypeKeyword reports whether a type specifier may start with s.
func isTypeKeyword(s string) bool {
	switch s {
	case "const", "volatile", "signed", "unsigned", "long", "short", "int", "char",
		"__int8", "__int16", "__int32", "__int64", "bool", "wchar_t",
		"char8_t", "char16_t", "char32_t", "float", "double":
		return true
	}
	return false
}

// value is the result of evaluating a subexpression. A value with err set
// is not a constant; the error only surfaces if the value is used.
type value struct {
	t   ctype
	i   *big.Int
	f   float64
	err error
}

func bad(err error) value {
	return value{err: err}
}

func intValue(t ctype, i *big.Int) value {
	return value{t: t, i: i}
}

func boolValue(b bool) value {
	if b {
		return intValue(boolType, big.NewInt(1))
	}
	return intValue(boolType, big.NewInt(0))
}

func floatValue(t ctype, f float64) value {
	if t.sem == frontend.IEEESingle {
		f = float64(float32(f))
	}
	return value{t: t, f: f}
}

func (v value) isZero() bool {
	if v.t.float {
		return v.f == 0
	}
	return v.i.Sign() == 0
}

func limits(t ctype) (lo, hi *big.Int) {
	if t.signed {
		hi = new(big.Int).Lsh(big.NewInt(1), uint(t.width-1))
		lo = new(big.Int).Neg(hi)
		hi.Sub(hi, big.NewInt(1))
		return lo, hi
	}
	hi = new(big.Int).Lsh(big.NewInt(1), uint(t.width))
	hi.Sub(hi, big.NewInt(1))
	return big.NewInt(0), hi
}

// fit reduces the exact result r to t. Unsigned results wrap; signed
// overflow makes the result non-constant.
func fit(t ctype, r *big.Int) value {
	if t == boolType {
		return boolValue(r.Sign() != 0)
	}
	lo, hi := limits(t)
	if r.Cmp(lo) >= 0 && r.Cmp(hi) <= 0 {
		return intValue(t, r)
	}
	if t.signed {
		return bad(fmt.Errorf("overflow in %s arithmetic", t))
	}
	m := new(big.Int).Lsh(big.NewInt(1), uint(t.width))
	return intValue(t, new(big.Int).Mod(r, m))
}

// wrapTo converts the integer r to t modulo 2^width, as integral
// conversions do.
func wrapTo(t ctype, r *big.Int) value {
	if t == boolType {
		return boolValue(r.Sign() != 0)
	}
	m := new(big.Int).Lsh(big.NewInt(1), uint(t.width))
	u := new(big.Int).Mod(r, m)
	if t.signed {
		_, hi := limits(t)
		if u.Cmp(hi) > 0 {
			u.Sub(u, m)
		}
	}
	return intValue(t, u)
}

// convert converts v to t.
func convert(v value, t ctype) value {
	if v.err != nil {
		return v
	}
	switch {
	case t == boolType:
		return boolValue(!v.isZero())
	case t.float && v.t.float:
		return floatValue(t, v.f)
	case t.float:
		f, _ := new(big.Float).SetInt(v.i).Float64()
		return floatValue(t, f)
	case v.t.float:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return bad(fmt.Errorf("%v is out of range of %s", v.f, t))
		}
		r, _ := big.NewFloat(math.Trunc(v.f)).Int(nil)
		lo, hi := limits(t)
		if r.Cmp(lo) < 0 || r.Cmp(hi) > 0 {
			return bad(fmt.Errorf("%v is out of range of %s", v.f, t))
		}
		return intValue(t, r)
	}
	return wrapTo(t, v.i)
}
