// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package frontend

import "fmt"

// ValueKind is the kind of an evaluated constant.
type ValueKind int

const (
	Int ValueKind = iota
	Float
	FixedPoint
	ComplexInt
	ComplexFloat
	LValue
	Vector
	Array
	StructValue
	UnionValue
	MemberPointer
	AddrLabelDiff
)

var valueKindNames = [...]string{
	Int:           "Int",
	Float:         "Float",
	FixedPoint:    "FixedPoint",
	ComplexInt:    "ComplexInt",
	ComplexFloat:  "ComplexFloat",
	LValue:        "LValue",
	Vector:        "Vector",
	Array:         "Array",
	StructValue:   "Struct",
	UnionValue:    "Union",
	MemberPointer: "MemberPointer",
	AddrLabelDiff: "AddrLabelDiff",
}

func (k ValueKind) String() string {
	if k < 0 || int(k) >= len(valueKindNames) {
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
	return valueKindNames[k]
}

// FloatSemantics is the format of a floating point value.
type FloatSemantics int

const (
	IEEEHalf FloatSemantics = iota
	BFloat
	IEEESingle
	IEEEDouble
	IEEEQuad
	PPCDoubleDouble
	Float8E5M2
	X87DoubleExtended
)

func (s FloatSemantics) String() string {
	switch s {
	case IEEEHalf:
		return "IEEEhalf"
	case BFloat:
		return "BFloat"
	case IEEESingle:
		return "IEEEsingle"
	case IEEEDouble:
		return "IEEEdouble"
	case IEEEQuad:
		return "IEEEquad"
	case PPCDoubleDouble:
		return "PPCDoubleDouble"
	case Float8E5M2:
		return "Float8E5M2"
	case X87DoubleExtended:
		return "x87DoubleExtended"
	}
	return fmt.Sprintf("FloatSemantics(%d)", int(s))
}

// Value is an evaluated constant.
type Value struct {
	Kind ValueKind
	// Signed is set for signed Int and FixedPoint values.
	Signed bool
	// Width is the bit width of Int and FixedPoint values.
	Width int
	// Scale is the number of fractional bits of FixedPoint values.
	Scale int
	// Semantics is the format of Float values.
	Semantics FloatSemantics
	// Text is the canonical literal of the value.
	Text string
}

func (v Value) String() string {
	switch v.Kind {
	case Int:
		sign := "u"
		if v.Signed {
			sign = "i"
		}
		return fmt.Sprintf("%s%d %s", sign, v.Width, v.Text)
	case Float:
		return fmt.Sprintf("%s %s", v.Semantics, v.Text)
	}
	return fmt.Sprintf("%s %s", v.Kind, v.Text)
}
