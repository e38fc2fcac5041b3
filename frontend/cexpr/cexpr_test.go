// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cexpr

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/specregen/frontend"
)

func TestTokenize(t *testing.T) {
	got, err := Tokenize(`(unsigned int)0x1'0u << 2 /* c */ + L'a' // rest`)
	if err != nil {
		t.Fatalf("Tokenize()=%v; want nil error", err)
	}
	want := []frontend.Token{
		{Kind: frontend.Punct, Text: "("},
		{Kind: frontend.Keyword, Text: "unsigned"},
		{Kind: frontend.Keyword, Text: "int"},
		{Kind: frontend.Punct, Text: ")"},
		{Kind: frontend.Number, Text: "0x1'0u"},
		{Kind: frontend.Punct, Text: "<<"},
		{Kind: frontend.Number, Text: "2"},
		{Kind: frontend.Punct, Text: "+"},
		{Kind: frontend.Char, Text: "L'a'"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokenize() diff -want +got:\n%s", diff)
	}

	for _, src := range []string{`"abc`, `/* open`, "@"} {
		_, err := Tokenize(src)
		var serr *SyntaxError
		if !errors.As(err, &serr) {
			t.Errorf("Tokenize(%q)=%v; want SyntaxError", src, err)
		}
	}
}

func TestParseDefines(t *testing.T) {
	mt, err := ParseDefines([]string{
		"-std=c++20",
		"-DA=1",
		"-D", "B",
		"-DADD(x,y)=((x)+(y))",
		"-DEMPTY=",
		"-DGONE=3",
		"-UGONE",
	})
	if err != nil {
		t.Fatalf("ParseDefines()=%v; want nil error", err)
	}
	var names []string
	for _, m := range mt.All() {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"A", "B", "ADD", "EMPTY"}, names); diff != "" {
		t.Errorf("ParseDefines() names diff -want +got:\n%s", diff)
	}
	if got := mt.Lookup("B").Body(); got != "1" {
		t.Errorf("B=%q; want %q", got, "1")
	}
	add := mt.Lookup("ADD")
	if !add.FunctionLike || !cmp.Equal(add.Params, []string{"x", "y"}) {
		t.Errorf("ADD=%+v; want function-like with params x,y", add)
	}
	if got := mt.Lookup("EMPTY"); len(got.Tokens) != 0 {
		t.Errorf("EMPTY tokens=%v; want none", got.Tokens)
	}

	if _, err := ParseDefines([]string{"-D"}); err == nil {
		t.Errorf("ParseDefines(-D)=nil; want error")
	}
	if _, err := ParseDefines([]string{"-DF(x=1"}); err == nil {
		t.Errorf("ParseDefines(-DF(x=1)=nil; want error")
	}
}

func TestExpand(t *testing.T) {
	mt, err := ParseDefines([]string{
		"-DONE=1",
		"-DTWO=(ONE+ONE)",
		"-DADD(a,b)=((a)+(b))",
		"-DSELF=SELF+1",
		"-DSTR(x)=#x",
		"-DCAT(a,b)=a##b",
		"-DINDIRECT=ADD",
		"-DVA(...)=f(__VA_ARGS__)",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		src  string
		want string
	}{
		{src: "TWO", want: "(1+1)"},
		{src: "ADD(TWO, 3)", want: "(((1+1))+(3))"},
		{src: "ADD((1,2), 3)", want: "(((1,2))+(3))"},
		{src: "SELF", want: "SELF+1"},
		{src: "STR(a + b)", want: `"a+b"`},
		{src: "CAT(O, NE)", want: "1"},
		{src: "INDIRECT(1, 2)", want: "((1)+(2))"},
		{src: "ADD", want: "ADD"},
		{src: "VA(1, 2)", want: "f(1,2)"},
		{src: "UNKNOWN + 1", want: "UNKNOWN+1"},
	} {
		got, err := ExpandString(tc.src, mt)
		if err != nil {
			t.Errorf("ExpandString(%q)=_, %v; want nil error", tc.src, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ExpandString(%q)=%q; want %q", tc.src, got, tc.want)
		}
	}

	if _, err := ExpandString("ADD(1)", mt); err == nil {
		t.Errorf("ExpandString(ADD(1))=nil error; want argument count error")
	}
	if _, err := ExpandString("ADD(1, 2", mt); err == nil {
		t.Errorf("ExpandString(ADD(1, 2)=nil error; want unterminated error")
	}
}

func TestExpansionLimit(t *testing.T) {
	// each level doubles the number of invocations.
	args := []string{"-DL0=1"}
	prev := "L0"
	for i := 1; i <= 20; i++ {
		name := "L" + string(rune('A'+i))
		args = append(args, "-D"+name+"=("+prev+"+"+prev+")")
		prev = name
	}
	mt, err := ParseDefines(args)
	if err != nil {
		t.Fatal(err)
	}
	_, err = ExpandString(prev, mt)
	if !errors.Is(err, ErrExpansionLimit) {
		t.Errorf("ExpandString(%s)=%v; want %v", prev, err, ErrExpansionLimit)
	}
}

func TestEvaluate(t *testing.T) {
	ev := &Evaluator{Target: Windows}
	for _, tc := range []struct {
		expr string
		args []string
		want frontend.Value
	}{
		{
			expr: "42",
			want: frontend.Value{Kind: frontend.Int, Signed: true, Width: 32, Text: "42"},
		},
		{
			expr: "VERSION",
			args: []string{"-std=c++20", "-DVERSION=42"},
			want: frontend.Value{Kind: frontend.Int, Signed: true, Width: 32, Text: "42"},
		},
		{
			expr: "0xFFFFFFFF",
			want: frontend.Value{Kind: frontend.Int, Width: 32, Text: "4294967295"},
		},
		{
			expr: "4294967295",
			want: frontend.Value{Kind: frontend.Int, Signed: true, Width: 64, Text: "4294967295"},
		},
		{
			expr: "1ull << 40",
			want: frontend.Value{Kind: frontend.Int, Width: 64, Text: "1099511627776"},
		},
		{
			expr: "10i64",
			want: frontend.Value{Kind: frontend.Int, Signed: true, Width: 64, Text: "10"},
		},
		{
			expr: "-1 < 0u",
			want: frontend.Value{Kind: frontend.Int, Width: 1, Text: "0"},
		},
		{
			expr: "(unsigned short)-1",
			want: frontend.Value{Kind: frontend.Int, Width: 16, Text: "65535"},
		},
		{
			expr: "static_cast<unsigned long long>(-1)",
			want: frontend.Value{Kind: frontend.Int, Width: 64, Text: "18446744073709551615"},
		},
		{
			expr: "'a'",
			want: frontend.Value{Kind: frontend.Int, Signed: true, Width: 8, Text: "97"},
		},
		{
			expr: "L'\\x41'",
			want: frontend.Value{Kind: frontend.Int, Width: 16, Text: "65"},
		},
		{
			expr: "true",
			want: frontend.Value{Kind: frontend.Int, Width: 1, Text: "1"},
		},
		{
			expr: "~0u",
			want: frontend.Value{Kind: frontend.Int, Width: 32, Text: "4294967295"},
		},
		{
			expr: "-7 / 2 + -7 % 2",
			want: frontend.Value{Kind: frontend.Int, Signed: true, Width: 32, Text: "-4"},
		},
		{
			expr: "1 ? 2 : 1 / 0",
			want: frontend.Value{Kind: frontend.Int, Signed: true, Width: 32, Text: "2"},
		},
		{
			expr: "0 && 1 / 0",
			want: frontend.Value{Kind: frontend.Int, Width: 1, Text: "0"},
		},
		{
			expr: "1.5f",
			want: frontend.Value{Kind: frontend.Float, Semantics: frontend.IEEESingle, Text: "1.5"},
		},
		{
			expr: "1.0 + 1",
			want: frontend.Value{Kind: frontend.Float, Semantics: frontend.IEEEDouble, Text: "2.0"},
		},
		{
			expr: "ADD(1, 2)",
			args: []string{"-DADD(a,b)=((a)+(b))"},
			want: frontend.Value{Kind: frontend.Int, Signed: true, Width: 32, Text: "3"},
		},
		{
			expr: `"abc" "def"`,
			want: frontend.Value{Kind: frontend.LValue, Text: `"abc""def"`},
		},
		{
			expr: "nullptr",
			want: frontend.Value{Kind: frontend.LValue, Text: "nullptr"},
		},
	} {
		got, err := ev.Evaluate(tc.expr, tc.args)
		if err != nil {
			t.Errorf("Evaluate(%q, %q)=_, %v; want nil error", tc.expr, tc.args, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Evaluate(%q, %q) diff -want +got:\n%s", tc.expr, tc.args, diff)
		}
	}
}

func TestEvaluateNotConstant(t *testing.T) {
	ev := &Evaluator{Target: Windows}
	for _, expr := range []string{
		"UNKNOWN",
		"1 / 0",
		"2147483647 + 1",
		"1 << 32",
		"a + b",
		"1.0 / 0",
	} {
		_, err := ev.Evaluate(expr, nil)
		var nerr *NotConstantError
		if !errors.As(err, &nerr) {
			t.Errorf("Evaluate(%q)=%v; want NotConstantError", expr, err)
		}
	}
	for _, expr := range []string{
		"(1",
		"1 +",
		"1 2",
		"sizeof(int)",
		"",
	} {
		if _, err := ev.Evaluate(expr, nil); err == nil {
			t.Errorf("Evaluate(%q)=nil error; want error", expr)
		}
	}
}

func TestIntegerWidth(t *testing.T) {
	for _, tc := range []struct {
		typ        string
		wantWidth  int
		wantSigned bool
		wantErr    bool
	}{
		{typ: "int", wantWidth: 32, wantSigned: true},
		{typ: "unsigned int", wantWidth: 32},
		{typ: "long", wantWidth: 32, wantSigned: true},
		{typ: "unsigned long long", wantWidth: 64},
		{typ: "unsigned char", wantWidth: 8},
		{typ: "short", wantWidth: 16, wantSigned: true},
		{typ: "double", wantErr: true},
		{typ: "GUID", wantErr: true},
	} {
		t.Run(tc.typ, func(t *testing.T) {
			width, signed, err := Windows.IntegerWidth(tc.typ)
			if (err != nil) != tc.wantErr {
				t.Fatalf("IntegerWidth(%q)=_, _, %v; want err %t", tc.typ, err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if width != tc.wantWidth || signed != tc.wantSigned {
				t.Errorf("IntegerWidth(%q)=%d, %t; want %d, %t", tc.typ, width, signed, tc.wantWidth, tc.wantSigned)
			}
		})
	}
}
