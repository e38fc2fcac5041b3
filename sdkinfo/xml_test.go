// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sdkinfo

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestXMLRoundTrip(t *testing.T) {
	h := sampleHeader()
	h.Enums = append(h.Enums, Enum{
		Name:    "E8",
		Altered: true,
		Append:  true,
		Type:    Int8,
		Ordinals: []Ordinal{
			{Name: "NEG", Altered: true, Type: Int8, Value: ^uint64(0)},
		},
	})
	h.Flags = append(h.Flags, Flags{
		Name: "SIGNED_FLAGS",
		Type: Int16,
		Flags: []Flag{
			{Name: "ALL", Type: Int16, Value: ^uint64(0)},
			{Name: "HIGH", Type: Int16, Value: 0x4000},
		},
	})
	h.CFunctions = append(h.CFunctions, CFunction{Name: "Nothing", Altered: true, ReturnType: "void"})
	h.Structs = append(h.Structs, Struct{Name: "S#0", Altered: true, Variables: []Variable{{Name: "y", Type: "int"}}})
	h.Unions[0].Altered = true
	h.Constants = append(h.Constants, Constant{Name: "STR", Altered: true, Type: "auto", Value: `L"<a & 'b'>"`})

	sdks := []SDK{
		{
			Version: "1.615.0",
			Shared:  Header{Name: "shared", Constants: []Constant{{Name: "S", Type: "u64", Value: "18446744073709551615"}}},
			Headers: []Header{h, {Name: "empty.h"}},
		},
		{
			Version: "1.614.0",
			Headers: []Header{sampleHeader()},
		},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, sdks); err != nil {
		t.Fatalf("Encode(...)=%v; want nil", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode(...)=_, %v; want nil err", err)
	}
	if diff := cmp.Diff(sdks, got); diff != "" {
		t.Errorf("Decode(Encode(sdks)) diff -want +got:\n%s", diff)
	}
}

func TestXMLEncodeFormat(t *testing.T) {
	sdks := []SDK{{
		Version: "1.615.0",
		Headers: []Header{{
			Name: "d3d12.h",
			Enums: []Enum{{
				Name:     "E",
				Ordinals: []Ordinal{{Name: "NEG", Value: ^uint64(0)}},
			}},
			Flags: []Flags{{
				Name:  "F",
				Type:  UInt32,
				Flags: []Flag{{Name: "A", Type: UInt32, Value: 1}},
			}},
			CFunctions: []CFunction{{
				Name:       "Run",
				ReturnType: "void",
				Args:       []Arg{{Name: "p", Type: "class"}},
			}},
			CInterfaces: []CInterface{{
				Name:  "I",
				UUID:  "u",
				Bases: []string{"IUnknown", "IOther"},
			}},
		}},
	}}
	b, err := MarshalDocument(sdks)
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>` + "\n<root>\n\t<sdk version=\"1.615.0\">",
		"\n\t\t<header name=\"d3d12.h\">\n\t\t\t<enums>\n\t\t\t\t<enum name=\"E\">",
		`<ordinal name="NEG" value="-1">`,
		`<flags name="F" type="u32">`,
		`<flag name="A" value="0x00000001">`,
		`<cfunction name="Run">`,
		`<arg name="p">`,
		`<cinterface name="I" uuid="u" bases="IUnknown;IOther">`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("MarshalDocument(...) does not contain %q:\n%s", want, got)
		}
	}
	for _, notWant := range []string{
		"altered=",
		"append=",
		`type="i32"`,
		"returnType=",
		"<shared",
		"<impl",
		"<structs",
	} {
		if strings.Contains(got, notWant) {
			t.Errorf("MarshalDocument(...) contains %q:\n%s", notWant, got)
		}
	}
}

func TestXMLDecodeDefaults(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<root>
	<sdk version="1">
		<header name="h.h">
			<flags>
				<flags name="F" type="i16">
					<flag name="ALL" value="0xFFFF"></flag>
				</flags>
			</flags>
			<functions>
				<function name="f">
					<arg name="x"></arg>
				</function>
			</functions>
		</header>
	</sdk>
</root>
`
	got, err := UnmarshalDocument([]byte(doc))
	if err != nil {
		t.Fatalf("UnmarshalDocument(...)=_, %v; want nil err", err)
	}
	want := []SDK{{
		Version: "1",
		Headers: []Header{{
			Name: "h.h",
			Flags: []Flags{{
				Name:  "F",
				Type:  Int16,
				Flags: []Flag{{Name: "ALL", Type: Int16, Value: ^uint64(0)}},
			}},
			Functions: []Function{{
				Name:       "f",
				ReturnType: "void",
				Args:       []Arg{{Name: "x", Type: "class"}},
			}},
		}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("UnmarshalDocument(...) diff -want +got:\n%s", diff)
	}
}

func TestXMLDecodeError(t *testing.T) {
	for _, doc := range []string{
		`<root><sdk><header><enums><enum name="E" type="x32"></enum></enums></header></sdk></root>`,
		`<root><sdk><header><enums><enum name="E"><ordinal name="A" value="one"></ordinal></enum></enums></header></sdk></root>`,
		`<root><sdk>`,
	} {
		_, err := UnmarshalDocument([]byte(doc))
		if err == nil {
			t.Errorf("UnmarshalDocument(%q)=_, nil; want err", doc)
		}
	}
}

func TestMarshalHeader(t *testing.T) {
	h := sampleHeader()
	b, err := MarshalHeader(&h)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte(`<header name="d3d12.h">`)) {
		t.Errorf("MarshalHeader(...)=%q; want <header> element", b)
	}
	got, err := UnmarshalHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&h, got); diff != "" {
		t.Errorf("UnmarshalHeader(MarshalHeader(h)) diff -want +got:\n%s", diff)
	}
}

func TestIntegerType(t *testing.T) {
	for _, tc := range []struct {
		t        IntegerType
		text     string
		unsigned bool
		bits     int
	}{
		{Int32, "i32", false, 32},
		{Bool, "b", true, 8},
		{Char16, "c16", true, 16},
		{Int64, "i64", false, 64},
		{UInt128, "u128", true, 128},
	} {
		if got := tc.t.String(); got != tc.text {
			t.Errorf("%d.String()=%q; want %q", int(tc.t), got, tc.text)
		}
		if got := tc.t.IsUnsigned(); got != tc.unsigned {
			t.Errorf("%s.IsUnsigned()=%t; want %t", tc.t, got, tc.unsigned)
		}
		if got := tc.t.Bits(); got != tc.bits {
			t.Errorf("%s.Bits()=%d; want %d", tc.t, got, tc.bits)
		}
		got, err := ParseIntegerType(tc.text)
		if err != nil || got != tc.t {
			t.Errorf("ParseIntegerType(%q)=%v, %v; want %v, nil", tc.text, got, err, tc.t)
		}
	}
	if _, err := ParseIntegerType("i33"); err == nil {
		t.Errorf("ParseIntegerType(%q)=_, nil; want err", "i33")
	}
}
