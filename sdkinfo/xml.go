// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sdkinfo

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Attribute defaults. An attribute equal to its default is not written,
// and a missing attribute decodes to its default.
const (
	defaultReturnType = "void"
	defaultArgType    = "class"
)

type xmlDocument struct {
	XMLName xml.Name `xml:"root"`
	SDKs    []xmlSDK `xml:"sdk"`
}

type xmlSDK struct {
	Version string      `xml:"version,attr,omitempty"`
	Shared  *xmlHeader  `xml:"shared"`
	Headers []xmlHeader `xml:"header"`
}

type xmlHeader struct {
	Name        string          `xml:"name,attr,omitempty"`
	Namespace   string          `xml:"namespace,attr,omitempty"`
	Enums       []xmlEnum       `xml:"enums>enum"`
	Flags       []xmlFlags      `xml:"flags>flags"`
	Constants   []xmlConstant   `xml:"constants>constant"`
	Unions      []xmlRecord     `xml:"unions>union"`
	Structs     []xmlRecord     `xml:"structs>struct"`
	GUIDs       []xmlGUID       `xml:"guids>guid"`
	CInterfaces []xmlCInterface `xml:"cinterfaces>cinterface"`
	CFunctions  []xmlFunction   `xml:"cfunctions>cfunction"`
	Functions   []xmlFunction   `xml:"functions>function"`
}

type xmlCachedHeader struct {
	XMLName xml.Name `xml:"header"`
	xmlHeader
}

type xmlEnum struct {
	Name     string       `xml:"name,attr,omitempty"`
	Altered  bool         `xml:"altered,attr,omitempty"`
	Append   bool         `xml:"append,attr,omitempty"`
	Type     string       `xml:"type,attr,omitempty"`
	Ordinals []xmlOrdinal `xml:"ordinal"`
}

type xmlOrdinal struct {
	Name    string `xml:"name,attr,omitempty"`
	Altered bool   `xml:"altered,attr,omitempty"`
	Value   string `xml:"value,attr,omitempty"`
}

type xmlFlags struct {
	Name    string       `xml:"name,attr,omitempty"`
	Altered bool         `xml:"altered,attr,omitempty"`
	Append  bool         `xml:"append,attr,omitempty"`
	Type    string       `xml:"type,attr,omitempty"`
	Flags   []xmlOrdinal `xml:"flag"`
}

type xmlConstant struct {
	Name    string `xml:"name,attr,omitempty"`
	Altered bool   `xml:"altered,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Value   string `xml:"value,attr,omitempty"`
}

type xmlRecord struct {
	Name      string        `xml:"name,attr,omitempty"`
	Altered   bool          `xml:"altered,attr,omitempty"`
	Variables []xmlVariable `xml:"variable"`
}

type xmlVariable struct {
	Name string `xml:"name,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

type xmlGUID struct {
	Name    string `xml:"name,attr,omitempty"`
	Altered bool   `xml:"altered,attr,omitempty"`
	UUID    string `xml:"uuid,attr,omitempty"`
}

type xmlImpl struct {
	Lang string `xml:"lang,attr,omitempty"`
	Code string `xml:"code,attr,omitempty"`
}

type xmlArg struct {
	Name        string `xml:"name,attr,omitempty"`
	Type        string `xml:"type,attr,omitempty"`
	Annotations string `xml:"annotations,attr,omitempty"`
}

type xmlTemplateArg struct {
	Name    string `xml:"name,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Concept string `xml:"concept,attr,omitempty"`
}

// xmlFunction is shared by cfunction, function, cmethod and method.
type xmlFunction struct {
	Name         string           `xml:"name,attr,omitempty"`
	Altered      bool             `xml:"altered,attr,omitempty"`
	ReturnType   string           `xml:"returnType,attr,omitempty"`
	Constexpr    bool             `xml:"constexpr,attr,omitempty"`
	TemplateArgs []xmlTemplateArg `xml:"template_arg"`
	Args         []xmlArg         `xml:"arg"`
	Impl         *xmlImpl         `xml:"impl"`
}

type xmlCInterface struct {
	Name     string        `xml:"name,attr,omitempty"`
	Altered  bool          `xml:"altered,attr,omitempty"`
	UUID     string        `xml:"uuid,attr,omitempty"`
	Bases    string        `xml:"bases,attr,omitempty"`
	CMethods []xmlFunction `xml:"cmethod"`
	Methods  []xmlFunction `xml:"method"`
}

// Encode writes sdks to w as a tab indented XML document.
func Encode(w io.Writer, sdks []SDK) error {
	doc := xmlDocument{}
	for i := range sdks {
		doc.SDKs = append(doc.SDKs, toXMLSDK(&sdks[i]))
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode sdk document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Decode reads a document written by Encode.
func Decode(r io.Reader) ([]SDK, error) {
	var doc xmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode sdk document: %w", err)
	}
	var sdks []SDK
	for i := range doc.SDKs {
		sdk, err := fromXMLSDK(&doc.SDKs[i])
		if err != nil {
			return nil, err
		}
		sdks = append(sdks, sdk)
	}
	return sdks, nil
}

// MarshalDocument returns the XML document of sdks.
func MarshalDocument(sdks []SDK) ([]byte, error) {
	var buf bytes.Buffer
	err := Encode(&buf, sdks)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalDocument parses an XML document of sdks.
func UnmarshalDocument(b []byte) ([]SDK, error) {
	return Decode(bytes.NewReader(b))
}

// MarshalHeader returns the XML of a single header, as stored in
// extraction caches.
func MarshalHeader(h *Header) ([]byte, error) {
	b, err := xml.Marshal(xmlCachedHeader{xmlHeader: toXMLHeader(h)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header %s: %w", h.Name, err)
	}
	return b, nil
}

// UnmarshalHeader parses the output of MarshalHeader.
func UnmarshalHeader(b []byte) (*Header, error) {
	var x xmlHeader
	if err := xml.Unmarshal(b, &x); err != nil {
		return nil, fmt.Errorf("failed to unmarshal header: %w", err)
	}
	h, err := fromXMLHeader(&x)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func toXMLSDK(s *SDK) xmlSDK {
	x := xmlSDK{Version: s.Version}
	if s.Shared.Name != "" || s.Shared.Namespace != "" || !s.Shared.IsEmpty() {
		shared := toXMLHeader(&s.Shared)
		x.Shared = &shared
	}
	for i := range s.Headers {
		x.Headers = append(x.Headers, toXMLHeader(&s.Headers[i]))
	}
	return x
}

func fromXMLSDK(x *xmlSDK) (SDK, error) {
	s := SDK{Version: x.Version}
	if x.Shared != nil {
		shared, err := fromXMLHeader(x.Shared)
		if err != nil {
			return s, fmt.Errorf("sdk %s: shared: %w", x.Version, err)
		}
		s.Shared = shared
	}
	for i := range x.Headers {
		h, err := fromXMLHeader(&x.Headers[i])
		if err != nil {
			return s, fmt.Errorf("sdk %s: %w", x.Version, err)
		}
		s.Headers = append(s.Headers, h)
	}
	return s, nil
}

func toXMLHeader(h *Header) xmlHeader {
	x := xmlHeader{
		Name:      h.Name,
		Namespace: h.Namespace,
	}
	for _, e := range h.Enums {
		xe := xmlEnum{
			Name:    e.Name,
			Altered: e.Altered,
			Append:  e.Append,
			Type:    integerTypeAttr(e.Type),
		}
		for _, o := range e.Ordinals {
			xe.Ordinals = append(xe.Ordinals, xmlOrdinal{
				Name:    o.Name,
				Altered: o.Altered,
				Value:   formatOrdinal(e.Type, o.Value),
			})
		}
		x.Enums = append(x.Enums, xe)
	}
	for _, f := range h.Flags {
		xf := xmlFlags{
			Name:    f.Name,
			Altered: f.Altered,
			Append:  f.Append,
			Type:    integerTypeAttr(f.Type),
		}
		for _, fl := range f.Flags {
			xf.Flags = append(xf.Flags, xmlOrdinal{
				Name:    fl.Name,
				Altered: fl.Altered,
				Value:   formatFlag(f.Type, fl.Value),
			})
		}
		x.Flags = append(x.Flags, xf)
	}
	for _, c := range h.Constants {
		x.Constants = append(x.Constants, xmlConstant{
			Name:    c.Name,
			Altered: c.Altered,
			Type:    c.Type,
			Value:   c.Value,
		})
	}
	for _, u := range h.Unions {
		x.Unions = append(x.Unions, toXMLRecord(u.Name, u.Altered, u.Variables))
	}
	for _, s := range h.Structs {
		x.Structs = append(x.Structs, toXMLRecord(s.Name, s.Altered, s.Variables))
	}
	for _, g := range h.GUIDs {
		x.GUIDs = append(x.GUIDs, xmlGUID{
			Name:    g.Name,
			Altered: g.Altered,
			UUID:    g.UUID,
		})
	}
	for _, ci := range h.CInterfaces {
		xci := xmlCInterface{
			Name:    ci.Name,
			Altered: ci.Altered,
			UUID:    ci.UUID,
			Bases:   strings.Join(ci.Bases, ";"),
		}
		for _, m := range ci.CMethods {
			xci.CMethods = append(xci.CMethods, toXMLFunction(m.Name, false, m.ReturnType, false, nil, m.Args, m.Impl))
		}
		for _, m := range ci.Methods {
			xci.Methods = append(xci.Methods, toXMLFunction(m.Name, false, m.ReturnType, m.Constexpr, m.TemplateArgs, m.Args, m.Impl))
		}
		x.CInterfaces = append(x.CInterfaces, xci)
	}
	for _, f := range h.CFunctions {
		x.CFunctions = append(x.CFunctions, toXMLFunction(f.Name, f.Altered, f.ReturnType, false, nil, f.Args, Impl{}))
	}
	for _, f := range h.Functions {
		x.Functions = append(x.Functions, toXMLFunction(f.Name, f.Altered, f.ReturnType, f.Constexpr, f.TemplateArgs, f.Args, f.Impl))
	}
	return x
}

func fromXMLHeader(x *xmlHeader) (Header, error) {
	h := Header{
		Name:      x.Name,
		Namespace: x.Namespace,
	}
	for _, xe := range x.Enums {
		t, err := parseIntegerTypeAttr(xe.Type)
		if err != nil {
			return h, fmt.Errorf("header %s: enum %s: %w", x.Name, xe.Name, err)
		}
		e := Enum{
			Altered: xe.Altered,
			Append:  xe.Append,
			Name:    xe.Name,
			Type:    t,
		}
		for _, xo := range xe.Ordinals {
			v, err := parseOrdinal(t, xo.Value)
			if err != nil {
				return h, fmt.Errorf("header %s: enum %s: ordinal %s: %w", x.Name, xe.Name, xo.Name, err)
			}
			e.Ordinals = append(e.Ordinals, Ordinal{
				Altered: xo.Altered,
				Name:    xo.Name,
				Type:    t,
				Value:   v,
			})
		}
		h.Enums = append(h.Enums, e)
	}
	for _, xf := range x.Flags {
		t, err := parseIntegerTypeAttr(xf.Type)
		if err != nil {
			return h, fmt.Errorf("header %s: flags %s: %w", x.Name, xf.Name, err)
		}
		f := Flags{
			Altered: xf.Altered,
			Append:  xf.Append,
			Name:    xf.Name,
			Type:    t,
		}
		for _, xfl := range xf.Flags {
			v, err := parseFlag(t, xfl.Value)
			if err != nil {
				return h, fmt.Errorf("header %s: flags %s: flag %s: %w", x.Name, xf.Name, xfl.Name, err)
			}
			f.Flags = append(f.Flags, Flag{
				Altered: xfl.Altered,
				Name:    xfl.Name,
				Type:    t,
				Value:   v,
			})
		}
		h.Flags = append(h.Flags, f)
	}
	for _, c := range x.Constants {
		h.Constants = append(h.Constants, Constant{
			Altered: c.Altered,
			Name:    c.Name,
			Type:    c.Type,
			Value:   c.Value,
		})
	}
	for _, u := range x.Unions {
		h.Unions = append(h.Unions, Union{
			Altered:   u.Altered,
			Name:      u.Name,
			Variables: fromXMLVariables(u.Variables),
		})
	}
	for _, s := range x.Structs {
		h.Structs = append(h.Structs, Struct{
			Altered:   s.Altered,
			Name:      s.Name,
			Variables: fromXMLVariables(s.Variables),
		})
	}
	for _, g := range x.GUIDs {
		h.GUIDs = append(h.GUIDs, GUID{
			Altered: g.Altered,
			Name:    g.Name,
			UUID:    g.UUID,
		})
	}
	for _, xci := range x.CInterfaces {
		ci := CInterface{
			Altered: xci.Altered,
			Name:    xci.Name,
			UUID:    xci.UUID,
		}
		if xci.Bases != "" {
			ci.Bases = strings.Split(xci.Bases, ";")
		}
		for _, xm := range xci.CMethods {
			ci.CMethods = append(ci.CMethods, CMethod{
				Name:       xm.Name,
				ReturnType: returnTypeFromAttr(xm.ReturnType),
				Args:       fromXMLArgs(xm.Args),
				Impl:       fromXMLImpl(xm.Impl),
			})
		}
		for _, xm := range xci.Methods {
			ci.Methods = append(ci.Methods, Method{
				Name:         xm.Name,
				ReturnType:   returnTypeFromAttr(xm.ReturnType),
				Constexpr:    xm.Constexpr,
				TemplateArgs: fromXMLTemplateArgs(xm.TemplateArgs),
				Args:         fromXMLArgs(xm.Args),
				Impl:         fromXMLImpl(xm.Impl),
			})
		}
		h.CInterfaces = append(h.CInterfaces, ci)
	}
	for _, xf := range x.CFunctions {
		h.CFunctions = append(h.CFunctions, CFunction{
			Altered:    xf.Altered,
			Name:       xf.Name,
			ReturnType: returnTypeFromAttr(xf.ReturnType),
			Args:       fromXMLArgs(xf.Args),
		})
	}
	for _, xf := range x.Functions {
		h.Functions = append(h.Functions, Function{
			Altered:      xf.Altered,
			Name:         xf.Name,
			ReturnType:   returnTypeFromAttr(xf.ReturnType),
			Constexpr:    xf.Constexpr,
			TemplateArgs: fromXMLTemplateArgs(xf.TemplateArgs),
			Args:         fromXMLArgs(xf.Args),
			Impl:         fromXMLImpl(xf.Impl),
		})
	}
	return h, nil
}

func toXMLRecord(name string, altered bool, vars []Variable) xmlRecord {
	x := xmlRecord{Name: name, Altered: altered}
	for _, v := range vars {
		x.Variables = append(x.Variables, xmlVariable(v))
	}
	return x
}

func fromXMLVariables(xs []xmlVariable) []Variable {
	var vars []Variable
	for _, x := range xs {
		vars = append(vars, Variable(x))
	}
	return vars
}

func toXMLFunction(name string, altered bool, returnType string, constexpr bool, targs []TemplateArg, args []Arg, impl Impl) xmlFunction {
	x := xmlFunction{
		Name:       name,
		Altered:    altered,
		ReturnType: returnType,
		Constexpr:  constexpr,
	}
	if returnType == defaultReturnType {
		x.ReturnType = ""
	}
	for _, ta := range targs {
		xta := xmlTemplateArg(ta)
		if xta.Type == defaultArgType {
			xta.Type = ""
		}
		x.TemplateArgs = append(x.TemplateArgs, xta)
	}
	for _, a := range args {
		xa := xmlArg(a)
		if xa.Type == defaultArgType {
			xa.Type = ""
		}
		x.Args = append(x.Args, xa)
	}
	if impl.Has {
		x.Impl = &xmlImpl{Lang: impl.Lang, Code: impl.Code}
	}
	return x
}

func returnTypeFromAttr(s string) string {
	if s == "" {
		return defaultReturnType
	}
	return s
}

func fromXMLArgs(xs []xmlArg) []Arg {
	var args []Arg
	for _, x := range xs {
		a := Arg(x)
		if a.Type == "" {
			a.Type = defaultArgType
		}
		args = append(args, a)
	}
	return args
}

func fromXMLTemplateArgs(xs []xmlTemplateArg) []TemplateArg {
	var targs []TemplateArg
	for _, x := range xs {
		ta := TemplateArg(x)
		if ta.Type == "" {
			ta.Type = defaultArgType
		}
		targs = append(targs, ta)
	}
	return targs
}

func fromXMLImpl(x *xmlImpl) Impl {
	if x == nil {
		return Impl{}
	}
	return Impl{Has: true, Lang: x.Lang, Code: x.Code}
}

func integerTypeAttr(t IntegerType) string {
	if t == Int32 {
		return ""
	}
	return t.String()
}

func parseIntegerTypeAttr(s string) (IntegerType, error) {
	if s == "" {
		return Int32, nil
	}
	return ParseIntegerType(s)
}

// mask returns the bit mask of t's width, limited to 64 bits.
func mask(t IntegerType) uint64 {
	if t.Bits() >= 64 {
		return ^uint64(0)
	}
	return 1<<t.Bits() - 1
}

// signExtend widens the t-sized two's complement value v to 64 bits.
func signExtend(t IntegerType, v uint64) uint64 {
	bits := t.Bits()
	if t.IsUnsigned() || bits >= 64 {
		return v
	}
	if v&(1<<(bits-1)) != 0 {
		return v | ^mask(t)
	}
	return v
}

// formatOrdinal formats v in decimal, signed unless t is unsigned.
func formatOrdinal(t IntegerType, v uint64) string {
	if t.IsUnsigned() {
		return strconv.FormatUint(v, 10)
	}
	return strconv.FormatInt(int64(v), 10)
}

func parseOrdinal(t IntegerType, s string) (uint64, error) {
	if t.IsUnsigned() {
		return strconv.ParseUint(s, 0, 64)
	}
	v, err := strconv.ParseInt(s, 0, 64)
	return uint64(v), err
}

// formatFlag formats v as hex, zero padded to t's width.
func formatFlag(t IntegerType, v uint64) string {
	return fmt.Sprintf("0x%0*X", t.Bits()/4, v&mask(t))
}

func parseFlag(t IntegerType, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	return signExtend(t, v), nil
}
