// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sdkconfig

import (
	"fmt"
	"runtime"

	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"go.chromium.org/infra/build/specregen/sdkversion"
)

func builtinModule() starlark.StringDict {
	runtimeModule := &starlarkstruct.Module{
		Name: "runtime",
		Members: starlark.StringDict{
			"num_cpu": starlark.MakeInt(runtime.NumCPU()),
			"os":      starlark.String(runtime.GOOS),
			"arch":    starlark.String(runtime.GOARCH),
		},
	}
	runtimeModule.Freeze()

	return starlark.StringDict{
		"runtime": runtimeModule,
		"json":    starjson.Module,
		"time":    startime.Module,
		"math":    starmath.Module,
		"struct":  starlark.NewBuiltin("struct", starlarkstruct.Make),
		"module":  starlark.NewBuiltin("module", starlarkstruct.MakeModule),
	}
}

func packList(list []string) starlark.Value {
	values := make([]starlark.Value, 0, len(list))
	for _, elem := range list {
		values = append(values, starlark.String(elem))
	}
	return starlark.NewList(values)
}

// packDXGIs packs dxgis into a tuple of structs with major, minor and path.
func packDXGIs(dxgis []sdkversion.DXGI) starlark.Value {
	values := make([]starlark.Value, 0, len(dxgis))
	for _, d := range dxgis {
		values = append(values, starlarkstruct.FromStringDict(starlark.String("dxgi"), starlark.StringDict{
			"major": starlark.MakeInt(d.Major),
			"minor": starlark.MakeInt(d.Minor),
			"path":  starlark.String(d.Path),
		}))
	}
	return starlark.Tuple(values)
}

func unpackList(v starlark.Value) ([]string, error) {
	iterator := starlark.Iterate(v)
	if iterator == nil {
		return nil, fmt.Errorf("got %v; want iterator", v.Type())
	}
	defer iterator.Done()
	var elem starlark.Value
	var list []string
	for iterator.Next(&elem) {
		s, ok := starlark.AsString(elem)
		if !ok {
			return nil, fmt.Errorf("got %v in %v; want string", elem.Type(), v.Type())
		}
		list = append(list, s)
	}
	return list, nil
}
