// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sdkconfig provides the per-version extraction config, written
// in Starlark.
package sdkconfig

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"go.chromium.org/infra/build/specregen/sdkversion"
)

const (
	// ConfigFile is the config file name in the versions directory.
	ConfigFile = "specregen.star"

	configEntryPoint = "init"
)

//go:embed specregen.star
var builtinConfig []byte

// Config is an SDK config.
type Config struct {
	fname string

	// global variables loaded by the config.
	globals starlark.StringDict
}

// Settings are the settings of a version returned by `init`.
type Settings struct {
	// Headers are the headers to extract, relative to the version
	// directory.
	Headers []string
	// Args are the compiler flags to parse the headers with.
	Args []string
}

// Load loads root/versions/specregen.star, or the builtin config if it
// doesn't exist.
func Load(ctx context.Context, root string) (*Config, error) {
	fname := filepath.Join(root, sdkversion.VersionsDir, ConfigFile)
	src, err := os.ReadFile(fname)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infof("no %s; use builtin config", fname)
		return New(ctx, "@builtin//"+ConfigFile, builtinConfig)
	}
	if err != nil {
		return nil, err
	}
	return New(ctx, fname, src)
}

// New returns new config loaded from src. fname is used in error
// messages and backtraces.
func New(ctx context.Context, fname string, src []byte) (*Config, error) {
	thread := &starlark.Thread{
		Name: "load",
		Print: func(thread *starlark.Thread, msg string) {
			log.Infof("thread:%s %s", thread.Name, msg)
		},
		Load: func(*starlark.Thread, string) (starlark.StringDict, error) {
			return nil, errors.New("load is not allowed in sdk config")
		},
	}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, fname, src, builtinModule())
	if err != nil {
		log.Warnf("thread:%s failed to exec file %s: %v", thread.Name, fname, err)
		var eerr *starlark.EvalError
		if errors.As(err, &eerr) {
			log.Warnf("stacktrace:\n%s", eerr.Backtrace())
		}
		return nil, err
	}
	v, ok := globals[configEntryPoint]
	if !ok {
		return nil, fmt.Errorf("%s is not defined in %s", configEntryPoint, fname)
	}
	if _, ok := v.(starlark.Callable); !ok {
		return nil, fmt.Errorf("%s %s is not callable in %s", configEntryPoint, v.Type(), fname)
	}
	return &Config{
		fname:   fname,
		globals: globals,
	}, nil
}

// HandlerError is error of `init`.
type HandlerError struct {
	entry string
	fn    starlark.Value
	err   *starlark.EvalError
}

func (e HandlerError) Error() string {
	if fn, ok := e.fn.(*starlark.Function); ok {
		return fmt.Sprintf("failed to run %s[%s:%s]: %v", e.entry, fn.Position(), fn.Name(), e.err)
	}
	return fmt.Sprintf("failed to run %s[%s]: %v", e.entry, e.fn, e.err)
}

func (e HandlerError) Backtrace() string {
	return e.err.CallStack.String()
}

func (e HandlerError) Unwrap() error {
	return e.err
}

// Init runs `init` for v and returns its settings. Settings not returned
// by `init` default to v's.
func (cfg *Config) Init(ctx context.Context, v sdkversion.Version) (Settings, error) {
	defaults := Settings{
		Headers: v.Headers,
		Args:    v.Args(),
	}
	fun := cfg.globals[configEntryPoint]
	thread := &starlark.Thread{
		Name: configEntryPoint + ":" + v.Name,
		Print: func(thread *starlark.Thread, msg string) {
			log.Infof("thread:%s %s", thread.Name, msg)
		},
		Load: func(*starlark.Thread, string) (starlark.StringDict, error) {
			return nil, errors.New("load is not allowed in init")
		},
	}
	hctx := starlarkstruct.FromStringDict(starlark.String("ctx"), map[string]starlark.Value{
		"version": starlark.String(v.Name),
		"headers": packList(defaults.Headers),
		"args":    packList(defaults.Args),
		"dxgis":   packDXGIs(v.DXGIs),
	})
	ret, err := starlark.Call(thread, fun, []starlark.Value{hctx}, nil)
	if err != nil {
		log.Warnf("thread:%s failed to run %s: %v", thread.Name, configEntryPoint, err)
		var eerr *starlark.EvalError
		if errors.As(err, &eerr) {
			log.Warnf("stacktrace:\n%s", eerr.Backtrace())
			return Settings{}, HandlerError{entry: configEntryPoint, fn: fun, err: eerr}
		}
		return Settings{}, fmt.Errorf("failed to run %s: %w", configEntryPoint, err)
	}
	settings := defaults
	if ret == starlark.None {
		return settings, nil
	}
	headers, err := field(ret, "headers")
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", cfg.fname, err)
	}
	if headers != nil {
		settings.Headers, err = unpackList(headers)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: bad headers: %w", cfg.fname, err)
		}
	}
	args, err := field(ret, "args")
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", cfg.fname, err)
	}
	if args != nil {
		settings.Args, err = unpackList(args)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: bad args: %w", cfg.fname, err)
		}
	}
	return settings, nil
}

// field returns the value of name in the struct or dict ret, or nil if
// ret has no such field or it is None.
func field(ret starlark.Value, name string) (starlark.Value, error) {
	var v starlark.Value
	switch ret := ret.(type) {
	case *starlarkstruct.Struct:
		var err error
		v, err = ret.Attr(name)
		if err != nil {
			return nil, nil
		}
	case *starlark.Dict:
		var ok bool
		var err error
		v, ok, err = ret.Get(starlark.String(name))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("%s returned %s, want struct or dict", configEntryPoint, ret.Type())
	}
	if v == starlark.None {
		return nil, nil
	}
	return v, nil
}
