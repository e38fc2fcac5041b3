// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Specregen regenerates the api spec of the Direct3D 12 SDK headers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	log "github.com/golang/glog"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/specregen/subcmd/diff"
	"go.chromium.org/infra/build/specregen/subcmd/help"
	"go.chromium.org/infra/build/specregen/subcmd/regen"
	"go.chromium.org/infra/build/specregen/subcmd/version"
	"go.chromium.org/infra/build/specregen/ui"
)

const specregenVersion = "specregen v0.3.0"

func getApplication() *cli.Application {
	return &cli.Application{
		Name:  "specregen",
		Title: "Direct3D 12 SDK api spec generator",
		Context: func(ctx context.Context) context.Context {
			return ctx
		},
		Commands: []*subcommands.Command{
			regen.Cmd(specregenVersion),
			diff.Cmd(),

			help.Cmd(),
			version.Cmd(specregenVersion),
		},
	}
}

func main() {
	os.Exit(specregenMain())
}

func specregenMain() (exitCode int) {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(out, "global flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ui.Init()
	defer ui.Restore()

	// Flush the log on exit to not lose any messages.
	defer log.Flush()

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Errorf("panic: %v\n%s", r, buf)
			fmt.Fprintf(os.Stderr, "panic: %v\n%s", r, buf)
			exitCode = regen.ExitFatal
		}
	}()

	// Print build information to the log.
	buildinfo, ok := debug.ReadBuildInfo()
	if ok {
		log.Infof("main module: %s %s", moduleInfo(&buildinfo.Main), vcsInfo(buildinfo))
		if log.V(1) {
			for _, m := range buildinfo.Deps {
				log.Infof("deps module: %s", moduleInfo(m))
			}
			for _, bs := range buildinfo.Settings {
				log.Infof("build %s=%s", bs.Key, bs.Value)
			}
		}
	}

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"regen"}
	}
	return subcommands.Run(getApplication(), args)
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s replace:%s", m.Path, m.Version, m.Sum, moduleInfo(m.Replace))
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	m := make(map[string]string)
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			m[bs.Key] = bs.Value
		}
	}
	return fmt.Sprintf("vcs[revision=%s time=%s modified=%s]", m["vcs.revision"], m["vcs.time"], m["vcs.modified"])
}
