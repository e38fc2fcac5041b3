// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package version provides version subcommand.
package version

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/maruel/subcommands"
	"go.chromium.org/luci/cipd/version"
)

// Cmd returns the Command for the `version` subcommand provided by this package.
func Cmd(ver string) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "version",
		ShortDesc: "prints the executable version",
		LongDesc:  "Prints the executable version and the CIPD package the executable was installed from (if it was installed via CIPD).",
		CommandRun: func() subcommands.CommandRun {
			r := &versionRun{version: ver}
			r.init()
			return r
		},
	}
}

type versionRun struct {
	subcommands.CommandRunBase
	version string
	deps    bool
}

func (c *versionRun) init() {
	c.Flags.BoolVar(&c.deps, "deps", false, "also print the modules the executable was built with")
}

func (c *versionRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 1
	}
	ver, err := version.GetStartupVersion()
	if err != nil {
		// Note: this is some sort of catastrophic error. If the binary is not
		// installed via CIPD, err == nil && ver.InstanceID == "".
		fmt.Fprintf(a.GetErr(), "cannot determine CIPD package version: %s\n", err)
		return 1
	}
	info, _ := debug.ReadBuildInfo()
	printVersion(a.GetOut(), c.version, ver, info, c.deps)
	return 0
}

func printVersion(w io.Writer, exeVersion string, ver version.Info, info *debug.BuildInfo, deps bool) {
	fmt.Fprintln(w, exeVersion)
	if ver.InstanceID != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "CIPD package name: %s\n", ver.PackageName)
		fmt.Fprintf(w, "CIPD instance ID:  %s\n", ver.InstanceID)
	}
	if info == nil {
		return
	}
	if info.GoVersion != "" {
		fmt.Fprintf(w, "go\t%s\n", info.GoVersion)
	}
	for _, s := range info.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			fmt.Fprintf(w, "build\t%s=%s\n", s.Key, s.Value)
		}
	}
	if !deps {
		return
	}
	for _, m := range info.Deps {
		fmt.Fprintf(w, "dep\t%s\t%s\n", m.Path, m.Version)
	}
}
