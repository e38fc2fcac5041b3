// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package regen provides regen subcommand.
package regen

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/cpuid/v2"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/specregen/frontend/clangfe"
	"go.chromium.org/infra/build/specregen/introspect"
	"go.chromium.org/infra/build/specregen/jobs"
	"go.chromium.org/infra/build/specregen/o11y/clog"
	"go.chromium.org/infra/build/specregen/pipeline"
	"go.chromium.org/infra/build/specregen/sdkconfig"
	"go.chromium.org/infra/build/specregen/sdkinfo"
	"go.chromium.org/infra/build/specregen/snapcache"
	"go.chromium.org/infra/build/specregen/ui"
)

// ExitFatal is the exit code of a run aborted by an invariant violation.
const ExitFatal = 0x7FFF

const usage = `regenerate the api spec from sdk headers.

 $ specregen regen [-C <dir>] [-o spec.xml]

Each directory <dir>/versions/<version> holds the headers of one sdk
version, in shared/, ucrt/ and um/. The versions are ordered by
<dir>/versions/sdk.versions if it exists, or by name otherwise.

The headers are parsed with clang, and every version but the oldest is
reduced to what is new or altered since the previous version, unless
-no_reduce is given.

<dir>/versions/specregen.star may define init(ctx) to customize the
headers and compiler flags of each version.
`

// Cmd returns the Command for the `regen` subcommand provided by this package.
func Cmd(version string) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "regen <args>...",
		ShortDesc: "regenerate the api spec",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{version: version}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	version   string
	dir       string
	output    string
	jobs      int
	clang     string
	clangJobs int
	cacheDir  string
	noReduce  bool
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "root directory, holding the versions directory")
	c.Flags.StringVar(&c.output, "o", "spec.xml", "output file")
	c.Flags.IntVar(&c.jobs, "j", 0, "number of jobs to run in parallel. 0 means the number of CPUs")
	c.Flags.StringVar(&c.clang, "clang", "clang", "clang executable")
	c.Flags.IntVar(&c.clangJobs, "clang_jobs", 0, "number of clang processes to run in parallel. 0 means the number of CPUs")
	defaultCacheDir := ""
	if d, err := os.UserCacheDir(); err == nil {
		defaultCacheDir = filepath.Join(d, "specregen")
	}
	c.Flags.StringVar(&c.cacheDir, "cache_dir", defaultCacheDir, "directory to cache extracted headers. empty disables the cache")
	c.Flags.BoolVar(&c.noReduce, "no_reduce", false, "write full snapshots instead of deltas")
}

// Run runs the `regen` subcommand.
func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, args)
	if err != nil {
		var ierr *introspect.InvariantError
		var herr sdkconfig.HandlerError
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		case errors.As(err, &ierr):
			ui.Default.Errorf("%v", err)
			return ExitFatal
		case errors.As(err, &herr):
			fmt.Fprintf(os.Stderr, "Error: %v\n%s\n", err, herr.Backtrace())
		default:
			ui.Default.Errorf("%v", err)
		}
		return 1
	}
	return 0
}

func (c *run) run(ctx context.Context, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer signals.HandleInterrupt(cancel)()

	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments %q: %w", args, flag.ErrHelp)
	}
	started := time.Now()
	runID := uuid.New().String()
	ctx = clog.NewRun(ctx, runID)
	clog.Infof(ctx, "specregen %s run_id=%s", c.version, runID)
	clog.Infof(ctx, "%s", cpuinfo())

	root, err := filepath.Abs(c.dir)
	if err != nil {
		return err
	}
	if c.cacheDir != "" {
		clog.Infof(ctx, "cache dir: %s", c.cacheDir)
	}
	pool := jobs.New(ctx, c.jobs)
	defer pool.Shutdown()

	sdks, err := pipeline.Run(ctx, pipeline.Options{
		Root:        root,
		Frontend:    clangfe.New(c.clang, c.clangJobs),
		Jobs:        pool,
		Cache:       snapcache.New(c.cacheDir),
		Reduce:      !c.noReduce,
		ToolVersion: c.version,
		Progress:    progress(started),
	})
	if err != nil {
		return err
	}

	spinner := ui.Default.NewSpinner()
	spinner.Start("writing %s", c.output)
	err = writeDocument(c.output, sdks)
	spinner.Stop(err)
	if err != nil {
		return err
	}
	msg := "done"
	if ui.IsTerminal() {
		msg = ui.SGR(ui.Green, msg)
	}
	ui.Default.PrintLines("\n", fmt.Sprintf("%6s %s: %d sdks in %s", ui.FormatDuration(time.Since(started)), msg, len(sdks), c.output))
	return nil
}

// progress returns a func printing job stats when they change.
func progress(started time.Time) func(jobs.Stats) {
	var mu sync.Mutex
	var last jobs.Stats
	return func(s jobs.Stats) {
		mu.Lock()
		defer mu.Unlock()
		if s == last {
			return
		}
		last = s
		msg := fmt.Sprintf("%6s %s", ui.FormatDuration(time.Since(started)), s)
		if s.Failed > 0 && ui.IsTerminal() {
			msg = ui.SGR(ui.Yellow, msg)
		}
		ui.Default.PrintLines(msg)
	}
}

// writeDocument writes sdks to fname, replacing it only once the whole
// document is written.
func writeDocument(fname string, sdks []sdkinfo.SDK) error {
	buf, err := sdkinfo.MarshalDocument(sdks)
	if err != nil {
		return err
	}
	if fname == "-" {
		_, err = os.Stdout.Write(buf)
		return err
	}
	tmp := fname + ".tmp"
	if err := os.WriteFile(tmp, buf, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, fname)
}

func cpuinfo() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cpu family=%d model=%d stepping=%d ", cpuid.CPU.Family, cpuid.CPU.Model, cpuid.CPU.Stepping)
	fmt.Fprintf(&sb, "brand=%q vendor=%q ", cpuid.CPU.BrandName, cpuid.CPU.VendorString)
	fmt.Fprintf(&sb, "physicalCores=%d threadsPerCore=%d logicalCores=%d", cpuid.CPU.PhysicalCores, cpuid.CPU.ThreadsPerCore, cpuid.CPU.LogicalCores)
	return sb.String()
}
