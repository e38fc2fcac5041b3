// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package diff provides diff subcommand.
package diff

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/specregen/o11y/clog"
	"go.chromium.org/infra/build/specregen/sdkinfo"
)

const usage = `reduce a spec against an older spec.

 $ specregen diff -older <old.xml> -newer <new.xml> [-o <out.xml>]

The last sdk of <new.xml> is reduced to what is new or altered since
the last sdk of <old.xml>, and written as a document of one sdk.
Both documents should hold full snapshots, as written by
"specregen regen -no_reduce".
`

// Cmd returns the Command for the `diff` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "diff -older <old.xml> -newer <new.xml>",
		ShortDesc: "reduce a spec against an older spec",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	older  string
	newer  string
	output string
}

func (c *run) init() {
	c.Flags.StringVar(&c.older, "older", "", "spec of the older sdk")
	c.Flags.StringVar(&c.newer, "newer", "", "spec of the newer sdk")
	c.Flags.StringVar(&c.output, "o", "-", "output file. - means stdout")
}

// Run runs the `diff` subcommand.
func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, args)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *run) run(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments %q: %w", args, flag.ErrHelp)
	}
	if c.older == "" || c.newer == "" {
		return fmt.Errorf("-older and -newer are required: %w", flag.ErrHelp)
	}
	older, err := lastSDK(c.older)
	if err != nil {
		return err
	}
	newer, err := lastSDK(c.newer)
	if err != nil {
		return err
	}
	clog.Infof(ctx, "reduce %s against %s", newer.Version, older.Version)
	reduced := Reduce(newer, older)

	var w io.Writer = os.Stdout
	if c.output != "-" {
		f, err := os.Create(c.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	err = sdkinfo.Encode(w, []sdkinfo.SDK{*reduced})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", c.output, err)
	}
	if f, ok := w.(*os.File); ok && f != os.Stdout {
		return f.Close()
	}
	return nil
}

// Reduce returns newer reduced against older. newer is not modified.
func Reduce(newer, older *sdkinfo.SDK) *sdkinfo.SDK {
	reduced := newer.Clone()
	sdkinfo.Reduce(reduced, older)
	return reduced
}

func lastSDK(fname string) (*sdkinfo.SDK, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sdks, err := sdkinfo.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fname, err)
	}
	if len(sdks) == 0 {
		return nil, fmt.Errorf("no sdk in %s", fname)
	}
	return &sdks[len(sdks)-1], nil
}
