// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package pipeline composes header extraction and snapshot reduction of
// all SDK versions into a job graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.chromium.org/infra/build/specregen/frontend"
	"go.chromium.org/infra/build/specregen/introspect"
	"go.chromium.org/infra/build/specregen/jobs"
	"go.chromium.org/infra/build/specregen/o11y/clog"
	"go.chromium.org/infra/build/specregen/sdkconfig"
	"go.chromium.org/infra/build/specregen/sdkinfo"
	"go.chromium.org/infra/build/specregen/sdkversion"
	"go.chromium.org/infra/build/specregen/snapcache"
)

// Options are options of Run.
type Options struct {
	// Root is the directory holding the versions directory.
	Root string

	// Frontend parses headers and evaluates macros.
	Frontend frontend.Frontend

	// Jobs runs the job graph. If nil, Run uses a pool of
	// runtime.NumCPU workers and shuts it down on return.
	Jobs *jobs.Pool

	// Cache caches extracted headers. nil disables caching.
	Cache *snapcache.Cache

	// Config customizes headers and args per version. If nil, it is
	// loaded from Root.
	Config *sdkconfig.Config

	// Reduce reduces each version to its delta against the previous one.
	Reduce bool

	// ToolVersion is mixed into cache keys.
	ToolVersion string

	// Progress, if set, is called periodically while jobs run.
	Progress func(jobs.Stats)
	// ProgressInterval is the interval of Progress calls.
	// Zero means one second.
	ProgressInterval time.Duration
}

// runner holds the state of a run shared by its jobs.
type runner struct {
	opts Options
	pool *jobs.Pool
	cfg  *sdkconfig.Config

	// written by the discovery job only, before final is submitted.
	sdks  []sdkinfo.SDK
	final *jobs.Job

	mu         sync.Mutex
	invariants []error
}

// Run extracts the snapshots of the SDK versions under opts.Root, oldest
// first. With opts.Reduce, each snapshot but the oldest is reduced to its
// delta against the previous version.
//
// Extraction errors are logged and leave the header empty, except an
// *introspect.InvariantError which makes Run fail.
func Run(ctx context.Context, opts Options) ([]sdkinfo.SDK, error) {
	if opts.Frontend == nil {
		return nil, errors.New("pipeline: no frontend")
	}
	r := &runner{
		opts: opts,
		pool: opts.Jobs,
		cfg:  opts.Config,
	}
	if r.pool == nil {
		r.pool = jobs.New(ctx, 0)
		defer r.pool.Shutdown()
	}
	if r.cfg == nil {
		var err error
		r.cfg, err = sdkconfig.Load(ctx, opts.Root)
		if err != nil {
			return nil, err
		}
	}

	started := time.Now()
	first := r.pool.Submit(ctx, "discover", r.discover)
	defer first.Release()
	if err := r.wait(ctx, first); err != nil {
		return nil, err
	}
	if err := r.wait(ctx, r.final); err != nil {
		return nil, err
	}
	r.final.Release()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.invariants) > 0 {
		return nil, errors.Join(r.invariants...)
	}
	clog.Infof(ctx, "extracted %d sdks in %s: %s", len(r.sdks), time.Since(started), r.pool.Stats())
	return r.sdks, nil
}

// wait waits for j, reporting progress meanwhile.
func (r *runner) wait(ctx context.Context, j *jobs.Job) error {
	if r.opts.Progress == nil {
		return j.Wait(ctx)
	}
	interval := r.opts.ProgressInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-j.Done():
			r.opts.Progress(r.pool.Stats())
			return j.Err()
		case <-ticker.C:
			r.opts.Progress(r.pool.Stats())
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

// discover locates the versions and submits the job graph, depending on
// the running discovery job self.
//
// Versions are visited newest first. The reduce job of a pair depends on
// the extraction jobs of both versions and on the reduce job of the
// newer pair, which reads the older version of this pair.
func (r *runner) discover(ctx context.Context, self *jobs.Job) error {
	versions, err := sdkversion.Locate(ctx, r.opts.Root)
	if err != nil {
		var merr *sdkversion.MissingVersionError
		if !errors.As(err, &merr) {
			return err
		}
		clog.Errorf(ctx, "%v", err)
	}
	clog.Infof(ctx, "found %d sdks", len(versions))
	for _, v := range versions {
		clog.Infof(ctx, "%s at %q with %d dxgis", v.Name, v.Path, len(v.DXGIs))
	}

	settings := make([]sdkconfig.Settings, len(versions))
	for i, v := range versions {
		settings[i], err = r.cfg.Init(ctx, v)
		if err != nil {
			return fmt.Errorf("failed to configure %s: %w", v.Name, err)
		}
	}

	r.sdks = make([]sdkinfo.SDK, len(versions))
	var all, newer []*jobs.Job
	var prevReduce *jobs.Job
	for i := len(versions) - 1; i >= 0; i-- {
		v, cfg := versions[i], settings[i]
		sdk := &r.sdks[i]
		sdk.Version = v.Name
		sdk.Headers = make([]sdkinfo.Header, len(cfg.Headers))
		var extracts []*jobs.Job
		for k, rel := range cfg.Headers {
			h := &sdk.Headers[k]
			h.Name = rel
			j := r.pool.Submit(ctx, v.Name+"/"+rel, func(ctx context.Context, _ *jobs.Job) error {
				return r.extract(ctx, v, cfg.Args, h)
			}, self)
			extracts = append(extracts, j)
		}
		if r.opts.Reduce && i < len(versions)-1 {
			deps := append(append([]*jobs.Job(nil), newer...), extracts...)
			if prevReduce != nil {
				deps = append(deps, prevReduce)
			}
			newerSDK, olderSDK := &r.sdks[i+1], sdk
			prevReduce = r.pool.Submit(ctx, "reduce "+newerSDK.Version, func(ctx context.Context, _ *jobs.Job) error {
				clog.Infof(ctx, "reduce %s against %s", newerSDK.Version, olderSDK.Version)
				sdkinfo.Reduce(newerSDK, olderSDK)
				return nil
			}, deps...)
			all = append(all, prevReduce)
		}
		all = append(all, extracts...)
		newer = extracts
	}
	r.final = r.pool.Submit(ctx, "assemble", r.assemble, all...)
	for _, j := range all {
		j.Release()
	}
	clog.Infof(ctx, "submitted %d jobs", len(all)+1)
	return nil
}

// extract fills h with the entities of v's header h.Name.
func (r *runner) extract(ctx context.Context, v sdkversion.Version, args []string, h *sdkinfo.Header) error {
	ctx = clog.WithLabels(ctx, "version", v.Name, "header", h.Name)
	path := v.HeaderPath(h.Name)
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	inputs := [][]byte{src}
	if fp, ok := r.opts.Frontend.(frontend.Fingerprinter); ok && r.opts.Cache != nil {
		b, err := fp.Fingerprint(ctx, path, args)
		if err != nil {
			return err
		}
		inputs = append(inputs, b)
	}
	key := snapcache.NewKey(r.opts.ToolVersion, args, inputs...)
	if cached, ok := r.opts.Cache.Get(ctx, key); ok {
		name := h.Name
		*h = *cached
		h.Name = name
		clog.Infof(ctx, "cache hit %s", key)
		return nil
	}

	started := time.Now()
	tu, err := r.opts.Frontend.Parse(ctx, path, args)
	if err != nil {
		return err
	}
	err = introspect.Classify(ctx, tu, h)
	if err == nil {
		err = introspect.ResolveMacros(ctx, r.opts.Frontend, tu, h)
	}
	if err != nil {
		var ierr *introspect.InvariantError
		if errors.As(err, &ierr) {
			r.mu.Lock()
			r.invariants = append(r.invariants, err)
			r.mu.Unlock()
		}
		*h = sdkinfo.Header{Name: h.Name}
		return err
	}
	clog.Infof(ctx, "extracted %s in %s", path, time.Since(started))
	if err := r.opts.Cache.Put(ctx, key, h); err != nil {
		clog.Warningf(ctx, "failed to cache %s: %v", path, err)
	}
	return nil
}

func (r *runner) assemble(ctx context.Context, _ *jobs.Job) error {
	for _, sdk := range r.sdks {
		n := 0
		for _, h := range sdk.Headers {
			if !h.IsEmpty() {
				n++
			}
		}
		clog.Infof(ctx, "%s: %d/%d headers with entities", sdk.Version, n, len(sdk.Headers))
	}
	return nil
}
