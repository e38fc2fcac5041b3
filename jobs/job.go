// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package jobs

import (
	"context"
	"sync/atomic"
)

// completion is the completion state shared by all handles of a job.
// It outlives the job's arena slot.
type completion struct {
	done atomic.Bool
	ch   chan struct{}
	// err is written before ch is closed.
	err error
}

func newCompletion() *completion {
	return &completion{ch: make(chan struct{})}
}

func (c *completion) finish(err error) {
	c.err = err
	c.done.Store(true)
	close(c.ch)
}

// Job is a handle of a submitted job.
//
// A job's arena slot is reclaimed once it has completed and all of its
// handles are released. A released or stale handle can still be waited
// on.
type Job struct {
	pool     *Pool
	id       jobID
	name     string
	c        *completion
	released atomic.Bool
}

// Name returns the name of the job.
func (j *Job) Name() string {
	return j.name
}

// Done returns a channel closed when the job has completed.
func (j *Job) Done() <-chan struct{} {
	return j.c.ch
}

// IsDone reports whether the job has completed.
func (j *Job) IsDone() bool {
	return j.c.done.Load()
}

// Err returns the error of a completed job, or nil if it has not
// completed yet.
func (j *Job) Err() error {
	if !j.c.done.Load() {
		return nil
	}
	return j.c.err
}

// Wait blocks until the job completes, and returns its error.
// It returns the cause of ctx if ctx is done first.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.c.ch:
		return j.c.err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Ref returns a new handle of the same job, which must be released
// separately.
func (j *Job) Ref() *Job {
	n := &Job{pool: j.pool, id: j.id, name: j.name, c: j.c}
	if j.pool == nil {
		return n
	}
	p := j.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if e := p.lookup(j.id); e != nil {
		e.refs++
		return n
	}
	// stale; nothing to hold.
	n.pool = nil
	return n
}

// Release drops the handle's reference to the job. It is safe to call
// more than once.
func (j *Job) Release() {
	if j == nil || j.pool == nil || !j.released.CompareAndSwap(false, true) {
		return
	}
	p := j.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.lookup(j.id)
	if e == nil {
		return
	}
	e.refs--
	p.maybeFreeLocked(j.id, e)
}
