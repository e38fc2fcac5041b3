// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package jobs provides a worker pool running jobs in dependency order.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"

	"go.chromium.org/infra/build/specregen/o11y/clog"
	"go.chromium.org/infra/build/specregen/runtimex"
)

// ErrPoolClosed is the error of a job submitted to, or left pending in, a
// pool that has been shut down.
var ErrPoolClosed = errors.New("jobs: pool is shut down")

// PanicError is the error of a job whose body panicked.
type PanicError struct {
	Job   string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job %s panicked: %v", e.Job, e.Value)
}

// Func is the body of a job. j is the running job, so the body can submit
// jobs depending on it. j is released when the body returns; use j.Ref
// to keep a handle.
type Func func(ctx context.Context, j *Job) error

// Stats is a snapshot of the job counts of a pool.
type Stats struct {
	// Pending is the number of jobs waiting for dependencies.
	Pending int
	// Ready is the number of jobs eligible to run.
	Ready   int
	Running int
	Done    int
	// Failed is the number of done jobs that returned an error or
	// panicked.
	Failed int
}

func (s Stats) String() string {
	return fmt.Sprintf("pending=%d ready=%d running=%d done=%d failed=%d", s.Pending, s.Ready, s.Running, s.Done, s.Failed)
}

// jobID addresses an arena slot. gen distinguishes the jobs that have
// used the same slot.
type jobID struct {
	index uint32
	gen   uint32
}

type entry struct {
	ctx  context.Context
	name string
	fn   Func
	c    *completion

	// nwaits is the number of dependencies not done yet.
	nwaits     int
	dependents []jobID
	taken      bool
	done       bool
	// refs is the number of unreleased handles.
	refs int
}

type slot struct {
	gen uint32
	job *entry
}

// Pool is a fixed size pool of workers running jobs.
type Pool struct {
	ctx context.Context
	wg  sync.WaitGroup

	mu   sync.Mutex
	cond *sync.Cond
	// generation is bumped when a job is submitted, a dependency is
	// satisfied or the pool is shut down. Idle workers sleep until it
	// changes.
	generation uint64
	alive      bool

	slots []slot
	free  []uint32
	// queue holds the slot index of jobs not taken by a worker yet,
	// in submission order.
	queue []uint32

	running int
	ndone   int
	nfailed int
}

// New starts a pool of n workers. n <= 0 means the number of CPUs.
func New(ctx context.Context, n int) *Pool {
	n = runtimex.Workers(n)
	p := &Pool{
		ctx:   ctx,
		alive: true,
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(n)
	for range n {
		go p.worker()
	}
	clog.Infof(ctx, "jobs: started %d workers", n)
	return p
}

// Submit enqueues fn as a job named name. The job does not start until
// every job in deps has completed, whether it succeeded or not.
// ctx is passed to fn.
// The returned handle must be released by the caller.
func (p *Pool) Submit(ctx context.Context, name string, fn Func, deps ...*Job) *Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		c := newCompletion()
		c.finish(ErrPoolClosed)
		return &Job{name: name, c: c}
	}
	e := &entry{
		ctx:  ctx,
		name: name,
		fn:   fn,
		c:    newCompletion(),
		refs: 1,
	}
	id := p.alloc(e)
	for _, d := range deps {
		if d == nil || d.pool != p {
			continue
		}
		de := p.lookup(d.id)
		if de == nil || de.done {
			continue
		}
		de.dependents = append(de.dependents, id)
		e.nwaits++
	}
	p.queue = append(p.queue, id.index)
	p.wakeLocked()
	return &Job{pool: p, id: id, name: name, c: e.c}
}

// Shutdown stops the workers. Running jobs finish; jobs not started are
// never run and complete with ErrPoolClosed.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if !p.alive {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.alive = false
	p.wakeLocked()
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	pending := p.queue
	p.queue = nil
	for _, idx := range pending {
		e := p.slots[idx].job
		if e == nil || e.taken {
			continue
		}
		e.done = true
		e.c.finish(ErrPoolClosed)
		p.maybeFreeLocked(jobID{index: idx, gen: p.slots[idx].gen}, e)
	}
	clog.Infof(p.ctx, "jobs: shut down %d pending jobs", len(pending))
}

// Stats returns the current job counts.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{
		Running: p.running,
		Done:    p.ndone,
		Failed:  p.nfailed,
	}
	for _, idx := range p.queue {
		if p.slots[idx].job.nwaits > 0 {
			s.Pending++
			continue
		}
		s.Ready++
	}
	return s
}

func (p *Pool) wakeLocked() {
	p.generation++
	p.cond.Broadcast()
}

func (p *Pool) alloc(e *entry) jobID {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		p.slots[idx].job = e
		return jobID{index: idx, gen: p.slots[idx].gen}
	}
	p.slots = append(p.slots, slot{job: e})
	return jobID{index: uint32(len(p.slots) - 1)}
}

// lookup returns the job of id, or nil if its slot has been reclaimed.
func (p *Pool) lookup(id jobID) *entry {
	if int(id.index) >= len(p.slots) {
		return nil
	}
	s := &p.slots[id.index]
	if s.gen != id.gen {
		return nil
	}
	return s.job
}

func (p *Pool) maybeFreeLocked(id jobID, e *entry) {
	if !e.done || e.refs > 0 {
		return
	}
	s := &p.slots[id.index]
	s.job = nil
	s.gen++
	p.free = append(p.free, id.index)
}

// numLive returns the number of jobs holding an arena slot.
func (p *Pool) numLive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots) - len(p.free)
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		e, id, ok := p.next()
		if !ok {
			return
		}
		p.run(e, id)
	}
}

// next takes the first job whose dependencies are done, sleeping while
// there is none. It returns false once the pool is shut down.
func (p *Pool) next() (*entry, jobID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if !p.alive {
			return nil, jobID{}, false
		}
		for i, idx := range p.queue {
			e := p.slots[idx].job
			if e.nwaits > 0 {
				continue
			}
			p.queue = slices.Delete(p.queue, i, i+1)
			e.taken = true
			// reference for the handle given to fn.
			e.refs++
			p.running++
			return e, jobID{index: idx, gen: p.slots[idx].gen}, true
		}
		gen := p.generation
		for gen == p.generation {
			p.cond.Wait()
		}
	}
}

func (p *Pool) run(e *entry, id jobID) {
	j := &Job{pool: p, id: id, name: e.name, c: e.c}
	err := call(e.ctx, e.name, e.fn, j)

	p.mu.Lock()
	defer p.mu.Unlock()
	e.c.finish(err)
	e.done = true
	e.fn = nil
	p.running--
	p.ndone++
	if err != nil {
		p.nfailed++
	}
	for _, did := range e.dependents {
		if de := p.lookup(did); de != nil {
			de.nwaits--
		}
	}
	e.dependents = nil
	if j.released.CompareAndSwap(false, true) {
		e.refs--
	}
	p.maybeFreeLocked(id, e)
	p.wakeLocked()
}

// call runs fn, converting a panic to an error. Failures are logged and
// do not stop the pool.
func call(ctx context.Context, name string, fn Func, j *Job) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		stack := debug.Stack()
		clog.Errorf(ctx, "job %s panicked: %v\n%s", name, r, stack)
		err = &PanicError{Job: name, Value: r, Stack: stack}
	}()
	err = fn(ctx, j)
	if err != nil {
		clog.Warningf(ctx, "job %s failed: %v", name, err)
	}
	return err
}
