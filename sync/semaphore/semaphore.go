// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package semaphore provides named counting semaphores.
package semaphore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	mu         sync.Mutex
	semaphores = map[string]*Semaphore{}
)

// Semaphore is a semaphore.
type Semaphore struct {
	name string
	ch   chan struct{}

	waits atomic.Int64
	reqs  atomic.Int64
}

// Lookup returns a semaphore registered for the name.
func Lookup(name string) (*Semaphore, error) {
	mu.Lock()
	defer mu.Unlock()
	s, ok := semaphores[name]
	if !ok {
		return nil, fmt.Errorf("semaphore %q not found", name)
	}
	return s, nil
}

// New creates a new semaphore with name and capacity, and registers it.
// A semaphore registered with the same name is replaced.
func New(name string, n int) *Semaphore {
	s := &Semaphore{
		name: name,
		ch:   make(chan struct{}, n),
	}
	mu.Lock()
	semaphores[name] = s
	mu.Unlock()
	return s
}

// WaitAcquire acquires a semaphore.
// It returns a context for acquired semaphore and func to release it.
func (s *Semaphore) WaitAcquire(ctx context.Context) (context.Context, func(), error) {
	s.waits.Add(1)
	defer s.waits.Add(-1)
	select {
	case s.ch <- struct{}{}:
		s.reqs.Add(1)
		var once sync.Once
		return ctx, func() {
			once.Do(func() { <-s.ch })
		}, nil
	case <-ctx.Done():
		return ctx, func() {}, context.Cause(ctx)
	}
}

// Name returns name of the semaphore.
func (s *Semaphore) Name() string {
	return s.name
}

// Capacity returns capacity of the semaphore.
func (s *Semaphore) Capacity() int {
	if s == nil {
		return 0
	}
	return cap(s.ch)
}

// NumServs returns number of currently served.
func (s *Semaphore) NumServs() int {
	return len(s.ch)
}

// NumWaits returns number of waiters.
func (s *Semaphore) NumWaits() int {
	return int(s.waits.Load())
}

// NumRequests returns total number of requests.
func (s *Semaphore) NumRequests() int {
	return int(s.reqs.Load())
}

func (s *Semaphore) String() string {
	return fmt.Sprintf("%s: serv=%d/%d wait=%d reqs=%d", s.name, s.NumServs(), s.Capacity(), s.NumWaits(), s.NumRequests())
}

// Do runs f under semaphore.
func (s *Semaphore) Do(ctx context.Context, f func(ctx context.Context) error) error {
	ctx, done, err := s.WaitAcquire(ctx)
	if err != nil {
		return err
	}
	defer done()
	return f(ctx)
}
