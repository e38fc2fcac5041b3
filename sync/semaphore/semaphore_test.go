// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package semaphore_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.chromium.org/infra/build/specregen/sync/semaphore"
)

func checkStats(t *testing.T, sema *semaphore.Semaphore, servs, waits, reqs int) {
	t.Helper()
	if n := sema.NumServs(); n != servs {
		t.Errorf("NumServs=%d; want %d", n, servs)
	}
	if n := sema.NumWaits(); n != waits {
		t.Errorf("NumWaits=%d; want %d", n, waits)
	}
	if n := sema.NumRequests(); n != reqs {
		t.Errorf("NumRequests=%d; want %d", n, reqs)
	}
}

func TestLookup(t *testing.T) {
	sema := semaphore.New(t.Name(), 3)
	if name := sema.Name(); name != t.Name() {
		t.Errorf("Name=%q; want %q", name, t.Name())
	}
	if n := sema.Capacity(); n != 3 {
		t.Errorf("Capacity=%d; want %d", n, 3)
	}
	got, err := semaphore.Lookup(t.Name())
	if err != nil || got != sema {
		t.Errorf("Lookup(%q)=%p, %v; want %p, nil", t.Name(), got, err, sema)
	}
	badName := t.Name() + "_not_created"
	_, err = semaphore.Lookup(badName)
	if err == nil {
		t.Errorf("Lookup(%q)=_, %v; want err", badName, err)
	}
}

func TestWaitAcquire(t *testing.T) {
	ctx := t.Context()
	sema := semaphore.New(t.Name(), 3)
	checkStats(t, sema, 0, 0, 0)

	var dones []func()
	for i := range 3 {
		_, done, err := sema.WaitAcquire(ctx)
		if err != nil {
			t.Fatalf("WaitAcquire %d: %v", i, err)
		}
		dones = append(dones, done)
		checkStats(t, sema, i+1, 0, i+1)
	}
	func() {
		ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, _, err := sema.WaitAcquire(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("WaitAcquire=%v; want %v", err, context.DeadlineExceeded)
		}
		checkStats(t, sema, 3, 0, 3)
	}()

	dones[0]()
	// release is idempotent.
	dones[0]()
	checkStats(t, sema, 2, 0, 3)

	_, done, err := sema.WaitAcquire(ctx)
	if err != nil {
		t.Fatalf("WaitAcquire %v", err)
	}
	checkStats(t, sema, 3, 0, 4)
	dones[1]()
	dones[2]()
	done()
	checkStats(t, sema, 0, 0, 4)
}

func TestDo(t *testing.T) {
	ctx := t.Context()
	sema := semaphore.New(t.Name(), 3)

	var called, running, peak atomic.Int32
	f := func(ctx context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		called.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	}

	const count = 50
	var wg sync.WaitGroup
	for i := range count {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sema.Do(ctx, f)
			if err != nil {
				t.Errorf("Do %d: %v", i, err)
			}
		}()
	}
	wg.Wait()
	checkStats(t, sema, 0, 0, count)
	if n := called.Load(); int(n) != count {
		t.Errorf("called=%d; want %d", n, count)
	}
	if n := peak.Load(); n > 3 {
		t.Errorf("peak=%d; want <= %d", n, 3)
	}
}

func TestDo_err(t *testing.T) {
	ctx := t.Context()
	sema := semaphore.New(t.Name(), 3)

	wantErr := errors.New("error")
	err := sema.Do(ctx, func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Do %v; want %v", err, wantErr)
	}
	checkStats(t, sema, 0, 0, 1)
}
