// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package snapcache caches the extracted snapshot of a header, keyed by
// the header contents and the flags it was parsed with.
package snapcache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"go.chromium.org/infra/build/specregen/o11y/clog"
	"go.chromium.org/infra/build/specregen/sdkinfo"
)

// Key identifies a cache entry.
type Key [16]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// NewKey returns the key of a header parsed with args by toolVersion.
// inputs are the contents the result depends on, e.g. the header and the
// front end's fingerprint of it.
func NewKey(toolVersion string, args []string, inputs ...[]byte) Key {
	h := xxh3.New()
	write := func(b []byte) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	write([]byte(toolVersion))
	write(binary.LittleEndian.AppendUint64(nil, uint64(len(args))))
	for _, arg := range args {
		write([]byte(arg))
	}
	for _, in := range inputs {
		write(in)
	}
	return Key(h.Sum128().Bytes())
}

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Cache is a local file cache of header snapshots.
// A nil *Cache is a disabled cache.
type Cache struct {
	dir string

	singleflight singleflight.Group
	timestamp    time.Time
}

// New returns new cache in dir, or nil if dir is empty.
func New(dir string) *Cache {
	if dir == "" {
		return nil
	}
	return &Cache{
		dir:       dir,
		timestamp: time.Now(),
	}
}

func (c *Cache) filename(k Key) string {
	name := k.String()
	return filepath.Join(c.dir, name[:2], name[2:]+".xml.zst")
}

// Get returns the snapshot stored for k. Unreadable entries are misses.
func (c *Cache) Get(ctx context.Context, k Key) (*sdkinfo.Header, bool) {
	if c == nil {
		return nil, false
	}
	fname := c.filename(k)
	b, err := os.ReadFile(fname)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false
	}
	if err != nil {
		clog.Warningf(ctx, "failed to read cache %s: %v", fname, err)
		return nil, false
	}
	b, err = decoder.DecodeAll(b, nil)
	if err != nil {
		clog.Warningf(ctx, "corrupted cache %s: %v", fname, err)
		return nil, false
	}
	h, err := sdkinfo.UnmarshalHeader(b)
	if err != nil {
		clog.Warningf(ctx, "corrupted cache %s: %v", fname, err)
		return nil, false
	}
	if err := os.Chtimes(fname, c.timestamp, c.timestamp); err != nil {
		clog.Warningf(ctx, "failed to update mtime for %s: %v", fname, err)
	}
	return h, true
}

// Put stores h for k.
func (c *Cache) Put(ctx context.Context, k Key, h *sdkinfo.Header) error {
	if c == nil {
		return nil
	}
	b, err := sdkinfo.MarshalHeader(h)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", h.Name, err)
	}
	b = encoder.EncodeAll(b, nil)

	fname := c.filename(k)
	_, err, shared := c.singleflight.Do(fname, func() (any, error) {
		err := os.MkdirAll(filepath.Dir(fname), 0755)
		if err != nil {
			return nil, err
		}
		// Write to a temporary file first before renaming to perform an atomic
		// write.
		tmp := fname + ".tmp"
		err = os.WriteFile(tmp, b, 0644)
		if err != nil {
			os.Remove(tmp)
			return nil, err
		}
		err = os.Rename(tmp, fname)
		if err != nil {
			os.Remove(tmp)
			return nil, err
		}
		return nil, nil
	})
	if clog.V(ctx, 1) {
		clog.Infof(ctx, "write cache %s for %s shared:%t: %v", k, h.Name, shared, err)
	}
	return err
}
