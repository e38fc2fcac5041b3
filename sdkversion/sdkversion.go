// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sdkversion locates the SDK versions and their headers under a
// source root.
package sdkversion

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/specregen/o11y/clog"
)

const (
	// VersionsDir is the directory under the root holding one directory
	// per SDK version.
	VersionsDir = "versions"

	// ManifestFile is the optional file in VersionsDir listing the
	// versions, oldest first.
	ManifestFile = "sdk.versions"
)

// DXGI is a dxgi header of a version.
type DXGI struct {
	Major, Minor int
	// Path is the header path relative to the version directory,
	// e.g. "shared/dxgi1_6.h".
	Path string
}

// Version is an SDK version.
type Version struct {
	// Name is the name of the version directory, e.g. "1.615.0".
	Name string
	// Path is the absolute path of the version directory.
	Path  string
	DXGIs []DXGI
	// Headers are the headers to extract, relative to Path, in
	// extraction order.
	Headers []string
}

// HeaderPath returns the absolute path of the header rel.
func (v Version) HeaderPath(rel string) string {
	return filepath.Join(v.Path, filepath.FromSlash(rel))
}

// Args returns the compiler flags to parse the version's headers.
func (v Version) Args() []string {
	dirs := []string{
		v.Path,
		filepath.Join(v.Path, "shared"),
		filepath.Join(v.Path, "ucrt"),
		filepath.Join(v.Path, "um"),
	}
	var args []string
	for _, d := range dirs {
		args = append(args, "-isystem", d)
	}
	for _, d := range dirs {
		args = append(args, "-I", d)
	}
	return append(args, "-x", "c++", "-std=c++20")
}

// MissingVersionError is returned when the manifest names a version that
// has no directory.
type MissingVersionError struct {
	Name string
}

func (e *MissingVersionError) Error() string {
	return fmt.Sprintf("sdk version %q is listed in %s but not found", e.Name, ManifestFile)
}

// Locate returns the versions under root/versions, in manifest order if
// root/versions/sdk.versions exists, or sorted by name otherwise.
// Manifest entries without a directory are skipped; the returned error
// then joins a *MissingVersionError for each, and the versions found are
// still returned.
func Locate(ctx context.Context, root string) ([]Version, error) {
	dir, err := filepath.Abs(filepath.Join(root, VersionsDir))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sdk versions: %w", err)
	}
	var versions []Version
	for _, ent := range entries {
		// follow symlinks.
		fi, err := os.Stat(filepath.Join(dir, ent.Name()))
		if err != nil {
			clog.Warningf(ctx, "skip %s: %v", ent.Name(), err)
			continue
		}
		if !fi.IsDir() {
			continue
		}
		versions = append(versions, Version{
			Name: ent.Name(),
			Path: filepath.Join(dir, ent.Name()),
		})
	}

	eg, gctx := errgroup.WithContext(ctx)
	for i := range versions {
		eg.Go(func() error {
			dxgis, err := LocateDXGIs(gctx, versions[i].Path)
			if err != nil {
				return fmt.Errorf("sdk %s: %w", versions[i].Name, err)
			}
			versions[i].DXGIs = dxgis
			versions[i].Headers = DefaultHeaders(dxgis)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	order, err := readManifest(filepath.Join(dir, ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return versions, nil
	}
	if err != nil {
		return nil, err
	}
	return orderVersions(ctx, versions, order)
}

func readManifest(fname string) ([]string, error) {
	buf, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	var names []string
	s := bufio.NewScanner(bytes.NewReader(buf))
	for s.Scan() {
		name := strings.TrimSpace(strings.TrimRight(s.Text(), "\x00"))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, s.Err()
}

// orderVersions returns versions in the order of names. Versions not in
// names are dropped.
func orderVersions(ctx context.Context, versions []Version, names []string) ([]Version, error) {
	ordered := make([]Version, 0, len(versions))
	var errs []error
	for _, name := range names {
		i := slices.IndexFunc(versions, func(v Version) bool { return v.Name == name })
		if i < 0 {
			err := &MissingVersionError{Name: name}
			clog.Errorf(ctx, "%v", err)
			errs = append(errs, err)
			continue
		}
		ordered = append(ordered, versions[i])
		versions = slices.Delete(versions, i, i+1)
	}
	for _, v := range versions {
		clog.Warningf(ctx, "sdk %s is not listed in %s; ignored", v.Name, ManifestFile)
	}
	return ordered, errors.Join(errs...)
}

// LocateDXGIs returns the dxgi headers in dir/shared sorted by version.
// "dxgi.h" is 1.1 and "dxgi1_N.h" is 1.N; other dxgi headers such as
// "dxgitype.h" are not versioned.
func LocateDXGIs(ctx context.Context, dir string) ([]DXGI, error) {
	entries, err := os.ReadDir(filepath.Join(dir, "shared"))
	if errors.Is(err, fs.ErrNotExist) {
		clog.Warningf(ctx, "no shared headers in %s", dir)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dxgis []DXGI
	for _, ent := range entries {
		if !ent.Type().IsRegular() {
			continue
		}
		major, minor, ok := parseDXGI(ent.Name())
		if !ok {
			continue
		}
		dxgis = append(dxgis, DXGI{Major: major, Minor: minor, Path: "shared/" + ent.Name()})
	}
	slices.SortFunc(dxgis, func(a, b DXGI) int {
		if c := cmp.Compare(a.Major, b.Major); c != 0 {
			return c
		}
		return cmp.Compare(a.Minor, b.Minor)
	})
	return dxgis, nil
}

func parseDXGI(name string) (major, minor int, ok bool) {
	if name == "dxgi.h" {
		return 1, 1, true
	}
	s, ok := strings.CutPrefix(name, "dxgi")
	if !ok {
		return 0, 0, false
	}
	s, ok = strings.CutSuffix(s, ".h")
	if !ok {
		return 0, 0, false
	}
	a, b, ok := strings.Cut(s, "_")
	if !ok {
		return 0, 0, false
	}
	major, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(b)
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// DefaultHeaders returns the headers to extract for a version with dxgis.
func DefaultHeaders(dxgis []DXGI) []string {
	headers := []string{"shared/dxgitype.h", "shared/dxgiformat.h"}
	for _, d := range dxgis {
		headers = append(headers, d.Path)
	}
	return append(headers,
		"um/d3dcommon.h",
		"um/d3d12shader.h",
		"um/d3dcompiler.h",
		"um/d3d12sdklayers.h",
		"um/d3d12.h",
	)
}
