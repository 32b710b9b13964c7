// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package dataimport

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"
)

const zipSuffix = ".zip"

// Source is one unit of import: a gzip dump file, or one entry of a zip archive.
type Source struct {
	// Name identifies the source in events and logs: the file name, or
	// archive.zip/entry.json for zip entries.
	Name       string
	Collection string

	// Path is the file on disk; Entry is the zip entry name, empty for plain files.
	Path  string
	Entry string

	// err is set when the archive could not be expanded. Opening the
	// source reports it as a file-level error.
	err error
}

// ListArchives returns the names of the regular files in dir whose name ends
// with one of suffixes. Names keep directory listing order unless sorted is set.
func ListArchives(dir string, suffixes []string, sorted bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open data directory: %w", err)
	}
	defer f.Close()

	// File.ReadDir returns entries in directory order; os.ReadDir would sort them.
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if matchSuffix(e.Name(), suffixes) != "" {
			names = append(names, e.Name())
		}
	}

	if sorted {
		slices.Sort(names)
	}
	return names, nil
}

// matchSuffix returns the first suffix name ends with, leaving a non-empty stem.
func matchSuffix(name string, suffixes []string) string {
	for _, s := range suffixes {
		if s != "" && len(name) > len(s) && strings.HasSuffix(name, s) {
			return s
		}
	}
	return ""
}

// CollectionName derives the collection from a file or entry name by
// removing the suffix and then the optional prefix.
func CollectionName(name, suffix, prefix string) string {
	c := strings.TrimSuffix(name, suffix)
	if prefix != "" && len(c) > len(prefix) {
		c = strings.TrimPrefix(c, prefix)
	}
	return c
}

// Sources expands archive names into import sources. A gzip file is one
// source; a zip archive yields one source per *.json entry in archive order.
// A zip that cannot be read still yields one source carrying the error, so
// it fails on its own turn without stopping the run.
func Sources(dir string, names, suffixes []string, prefix string) []Source {
	out := make([]Source, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		suffix := matchSuffix(name, suffixes)

		if suffix != zipSuffix {
			out = append(out, Source{
				Name:       name,
				Collection: CollectionName(name, suffix, prefix),
				Path:       p,
			})
			continue
		}

		entries, err := zipEntries(p)
		if err != nil {
			collection := CollectionName(name, suffix, prefix)
			out = append(out, Source{
				Name:       name,
				Collection: collection,
				Path:       p,
				err: &FileError{
					File:       name,
					Collection: collection,
					Record:     -1,
					Err:        fmt.Errorf("%w: %w", ErrDecode, err),
				},
			})
			continue
		}
		for _, entry := range entries {
			out = append(out, Source{
				Name:       name + "/" + entry,
				Collection: CollectionName(path.Base(entry), ".json", prefix),
				Path:       p,
				Entry:      entry,
			})
		}
	}
	return out
}

// zipEntries lists the JSON entries of a zip archive.
func zipEntries(p string) ([]string, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var entries []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		if strings.HasPrefix(base, ".") || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if len(base) > len(".json") && strings.HasSuffix(base, ".json") {
			entries = append(entries, f.Name)
		}
	}
	return entries, nil
}
