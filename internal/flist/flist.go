// Package flist expands the -r argument (spec §6) into an ordered sequence
// of input file paths. It is grounded on original_source/nfanon.c's
// SetupInputFileSequence/flist_t handling: a single regular file, or every
// regular file in a directory sorted lexically by name.
package flist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Expand resolves path into the ordered list of files to process.
func Expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("flist: %s is not a file or directory: %w", path, err)
	}

	if info.Mode().IsRegular() {
		return []string{path}, nil
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("flist: %s is neither a regular file nor a directory", path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("flist: reading directory %s: %w", path, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	files := make([]string, len(names))
	for i, name := range names {
		files[i] = filepath.Join(path, name)
	}
	return files, nil
}
