package candidate

import (
	"cmp"
	"iter"
	"path/filepath"
	"slices"

	"github.com/snadrus/encloop/internal/paths"
	"github.com/snadrus/encloop/internal/scanner"
)

// Select picks at most one file to process. With two or more candidates the
// list is ordered by modification time and an edge element is never chosen:
// the second oldest is returned, or the second newest when reverse is set.
// A file still being written is most likely the newest one, so this lowers
// (but does not rule out) the odds of reading a file mid-write.
func Select(files []scanner.File, reverse bool) (scanner.File, bool) {
	switch len(files) {
	case 0:
		return scanner.File{}, false
	case 1:
		return files[0], true
	}
	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b scanner.File) int {
		if c := a.ModTime.Compare(b.ModTime); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	if reverse {
		return sorted[len(sorted)-2], true
	}
	return sorted[1], true
}

// Candidates returns the eligible, non-hidden files of a scan, using the scan
// itself as the existence oracle. Files named directly as roots had no
// directory walked around them, so they are checked against fallback instead.
func Candidates(files []scanner.File, f *Filter, fallback ExistsFunc) []scanner.File {
	observed := NewObserved(files)
	var out []scanner.File
	for _, file := range files {
		if paths.IsHidden(filepath.Base(file.Path)) {
			continue
		}
		exists := observed.Exists
		if file.Root {
			exists = func(p string) bool { return observed.Exists(p) || fallback(p) }
		}
		if f.Eligible(file.Path, exists) {
			out = append(out, file)
		}
	}
	return out
}

// FirstEligible pulls from a lazy scan until one eligible file turns up. No
// ordering is applied; the walk stops as soon as a match is found.
func FirstEligible(seq iter.Seq2[scanner.File, error], f *Filter, exists ExistsFunc) (scanner.File, bool, error) {
	for file, err := range seq {
		if err != nil {
			return scanner.File{}, false, err
		}
		if f.Eligible(file.Path, exists) {
			return file, true, nil
		}
	}
	return scanner.File{}, false, nil
}
