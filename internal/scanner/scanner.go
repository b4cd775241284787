package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/snadrus/encloop/internal/paths"
	"github.com/snadrus/encloop/internal/vfs"
)

// File is a regular file found under one of the scan roots.
type File struct {
	Path    string
	ModTime time.Time
	Size    int64
	// Root is set when the file was itself named as a scan root. Its
	// siblings (targets and markers included) were not scanned.
	Root bool
}

// Options controls what a walk yields.
type Options struct {
	// IncludeHiddenFiles yields dot-files (in-progress markers among them).
	// Hidden directories are pruned regardless.
	IncludeHiddenFiles bool
}

// RootError reports a scan root that could not be stat'ed.
type RootError struct {
	Root string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("scan root %s: %v", e.Root, e.Err)
}

func (e *RootError) Unwrap() error { return e.Err }

// Scanner enumerates files under a set of roots.
type Scanner struct {
	FS    vfs.FS
	Roots []string
	Log   zerolog.Logger
}

// Scan materializes every file under the roots.
func (s *Scanner) Scan(opts Options) ([]File, error) {
	var files []File
	for f, err := range s.Walk(opts) {
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Walk lazily yields files root by root. Breaking out of the range loop stops
// the underlying directory walk. A missing root is yielded as an error and
// ends the sequence.
func (s *Scanner) Walk(opts Options) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		for _, root := range s.Roots {
			if !s.walkRoot(root, opts, yield) {
				return
			}
		}
	}
}

func (s *Scanner) walkRoot(root string, opts Options, yield func(File, error) bool) bool {
	info, err := s.FS.Stat(root)
	if err != nil {
		yield(File{}, &RootError{Root: root, Err: err})
		return false
	}
	if !info.IsDir() {
		return yield(File{Path: root, ModTime: info.ModTime(), Size: info.Size(), Root: true}, nil)
	}

	stopped := false
	err = s.FS.Walk(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.Log.Warn().Err(err).Str("path", path).Msg("scan: skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		hidden := paths.IsHidden(d.Name())
		if d.IsDir() {
			if hidden {
				return fs.SkipDir
			}
			return nil
		}
		if hidden && !opts.IncludeHiddenFiles {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			// Removed between readdir and stat.
			return nil
		}
		if !yield(File{Path: path, ModTime: fi.ModTime(), Size: fi.Size()}, nil) {
			stopped = true
			return fs.SkipAll
		}
		return nil
	})
	if stopped {
		return false
	}
	if err != nil && !errors.Is(err, fs.SkipAll) {
		yield(File{}, &RootError{Root: root, Err: err})
		return false
	}
	return true
}

// Abs resolves local roots to absolute paths so that file identity does not
// depend on the working directory.
func Abs(roots []string) ([]string, error) {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		a, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", r, err)
		}
		out = append(out, a)
	}
	return out, nil
}
