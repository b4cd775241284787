package candidate

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/snadrus/encloop/internal/paths"
	"github.com/snadrus/encloop/internal/scanner"
	"github.com/snadrus/encloop/internal/vfs"
)

// Rejection names the predicate that excluded a path. The empty value means
// the path is eligible.
type Rejection string

const (
	Eligible         Rejection = ""
	RejectKnownBad   Rejection = "known-bad"
	RejectExtension  Rejection = "extension"
	RejectExcluded   Rejection = "exclude-pattern"
	RejectEncoded    Rejection = "target-exists"
	RejectInProgress Rejection = "in-progress"
	RejectFailed     Rejection = "failed"
)

// ExistsFunc reports whether a path exists. Filters only ever ask about
// derived target and marker paths, never read them.
type ExistsFunc func(path string) bool

// Filter decides whether a scanned path may be processed.
type Filter struct {
	Extensions map[string]bool // lowercase, no leading dot
	Exclude    *regexp.Regexp  // nil disables the pattern check
	Suffix     string          // full suffix including the output extension
	KnownBad   *KnownBad
}

// NewFilter builds a filter from a list of extensions. Entries are matched
// case-insensitively, with or without a leading dot.
func NewFilter(extensions []string, exclude *regexp.Regexp, suffix string, knownBad *KnownBad) *Filter {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e)), ".")
		if e != "" {
			exts[e] = true
		}
	}
	return &Filter{Extensions: exts, Exclude: exclude, Suffix: suffix, KnownBad: knownBad}
}

// Check runs the predicates in order and returns the first that fails.
func (f *Filter) Check(path string, exists ExistsFunc) Rejection {
	if f.KnownBad.Has(path) {
		return RejectKnownBad
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" || !f.Extensions[ext] {
		return RejectExtension
	}
	if f.Exclude != nil && f.Exclude.MatchString(path) {
		return RejectExcluded
	}
	target := paths.TargetPath(path, f.Suffix)
	if exists(target) {
		return RejectEncoded
	}
	if exists(paths.WorkInProgressPath(target)) {
		return RejectInProgress
	}
	if exists(paths.FailedPath(target)) {
		return RejectFailed
	}
	return Eligible
}

func (f *Filter) Eligible(path string, exists ExistsFunc) bool {
	return f.Check(path, exists) == Eligible
}

// Observed is the set of paths seen by one scan. The scan that builds it must
// include hidden files, since in-progress markers are dot-files.
type Observed map[string]struct{}

func NewObserved(files []scanner.File) Observed {
	o := make(Observed, len(files))
	for _, f := range files {
		o[f.Path] = struct{}{}
	}
	return o
}

func (o Observed) Exists(path string) bool {
	_, ok := o[path]
	return ok
}

// StatExists checks the filesystem directly, for lazy scans where no
// complete set of observed paths is available.
func StatExists(fsys vfs.FS) ExistsFunc {
	return func(path string) bool {
		return vfs.Exists(fsys, path)
	}
}
