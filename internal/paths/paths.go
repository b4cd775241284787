package paths

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	// MaxNameLen caps derived basenames, leaving room under the common
	// 255-byte filesystem limit.
	MaxNameLen = 240
	// WorkInProgressExt ends the hidden staging file an attempt writes to.
	WorkInProgressExt = ".tmp"
	// FailedExt marks a tombstone left by an attempt that did not publish.
	FailedExt = ".failed"
	// HiddenPrefix starts names that scans and watches treat as hidden.
	HiddenPrefix = "."
	// HistoryFile is the per-root log of published files.
	HistoryFile = ".encloop.log"
)

// TargetPath replaces the extension of sourcePath with suffix. The suffix may
// carry its own extension (".enc.mp4"). The basename is capped at MaxNameLen.
func TargetPath(sourcePath, suffix string) string {
	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	if ext == base {
		ext = ""
	}
	stem := base[:len(base)-len(ext)]
	return filepath.Join(dir, truncate(stem+suffix))
}

// WorkInProgressPath is the hidden staging name an attempt writes to before
// the result is renamed to targetPath.
func WorkInProgressPath(targetPath string) string {
	return filepath.Join(filepath.Dir(targetPath), HiddenPrefix+truncate(filepath.Base(targetPath))+WorkInProgressExt)
}

// FailedPath is the tombstone that permanently excludes the source of targetPath.
func FailedPath(targetPath string) string {
	return filepath.Join(filepath.Dir(targetPath), truncate(filepath.Base(targetPath))+FailedExt)
}

// IsHidden reports whether basename is a dot-file.
func IsHidden(basename string) bool {
	return strings.HasPrefix(basename, HiddenPrefix)
}

// IsMarker reports whether basename is a failed tombstone or an in-progress
// staging file.
func IsMarker(basename string) bool {
	if strings.HasSuffix(basename, FailedExt) {
		return true
	}
	return IsHidden(basename) && strings.HasSuffix(basename, WorkInProgressExt)
}

// truncate cuts name to MaxNameLen bytes without splitting a rune.
func truncate(name string) string {
	if len(name) <= MaxNameLen {
		return name
	}
	cut := MaxNameLen
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
