package attempt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/snadrus/encloop/internal/vfs"
)

// claim atomically creates the empty in-progress marker. If the marker is
// already there another run owns it (or crashed holding it), and the attempt
// must not proceed.
//
// Unlike a lock, a claim is never broken for being stale: an orphaned marker
// keeps its source out of selection until an operator removes it.
func claim(fsys vfs.FS, wipPath string) error {
	f, err := fsys.OpenFile(wipPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) || vfs.Exists(fsys, wipPath) {
			return &PreconditionError{Path: wipPath, Reason: "already in progress"}
		}
		return fmt.Errorf("claim %s: %w", wipPath, err)
	}
	return f.Close()
}

// release removes a claim that was never used, e.g. when the run was
// interrupted before the encoder produced anything worth keeping.
func release(fsys vfs.FS, wipPath string) error {
	if err := fsys.Remove(wipPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release %s: %w", wipPath, err)
	}
	return nil
}
