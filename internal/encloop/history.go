package encloop

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/snadrus/encloop/internal/attempt"
	"github.com/snadrus/encloop/internal/paths"
	"github.com/snadrus/encloop/internal/vfs"
)

// history appends one line per published file to a tab-separated log:
// timestamp, elapsed seconds, source size, target size, source, target.
type history struct {
	fs   vfs.FS
	path string
	log  zerolog.Logger
}

// historyPath places the log in the first root, or next to it when the root
// is a single file.
func historyPath(fsys vfs.FS, roots []string) string {
	if len(roots) == 0 {
		return ""
	}
	dir := roots[0]
	isFile := false
	if info, err := fsys.Stat(dir); err == nil && !info.IsDir() {
		isFile = true
	}
	// Remote paths are always slash-separated, whatever the local OS.
	if fsys.IsRemote() {
		if isFile {
			dir = path.Dir(dir)
		}
		return path.Join(dir, paths.HistoryFile)
	}
	if isFile {
		dir = filepath.Dir(dir)
	}
	return filepath.Join(dir, paths.HistoryFile)
}

func (h *history) record(res attempt.Result, now time.Time) {
	if h == nil || h.path == "" {
		return
	}
	f, err := h.fs.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		h.log.Warn().Err(err).Str("path", h.path).Msg("could not open history log")
		return
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s\t%.0f\t%d\t%d\t%s\t%s\n",
		now.Format(time.RFC3339), res.Elapsed.Seconds(),
		res.SourceSize, res.TargetSize, res.Source, res.Target)
	if err != nil {
		h.log.Warn().Err(err).Str("path", h.path).Msg("could not write history log")
	}
}
