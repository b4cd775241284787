package encloop

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snadrus/encloop/internal/config"
	"github.com/snadrus/encloop/internal/ffmpeglib"
	"github.com/snadrus/encloop/internal/vfs"
)

func TestEncodeTimeoutForSize(t *testing.T) {
	const gb = 1 << 30
	// 1 baseline thread, 1 GB: 0.75h * 3 = 2h15m.
	assert.Equal(t, 135*time.Minute, encodeTimeoutForSize(gb, 1, baselineGHz))
	// Twice the threads halves it.
	assert.Equal(t, 135*time.Minute/2, encodeTimeoutForSize(gb, 2, baselineGHz))
	// Clamped at both ends.
	assert.Equal(t, minAutoTimeout, encodeTimeoutForSize(1, 64, 5))
	assert.Equal(t, maxAutoTimeout, encodeTimeoutForSize(500*gb, 1, 1))
	// Unknown CPU data falls back to the baseline.
	assert.Equal(t, encodeTimeoutForSize(gb, 1, baselineGHz), encodeTimeoutForSize(gb, 0, 0))
}

func TestEncodeTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), encodeTimeout(config.Timeout{}, 1<<40, false))
	assert.Equal(t, time.Hour, encodeTimeout(config.Timeout{Duration: time.Hour}, 1<<40, false))
	assert.Equal(t, minAutoTimeout, encodeTimeout(config.Timeout{Auto: true}, 1<<40, true))
	assert.GreaterOrEqual(t, encodeTimeout(config.Timeout{Auto: true}, 1<<30, false), minAutoTimeout)
}

func TestAverageMHz(t *testing.T) {
	info := strings.Join([]string{
		"processor\t: 0",
		"cpu MHz\t\t: 2000.000",
		"processor\t: 1",
		"cpu MHz\t\t: 3000.000",
		"cpu MHz\t\t: garbage",
	}, "\n")
	mhz, ok := averageMHz(info)
	require.True(t, ok)
	assert.InDelta(t, 2500, mhz, 0.001)

	_, ok = averageMHz("processor\t: 0\n")
	assert.False(t, ok)
}

func TestProgressLoggerThrottles(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.InfoLevel)
	clock := time.Unix(0, 0)
	p := newProgressLogger(context.Background(), 100*time.Second, log)
	p.now = func() time.Time { return clock }

	stats := ffmpeglib.ProgressLine{Raw: "frame=100 fps=50 size=2048kB time=00:00:50.00 speed=2x"}
	p.line(stats)
	clock = clock.Add(time.Second)
	p.line(stats) // throttled
	p.line(ffmpeglib.ProgressLine{Raw: "Stream mapping:"})
	clock = clock.Add(progressInterval)
	p.line(stats)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "50.0%", entry["progress"])
	assert.Equal(t, "25s", entry["eta"])
	assert.Equal(t, "2.0 MiB", entry["written"])
	assert.Equal(t, "50s", entry["position"])
}

func TestProgressLoggerUnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressLogger(context.Background(), 0, zerolog.New(&buf))
	p.line(ffmpeglib.ProgressLine{Raw: "frame=1 time=00:00:01.00 speed=1x"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "progress")
	assert.NotContains(t, entry, "eta")
}

func TestHistoryPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clip.mov")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	fsys := vfs.Local{}
	assert.Equal(t, filepath.Join(dir, ".encloop.log"), historyPath(fsys, []string{dir, "/elsewhere"}))
	assert.Equal(t, filepath.Join(dir, ".encloop.log"), historyPath(fsys, []string{file}))
	assert.Equal(t, "", historyPath(fsys, nil))
}

// remoteFS answers Stat from a fixed table of slash-separated paths.
type remoteFS struct {
	vfs.Local
	dirs map[string]bool // path -> is directory
}

func (r remoteFS) IsRemote() bool { return true }

func (r remoteFS) Stat(p string) (fs.FileInfo, error) {
	dir, ok := r.dirs[p]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return remoteInfo{name: p, dir: dir}, nil
}

type remoteInfo struct {
	name string
	dir  bool
}

func (i remoteInfo) Name() string       { return i.name }
func (i remoteInfo) Size() int64        { return 0 }
func (i remoteInfo) Mode() fs.FileMode  { return 0 }
func (i remoteInfo) ModTime() time.Time { return time.Time{} }
func (i remoteInfo) IsDir() bool        { return i.dir }
func (i remoteInfo) Sys() any           { return nil }

func TestHistoryPathRemoteUsesSlashes(t *testing.T) {
	fsys := remoteFS{dirs: map[string]bool{
		"/srv/videos":          true,
		"/srv/videos/clip.mov": false,
	}}
	assert.Equal(t, "/srv/videos/.encloop.log", historyPath(fsys, []string{"/srv/videos"}))
	assert.Equal(t, "/srv/videos/.encloop.log", historyPath(fsys, []string{"/srv/videos/clip.mov"}))
}

func TestWatcherSignalsOnNewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".hidden"), 0o755))
	w, err := newWatcher([]string{dir}, 10*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	// Hidden names never wake the loop.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".x.enc.mp4.tmp"), nil, 0o644))
	select {
	case <-w.C:
		t.Fatal("woken by a hidden file")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mov"), []byte("x"), 0o644))
	select {
	case <-w.C:
	case <-time.After(5 * time.Second):
		t.Fatal("no wake-up after a new file")
	}
}
