package paths

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nameMax is the common filesystem limit on a single path component.
const nameMax = 255

func TestTargetPath(t *testing.T) {
	tests := []struct {
		name   string
		source string
		suffix string
		want   string
	}{
		{"replaces extension", "/media/clip.mov", ".enc.mp4", "/media/clip.enc.mp4"},
		{"keeps directory", "/media/a/b/show.mkv", ".enc.mp4", "/media/a/b/show.enc.mp4"},
		{"no extension", "/media/raw", ".enc.mp4", "/media/raw.enc.mp4"},
		{"only last extension", "/media/x.part1.avi", ".enc.webm", "/media/x.part1.enc.webm"},
		{"hidden-looking stem", "/media/.clip", ".enc.mp4", "/media/.clip.enc.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetPath(tt.source, tt.suffix))
		})
	}
}

func TestMarkerPaths(t *testing.T) {
	target := TargetPath("/media/clip.mov", ".enc.mp4")
	assert.Equal(t, "/media/.clip.enc.mp4.tmp", WorkInProgressPath(target))
	assert.Equal(t, "/media/clip.enc.mp4.failed", FailedPath(target))
}

func TestDerivationIsDeterministic(t *testing.T) {
	src := "/media/Some Movie (1999).mkv"
	t1 := TargetPath(src, ".enc.mp4")
	t2 := TargetPath(src, ".enc.mp4")
	require.Equal(t, t1, t2)
	assert.Equal(t, WorkInProgressPath(t1), WorkInProgressPath(t2))
	assert.Equal(t, FailedPath(t1), FailedPath(t2))
}

func TestLongNamesAreCapped(t *testing.T) {
	long := strings.Repeat("x", 1000)
	src := filepath.Join("/media", long+".mov")

	target := TargetPath(src, ".enc.mp4")
	assert.Equal(t, "/media", filepath.Dir(target))
	assert.Len(t, filepath.Base(target), MaxNameLen)

	for _, p := range []string{WorkInProgressPath(target), FailedPath(target)} {
		base := filepath.Base(p)
		assert.LessOrEqual(t, len(base), nameMax, p)
		assert.Equal(t, "/media", filepath.Dir(p))
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// 3-byte runes straddle the cap at 240.
	long := strings.Repeat("é", 10) + strings.Repeat("日", 100)
	target := TargetPath("/m/"+long+".mov", ".enc.mp4")
	base := filepath.Base(target)
	assert.LessOrEqual(t, len(base), MaxNameLen)
	assert.True(t, strings.HasPrefix(long, base), "truncated name must be a prefix")
	assert.NotContains(t, base, "�")
}

func TestIsMarker(t *testing.T) {
	assert.True(t, IsMarker(".clip.enc.mp4.tmp"))
	assert.True(t, IsMarker("clip.enc.mp4.failed"))
	assert.False(t, IsMarker("clip.enc.mp4"))
	assert.False(t, IsMarker("notes.tmp"))
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden(".clip.enc.mp4.tmp"))
	assert.True(t, IsHidden(HistoryFile))
	assert.False(t, IsHidden("clip.mov"))
}
