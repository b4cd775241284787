package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snadrus/encloop/internal/ffmpeglib"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"."}, cfg.Roots)
	assert.Equal(t, DefaultExtensions, cfg.Extensions)
	assert.Equal(t, `\.enc`, cfg.ExcludePattern)
	assert.Equal(t, ".enc.mp4", cfg.Suffix())
	assert.False(t, cfg.Looping())
	assert.Equal(t, Timeout{}, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFlagsInterleaved(t *testing.T) {
	args := []string{
		"/a", "-e", "MKV,.avi", "/b",
		"--loop-interval", "30", "-r", "--timeout=2h",
		"--webm", "--debug", "/c",
	}
	cfg, err := Load(args, io.Discard)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"/a", "/b", "/c"}, cfg.Roots); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"mkv", "avi"}, cfg.Extensions)
	assert.Equal(t, 30*time.Second, cfg.LoopInterval)
	assert.True(t, cfg.ReverseOrder)
	assert.Equal(t, 2*time.Hour, cfg.Timeout.Duration)
	assert.Equal(t, ffmpeglib.FormatWebM, cfg.Format())
	assert.Equal(t, ".enc.webm", cfg.Suffix())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadHelp(t *testing.T) {
	_, err := Load([]string{"--help"}, io.Discard)
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestLoadUnknownFlag(t *testing.T) {
	_, err := Load([]string{"--bogus"}, io.Discard)
	assert.Error(t, err)
}

func TestLoadFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
roots: [/media/in]
encoded_suffix: .small
loop_interval: 5m
timeout: auto
hq: true
`), 0o644))

	cfg, err := Load([]string{"--config", path, "-s", ".x"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/in"}, cfg.Roots)
	assert.Equal(t, ".x", cfg.EncodedSuffix, "flags override the file")
	assert.Equal(t, 5*time.Minute, cfg.LoopInterval)
	assert.True(t, cfg.Timeout.Auto)
	assert.True(t, cfg.HighQuality)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte("loop_intervall: 5m\n"), 0o644))

	_, err := Load([]string{"--config=" + path}, io.Discard)
	assert.Error(t, err)
}

func TestConfigFlag(t *testing.T) {
	assert.Equal(t, "a.yaml", configFlag([]string{"-x", "y", "--config", "a.yaml"}))
	assert.Equal(t, "b.yaml", configFlag([]string{"-config=b.yaml"}))
	assert.Equal(t, "", configFlag([]string{"--", "--config", "c.yaml"}))
	assert.Equal(t, "", configFlag([]string{"config"}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no roots", func(c *Config) { c.Roots = nil }},
		{"ssh mixed with local", func(c *Config) { c.Roots = []string{"ssh://h/x", "/y"} }},
		{"empty suffix", func(c *Config) { c.EncodedSuffix = " " }},
		{"suffix with separator", func(c *Config) { c.EncodedSuffix = "/x" }},
		{"bad regexp", func(c *Config) { c.ExcludePattern = "(" }},
		{"negative interval", func(c *Config) { c.LoopInterval = -time.Second }},
		{"h265 webm", func(c *Config) { c.H265, c.WebM = true, true }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"no extensions", func(c *Config) { c.Extensions = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Roots = []string{"/x"}
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Roots = []string{"ssh://user@host/media"}
	assert.NoError(t, cfg.Validate())
	root, ok := cfg.RemoteRoot()
	assert.True(t, ok)
	assert.Equal(t, "ssh://user@host/media", root)
}

func TestExcludeEmpty(t *testing.T) {
	cfg := Default()
	cfg.ExcludePattern = ""
	re, err := cfg.Exclude()
	require.NoError(t, err)
	assert.Nil(t, re)
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		in   string
		want Timeout
	}{
		{"500ms", Timeout{Duration: 500 * time.Millisecond}},
		{"1.5s", Timeout{Duration: 1500 * time.Millisecond}},
		{"60", Timeout{Duration: time.Minute}},
		{"30m", Timeout{Duration: 30 * time.Minute}},
		{"1.5h", Timeout{Duration: 90 * time.Minute}},
		{"2d", Timeout{Duration: 48 * time.Hour}},
		{"5M", Timeout{Duration: 5 * time.Minute}},
		{" 5 m ", Timeout{Duration: 5 * time.Minute}},
		{"", Timeout{}},
		{"   ", Timeout{}},
		{"auto", Timeout{Auto: true}},
		{"AUTO", Timeout{Auto: true}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeout(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"abc", "5x", "5.5.5m", "-5m", "0s", "0"} {
		_, err := ParseTimeout(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatTimeout(t *testing.T) {
	tests := map[time.Duration]string{
		0:                       "no timeout",
		-time.Second:            "no timeout",
		500 * time.Millisecond:  "500.0ms",
		1500 * time.Millisecond: "1.5s",
		45 * time.Second:        "45.0s",
		90 * time.Second:        "1.5m",
		150 * time.Minute:       "2.5h",
		60 * time.Hour:          "2.5d",
	}
	for d, want := range tests {
		assert.Equal(t, want, FormatTimeout(d), d.String())
	}
	assert.Equal(t, "auto", Timeout{Auto: true}.String())
}
