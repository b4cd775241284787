// Package config holds encloop's runtime settings. Values come from three
// layers applied in order: built-in defaults, an optional YAML file, then
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snadrus/encloop/internal/ffmpeglib"
	"github.com/snadrus/encloop/internal/vfs"
)

// DefaultExtensions are the source containers picked up when no list is given.
var DefaultExtensions = []string{
	"f4v", "mov", "flv", "swf", "rm", "avi", "mkv", "mp4",
	"m4v", "wmv", "mpeg", "asf", "divx", "mpg", "ts",
}

type Config struct {
	Roots          []string      `yaml:"roots"`
	Extensions     []string      `yaml:"extensions"`
	ExcludePattern string        `yaml:"exclude_pattern"`
	EncodedSuffix  string        `yaml:"encoded_suffix"`
	LoopInterval   time.Duration `yaml:"loop_interval"`
	DeleteSource   bool          `yaml:"delete_source"`
	ReverseOrder   bool          `yaml:"reverse_order"`
	WorkDir        string        `yaml:"work_dir"`
	Timeout        Timeout       `yaml:"timeout"`

	// Encoder presets.
	Preview     bool `yaml:"preview"`
	WebM        bool `yaml:"webm"`
	HighQuality bool `yaml:"hq"`
	H265        bool `yaml:"h265"`

	Once           bool `yaml:"once"`
	Watch          bool `yaml:"watch"`
	FirstMatch     bool `yaml:"first_match"`
	SkipValidation bool `yaml:"no_validate"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`

	ConfigFile  string `yaml:"-"`
	ShowVersion bool   `yaml:"-"`
}

func Default() Config {
	return Config{
		Extensions:     append([]string(nil), DefaultExtensions...),
		ExcludePattern: `\.enc`,
		EncodedSuffix:  ".enc",
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// LoadFile overlays the YAML document at path onto cfg. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ConfigFile = path
	return nil
}

// Format is the output container selected by the presets.
func (c Config) Format() ffmpeglib.Format {
	if c.WebM {
		return ffmpeglib.FormatWebM
	}
	return ffmpeglib.FormatMP4
}

// Suffix is the full target suffix: the configured marker plus the container
// extension, e.g. ".enc.mp4".
func (c Config) Suffix() string {
	return c.EncodedSuffix + c.EncodeOptions().Extension()
}

// EncodeOptions returns the preset part of the encoder options. The per-file
// timeout and progress callback are filled in by the caller.
func (c Config) EncodeOptions() ffmpeglib.Options {
	return ffmpeglib.Options{
		Preview:     c.Preview,
		HighQuality: c.HighQuality,
		H265:        c.H265,
		Format:      c.Format(),
	}
}

// Exclude compiles ExcludePattern. An empty pattern excludes nothing.
func (c Config) Exclude() (*regexp.Regexp, error) {
	if c.ExcludePattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(c.ExcludePattern)
	if err != nil {
		return nil, fmt.Errorf("exclude pattern: %w", err)
	}
	return re, nil
}

// Looping reports whether the run keeps rescanning after running dry.
func (c Config) Looping() bool {
	return c.LoopInterval > 0
}

// RemoteRoot returns the ssh:// root, if any.
func (c Config) RemoteRoot() (string, bool) {
	for _, r := range c.Roots {
		if vfs.IsSSHURL(r) {
			return r, true
		}
	}
	return "", false
}

func (c Config) Validate() error {
	var errs []error
	if len(c.Roots) == 0 {
		errs = append(errs, errors.New("no paths to scan"))
	}
	if _, ok := c.RemoteRoot(); ok && len(c.Roots) > 1 {
		errs = append(errs, errors.New("an ssh:// path cannot be combined with other paths"))
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, errors.New("extension list is empty"))
	}
	if strings.TrimSpace(c.EncodedSuffix) == "" {
		errs = append(errs, errors.New("encoded suffix must not be empty"))
	}
	if strings.ContainsAny(c.EncodedSuffix, `/\`) {
		errs = append(errs, fmt.Errorf("encoded suffix %q must not contain a path separator", c.EncodedSuffix))
	}
	if _, err := c.Exclude(); err != nil {
		errs = append(errs, err)
	}
	if c.LoopInterval < 0 {
		errs = append(errs, fmt.Errorf("loop interval %s is negative", c.LoopInterval))
	}
	if c.WebM && c.H265 {
		errs = append(errs, errors.New("--h265 cannot be combined with --webm"))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (want console or json)", c.LogFormat))
	}
	return errors.Join(errs...)
}
