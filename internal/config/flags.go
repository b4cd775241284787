package config

// Flags accept both -x and --x spellings (stdlib flag treats them alike).
// Short aliases are registered as separate names bound to the same field.
// Positional paths may be mixed freely with flags.

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Load builds a Config from defaults, the YAML file named by --config (if
// any), and args. It returns flag.ErrHelp when help was requested.
func Load(args []string, output io.Writer) (Config, error) {
	cfg := Default()
	if path := configFlag(args); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	fs := flag.NewFlagSet("encloop", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { PrintUsage(fs) }
	defineFlags(fs, &cfg)

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return cfg, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	if len(positional) > 0 {
		cfg.Roots = positional
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}
	return cfg, nil
}

// configFlag finds the --config value ahead of the real parse, so the file
// can be applied before flags override it.
func configFlag(args []string) string {
	for i, a := range args {
		if a == "--" {
			return ""
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func defineFlags(fs *flag.FlagSet, cfg *Config) {
	exts := &listValue{&cfg.Extensions}
	fs.Var(exts, "extensions", "Comma-separated source extensions")
	fs.Var(exts, "e", "Same as --extensions")
	fs.StringVar(&cfg.ExcludePattern, "exclude-pattern", cfg.ExcludePattern, "Skip paths matching this regular expression")
	fs.StringVar(&cfg.ExcludePattern, "x", cfg.ExcludePattern, "Same as --exclude-pattern")
	fs.StringVar(&cfg.EncodedSuffix, "encoded-suffix", cfg.EncodedSuffix, "Marker inserted before the output extension")
	fs.StringVar(&cfg.EncodedSuffix, "s", cfg.EncodedSuffix, "Same as --encoded-suffix")

	interval := &secondsValue{&cfg.LoopInterval}
	fs.Var(interval, "loop-interval", "Seconds to wait before rescanning when idle (0 = stop when idle)")
	fs.Var(interval, "l", "Same as --loop-interval")
	fs.BoolVar(&cfg.DeleteSource, "delete-source", cfg.DeleteSource, "Delete each source after its output is published")
	fs.BoolVar(&cfg.ReverseOrder, "reverse-order", cfg.ReverseOrder, "Prefer newer files")
	fs.BoolVar(&cfg.ReverseOrder, "r", cfg.ReverseOrder, "Same as --reverse-order")
	fs.StringVar(&cfg.WorkDir, "work-dir", cfg.WorkDir, "Encode in this local directory, then move the result back")
	fs.StringVar(&cfg.WorkDir, "d", cfg.WorkDir, "Same as --work-dir")
	fs.Var(&cfg.Timeout, "timeout", "Per-file limit, e.g. 4h, 30m, 90 (seconds), or auto")
	fs.Var(&cfg.Timeout, "t", "Same as --timeout")

	fs.BoolVar(&cfg.Preview, "preview", cfg.Preview, "Encode only the first 10 seconds")
	fs.BoolVar(&cfg.Preview, "p", cfg.Preview, "Same as --preview")
	fs.BoolVar(&cfg.WebM, "webm", cfg.WebM, "Write WebM (VP9/Opus) instead of MP4")
	fs.BoolVar(&cfg.HighQuality, "hq", cfg.HighQuality, "Higher quality preset")
	fs.BoolVar(&cfg.H265, "h265", cfg.H265, "Use H.265 instead of H.264")

	fs.BoolVar(&cfg.Once, "once", cfg.Once, "Stop after the first successful encode")
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Wake early from the loop interval when files change")
	fs.BoolVar(&cfg.FirstMatch, "first-match", cfg.FirstMatch, "Take the first eligible file found instead of sorting by age")
	fs.BoolVar(&cfg.SkipValidation, "no-validate", cfg.SkipValidation, "Skip the output duration check")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file")
	fs.Var(&debugValue{&cfg.LogLevel}, "debug", "Debug logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console | json")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")
}

// PrintUsage writes the flag summary.
func PrintUsage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "USAGE")
	fmt.Fprintln(w, "  encloop [flags] [path ...]")
	fmt.Fprintln(w, "  encloop [flags] ssh://user@host/path")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "FLAGS")
	fs.PrintDefaults()
}

// listValue replaces a slice with a comma-separated list.
type listValue struct{ p *[]string }

func (v *listValue) String() string {
	if v.p == nil {
		return ""
	}
	return strings.Join(*v.p, ",")
}

func (v *listValue) Set(s string) error {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(item), "."))
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fmt.Errorf("empty list %q", s)
	}
	*v.p = out
	return nil
}

// secondsValue reads a plain number of seconds, or a Go duration string.
type secondsValue struct{ p *time.Duration }

func (v *secondsValue) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatFloat(v.p.Seconds(), 'f', -1, 64)
}

func (v *secondsValue) Set(s string) error {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*v.p = time.Duration(n * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("want seconds or a duration like 5m: %q", s)
	}
	*v.p = d
	return nil
}

// debugValue is a boolean flag that lowers the log level.
type debugValue struct{ level *string }

func (v *debugValue) IsBoolFlag() bool { return true }

func (v *debugValue) String() string {
	if v.level == nil {
		return "false"
	}
	return strconv.FormatBool(*v.level == "debug")
}

func (v *debugValue) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if on {
		*v.level = "debug"
	}
	return nil
}
