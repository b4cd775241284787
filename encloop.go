package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snadrus/encloop/internal/config"
	"github.com/snadrus/encloop/internal/encloop"
	"github.com/snadrus/encloop/internal/ffmpeglib"
	"github.com/snadrus/encloop/internal/logging"
	"github.com/snadrus/encloop/internal/metrics"
	"github.com/snadrus/encloop/internal/scanner"
	"github.com/snadrus/encloop/internal/vfs"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const (
	exitOK      = 0
	exitNothing = 1 // single pass that published nothing
	exitFatal   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		printHelp()
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "encloop: %v\n", err)
		return exitFatal
	}
	if cfg.ShowVersion {
		fmt.Printf("encloop %s (commit %s, built %s)\n", version, commit, buildDate)
		return exitOK
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return exitFatal
	}

	fsys, closeFS, err := openRoots(&cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("cannot open paths")
		return exitFatal
	}
	defer closeFS()

	sigs := append([]os.Signal{os.Interrupt}, extraSignals...)
	ctx, cancel := signal.NotifyContext(context.Background(), sigs...)
	defer cancel()

	enc := ffmpeglib.New()
	if err := enc.EnsureAvailable(ctx); err != nil {
		log.Error().Err(err).Msg("encoder unavailable; run encloop --help to check dependencies")
		return exitFatal
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics listener failed")
			}
		}()
	}

	log.Info().
		Str("version", version).
		Strs("roots", cfg.Roots).
		Str("suffix", cfg.Suffix()).
		Stringer("timeout", cfg.Timeout).
		Stringer("interval", cfg.LoopInterval).
		Str("work_dir", cfg.WorkDir).
		Msg("encloop starting")

	n, err := encloop.Run(ctx, cfg, encloop.Deps{
		FS:      fsys,
		Encoder: enc,
		Prober:  enc,
		Metrics: m,
		Log:     log,
	})
	if err != nil {
		log.Error().Err(err).Int("published", n).Msg("stopped")
		return exitFatal
	}
	log.Info().Int("published", n).Msg("shutting down")
	if n == 0 && !cfg.Looping() {
		return exitNothing
	}
	return exitOK
}

// openRoots picks the filesystem backend and normalises cfg's roots and work
// dir for it. An ssh:// root is always encoded through a local work dir.
func openRoots(cfg *config.Config, log zerolog.Logger) (vfs.FS, func(), error) {
	noop := func() {}
	var fsys vfs.FS = vfs.Local{}
	closeFS := noop

	if raw, ok := cfg.RemoteRoot(); ok {
		sftpFS, remotePath, err := vfs.DialSSH(raw, log)
		if err != nil {
			return nil, noop, fmt.Errorf("ssh connect: %w", err)
		}
		fsys = sftpFS
		closeFS = func() { _ = sftpFS.Close() }
		cfg.Roots = []string{remotePath}
		if cfg.WorkDir == "" {
			cfg.WorkDir = os.TempDir()
		}
	} else {
		roots := make([]string, 0, len(cfg.Roots))
		for _, r := range cfg.Roots {
			roots = append(roots, filepath.Clean(strings.Trim(strings.TrimSpace(r), `"'`)))
		}
		abs, err := scanner.Abs(roots)
		if err != nil {
			return nil, noop, err
		}
		cfg.Roots = abs
	}

	if cfg.WorkDir != "" {
		dir, err := filepath.Abs(cfg.WorkDir)
		if err == nil {
			err = os.MkdirAll(dir, 0o755)
		}
		if err != nil {
			closeFS()
			return nil, noop, fmt.Errorf("work dir %s: %w", cfg.WorkDir, err)
		}
		cfg.WorkDir = dir
	}
	return fsys, closeFS, nil
}

func printHelp() {
	fmt.Println()
	fmt.Println("encloop " + version)
	if commit != "unknown" {
		fmt.Printf("  commit:  %s\n", commit)
	}
	if buildDate != "unknown" {
		fmt.Printf("  built:   %s\n", buildDate)
	}
	fmt.Printf("  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Println()

	fmt.Println("Encodes media files found under the given paths, one at a time,")
	fmt.Println("writing <name>.enc.mp4 next to each source.")
	fmt.Println()
	fmt.Println("EXAMPLES")
	fmt.Println("  encloop /path/to/videos")
	fmt.Println("  encloop -l 300 --watch --delete-source /srv/incoming")
	fmt.Println("  encloop --webm -t 4h ssh://username@homeserver/home/username/videos")
	fmt.Println()
	fmt.Println("EXIT STATUS")
	fmt.Println("  0  at least one file published, or a loop ended by signal")
	fmt.Println("  1  single pass found nothing to publish")
	fmt.Println("  2  fatal error")
	fmt.Println()

	fmt.Println("DEPENDENCIES")
	checkBin("ffmpeg")
	checkBin("ffprobe")
	fmt.Println()
}

func checkBin(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("  ✗ %-12s NOT FOUND\n", name)
		switch runtime.GOOS {
		case "linux":
			fmt.Printf("    → sudo apt install ffmpeg\n")
		case "darwin":
			fmt.Printf("    → brew install ffmpeg\n")
		case "windows":
			fmt.Printf("    → winget install Gyan.FFmpeg\n")
		}
		return
	}
	out, err := exec.Command(path, "-version").Output()
	if err != nil {
		fmt.Printf("  ✓ %-12s %s (could not read version)\n", name, path)
		return
	}
	first := strings.SplitN(string(out), "\n", 2)[0]
	fmt.Printf("  ✓ %-12s %s\n", name, first)
}
