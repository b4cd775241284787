// Package encloop drives the scan, select and encode cycle.
package encloop

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/snadrus/encloop/internal/attempt"
	"github.com/snadrus/encloop/internal/candidate"
	"github.com/snadrus/encloop/internal/config"
	"github.com/snadrus/encloop/internal/ffmpeglib"
	"github.com/snadrus/encloop/internal/metrics"
	"github.com/snadrus/encloop/internal/scanner"
	"github.com/snadrus/encloop/internal/validator"
	"github.com/snadrus/encloop/internal/vfs"
)

const progressInterval = 30 * time.Second

// watchSettle is how long the tree must stay quiet before a watch event
// wakes the loop.
var watchSettle = 5 * time.Second

// Deps are the collaborators Run works through.
type Deps struct {
	FS      vfs.FS
	Encoder attempt.Encoder
	// Prober is used for output validation and progress percentages. Nil
	// limits validation to a size check.
	Prober  validator.Prober
	Metrics *metrics.Metrics // optional
	Log     zerolog.Logger
}

type loop struct {
	cfg      config.Config
	deps     Deps
	log      zerolog.Logger
	filter   *candidate.Filter
	knownBad *candidate.KnownBad
	scanner  *scanner.Scanner
	runner   *attempt.Runner
	history  *history
	wake     *watcher
}

// Run processes files until there is nothing left to do (no loop interval),
// one file has been published (single-shot), ctx is cancelled, or a fatal
// error occurs. It returns the number of published files.
//
// Encoding failures are recorded in the run's known-bad set and the loop
// moves on. Anything else, such as a claim that already exists or an
// unreadable root, ends the run with an error.
func Run(ctx context.Context, cfg config.Config, deps Deps) (int, error) {
	l, err := newLoop(cfg, deps)
	if err != nil {
		return 0, err
	}
	if l.wake != nil {
		defer l.wake.Close()
	}
	return l.run(ctx)
}

func newLoop(cfg config.Config, deps Deps) (*loop, error) {
	exclude, err := cfg.Exclude()
	if err != nil {
		return nil, err
	}
	log := deps.Log.With().Str("component", "loop").Logger()
	knownBad := candidate.NewKnownBad()

	var val attempt.Validator
	if !cfg.SkipValidation {
		val = validator.Validator{Prober: deps.Prober}
	}

	l := &loop{
		cfg:      cfg,
		deps:     deps,
		log:      log,
		knownBad: knownBad,
		filter:   candidate.NewFilter(cfg.Extensions, exclude, cfg.Suffix(), knownBad),
		scanner:  &scanner.Scanner{FS: deps.FS, Roots: cfg.Roots, Log: deps.Log},
		runner: &attempt.Runner{
			FS:           deps.FS,
			Encoder:      deps.Encoder,
			Validator:    val,
			Suffix:       cfg.Suffix(),
			DeleteSource: cfg.DeleteSource,
			WorkDir:      cfg.WorkDir,
			Log:          deps.Log,
		},
		history: &history{fs: deps.FS, path: historyPath(deps.FS, cfg.Roots), log: log},
	}

	if cfg.Watch && cfg.Looping() {
		if deps.FS.IsRemote() {
			log.Warn().Msg("--watch has no effect on ssh:// paths")
		} else if w, err := newWatcher(cfg.Roots, watchSettle, log); err != nil {
			log.Warn().Err(err).Msg("file watching unavailable, relying on the loop interval")
		} else {
			l.wake = w
		}
	}
	return l, nil
}

func (l *loop) run(ctx context.Context) (int, error) {
	count := 0
	for {
		if ctx.Err() != nil {
			return count, nil
		}
		l.wake.drain()

		file, ok, err := l.next()
		if err != nil {
			return count, err
		}
		if !ok {
			if !l.cfg.Looping() {
				l.log.Info().Int("published", count).Msg("nothing left to encode")
				return count, nil
			}
			l.log.Info().Stringer("interval", l.cfg.LoopInterval).Msg("nothing to encode, waiting")
			if !l.sleep(ctx) {
				return count, nil
			}
			continue
		}

		published, err := l.attempt(ctx, file)
		if published {
			count++
		}
		var encErr *ffmpeglib.EncodingError
		switch {
		case err == nil:
		case errors.Is(err, attempt.ErrInterrupted):
			l.log.Info().Str("source", file.Path).Msg("interrupted, claim released")
			return count, nil
		case errors.As(err, &encErr):
			l.knownBad.Add(file.Path)
			l.deps.Metrics.SetKnownBad(l.knownBad.Len())
			l.log.Warn().Str("source", file.Path).Int("known_bad", l.knownBad.Len()).Msg("skipping for the rest of this run")
			continue
		default:
			return count, err
		}

		if l.cfg.Once && published {
			return count, nil
		}
	}
}

// next scans the roots and picks the file to work on, if any.
func (l *loop) next() (scanner.File, bool, error) {
	defer l.deps.Metrics.ScanDone()

	if l.cfg.FirstMatch {
		return candidate.FirstEligible(l.scanner.Walk(scanner.Options{}), l.filter, candidate.StatExists(l.deps.FS))
	}

	files, err := l.scanner.Scan(scanner.Options{IncludeHiddenFiles: true})
	if err != nil {
		return scanner.File{}, false, err
	}
	cands := candidate.Candidates(files, l.filter, candidate.StatExists(l.deps.FS))
	l.log.Debug().Int("files", len(files)).Int("candidates", len(cands)).Msg("scan finished")
	file, ok := candidate.Select(cands, l.cfg.ReverseOrder)
	return file, ok, nil
}

func (l *loop) attempt(ctx context.Context, file scanner.File) (bool, error) {
	opt := l.cfg.EncodeOptions()
	opt.Timeout = encodeTimeout(l.cfg.Timeout, file.Size, l.cfg.Preview)
	opt.Progress = newProgressLogger(ctx, l.progressTotal(ctx, file), l.log.With().Str("source", file.Path).Logger()).line

	l.log.Info().
		Str("source", file.Path).
		Str("size", humanize.IBytes(uint64(file.Size))).
		Stringer("timeout", config.Timeout{Duration: opt.Timeout}).
		Msg("selected")

	res, err := l.runner.Run(ctx, file.Path, opt)
	l.deps.Metrics.Observe(resultLabel(res, err), res.Elapsed, res.SourceSize, res.TargetSize)
	if res.Published {
		l.history.record(res, time.Now())
		if res.SourceSize > 0 {
			l.log.Info().
				Str("saved", humanize.IBytes(uint64(max(res.SourceSize-res.TargetSize, 0)))).
				Str("ratio", humanize.FtoaWithDigits(float64(res.TargetSize)/float64(res.SourceSize), 2)).
				Msg("done")
		}
	}
	return res.Published, err
}

// progressTotal is the source duration used for progress percentages, or
// zero when it cannot be probed locally.
func (l *loop) progressTotal(ctx context.Context, file scanner.File) time.Duration {
	if l.deps.Prober == nil || l.deps.FS.IsRemote() {
		return 0
	}
	if l.cfg.Preview {
		return ffmpeglib.PreviewDuration
	}
	secs, err := l.deps.Prober.DurationSeconds(ctx, file.Path)
	if err != nil {
		l.log.Debug().Err(err).Str("source", file.Path).Msg("cannot probe duration")
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// sleep waits out the loop interval. It returns false if ctx was cancelled.
func (l *loop) sleep(ctx context.Context) bool {
	var wake <-chan struct{}
	if l.wake != nil {
		wake = l.wake.C
	}
	t := time.NewTimer(l.cfg.LoopInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-wake:
		l.log.Info().Msg("change detected, rescanning")
		return true
	case <-ctx.Done():
		return false
	}
}

func resultLabel(res attempt.Result, err error) string {
	var pre *attempt.PreconditionError
	switch {
	case res.Published:
		return metrics.ResultPublished
	case errors.Is(err, attempt.ErrInterrupted):
		return metrics.ResultInterrupted
	case errors.As(err, &pre):
		return metrics.ResultPrecondition
	default:
		return metrics.ResultFailed
	}
}
