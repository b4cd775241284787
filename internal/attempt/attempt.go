package attempt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snadrus/encloop/internal/ffmpeglib"
	"github.com/snadrus/encloop/internal/paths"
	"github.com/snadrus/encloop/internal/vfs"
)

// ErrInterrupted is returned when the run was cancelled mid-attempt. The
// claim is released and no tombstone is left, so the file is picked up again
// on the next start.
var ErrInterrupted = errors.New("attempt interrupted")

// PreconditionError means the filesystem was not in the state an attempt
// requires: the in-progress marker already existed when claiming, or the
// target showed up while encoding. It points at a second instance or stale
// state, not at a bad file.
type PreconditionError struct {
	Path   string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

type Encoder interface {
	Encode(ctx context.Context, inPath, outPath string, opt ffmpeglib.Options) (*ffmpeglib.RunResult, error)
}

type Validator interface {
	Validate(ctx context.Context, inputPath, outputPath string, preview bool) error
}

type Result struct {
	Source     string
	Target     string
	SourceSize int64
	TargetSize int64
	Elapsed    time.Duration
	Published  bool
}

// Runner drives one attempt per call: claim the in-progress marker, encode
// into it, rename it over the target on success, or turn it into a failure
// tombstone.
type Runner struct {
	FS        vfs.FS
	Encoder   Encoder
	Validator Validator // optional
	Suffix    string    // full target suffix, e.g. ".enc.mp4"

	DeleteSource bool

	// WorkDir, when set, is a local scratch directory. The source is copied
	// there and encoded in place, then the result is brought back to the
	// in-progress name next to the target before the final rename.
	WorkDir string

	Log zerolog.Logger
}

func (r *Runner) Run(ctx context.Context, source string, opt ffmpeglib.Options) (Result, error) {
	target := paths.TargetPath(source, r.Suffix)
	wip := paths.WorkInProgressPath(target)
	failed := paths.FailedPath(target)
	res := Result{Source: source, Target: target}

	id := uuid.NewString()
	log := r.Log.With().Str("attempt", id[:8]).Str("source", source).Logger()

	if err := claim(r.FS, wip); err != nil {
		return res, err
	}
	if info, err := r.FS.Stat(source); err == nil {
		res.SourceSize = info.Size()
	}
	log.Info().Str("target", target).Str("size", humanize.IBytes(uint64(res.SourceSize))).Msg("encoding")

	start := time.Now()
	err := r.encode(ctx, log, id, source, wip, opt)
	if err == nil {
		err = r.publish(wip, target)
	}
	res.Elapsed = time.Since(start)
	if err != nil {
		var pre *PreconditionError
		if ctx.Err() != nil && !errors.As(err, &pre) {
			var discarded int64
			if info, statErr := r.FS.Stat(wip); statErr == nil {
				discarded = info.Size()
			}
			if relErr := release(r.FS, wip); relErr != nil {
				log.Error().Err(relErr).Msg("could not release claim")
			} else {
				log.Info().
					Str("path", wip).
					Int64("bytes", discarded).
					Str("size", humanize.IBytes(uint64(discarded))).
					Msg("interrupted, partial output discarded")
			}
			return res, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}
		r.tombstone(log, wip, failed, err)
		return res, err
	}

	res.Published = true
	if info, err := r.FS.Stat(target); err == nil {
		res.TargetSize = info.Size()
	}
	log.Info().
		Str("target", target).
		Str("size", humanize.IBytes(uint64(res.TargetSize))).
		Dur("elapsed", res.Elapsed.Round(time.Second)).
		Msg("published")

	if r.DeleteSource {
		if err := r.FS.Remove(source); err != nil {
			return res, fmt.Errorf("delete source %s: %w", source, err)
		}
		log.Info().Msg("source removed")
	}
	return res, nil
}

func (r *Runner) encode(ctx context.Context, log zerolog.Logger, id, source, wip string, opt ffmpeglib.Options) error {
	if r.WorkDir == "" {
		if r.FS.IsRemote() {
			return errors.New("remote sources need a work dir")
		}
		if _, err := r.Encoder.Encode(ctx, source, wip, opt); err != nil {
			return err
		}
		return r.validate(ctx, source, wip, opt.Preview)
	}

	scratch := filepath.Join(r.WorkDir, id)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn().Err(err).Str("dir", scratch).Msg("could not remove scratch dir")
		}
	}()

	localSrc := filepath.Join(scratch, filepath.Base(source))
	if err := r.FS.CopyToLocal(source, localSrc); err != nil {
		return fmt.Errorf("stage source: %w", err)
	}
	localOut := filepath.Join(scratch, filepath.Base(wip))
	if _, err := r.Encoder.Encode(ctx, localSrc, localOut, opt); err != nil {
		return err
	}
	if err := r.validate(ctx, localSrc, localOut, opt.Preview); err != nil {
		return err
	}
	log.Debug().Str("from", localOut).Str("to", wip).Msg("moving result next to target")
	return r.bringBack(localOut, wip)
}

// bringBack moves the scratch result onto the in-progress name. Across
// devices this is a copy, so it never targets the final name directly.
func (r *Runner) bringBack(localOut, wip string) error {
	if !r.FS.IsRemote() {
		if err := os.Rename(localOut, wip); err == nil {
			return nil
		}
	}
	if err := r.FS.CopyFromLocal(localOut, wip); err != nil {
		return fmt.Errorf("move result to %s: %w", wip, err)
	}
	return nil
}

func (r *Runner) validate(ctx context.Context, in, out string, preview bool) error {
	if r.Validator == nil {
		return nil
	}
	if err := r.Validator.Validate(ctx, in, out, preview); err != nil {
		return &ffmpeglib.EncodingError{Err: fmt.Errorf("output rejected: %w", err)}
	}
	return nil
}

func (r *Runner) publish(wip, target string) error {
	_, err := r.FS.Stat(target)
	switch {
	case err == nil:
		return &PreconditionError{Path: target, Reason: "target appeared while encoding"}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("check target %s: %w", target, err)
	}
	if err := r.FS.Rename(wip, target); err != nil {
		return fmt.Errorf("publish %s: %w", target, err)
	}
	return nil
}

// tombstone preserves whatever the encoder left under the failure name, or
// leaves an empty failure marker. Errors here are logged; the caller returns
// the original failure.
func (r *Runner) tombstone(log zerolog.Logger, wip, failed string, cause error) {
	log.Error().Err(cause).Str("failed", failed).Msg("attempt failed")

	if vfs.Exists(r.FS, wip) {
		err := r.FS.Rename(wip, failed)
		if err == nil {
			return
		}
		log.Error().Err(err).Str("from", wip).Str("to", failed).Msg("could not move in-progress file to tombstone")
	}
	if err := r.FS.Touch(failed); err != nil {
		log.Error().Err(err).Str("path", failed).Msg("could not create tombstone")
	}
}
