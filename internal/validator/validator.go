package validator

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/snadrus/encloop/internal/ffmpeglib"
)

const maxDurationDrift = 5.0 // seconds

// Prober reports media durations.
type Prober interface {
	DurationSeconds(ctx context.Context, path string) (float64, error)
}

type Validator struct {
	Prober Prober
}

// Validate checks that an encoded output file is acceptable relative to its source.
//   - Output must not be empty.
//   - Durations must match within maxDurationDrift seconds, or, for a
//     preview, the output must not run past the preview length.
func (v Validator) Validate(ctx context.Context, inputPath, outputPath string, preview bool) error {
	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("cannot stat output: %w", err)
	}
	if outInfo.Size() == 0 {
		return fmt.Errorf("output is empty")
	}
	if v.Prober == nil {
		return nil
	}

	outDur, err := v.Prober.DurationSeconds(ctx, outputPath)
	if err != nil {
		return fmt.Errorf("cannot probe output duration: %w", err)
	}
	if preview {
		limit := ffmpeglib.PreviewDuration.Seconds() + maxDurationDrift
		if outDur > limit {
			return fmt.Errorf("preview output runs %.1fs, expected at most %.0fs", outDur, limit)
		}
		return nil
	}

	inDur, err := v.Prober.DurationSeconds(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("cannot probe input duration: %w", err)
	}
	if math.Abs(inDur-outDur) > maxDurationDrift {
		return fmt.Errorf("duration mismatch: input %.1fs vs output %.1fs", inDur, outDur)
	}

	return nil
}
