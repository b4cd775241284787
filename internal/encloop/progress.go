package encloop

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/snadrus/encloop/internal/ffmpeglib"
)

// progressLogger turns ffmpeg's stats stream into an info line every
// progressInterval. Other encoder output goes to trace level.
type progressLogger struct {
	ctx   context.Context
	log   zerolog.Logger
	total time.Duration
	every time.Duration
	now   func() time.Time
	last  time.Time
}

func newProgressLogger(ctx context.Context, total time.Duration, log zerolog.Logger) *progressLogger {
	return &progressLogger{
		ctx:   ctx,
		log:   log,
		total: total,
		every: progressInterval,
		now:   time.Now,
	}
}

func (p *progressLogger) line(l ffmpeglib.ProgressLine) {
	pr, ok := l.Parse()
	if !ok {
		p.log.Trace().Msg(l.Raw)
		return
	}
	now := p.now()
	if !p.last.IsZero() && now.Sub(p.last) < p.every {
		return
	}
	p.last = now
	if p.ctx.Err() != nil {
		return
	}

	ev := p.log.Info().
		Str("position", pr.Time.Round(time.Second).String()).
		Float64("fps", pr.FPS).
		Float64("speed", pr.Speed).
		Str("written", humanize.IBytes(uint64(pr.SizeKB)*1024))
	if pct := pr.Percent(p.total); pct >= 0 {
		ev = ev.Str("progress", fmt.Sprintf("%.1f%%", pct))
		if pr.Speed > 0 {
			remaining := max(time.Duration(float64(p.total-pr.Time)/pr.Speed), 0)
			ev = ev.Str("eta", remaining.Round(time.Second).String())
		}
	}
	ev.Msg("encoding")
}
