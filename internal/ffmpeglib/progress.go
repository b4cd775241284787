package ffmpeglib

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type ProgressLine struct {
	Raw string
}

// Progress is one parsed ffmpeg stats update.
type Progress struct {
	Time   time.Duration
	Frame  int64
	FPS    float64
	SizeKB int64
	Speed  float64
}

var (
	reTime  = regexp.MustCompile(`time=\s*(-?\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	reFrame = regexp.MustCompile(`frame=\s*(\d+)`)
	reFPS   = regexp.MustCompile(`fps=\s*([\d.]+)`)
	reSize  = regexp.MustCompile(`size=\s*(\d+)\s*[kK]i?B`)
	reSpeed = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// Parse extracts stats from a line such as
//
//	frame=  240 fps= 48 q=28.0 size=    1024kB time=00:00:10.00 bitrate= 838.9kbits/s speed=1.9x
//
// It reports false for lines that carry no time stamp.
func (p ProgressLine) Parse() (Progress, bool) {
	m := reTime.FindStringSubmatch(p.Raw)
	if m == nil || strings.HasPrefix(m[1], "-") {
		return Progress{}, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	secs, _ := strconv.ParseFloat(m[3], 64)

	out := Progress{
		Time: time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute +
			time.Duration(secs*float64(time.Second)),
	}
	if m := reFrame.FindStringSubmatch(p.Raw); m != nil {
		out.Frame, _ = strconv.ParseInt(m[1], 10, 64)
	}
	if m := reFPS.FindStringSubmatch(p.Raw); m != nil {
		out.FPS, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := reSize.FindStringSubmatch(p.Raw); m != nil {
		out.SizeKB, _ = strconv.ParseInt(m[1], 10, 64)
	}
	if m := reSpeed.FindStringSubmatch(p.Raw); m != nil {
		out.Speed, _ = strconv.ParseFloat(m[1], 64)
	}
	return out, true
}

// Percent reports how far p is through a source of the given duration,
// capped at 100. It returns -1 when the duration is unknown.
func (p Progress) Percent(total time.Duration) float64 {
	if total <= 0 {
		return -1
	}
	pct := float64(p.Time) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
