package encloop

import (
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/snadrus/encloop/internal/config"
)

const (
	baselineGHz = 2.5  // reference CPU speed for timeout scaling
	baseRateH   = 0.75 // wall-clock hours per GB of input at score=1 (1 baseline thread)
	safetyMult  = 3.0  // margin on top of the expected time

	minAutoTimeout = 30 * time.Minute
	maxAutoTimeout = 48 * time.Hour
)

// encodeTimeout resolves the configured timeout for one source file.
func encodeTimeout(t config.Timeout, size int64, preview bool) time.Duration {
	if !t.Auto {
		return t.Duration
	}
	if preview {
		return minAutoTimeout
	}
	return encodeTimeoutForSize(size, runtime.NumCPU(), cpuGHz())
}

// encodeTimeoutForSize computes a per-file deadline scaled by input size and
// machine throughput. Size stands in for both duration and bitrate, so a
// 20 GB 4K file gets far more time than a 2 GB 1080p one.
func encodeTimeoutForSize(size int64, threads int, ghz float64) time.Duration {
	if threads < 1 {
		threads = 1
	}
	if ghz <= 0 {
		ghz = baselineGHz
	}
	score := float64(threads) * (ghz / baselineGHz)

	gb := float64(size) / (1 << 30)
	d := time.Duration((baseRateH / score) * safetyMult * gb * float64(time.Hour))
	return min(max(d, minAutoTimeout), maxAutoTimeout)
}

// averageMHz averages the "cpu MHz" lines of a /proc/cpuinfo dump.
func averageMHz(cpuinfo string) (float64, bool) {
	var total float64
	var count int
	for _, line := range strings.Split(cpuinfo, "\n") {
		if !strings.HasPrefix(line, "cpu MHz") {
			continue
		}
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		mhz, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			continue
		}
		total += mhz
		count++
	}
	if count == 0 {
		return 0, false
	}
	return total / float64(count), true
}
