package encloop

import (
	"os/exec"
	"strconv"
	"strings"
)

// cpuGHz reads MaxClockSpeed (MHz) through wmic.
func cpuGHz() float64 {
	out, err := exec.Command("wmic", "cpu", "get", "MaxClockSpeed", "/value").Output()
	if err != nil {
		return baselineGHz
	}
	for _, line := range strings.Split(string(out), "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "MaxClockSpeed=")
		if !ok {
			continue
		}
		if mhz, err := strconv.ParseFloat(value, 64); err == nil && mhz > 0 {
			return mhz / 1000.0
		}
		break
	}
	return baselineGHz
}
