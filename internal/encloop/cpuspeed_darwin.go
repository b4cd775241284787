package encloop

import (
	"os/exec"
	"strconv"
	"strings"
)

// cpuGHz asks sysctl for the maximum clock. Apple silicon does not report
// one, in which case the baseline is assumed.
func cpuGHz() float64 {
	out, err := exec.Command("sysctl", "-n", "hw.cpufrequency_max").Output()
	if err != nil {
		return baselineGHz
	}
	if hz, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64); err == nil && hz > 0 {
		return hz / 1e9
	}
	return baselineGHz
}
