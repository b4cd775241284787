package encloop

import "os"

// cpuGHz reads the average clock speed from /proc/cpuinfo.
func cpuGHz() float64 {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return baselineGHz
	}
	mhz, ok := averageMHz(string(data))
	if !ok {
		return baselineGHz
	}
	return mhz / 1000.0
}
