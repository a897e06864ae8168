package telemetry

import (
	"strings"

	"github.com/shirou/gopsutil/v4/sensors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// cpuKeys and gpuPrefixes are matched against lower-cased hwmon sensor keys
// in priority order.
var (
	cpuKeys     = []string{"package_id", "tctl", "tdie", "cpu_thermal", "k10temp", "coretemp"}
	gpuPrefixes = []string{"amdgpu", "nouveau", "radeon", "nvidia"}
	gpuKeys     = []string{"edge", "junction"}
)

// Classify picks the CPU package and GPU core temperatures out of a sensor
// listing. Zero or negative readings are ignored.
func Classify(stats []sensors.TemperatureStat) (cpu float64, cpuOK bool, gpu float64, gpuOK bool) {
	cpu, cpuOK = pick(stats, func(key string) int {
		for i, want := range cpuKeys {
			if strings.Contains(key, want) {
				return i
			}
		}
		return -1
	})
	gpu, gpuOK = pick(stats, func(key string) int {
		isGPU := false
		for _, prefix := range gpuPrefixes {
			if strings.HasPrefix(key, prefix) {
				isGPU = true
				break
			}
		}
		if !isGPU {
			return -1
		}
		for i, want := range gpuKeys {
			if strings.Contains(key, want) {
				return i
			}
		}
		return len(gpuKeys)
	})
	return cpu, cpuOK, gpu, gpuOK
}

// pick returns the reading with the lowest rank; rank < 0 skips a sensor.
func pick(stats []sensors.TemperatureStat, rank func(key string) int) (float64, bool) {
	lower := cases.Lower(language.Und)
	best, bestRank := 0.0, -1
	for _, s := range stats {
		if s.Temperature <= 0 {
			continue
		}
		r := rank(lower.String(s.SensorKey))
		if r < 0 {
			continue
		}
		if bestRank < 0 || r < bestRank {
			best, bestRank = s.Temperature, r
		}
	}
	return best, bestRank >= 0
}
