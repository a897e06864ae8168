package state

import (
	"math"
	"sync/atomic"
)

// Field names one telemetry value.
type Field int

const (
	CPULoad Field = iota
	Pump
	Liquid
	CPUTemp
	GPUTemp
	fieldCount
)

func (f Field) String() string {
	switch f {
	case CPULoad:
		return "cpu"
	case Pump:
		return "pump"
	case Liquid:
		return "liquid"
	case CPUTemp:
		return "cpu_temp"
	case GPUTemp:
		return "gpu_temp"
	default:
		return "unknown"
	}
}

// Telemetry is a set of independently updated float fields. A NaN value
// means the reading is unavailable.
type Telemetry struct {
	fields [fieldCount]atomic.Uint64
}

// NewTelemetry starts with zeroed load/pump/liquid and unavailable temperatures.
func NewTelemetry() *Telemetry {
	t := &Telemetry{}
	t.Clear(CPUTemp)
	t.Clear(GPUTemp)
	return t
}

// Set stores a reading.
func (t *Telemetry) Set(f Field, v float64) {
	if f < 0 || f >= fieldCount {
		return
	}
	t.fields[f].Store(math.Float64bits(v))
}

// Clear marks a reading unavailable.
func (t *Telemetry) Clear(f Field) {
	t.Set(f, math.NaN())
}

// Get returns the reading and whether it is available.
func (t *Telemetry) Get(f Field) (float64, bool) {
	if f < 0 || f >= fieldCount {
		return 0, false
	}
	v := math.Float64frombits(t.fields[f].Load())
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Snapshot is a point-in-time copy; fields may come from different writes.
type Snapshot struct {
	CPULoad float64  `json:"cpu"`
	Pump    float64  `json:"pump"`
	Liquid  float64  `json:"liquid"`
	CPUTemp *float64 `json:"cpuTemp"`
	GPUTemp *float64 `json:"gpuTemp"`
}

// Snapshot copies every field.
func (t *Telemetry) Snapshot() Snapshot {
	value := func(f Field) float64 {
		v, _ := t.Get(f)
		return v
	}
	optional := func(f Field) *float64 {
		if v, ok := t.Get(f); ok {
			return &v
		}
		return nil
	}
	return Snapshot{
		CPULoad: value(CPULoad),
		Pump:    value(Pump),
		Liquid:  value(Liquid),
		CPUTemp: optional(CPUTemp),
		GPUTemp: optional(GPUTemp),
	}
}
