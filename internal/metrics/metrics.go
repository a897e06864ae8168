// Package metrics exposes the bridge's Prometheus collectors. Every recording
// method is safe on a nil *Metrics so components can run without a registry.
package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lcdbridge/internal/state"
)

const namespace = "lcdbridge"

// Drop reasons.
const (
	DropPlayback = "playback"
	DropDecode   = "decode"
	DropRequest  = "request"
	DropWrite    = "write"
	DropShutdown = "shutdown"
)

// Metrics groups the registry and the collectors the components record into.
type Metrics struct {
	registry *prometheus.Registry

	framesReceived prometheus.Counter
	framesDropped  *prometheus.CounterVec
	framesWritten  prometheus.Counter
	composeSeconds prometheus.Histogram
	queueLatency   prometheus.Histogram
	writeSeconds   prometheus.Histogram
	lockWait       *prometheus.HistogramVec
	statsFailures  prometheus.Counter
	sessions       *prometheus.CounterVec
	palettePasses  prometheus.Histogram
	blobBytes      prometheus.Gauge
}

// New registers all collectors. shared backs the mode, fps, and telemetry gauges.
func New(shared *state.Shared) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_received_total",
			Help: "Frames accepted at the HTTP boundary.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_dropped_total",
			Help: "Frames discarded before reaching the device, by reason.",
		}, []string{"reason"}),
		framesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_written_total",
			Help: "Frames written to the device.",
		}),
		composeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "compose_seconds",
			Help:    "Decode, resize, and overlay render time per frame.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		queueLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "queue_latency_seconds",
			Help:    "Time a frame waited in the input queue.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		writeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "frame_write_seconds",
			Help:    "Device frame write time.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "device_lock_wait_seconds",
			Help:    "Time spent waiting for exclusive device access.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
		statsFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "device_stats_failures_total",
			Help: "Failed device telemetry refreshes.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "playback_sessions_total",
			Help: "Playback sessions by outcome.",
		}, []string{"outcome"}),
		palettePasses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "palette_search_passes",
			Help:    "Encode passes per palette search.",
			Buckets: prometheus.LinearBuckets(1, 1, 20),
		}),
		blobBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "bucket_blob_bytes",
			Help: "Size of the most recently uploaded animation.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.framesReceived, m.framesDropped, m.framesWritten,
		m.composeSeconds, m.queueLatency, m.writeSeconds, m.lockWait,
		m.statsFailures, m.sessions, m.palettePasses, m.blobBytes,
	)
	if shared != nil {
		m.registerSharedGauges(shared)
	}
	return m
}

func (m *Metrics) registerSharedGauges(shared *state.Shared) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "playback_mode",
			Help: "1 while firmware playback owns the display.",
		}, func() float64 {
			if shared.Mode() == state.Playback {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "stream_fps",
			Help: "Smoothed streaming frame rate.",
		}, shared.StreamFPS),
	)
	for _, field := range []state.Field{state.CPULoad, state.Pump, state.Liquid, state.CPUTemp, state.GPUTemp} {
		field := field
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "telemetry",
			Help:        "Latest telemetry reading; absent readings report NaN.",
			ConstLabels: prometheus.Labels{"field": field.String()},
		}, func() float64 {
			v, ok := shared.Telemetry.Get(field)
			if !ok {
				return math.NaN()
			}
			return v
		}))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) FrameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *Metrics) FrameDropped(reason string) {
	if m != nil {
		m.framesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) FrameWritten(d time.Duration) {
	if m != nil {
		m.framesWritten.Inc()
		m.writeSeconds.Observe(d.Seconds())
	}
}

func (m *Metrics) Composed(queued, render time.Duration) {
	if m != nil {
		m.queueLatency.Observe(queued.Seconds())
		m.composeSeconds.Observe(render.Seconds())
	}
}

// ObserveLockWait matches access.WaitObserver.
func (m *Metrics) ObserveLockWait(op string, wait time.Duration) {
	if m != nil {
		m.lockWait.WithLabelValues(op).Observe(wait.Seconds())
	}
}

func (m *Metrics) StatsRefreshFailed() {
	if m != nil {
		m.statsFailures.Inc()
	}
}

func (m *Metrics) SessionFinished(outcome string) {
	if m != nil {
		m.sessions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) PaletteSearch(passes, blobBytes int) {
	if m != nil {
		m.palettePasses.Observe(float64(passes))
		m.blobBytes.Set(float64(blobBytes))
	}
}
