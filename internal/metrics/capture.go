// Package metrics provides Prometheus metrics for the capture loop.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smazurov/termcam/internal/capture"
)

const namespace = "termcam"

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frames_total",
		Help:      "Frames dequeued and handed to the renderer",
	}, []string{"device"})

	againTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "again_total",
		Help:      "Readiness wakeups that found no frame (EAGAIN)",
	}, []string{"device"})

	timeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "timeouts_total",
		Help:      "Readiness waits that expired",
	}, []string{"device"})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "dropped_frames_total",
		Help:      "Frames skipped by the driver, from sequence gaps",
	}, []string{"device"})

	handleSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "handle_seconds",
		Help:      "Time spent resampling and rendering one frame",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"device"})

	loopState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "state",
		Help:      "1 for the loop's current state, 0 otherwise",
	}, []string{"device", "state"})

	frameRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "fps",
		Help:      "Frames per second over the last sampling interval",
	}, []string{"device"})

	// Local cache for the JSON endpoint and health checks.
	captureCache   = make(map[string]*CaptureMetrics)
	captureCacheMu sync.RWMutex
)

var states = []capture.State{
	capture.StateIdle,
	capture.StateStreaming,
	capture.StateStopping,
	capture.StateStopped,
}

// CaptureMetrics holds current values for one device.
type CaptureMetrics struct {
	State    string  `json:"state"`
	Frames   uint64  `json:"frames"`
	Again    uint64  `json:"again"`
	Timeouts uint64  `json:"timeouts"`
	Dropped  uint64  `json:"dropped"`
	FPS      float64 `json:"fps"`
}

// CaptureObserver records loop activity for one device.
type CaptureObserver struct {
	device string
}

// NewCaptureObserver returns an observer labelled with device.
func NewCaptureObserver(device string) *CaptureObserver {
	updateCache(device, func(m *CaptureMetrics) { m.State = string(capture.StateIdle) })
	return &CaptureObserver{device: device}
}

// StateChanged moves the state gauge.
func (o *CaptureObserver) StateChanged(_, to capture.State) {
	for _, s := range states {
		v := 0.0
		if s == to {
			v = 1
		}
		loopState.WithLabelValues(o.device, string(s)).Set(v)
	}
	updateCache(o.device, func(m *CaptureMetrics) { m.State = string(to) })
}

// FrameHandled counts the frame, its handling time and the loop's
// sequence gap.
func (o *CaptureObserver) FrameHandled(r capture.FrameReport) {
	framesTotal.WithLabelValues(o.device).Inc()
	handleSeconds.WithLabelValues(o.device).Observe(r.Elapsed.Seconds())
	if r.Gap > 0 {
		droppedTotal.WithLabelValues(o.device).Add(float64(r.Gap))
	}

	updateCache(o.device, func(m *CaptureMetrics) {
		m.Frames++
		m.Dropped += r.Gap
	})
}

// Again counts an EAGAIN wakeup.
func (o *CaptureObserver) Again() {
	againTotal.WithLabelValues(o.device).Inc()
	updateCache(o.device, func(m *CaptureMetrics) { m.Again++ })
}

// Timeout counts an expired wait.
func (o *CaptureObserver) Timeout() {
	timeoutsTotal.WithLabelValues(o.device).Inc()
	updateCache(o.device, func(m *CaptureMetrics) { m.Timeouts++ })
}

// SetFrameRate sets the sampled frame rate for a device.
func SetFrameRate(device string, fps float64) {
	frameRate.WithLabelValues(device).Set(fps)
	updateCache(device, func(m *CaptureMetrics) { m.FPS = fps })
}

// DeleteCaptureMetrics removes all metrics for a device.
func DeleteCaptureMetrics(device string) {
	framesTotal.DeleteLabelValues(device)
	againTotal.DeleteLabelValues(device)
	timeoutsTotal.DeleteLabelValues(device)
	droppedTotal.DeleteLabelValues(device)
	handleSeconds.DeleteLabelValues(device)
	frameRate.DeleteLabelValues(device)
	for _, s := range states {
		loopState.DeleteLabelValues(device, string(s))
	}

	captureCacheMu.Lock()
	delete(captureCache, device)
	captureCacheMu.Unlock()
}

// GetCaptureMetrics returns current values for a device.
func GetCaptureMetrics(device string) *CaptureMetrics {
	captureCacheMu.RLock()
	defer captureCacheMu.RUnlock()
	if m, ok := captureCache[device]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllCaptureMetrics returns values for every device seen.
func GetAllCaptureMetrics() map[string]*CaptureMetrics {
	captureCacheMu.RLock()
	defer captureCacheMu.RUnlock()
	result := make(map[string]*CaptureMetrics, len(captureCache))
	for id, m := range captureCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(device string, update func(*CaptureMetrics)) {
	captureCacheMu.Lock()
	defer captureCacheMu.Unlock()
	m, ok := captureCache[device]
	if !ok {
		m = &CaptureMetrics{}
		captureCache[device] = m
	}
	update(m)
}
