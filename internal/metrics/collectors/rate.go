// Package collectors samples running counters into gauges.
package collectors

import (
	"context"
	"time"

	"github.com/smazurov/termcam/internal/logging"
	"github.com/smazurov/termcam/internal/metrics"
)

// DefaultInterval is how often the frame counter is sampled.
const DefaultInterval = 5 * time.Second

// FrameSource reports the number of frames handled so far.
type FrameSource func() uint64

// RateCollector turns a frame counter into a frames-per-second gauge.
type RateCollector struct {
	logger   logging.Logger
	device   string
	source   FrameSource
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	lastFrames uint64
	lastAt     time.Time
}

// NewRateCollector creates a collector for device reading from source.
func NewRateCollector(device string, source FrameSource, interval time.Duration) *RateCollector {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &RateCollector{
		logger:   logging.GetLogger("metrics"),
		device:   device,
		source:   source,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins sampling.
func (r *RateCollector) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.lastFrames = r.source()
	r.lastAt = time.Now()
	go r.run()
	return nil
}

// Stop stops sampling and waits for the sampler to exit.
func (r *RateCollector) Stop() error {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	return nil
}

func (r *RateCollector) run() {
	defer close(r.done)
	r.logger.Debug("Starting frame rate collection", "device", r.device, "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case now := <-ticker.C:
			r.sample(now)
		}
	}
}

func (r *RateCollector) sample(now time.Time) {
	frames := r.source()
	fps := rate(frames, r.lastFrames, now.Sub(r.lastAt))
	r.lastFrames = frames
	r.lastAt = now
	metrics.SetFrameRate(r.device, fps)
}

// rate is frames per second between two samples. A counter that went
// backwards (loop restarted) reads as zero.
func rate(frames, prev uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 || frames < prev {
		return 0
	}
	return float64(frames-prev) / elapsed.Seconds()
}
