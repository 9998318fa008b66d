// Package sensors provides the mock home sensor feed. It stands in for a
// real sensor bus: every tick a fresh snapshot is drawn from fixed ranges.
package sensors

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

var _ domain.SensorSource = (*Feed)(nil)

// DefaultInterval is how often a new snapshot is generated.
const DefaultInterval = 5 * time.Second

// Range is an inclusive [Min, Max] interval for a continuous reading.
type Range struct {
	Min, Max float64
}

func (r Range) draw(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// Value ranges of the generated readings.
var (
	TemperatureRange = Range{18, 28}
	HumidityRange    = Range{30, 70}
	CO2Range         = Range{400, 1200}
	LightRange       = Range{0, 1000}
	EnergyRange      = Range{0.5, 5.0}
	WaterRange       = Range{0, 200}
	GasRange         = Range{0, 50}
)

const (
	openChance  = 0.2
	smokeChance = 0.02
)

// Option configures the feed.
type Option func(*Feed)

// WithInterval sets the regeneration period.
func WithInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithRand replaces the random source. Tests pass a seeded source.
func WithRand(rng *rand.Rand) Option {
	return func(f *Feed) { f.rng = rng }
}

// Feed regenerates a SensorSnapshot on a ticker and fans it out to
// subscribers. Snapshot is safe for concurrent use.
type Feed struct {
	log      *logger.Logger
	interval time.Duration
	rng      *rand.Rand

	mu       sync.Mutex
	current  domain.SensorSnapshot
	subs     []func(domain.SensorSnapshot)
	running  bool
	cancel   context.CancelFunc
	finished chan struct{}
}

// NewFeed creates a feed with an initial snapshot already populated.
func NewFeed(log *logger.Logger, opts ...Option) *Feed {
	f := &Feed{
		log:      log,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	f.current = f.generate(time.Now())
	return f
}

// Snapshot returns a copy of the latest readings.
func (f *Feed) Snapshot() domain.SensorSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Subscribe registers fn to receive every new snapshot. fn runs on the
// feed goroutine and must not block.
func (f *Feed) Subscribe(fn func(domain.SensorSnapshot)) {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
}

// Start begins the background refresh loop. Non-blocking.
func (f *Feed) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		f.log.Warn("sensor feed already running")
		return
	}

	childCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.running = true
	f.finished = make(chan struct{})

	go f.loop(childCtx, f.finished)
	f.log.Info("sensor feed started (interval=%s)", f.interval)
}

// Stop halts the refresh loop and waits for it to exit.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.cancel()
	f.running = false
	done := f.finished
	f.mu.Unlock()

	<-done
	f.log.Info("sensor feed stopped")
}

func (f *Feed) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			f.tick(now)
		}
	}
}

func (f *Feed) tick(now time.Time) {
	f.mu.Lock()
	snap := f.generate(now)
	f.current = snap
	subs := append(([]func(domain.SensorSnapshot))(nil), f.subs...)
	f.mu.Unlock()

	f.log.Debug("sensors: %.1f°C %.0f%% co2=%.0f light=%.0f", snap.Temperature, snap.Humidity, snap.CO2, snap.Light)
	for _, fn := range subs {
		fn(snap)
	}
}

// generate draws a new snapshot. Caller holds f.mu or owns f exclusively.
func (f *Feed) generate(now time.Time) domain.SensorSnapshot {
	return domain.SensorSnapshot{
		Temperature: round(TemperatureRange.draw(f.rng), 1),
		Humidity:    round(HumidityRange.draw(f.rng), 0),
		CO2:         round(CO2Range.draw(f.rng), 0),
		Light:       round(LightRange.draw(f.rng), 0),
		Energy:      round(EnergyRange.draw(f.rng), 2),
		Water:       round(WaterRange.draw(f.rng), 1),
		Gas:         round(GasRange.draw(f.rng), 1),
		DoorOpen:    f.rng.Float64() < openChance,
		WindowOpen:  f.rng.Float64() < openChance,
		Motion:      f.rng.Float64() < openChance,
		Smoke:       f.rng.Float64() < smokeChance,
		TakenAt:     now,
	}
}

func round(v float64, places int) float64 {
	p := 1.0
	for range places {
		p *= 10
	}
	return math.Round(v*p) / p
}
