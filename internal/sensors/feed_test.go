package sensors

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

func testLog() *logger.Logger { return logger.New(logger.LevelOff, nil) }

func inRange(v float64, r Range) bool { return v >= r.Min && v <= r.Max }

func TestSnapshotWithinRanges(t *testing.T) {
	f := NewFeed(testLog(), WithRand(rand.New(rand.NewSource(7))))

	for i := 0; i < 500; i++ {
		f.tick(time.Now())
		s := f.Snapshot()

		checks := []struct {
			name string
			v    float64
			r    Range
		}{
			{"temperature", s.Temperature, TemperatureRange},
			{"humidity", s.Humidity, HumidityRange},
			{"co2", s.CO2, CO2Range},
			{"light", s.Light, LightRange},
			{"energy", s.Energy, EnergyRange},
			{"water", s.Water, WaterRange},
			{"gas", s.Gas, GasRange},
		}
		for _, c := range checks {
			if !inRange(c.v, c.r) {
				t.Fatalf("%s = %v outside [%v, %v]", c.name, c.v, c.r.Min, c.r.Max)
			}
		}
	}
}

func TestBooleanFrequencies(t *testing.T) {
	f := NewFeed(testLog(), WithRand(rand.New(rand.NewSource(42))))

	const n = 5000
	var doors, smoke int
	for i := 0; i < n; i++ {
		f.tick(time.Now())
		s := f.Snapshot()
		if s.DoorOpen {
			doors++
		}
		if s.Smoke {
			smoke++
		}
	}

	if ratio := float64(doors) / n; ratio < 0.15 || ratio > 0.25 {
		t.Errorf("door open ratio = %.3f, want about 0.2", ratio)
	}
	if ratio := float64(smoke) / n; ratio > 0.05 {
		t.Errorf("smoke ratio = %.3f, want about 0.02", ratio)
	}
}

func TestSeededFeedsAgree(t *testing.T) {
	a := NewFeed(testLog(), WithRand(rand.New(rand.NewSource(1))))
	b := NewFeed(testLog(), WithRand(rand.New(rand.NewSource(1))))

	sa, sb := a.Snapshot(), b.Snapshot()
	sa.TakenAt, sb.TakenAt = time.Time{}, time.Time{}
	if sa != sb {
		t.Errorf("same seed produced %+v and %+v", sa, sb)
	}
}

func TestFeedTicksAndNotifiesSubscribers(t *testing.T) {
	f := NewFeed(testLog(), WithInterval(5*time.Millisecond))

	var mu sync.Mutex
	var got []domain.SensorSnapshot
	f.Subscribe(func(s domain.SensorSnapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.Start(ctx)
	f.Start(ctx) // second start is a no-op

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d snapshots delivered", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	f.Stop()
	f.Stop()

	mu.Lock()
	last := got[len(got)-1]
	mu.Unlock()
	if f.Snapshot() != last {
		t.Error("Snapshot should return the last delivered reading")
	}
}
