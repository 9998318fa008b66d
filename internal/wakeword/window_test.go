package wakeword

import (
	"testing"
	"time"
)

func TestScoreWindowTriggersOnPeak(t *testing.T) {
	w := newScoreWindow(5, 0.5, time.Second)
	now := time.Now()

	scores := []float32{0.01, 0.1, 0.2, 0.62, 0.3}
	var fired []int
	for i, s := range scores {
		if ok, _ := w.push(s, now.Add(time.Duration(i)*80*time.Millisecond)); ok {
			fired = append(fired, i)
		}
	}
	if len(fired) != 1 || fired[0] != 3 {
		t.Fatalf("expected a single trigger at frame 3, got %v", fired)
	}
}

func TestScoreWindowCooldown(t *testing.T) {
	w := newScoreWindow(3, 0.5, time.Second)
	start := time.Now()

	if ok, _ := w.push(0.9, start); !ok {
		t.Fatal("first peak should trigger")
	}
	if ok, _ := w.push(0.9, start.Add(500*time.Millisecond)); ok {
		t.Fatal("peak inside cooldown must not trigger")
	}
	if ok, _ := w.push(0.9, start.Add(2*time.Second)); !ok {
		t.Fatal("peak after cooldown should trigger")
	}
}

func TestScoreWindowKeepsPeakAcrossFrames(t *testing.T) {
	w := newScoreWindow(3, 0.8, 0)
	now := time.Now()

	w.push(0.4, now)
	_, peak := w.push(0.1, now)
	if peak != 0.4 {
		t.Fatalf("peak = %v, want 0.4", peak)
	}
	w.push(0.1, now)
	_, peak = w.push(0.1, now)
	if peak != 0.1 {
		t.Fatalf("old score should have left the window, peak = %v", peak)
	}
}

func TestDecodePCM16(t *testing.T) {
	got := decodePCM16([]byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0x7f})
	want := []int16{1, -1, -32768}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
