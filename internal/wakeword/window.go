package wakeword

import (
	"encoding/binary"
	"time"
)

// scoreWindow tracks the most recent wake-word scores. It triggers when
// the maximum score in the window reaches the threshold and the cooldown
// since the previous trigger has passed. The peak may land one frame
// before or after the ideal alignment, so the window spans a few frames.
type scoreWindow struct {
	scores     []float32
	next       int
	threshold  float64
	cooldown   time.Duration
	lastDetect time.Time
}

func newScoreWindow(size int, threshold float64, cooldown time.Duration) *scoreWindow {
	return &scoreWindow{
		scores:    make([]float32, size),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// push records score and reports whether the wake word fired. A trigger
// clears the window so one peak fires once.
func (w *scoreWindow) push(score float32, now time.Time) (fired bool, peak float32) {
	w.scores[w.next%len(w.scores)] = score
	w.next++

	peak = w.max()
	if float64(peak) < w.threshold || now.Sub(w.lastDetect) <= w.cooldown {
		return false, peak
	}
	w.lastDetect = now
	w.reset()
	return true, peak
}

func (w *scoreWindow) max() float32 {
	var m float32
	for _, s := range w.scores {
		if s > m {
			m = s
		}
	}
	return m
}

func (w *scoreWindow) reset() {
	clear(w.scores)
	w.next = 0
}

// decodePCM16 converts little-endian signed 16-bit samples.
func decodePCM16(raw []byte) []int16 {
	n := len(raw) / 2
	pcm := make([]int16, n)
	for i := range n {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return pcm
}
