package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/astra/internal/logger"
)

// fakeSynth returns the text itself as "audio".
type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	delay time.Duration
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	fail := f.fail[text]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("synthesis failed")
	}
	return []byte(text), nil
}

func (f *fakeSynth) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakePlayer records played clips and the maximum concurrency seen.
type fakePlayer struct {
	mu       sync.Mutex
	played   []string
	active   int
	maxSeen  int
	duration time.Duration
	started  chan string
	stops    int
}

func (p *fakePlayer) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	p.active++
	if p.active > p.maxSeen {
		p.maxSeen = p.active
	}
	started := p.started
	p.mu.Unlock()

	if started != nil {
		started <- string(audio)
	}

	var err error
	select {
	case <-time.After(p.duration):
	case <-ctx.Done():
		err = ctx.Err()
	}

	p.mu.Lock()
	p.active--
	if err == nil {
		p.played = append(p.played, string(audio))
	}
	p.mu.Unlock()
	return err
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
}

func (p *fakePlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

func testLog() *logger.Logger { return logger.New(logger.LevelOff, nil) }

func waitIdle(t *testing.T, m *Mouth) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
}

func TestMouthPlaysInOrderOneAtATime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	synth := &fakeSynth{}
	player := &fakePlayer{duration: 5 * time.Millisecond}
	m := NewMouth(synth, player, testLog())
	m.Start(ctx)

	units := []string{"Uno.", "Dos.", "Tres.", "Cuatro."}
	for _, u := range units {
		m.Enqueue(u)
	}
	waitIdle(t, m)

	got := player.Played()
	if len(got) != len(units) {
		t.Fatalf("played %q, want %q", got, units)
	}
	for i := range units {
		if got[i] != units[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], units[i])
		}
	}
	if player.maxSeen != 1 {
		t.Errorf("max concurrent playback = %d, want 1", player.maxSeen)
	}
	if m.IsSpeaking() || m.QueueLen() != 0 {
		t.Error("mouth should be idle")
	}
	if m.LastSpoken() != "Cuatro." {
		t.Errorf("LastSpoken = %q", m.LastSpoken())
	}
}

func TestMouthNormalizesBeforeSynthesis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	synth := &fakeSynth{}
	m := NewMouth(synth, &fakePlayer{}, testLog())
	m.Start(ctx)

	m.Enqueue("Hace 22.5°C y 55% de humedad.")
	waitIdle(t, m)

	calls := synth.Calls()
	if len(calls) != 1 || calls[0] != "Hace 22 punto 5 grados y 55 porciento de humedad." {
		t.Errorf("synthesized %q", calls)
	}
}

func TestMouthSkipsFailedUnits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	synth := &fakeSynth{fail: map[string]bool{"Falla.": true}}
	player := &fakePlayer{}
	m := NewMouth(synth, player, testLog())
	m.Start(ctx)

	m.Enqueue("Antes.")
	m.Enqueue("Falla.")
	m.Enqueue("Después.")
	waitIdle(t, m)

	got := player.Played()
	if len(got) != 2 || got[0] != "Antes." || got[1] != "Después." {
		t.Errorf("played %q", got)
	}
}

func TestMouthClearStopsActiveAndDropsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := &fakePlayer{duration: time.Second, started: make(chan string, 4)}
	m := NewMouth(&fakeSynth{}, player, testLog())
	m.Start(ctx)

	m.Enqueue("Primera frase larga.")
	m.Enqueue("Segunda.")
	m.Enqueue("Tercera.")

	select {
	case <-player.started:
	case <-time.After(time.Second):
		t.Fatal("playback never started")
	}

	m.Clear()
	if m.QueueLen() != 0 {
		t.Errorf("queue len = %d after Clear", m.QueueLen())
	}
	waitIdle(t, m)

	if got := player.Played(); len(got) != 0 {
		t.Errorf("nothing should finish playing, got %q", got)
	}
	player.mu.Lock()
	stops := player.stops
	player.mu.Unlock()
	if stops == 0 {
		t.Error("player.Stop was not called")
	}

	// The queue keeps working after a clear.
	player.duration = 0
	m.Enqueue("Nueva.")
	<-player.started
	waitIdle(t, m)
	if got := player.Played(); len(got) != 1 || got[0] != "Nueva." {
		t.Errorf("after clear played %q", got)
	}
}

func TestMouthDropsAudioArrivingAfterClear(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	synth := &fakeSynth{delay: 50 * time.Millisecond}
	player := &fakePlayer{}
	m := NewMouth(synth, player, testLog())
	m.Start(ctx)

	m.Enqueue("Tarde.")
	time.Sleep(10 * time.Millisecond)
	m.Clear()
	waitIdle(t, m)

	if got := player.Played(); len(got) != 0 {
		t.Errorf("stale unit played: %q", got)
	}
}

func TestMouthTextOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var spoken []string
	m := NewMouth(nil, nil, testLog(), WithOnSpoken(func(s string) {
		mu.Lock()
		spoken = append(spoken, s)
		mu.Unlock()
	}))
	m.Start(ctx)

	m.Enqueue("Hola.")
	m.Enqueue("Adiós.")
	waitIdle(t, m)

	mu.Lock()
	defer mu.Unlock()
	if len(spoken) != 2 {
		t.Errorf("spoken = %q", spoken)
	}
}

func TestMouthUsesCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	synth := &fakeSynth{}
	m := NewMouth(synth, &fakePlayer{}, testLog())
	m.Start(ctx)

	m.Enqueue("Lo siento.")
	waitIdle(t, m)
	m.Enqueue("Lo siento.")
	waitIdle(t, m)

	if n := len(synth.Calls()); n != 1 {
		t.Errorf("synthesize called %d times, want 1", n)
	}
	if hits, _ := m.Cache().Stats(); hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}
}

func TestWaitIdleWhenNothingQueued(t *testing.T) {
	m := NewMouth(nil, nil, testLog())
	if err := m.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
}
