package speech

import (
	"context"
	"sync"
	"time"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
	"github.com/hammamikhairi/astra/internal/observe"
)

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithCacheEntries bounds the audio cache.
func WithCacheEntries(n int) MouthOption {
	return func(m *Mouth) { m.cacheEntries = n }
}

// WithMetrics records synthesis latency and spoken units.
func WithMetrics(met *observe.Metrics) MouthOption {
	return func(m *Mouth) { m.metrics = met }
}

// WithOnSpoken registers a callback run after each unit leaves the queue,
// whether or not audio was produced.
func WithOnSpoken(fn func(text string)) MouthOption {
	return func(m *Mouth) { m.onSpoken = fn }
}

// Mouth is the playback queue. Sentence units are spoken strictly in
// arrival order, one at a time: dequeue, normalize, synthesize (cache
// first), play. A failed unit is logged and dropped.
//
// Clear drops everything pending, cancels the in-flight synthesis or
// playback and bumps the queue generation, so audio that arrives for a
// cleared unit is never played.
//
// With a nil synthesizer the Mouth runs text-only: units are consumed
// immediately without audio.
type Mouth struct {
	tts       domain.Synthesizer
	player    domain.AudioPlayer
	log       *logger.Logger
	cache     *AudioCache
	metrics   *observe.Metrics
	normalize func(string) string
	onSpoken  func(string)

	cacheEntries int

	mu         sync.Mutex
	queue      []playbackItem
	notify     chan struct{}
	speaking   bool
	generation uint64
	cancelItem context.CancelFunc // cancels the unit being processed
	idle       chan struct{}      // closed when the queue drains; nil while idle
	lastSpoken string
}

// NewMouth creates a playback queue. tts may be nil for text-only output.
func NewMouth(tts domain.Synthesizer, player domain.AudioPlayer, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		tts:       tts,
		player:    player,
		log:       log,
		notify:    make(chan struct{}, 32),
		normalize: Normalize,
	}
	for _, opt := range opts {
		opt(m)
	}
	voice := ""
	if v, ok := tts.(interface{ Voice() string }); ok {
		voice = v.Voice()
	}
	m.cache = NewAudioCache(voice, m.cacheEntries, log)
	return m
}

// Enqueue appends a unit to the tail of the queue. Non-blocking.
func (m *Mouth) Enqueue(text string) {
	if text == "" {
		return
	}
	m.mu.Lock()
	m.queue = append(m.queue, playbackItem{
		Text:       text,
		Generation: m.generation,
		QueuedAt:   time.Now(),
	})
	if m.idle == nil {
		m.idle = make(chan struct{})
	}
	qLen := len(m.queue)
	m.mu.Unlock()

	m.log.Debug("mouth: queued (queue_len=%d): %s", qLen, truncate(text, 60))

	select {
	case m.notify <- struct{}{}:
	default: // already signaled
	}
}

// Clear stops the unit being spoken and drops every pending unit.
func (m *Mouth) Clear() {
	m.mu.Lock()
	dropped := len(m.queue)
	m.queue = m.queue[:0]
	m.generation++
	cancel := m.cancelItem
	if !m.speaking {
		m.markIdleLocked()
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if m.player != nil {
		m.player.Stop()
	}
	m.log.Debug("mouth: cleared (%d pending dropped)", dropped)
}

// IsSpeaking reports whether a unit is being synthesized or played.
func (m *Mouth) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// QueueLen returns the number of pending units.
func (m *Mouth) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// WaitIdle blocks until nothing is playing or pending, or ctx is done.
func (m *Mouth) WaitIdle(ctx context.Context) error {
	m.mu.Lock()
	ch := m.idle
	m.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastSpoken returns the most recently completed unit.
func (m *Mouth) LastSpoken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSpoken
}

// Cache returns the audio cache used by this Mouth.
func (m *Mouth) Cache() *AudioCache { return m.cache }

// Start begins the playback goroutine. Non-blocking.
func (m *Mouth) Start(ctx context.Context) {
	go m.processLoop(ctx)
	m.log.Info("mouth started")
}

func (m *Mouth) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.Clear()
			m.log.Info("mouth stopped")
			return
		case <-m.notify:
			m.drain(ctx)
		}
	}
}

// drain speaks queued units until the queue is empty.
func (m *Mouth) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		if len(m.queue) == 0 {
			m.markIdleLocked()
			m.mu.Unlock()
			return
		}
		item := m.queue[0]
		m.queue = m.queue[1:]
		itemCtx, cancel := context.WithCancel(ctx)
		m.cancelItem = cancel
		m.speaking = true
		m.mu.Unlock()

		m.process(itemCtx, item)
		cancel()

		m.mu.Lock()
		m.cancelItem = nil
		m.speaking = false
		m.mu.Unlock()
	}
}

// markIdleLocked wakes WaitIdle callers. Must be called with m.mu held.
func (m *Mouth) markIdleLocked() {
	if m.idle != nil && len(m.queue) == 0 {
		close(m.idle)
		m.idle = nil
	}
}

func (m *Mouth) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

// process synthesizes and plays a single unit.
func (m *Mouth) process(ctx context.Context, item playbackItem) {
	if !m.current(item.Generation) {
		return
	}
	m.metrics.RecordUnitSpoken(ctx)
	m.log.Debug("mouth: speaking (waited=%s): %s", time.Since(item.QueuedAt).Round(time.Millisecond), truncate(item.Text, 60))

	defer m.finished(item)

	if m.tts == nil {
		return
	}

	text := m.normalize(item.Text)
	if text == "" {
		return
	}

	audio, err := m.synthesizeWithCache(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Error("mouth: synthesis failed: %v", err)
		}
		return
	}
	if !m.current(item.Generation) {
		m.log.Debug("mouth: dropping stale audio for %s", truncate(item.Text, 40))
		return
	}
	if err := m.player.Play(ctx, audio); err != nil && ctx.Err() == nil {
		m.log.Error("mouth: playback failed: %v", err)
	}
}

func (m *Mouth) finished(item playbackItem) {
	m.mu.Lock()
	m.lastSpoken = item.Text
	m.mu.Unlock()
	if m.onSpoken != nil {
		m.onSpoken(item.Text)
	}
}

// synthesizeWithCache checks the cache first, otherwise synthesizes and
// stores the result.
func (m *Mouth) synthesizeWithCache(ctx context.Context, text string) ([]byte, error) {
	if audio, ok := m.cache.Get(text); ok {
		return audio, nil
	}
	start := time.Now()
	audio, err := m.tts.Synthesize(ctx, text)
	m.metrics.RecordSynthesis(ctx, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	m.cache.Put(text, audio)
	return audio, nil
}

// Prefetch synthesizes the given texts in the background and stores them
// in the audio cache. Already cached texts are skipped. Non-blocking.
func (m *Mouth) Prefetch(ctx context.Context, texts ...string) {
	if m.tts == nil {
		return
	}
	for _, text := range texts {
		t := m.normalize(text)
		if t == "" || m.cache.Has(t) {
			continue
		}
		go func() {
			audio, err := m.tts.Synthesize(ctx, t)
			if err != nil {
				m.log.Error("prefetch: synthesis failed: %v", err)
				return
			}
			m.cache.Put(t, audio)
			m.log.Debug("prefetch: cached %d bytes for: %s", len(audio), truncate(t, 50))
		}()
	}
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
