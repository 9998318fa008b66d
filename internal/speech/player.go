package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

var _ domain.AudioPlayer = (*Player)(nil)

// pollInterval is how often Play checks whether the clip has ended.
const pollInterval = 10 * time.Millisecond

// ErrUnsupportedAudio is returned for clips the output device cannot play
// as-is (wrong rate, channel count or sample format).
var ErrUnsupportedAudio = errors.New("unsupported audio format")

// Player plays the WAV clips returned by the speech endpoint through oto.
// One clip plays at a time; Stop silences it from any goroutine.
type Player struct {
	otoCtx *oto.Context
	log    *logger.Logger

	mu      sync.Mutex
	playing *oto.Player
	stopped chan struct{} // closed by Stop for the clip in playing
}

// NewPlayer opens the default output device at the rate the speech
// endpoint produces.
func NewPlayer(log *logger.Logger) (*Player, error) {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("opening audio output: %w", err)
	}
	<-ready

	log.Debug("player: output ready (%d Hz, %d ch)", SampleRate, ChannelCount)
	return &Player{otoCtx: otoCtx, log: log}, nil
}

// Play blocks until the clip ends, Stop is called or ctx is done.
func (p *Player) Play(ctx context.Context, audio []byte) error {
	clip, err := parseWAV(audio)
	if err != nil {
		return err
	}
	if err := clip.matches(SampleRate, ChannelCount, BitDepth); err != nil {
		return err
	}

	op := p.otoCtx.NewPlayer(bytes.NewReader(clip.pcm))
	stopped := make(chan struct{})

	p.mu.Lock()
	p.playing, p.stopped = op, stopped
	p.mu.Unlock()
	defer p.release(op)

	op.Play()
	p.log.Debug("player: %s clip", clip.duration().Round(time.Millisecond))

	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for op.IsPlaying() {
		select {
		case <-ctx.Done():
			op.Pause()
			return ctx.Err()
		case <-stopped:
			return nil
		case <-tick.C:
		}
	}
	return nil
}

// Stop silences the clip being played. It is a no-op when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing == nil {
		return
	}
	p.playing.Pause()
	if p.stopped != nil {
		close(p.stopped)
		p.stopped = nil
	}
	p.log.Debug("player: stopped")
}

func (p *Player) release(op *oto.Player) {
	p.mu.Lock()
	if p.playing == op {
		p.playing, p.stopped = nil, nil
	}
	p.mu.Unlock()
	_ = op.Close()
}

// wavClip is a decoded RIFF/WAVE file with its PCM payload.
type wavClip struct {
	format     uint16 // 1 = PCM
	channels   int
	sampleRate int
	bitDepth   int
	pcm        []byte
}

func (c wavClip) matches(rate, channels, bits int) error {
	if c.format != 1 || c.sampleRate != rate || c.channels != channels || c.bitDepth != bits {
		return fmt.Errorf("%w: format=%d rate=%d channels=%d bits=%d",
			ErrUnsupportedAudio, c.format, c.sampleRate, c.channels, c.bitDepth)
	}
	return nil
}

func (c wavClip) duration() time.Duration {
	frame := c.channels * c.bitDepth / 8
	if frame == 0 || c.sampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.pcm)/frame) * time.Second / time.Duration(c.sampleRate)
}

// parseWAV walks the RIFF chunks for "fmt " and "data". A streamed WAV
// may carry a placeholder data size, so the payload is clamped to what
// was actually received.
func parseWAV(b []byte) (wavClip, error) {
	var clip wavClip
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return clip, fmt.Errorf("%w: not a WAV file", ErrUnsupportedAudio)
	}

	haveFmt := false
	for pos := 12; pos+8 <= len(b); {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(b) {
				return clip, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedAudio)
			}
			f := b[body:]
			clip.format = binary.LittleEndian.Uint16(f[0:2])
			clip.channels = int(binary.LittleEndian.Uint16(f[2:4]))
			clip.sampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			clip.bitDepth = int(binary.LittleEndian.Uint16(f[14:16]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return clip, fmt.Errorf("%w: data before fmt", ErrUnsupportedAudio)
			}
			end := body + size
			if end > len(b) {
				end = len(b)
			}
			clip.pcm = b[body:end]
			return clip, nil
		}

		pos = body + size + size%2
	}
	return clip, fmt.Errorf("%w: no data chunk", ErrUnsupportedAudio)
}
