// Package wakeword provides the optional "oye Astra" trigger: real-time
// wake-word detection with the openWakeWord ONNX pipeline
// (melspectrogram, embedding, wake-word classifier) over a miniaudio
// capture device.
//
// All model files and the ONNX Runtime shared library are supplied in
// Config. Detection is paused while the assistant is listening or
// speaking so the microphone is free for capture and the speaker output
// cannot trigger it.
package wakeword

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

// Constants of the openWakeWord pipeline.
const (
	sampleRate    = 16000
	chunkSamples  = 1280 // 80 ms @ 16 kHz
	audioQueueCap = 32
	melWindowSize = 76 // embedding model needs 76 mel frames
	melStepSize   = 8  // step between embedding windows
	embeddingDim  = 96 // output dim per embedding frame
	nEmbedFrames  = 16 // wake-word model needs 16 embedding frames
	melBins       = 32 // melspectrogram output bands
	nMelFrames    = 5  // 1280 samples -> 5 mel frames

	// scoreWindowSize is 5 frames, about 400 ms.
	scoreWindowSize = 5

	// recentWindow is how many of the newest embedding slots are scored;
	// older slots are zeroed so silence cannot suppress detection.
	recentWindow = 5
)

// Config holds the paths and tuning knobs for a Detector.
type Config struct {
	WakewordModel  string // e.g. "models/oye_astra.onnx"
	MelspecModel   string // e.g. "bin/melspectrogram.onnx"
	EmbeddingModel string // e.g. "bin/embedding_model.onnx"
	OnnxLib        string // e.g. "bin/libonnxruntime.so"

	Threshold float64       // window max >= threshold fires (default 0.3)
	Cooldown  time.Duration // min time between detections (default 1.5s)
}

func (c *Config) defaults() {
	if c.Threshold <= 0 {
		c.Threshold = 0.3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 1500 * time.Millisecond
	}
}

// Detector listens for the wake word continuously and calls OnDetected.
type Detector struct {
	cfg Config
	log *logger.Logger

	// OnDetected runs on the processing goroutine. Set before Start.
	OnDetected func()

	mu         sync.Mutex
	paused     bool
	needsReset bool
}

// New creates a Detector. Call Start to begin listening.
func New(cfg Config, log *logger.Logger) *Detector {
	cfg.defaults()
	return &Detector{cfg: cfg, log: log}
}

// Pause stops detection until Resume.
func (d *Detector) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

// Resume re-enables detection and flushes stale pipeline state.
func (d *Detector) Resume() {
	d.mu.Lock()
	if d.paused {
		d.needsReset = true
	}
	d.paused = false
	d.mu.Unlock()
}

// Gate returns an observer that pauses detection whenever the assistant
// leaves the inactive state.
func (d *Detector) Gate() domain.Observer {
	return gate{d: d}
}

type gate struct {
	domain.NopObserver
	d *Detector
}

func (g gate) StateChanged(s domain.VoiceState) {
	if s == domain.StateInactive {
		g.d.Resume()
		return
	}
	g.d.Pause()
}

// active reports whether audio should be processed and whether the
// pipeline must be flushed first.
func (d *Detector) active() (ok, reset bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paused {
		return false, false
	}
	reset = d.needsReset
	d.needsReset = false
	return true, reset
}

// Start initialises the models and the capture device, then processes
// audio until ctx is cancelled. It blocks; run it in its own goroutine.
func (d *Detector) Start(ctx context.Context) error {
	d.log.Debug("wakeword: initializing ONNX runtime (lib=%s)", d.cfg.OnnxLib)
	ort.SetSharedLibraryPath(d.cfg.OnnxLib)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("wakeword: onnx init: %w", err)
	}
	defer ort.DestroyEnvironment()

	p, err := newPipeline(d.cfg)
	if err != nil {
		return err
	}
	defer p.close()

	audio, stop, err := openCapture()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMicrophoneUnavailable, err)
	}
	defer stop()
	d.log.Info("wakeword: listening (rate=%d, threshold=%.2f)", sampleRate, d.cfg.Threshold)

	window := newScoreWindow(scoreWindowSize, d.cfg.Threshold, d.cfg.Cooldown)
	pending := make([]int16, 0, chunkSamples*2)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-audio:
			ok, reset := d.active()
			if !ok {
				continue
			}
			if reset {
				p.reset()
				window.reset()
				pending = pending[:0]
				d.log.Debug("wakeword: pipeline reset after resume")
			}

			pending = append(pending, frame...)
			for len(pending) >= chunkSamples {
				chunk := make([]int16, chunkSamples)
				copy(chunk, pending)
				n := copy(pending, pending[chunkSamples:])
				pending = pending[:n]

				score, scored, err := p.process(chunk)
				if err != nil {
					d.log.Error("wakeword: %v", err)
					continue
				}
				if !scored {
					continue
				}

				fired, peak := window.push(score, time.Now())
				if float64(peak) >= d.cfg.Threshold*0.1 {
					d.log.Debug("wakeword: score=%.4f max=%.4f", score, peak)
				}
				if fired {
					d.log.Info("wakeword: detected (max=%.4f)", peak)
					if d.OnDetected != nil {
						d.OnDetected()
					}
				}
			}
		}
	}
}

// openCapture starts a 16 kHz mono S16 capture device. Frames that do not
// fit the queue are dropped.
func openCapture() (<-chan []int16, func(), error) {
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, nil, err
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = sampleRate
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = 1
	devCfg.Alsa.NoMMap = 1

	audio := make(chan []int16, audioQueueCap)
	var drops atomic.Int64
	device, err := malgo.InitDevice(mCtx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(_, raw []byte, _ uint32) {
			if len(raw) == 0 {
				return
			}
			select {
			case audio <- decodePCM16(raw):
			default:
				drops.Add(1)
			}
		},
	})
	if err != nil {
		_ = mCtx.Uninit()
		mCtx.Free()
		return nil, nil, err
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mCtx.Uninit()
		mCtx.Free()
		return nil, nil, err
	}

	stop := func() {
		_ = device.Stop()
		device.Uninit()
		_ = mCtx.Uninit()
		mCtx.Free()
	}
	return audio, stop, nil
}

// pipeline holds the three ONNX sessions and their sliding buffers.
type pipeline struct {
	melIn, melOut     *ort.Tensor[float32]
	embedIn, embedOut *ort.Tensor[float32]
	wwIn, wwOut       *ort.Tensor[float32]
	sessions          []*ort.AdvancedSession

	melSess, embedSess, wwSess *ort.AdvancedSession

	melBuffer   []float32
	embedBuffer []float32
}

func newPipeline(cfg Config) (p *pipeline, err error) {
	p = &pipeline{
		melBuffer:   make([]float32, 0, 300*melBins),
		embedBuffer: make([]float32, nEmbedFrames*embeddingDim),
	}
	defer func() {
		if err != nil {
			p.close()
		}
	}()

	tensor := func(shape ...int64) (*ort.Tensor[float32], error) {
		return ort.NewEmptyTensor[float32](ort.NewShape(shape...))
	}
	if p.melIn, err = tensor(1, chunkSamples); err != nil {
		return nil, err
	}
	if p.melOut, err = tensor(1, 1, nMelFrames, melBins); err != nil {
		return nil, err
	}
	if p.embedIn, err = tensor(1, melWindowSize, melBins, 1); err != nil {
		return nil, err
	}
	if p.embedOut, err = tensor(1, 1, 1, embeddingDim); err != nil {
		return nil, err
	}
	if p.wwIn, err = tensor(1, nEmbedFrames, embeddingDim); err != nil {
		return nil, err
	}
	if p.wwOut, err = tensor(1, 1); err != nil {
		return nil, err
	}

	if p.melSess, err = p.session(cfg.MelspecModel, p.melIn, p.melOut); err != nil {
		return nil, err
	}
	if p.embedSess, err = p.session(cfg.EmbeddingModel, p.embedIn, p.embedOut); err != nil {
		return nil, err
	}
	if p.wwSess, err = p.session(cfg.WakewordModel, p.wwIn, p.wwOut); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pipeline) session(model string, in, out *ort.Tensor[float32]) (*ort.AdvancedSession, error) {
	inInfo, outInfo, err := ort.GetInputOutputInfo(model)
	if err != nil {
		return nil, fmt.Errorf("wakeword: reading %s: %w", model, err)
	}
	s, err := ort.NewAdvancedSession(model,
		[]string{inInfo[0].Name}, []string{outInfo[0].Name},
		[]ort.Value{in}, []ort.Value{out},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("wakeword: loading %s: %w", model, err)
	}
	p.sessions = append(p.sessions, s)
	return s, nil
}

func (p *pipeline) close() {
	for _, s := range p.sessions {
		s.Destroy()
	}
	for _, t := range []*ort.Tensor[float32]{p.melIn, p.melOut, p.embedIn, p.embedOut, p.wwIn, p.wwOut} {
		if t != nil {
			t.Destroy()
		}
	}
}

func (p *pipeline) reset() {
	p.melBuffer = p.melBuffer[:0]
	clear(p.embedBuffer)
}

// process runs one 80 ms chunk through the pipeline. scored is false when
// no new embedding was produced.
func (p *pipeline) process(chunk []int16) (score float32, scored bool, err error) {
	in := p.melIn.GetData()
	for i, v := range chunk {
		in[i] = float32(v)
	}
	if err := p.melSess.Run(); err != nil {
		return 0, false, fmt.Errorf("melspec run: %w", err)
	}
	for _, v := range p.melOut.GetData()[:nMelFrames*melBins] {
		p.melBuffer = append(p.melBuffer, v/10.0+2.0)
	}

	newEmbed := false
	for len(p.melBuffer)/melBins >= melWindowSize {
		copy(p.embedIn.GetData(), p.melBuffer[:melWindowSize*melBins])
		if err := p.embedSess.Run(); err != nil {
			return 0, false, fmt.Errorf("embedding run: %w", err)
		}
		copy(p.embedBuffer, p.embedBuffer[embeddingDim:])
		copy(p.embedBuffer[(nEmbedFrames-1)*embeddingDim:], p.embedOut.GetData()[:embeddingDim])
		newEmbed = true

		n := copy(p.melBuffer, p.melBuffer[melStepSize*melBins:])
		p.melBuffer = p.melBuffer[:n]
	}
	if !newEmbed {
		return 0, false, nil
	}

	ww := p.wwIn.GetData()
	pad := (nEmbedFrames - recentWindow) * embeddingDim
	clear(ww[:pad])
	copy(ww[pad:], p.embedBuffer[pad:])
	if err := p.wwSess.Run(); err != nil {
		return 0, false, fmt.Errorf("wake-word run: %w", err)
	}
	return p.wwOut.GetData()[0], true, nil
}
