package speech

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

var _ domain.Recognizer = (*Ear)(nil)

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[música]", "(aplausos)".
var envAnnotation = regexp.MustCompile(`[\(\[][\p{L}][\p{L}\s]*[\)\]]`)

// timestampPrefix matches "[00:00:00.000 --> 00:00:05.000]".
var timestampPrefix = regexp.MustCompile(`^\[[0-9:.\s\->]+\]\s*`)

// EarOption configures the Ear.
type EarOption func(*Ear)

// WithMaxCapture bounds how long one capture may run before it stops itself.
func WithMaxCapture(d time.Duration) EarOption {
	return func(e *Ear) {
		if d > 0 {
			e.maxCapture = d
		}
	}
}

// WithTranscribeTimeout bounds the wait for the transcript after recording stops.
func WithTranscribeTimeout(d time.Duration) EarOption {
	return func(e *Ear) {
		if d > 0 {
			e.transcribeTimeout = d
		}
	}
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) EarOption {
	return func(e *Ear) { e.tempDir = dir }
}

// recorder is the part of the whisper transcriber the Ear drives.
type recorder struct {
	start func() error
	stop  func()
}

type recorderFactory func(onText func(string)) (recorder, error)

// Ear captures a single utterance with a local Whisper model. Start
// records until Stop, the maximum capture duration, or ctx cancellation;
// the cleaned transcript is then delivered once on Result. An Ear cannot
// be restarted: build a new one per turn.
type Ear struct {
	whisperBin        string
	modelPath         string
	tempDir           string
	language          string
	maxCapture        time.Duration
	transcribeTimeout time.Duration
	log               *logger.Logger
	newRecorder       recorderFactory

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	result  chan domain.Capture
	once    sync.Once
}

// NewEar creates a single-shot capture adapter.
//
//   - whisperBin: path to the whisper-cli executable
//   - modelPath:  path to the GGML model file (use a multilingual model)
func NewEar(whisperBin, modelPath string, log *logger.Logger, opts ...EarOption) *Ear {
	e := &Ear{
		whisperBin:        whisperBin,
		modelPath:         modelPath,
		tempDir:           ".astra-stt",
		language:          DefaultLanguage,
		maxCapture:        DefaultMaxCapture,
		transcribeTimeout: 30 * time.Second,
		log:               log,
		stopCh:            make(chan struct{}),
		result:            make(chan domain.Capture, 1),
	}
	e.newRecorder = e.whisperRecorder
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEarFactory returns a constructor producing a fresh Ear per capture.
func NewEarFactory(whisperBin, modelPath string, log *logger.Logger, opts ...EarOption) func() domain.Recognizer {
	return func() domain.Recognizer {
		return NewEar(whisperBin, modelPath, log, opts...)
	}
}

// Result delivers the single Capture of this Ear.
func (e *Ear) Result() <-chan domain.Capture {
	return e.result
}

// Start begins recording. It fails with a wrapped ErrMicrophoneUnavailable
// when the recorder cannot be started.
func (e *Ear) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return domain.ErrAlreadyListening
	}
	e.started = true
	e.mu.Unlock()

	texts := make(chan string, 1)
	rec, err := e.newRecorder(func(text string) {
		select {
		case texts <- text:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMicrophoneUnavailable, err)
	}
	if err := rec.start(); err != nil {
		return fmt.Errorf("%w: recording start: %v", domain.ErrMicrophoneUnavailable, err)
	}

	e.log.Debug("ear: capturing (lang=%s, max=%s)", e.language, e.maxCapture)
	go e.await(ctx, rec, texts)
	return nil
}

// Stop ends the capture early. The transcript of what was recorded so far
// is still delivered. Safe to call more than once.
func (e *Ear) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.stopped {
		return
	}
	e.stopped = true
	close(e.stopCh)
}

func (e *Ear) await(ctx context.Context, rec recorder, texts <-chan string) {
	timer := time.NewTimer(e.maxCapture)
	defer timer.Stop()

	select {
	case <-e.stopCh:
	case <-timer.C:
		e.log.Debug("ear: max capture reached")
	case <-ctx.Done():
		rec.stop()
		e.deliver(domain.Capture{Err: ctx.Err()})
		return
	}
	rec.stop()

	select {
	case text := <-texts:
		text = cleanTranscription(text)
		e.log.Info("ear: heard %q", text)
		e.deliver(domain.Capture{Text: text})
	case <-time.After(e.transcribeTimeout):
		e.deliver(domain.Capture{Err: fmt.Errorf("%w: no transcript after %s", domain.ErrRecognition, e.transcribeTimeout)})
	case <-ctx.Done():
		e.deliver(domain.Capture{Err: ctx.Err()})
	}
}

func (e *Ear) deliver(c domain.Capture) {
	e.once.Do(func() {
		e.result <- c
		close(e.result)
	})
}

// whisperRecorder wires the whisper-cli transcriber.
func (e *Ear) whisperRecorder(onText func(string)) (recorder, error) {
	if _, err := exec.LookPath(e.whisperBin); err != nil {
		return recorder{}, fmt.Errorf("whisper binary %q not found: %w", e.whisperBin, err)
	}
	verbose := e.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(
		e.whisperBin,
		e.modelPath,
		e.tempDir,
		"wav",
		onText,
		verbose,
	)
	if err != nil {
		return recorder{}, fmt.Errorf("transcriber init: %w", err)
	}
	return recorder{
		start: func() error { return t.Start() },
		stop:  func() { t.Stop() },
	}, nil
}

// junkAnnotations are stripped from anywhere in a transcript.
var junkAnnotations = []string{
	"[BLANK_AUDIO]",
	"[BLANK AUDIO]",
	"(silence)",
	"[silence]",
	"(silencio)",
	"[silencio]",
	"(no speech)",
	"[Music]",
	"[Música]",
	"(música)",
	"(risas)",
	"(aplausos)",
	"(inaudible)",
}

// hallucinations are whole-transcript outputs whisper produces on silence.
var hallucinations = []string{
	"...",
	"you",
	"Thank you.",
	"Gracias por ver el video.",
	"Gracias por ver.",
	"Subtítulos realizados por la comunidad de Amara.org",
	"Sous-titres réalisés para la communauté d'Amara.org",
}

// cleanTranscription normalizes whitespace and removes whisper artefacts.
// A transcript made only of artefacts or a known hallucination becomes "".
func cleanTranscription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = timestampPrefix.ReplaceAllString(s, "")

	for _, j := range junkAnnotations {
		s = strings.ReplaceAll(s, j, "")
		s = strings.ReplaceAll(s, strings.ToLower(j), "")
	}
	s = envAnnotation.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	for _, h := range hallucinations {
		if strings.EqualFold(h, s) {
			return ""
		}
	}
	return s
}
