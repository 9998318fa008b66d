// Package engine implements the turn orchestrator: the voice state
// machine that ties capture, chat streaming and playback together.
package engine

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
	"github.com/hammamikhairi/astra/internal/observe"
	"github.com/hammamikhairi/astra/internal/speech"
)

// Dispatcher sends a transcript, with the current sensor readings, to the
// chat service and streams the reply.
type Dispatcher interface {
	Stream(ctx context.Context, transcript string, sensors domain.SensorSnapshot) iter.Seq2[string, error]
}

// Speaker is the playback queue the orchestrator feeds.
type Speaker interface {
	Enqueue(text string)
	Clear()
	WaitIdle(ctx context.Context) error
}

// EarFactory builds a fresh recognizer for every capture.
type EarFactory func() domain.Recognizer

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithMode sets the turn-taking mode.
func WithMode(m domain.TurnMode) Option {
	return func(o *Orchestrator) { o.mode = m }
}

// WithObserver registers the UI (or CLI) event sink.
func WithObserver(obs domain.Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithTranscriptLog stores completed exchanges.
func WithTranscriptLog(l domain.TranscriptLog) Option {
	return func(o *Orchestrator) { o.transcripts = l }
}

// WithMetrics records turn timings and outcomes.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithBufferOptions configures the per-turn sentence buffer.
func WithBufferOptions(opts ...speech.BufferOption) Option {
	return func(o *Orchestrator) { o.bufferOpts = opts }
}

// Orchestrator owns the voice state machine:
//
//	inactive   --StartCapture-->  listening
//	listening  --transcript-->    responding
//	listening  --empty/error-->   inactive
//	responding --drained-->       inactive
//	responding --StartCapture-->  listening (barge-in)
//
// Every public method is safe for concurrent use. Observer events are
// delivered in order, outside the state lock.
type Orchestrator struct {
	dispatcher  Dispatcher
	newEar      EarFactory
	mouth       Speaker
	sensors     domain.SensorSource
	transcripts domain.TranscriptLog
	observer    domain.Observer
	metrics     *observe.Metrics
	log         *logger.Logger
	bufferOpts  []speech.BufferOption

	mu      sync.Mutex
	mode    domain.TurnMode
	state   domain.VoiceState
	current *turn
	events  []func(domain.Observer)

	emitMu sync.Mutex
}

// New creates an orchestrator. It starts in the inactive state.
func New(dispatcher Dispatcher, newEar EarFactory, mouth Speaker, sensors domain.SensorSource, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dispatcher: dispatcher,
		newEar:     newEar,
		mouth:      mouth,
		sensors:    sensors,
		observer:   domain.NopObserver{},
		log:        log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current voice state.
func (o *Orchestrator) State() domain.VoiceState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Mode returns the turn-taking mode.
func (o *Orchestrator) Mode() domain.TurnMode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// SetMode switches the turn-taking mode. It applies from the next capture.
func (o *Orchestrator) SetMode(m domain.TurnMode) {
	o.mu.Lock()
	o.mode = m
	o.mu.Unlock()
	o.log.Info("turn mode: %s", m)
}

// Pending returns the transcript awaiting confirmation, if any.
func (o *Orchestrator) Pending() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return ""
	}
	return o.current.pending
}

// Greet speaks the welcome line.
func (o *Orchestrator) Greet(ctx context.Context) {
	line := speech.LineWelcome()
	o.mouth.Enqueue(line)
	o.mu.Lock()
	o.queueLocked(func(obs domain.Observer) { obs.ResponseDone("", line) })
	o.mu.Unlock()
	o.flush()
}

// StartCapture begins listening for a new utterance. While responding it
// barges in: the reply is cancelled, playback stops and queued units are
// dropped before the new capture starts. A transcript waiting for
// confirmation is discarded.
func (o *Orchestrator) StartCapture(ctx context.Context) error {
	o.mu.Lock()
	if o.state == domain.StateListening && (o.current == nil || o.current.pending == "") {
		o.mu.Unlock()
		return domain.ErrAlreadyListening
	}
	prev, prevState := o.abortLocked()
	t := newTurn(ctx, o.bufferOpts)
	t.ear = o.newEar()
	o.current = t
	o.setStateLocked(domain.StateListening)
	o.mu.Unlock()

	o.mouth.Clear()
	o.closeAborted(prev, prevState)
	o.flush()

	if err := t.ear.Start(t.ctx); err != nil {
		o.log.Error("capture start failed: %v", err)
		o.finish(t, observe.OutcomeFailed)
		if errors.Is(err, domain.ErrMicrophoneUnavailable) {
			line := speech.LineMicUnavailable()
			o.mouth.Enqueue(line)
			o.alert(line)
		}
		return err
	}

	o.log.Debug("turn %s: listening", t.ID)
	go o.awaitCapture(t)
	return nil
}

// Wake starts a capture on the wake word and speaks the listening cue.
// The cue is queued after StartCapture has cleared playback, so it is
// the first thing heard in the new turn.
func (o *Orchestrator) Wake(ctx context.Context) error {
	if err := o.StartCapture(ctx); err != nil {
		return err
	}
	o.mouth.Enqueue(speech.LineListening())
	return nil
}

// StopCapture ends the current capture early. The recognizer still
// delivers what it heard.
func (o *Orchestrator) StopCapture() error {
	o.mu.Lock()
	if o.state != domain.StateListening || o.current == nil || o.current.ear == nil || o.current.pending != "" {
		o.mu.Unlock()
		return domain.ErrNotListening
	}
	ear := o.current.ear
	o.mu.Unlock()

	ear.Stop()
	return nil
}

// Submit dispatches typed text as if it had been heard. Any turn in
// progress is abandoned first.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyInput
	}

	o.mu.Lock()
	prev, prevState := o.abortLocked()
	t := newTurn(ctx, o.bufferOpts)
	o.current = t
	o.mu.Unlock()

	o.mouth.Clear()
	o.closeAborted(prev, prevState)
	o.dispatch(t, text)
	return nil
}

// Confirm dispatches the transcript held in ModeConfirm.
func (o *Orchestrator) Confirm(ctx context.Context) error {
	o.mu.Lock()
	t := o.current
	if t == nil || t.pending == "" {
		o.mu.Unlock()
		return domain.ErrNoPendingTranscript
	}
	text := t.pending
	t.pending = ""
	o.mu.Unlock()

	o.dispatch(t, text)
	return nil
}

// Discard drops the transcript held in ModeConfirm and returns to inactive.
func (o *Orchestrator) Discard() error {
	o.mu.Lock()
	t := o.current
	if t == nil || t.pending == "" {
		o.mu.Unlock()
		return domain.ErrNoPendingTranscript
	}
	o.mu.Unlock()

	o.log.Debug("turn %s: transcript discarded", t.ID)
	o.finish(t, observe.OutcomeDiscarded)
	return nil
}

// Cancel abandons the current turn, whatever its state, and stops playback.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	prev, prevState := o.abortLocked()
	if prev != nil {
		o.setStateLocked(domain.StateInactive)
	}
	o.mu.Unlock()

	o.mouth.Clear()
	if prev != nil {
		o.metrics.RecordTurn(context.Background(), time.Since(prev.StartedAt), observe.OutcomeCancelled)
		o.log.Debug("turn %s: cancelled while %s", prev.ID, prevState)
	}
	o.flush()
}

// abortLocked detaches and cancels the current turn. Must hold o.mu.
func (o *Orchestrator) abortLocked() (*turn, domain.VoiceState) {
	prev, state := o.current, o.state
	if prev != nil {
		prev.cancel()
		o.current = nil
	}
	return prev, state
}

// closeAborted records a turn replaced by a new one.
func (o *Orchestrator) closeAborted(prev *turn, state domain.VoiceState) {
	if prev == nil {
		return
	}
	ctx := context.Background()
	if state == domain.StateResponding {
		o.metrics.RecordBargeIn(ctx)
		o.log.Info("barge-in: turn %s interrupted", prev.ID)
	}
	o.metrics.RecordTurn(ctx, time.Since(prev.StartedAt), observe.OutcomeCancelled)
}

// awaitCapture waits for the recognizer of t and moves the state machine on.
func (o *Orchestrator) awaitCapture(t *turn) {
	var c domain.Capture
	select {
	case got, ok := <-t.ear.Result():
		if ok {
			c = got
		}
	case <-t.ctx.Done():
		return
	}
	t.ear.Stop()

	if c.Err != nil {
		if t.ctx.Err() == nil {
			o.log.Warn("turn %s: recognition failed: %v", t.ID, c.Err)
		}
		o.finish(t, observe.OutcomeFailed)
		return
	}

	text := strings.TrimSpace(c.Text)
	if text == "" {
		o.log.Debug("turn %s: empty transcript", t.ID)
		o.finish(t, observe.OutcomeEmpty)
		return
	}

	o.mu.Lock()
	if o.current != t {
		o.mu.Unlock()
		return
	}
	if o.mode == domain.ModeConfirm {
		t.pending = text
		id := t.ID
		o.queueLocked(func(obs domain.Observer) { obs.Transcript(id, text) })
		o.mu.Unlock()
		o.flush()
		o.log.Debug("turn %s: awaiting confirmation", t.ID)
		return
	}
	o.mu.Unlock()

	o.dispatch(t, text)
}

// dispatch attaches the transcript to t and starts streaming the reply.
func (o *Orchestrator) dispatch(t *turn, text string) {
	o.mu.Lock()
	if o.current != t {
		o.mu.Unlock()
		return
	}
	t.Transcript = text
	o.setStateLocked(domain.StateResponding)
	id := t.ID
	o.queueLocked(func(obs domain.Observer) { obs.Transcript(id, text) })
	o.mu.Unlock()
	o.flush()

	o.log.Info("turn %s: dispatching %q", t.ID, text)
	go o.respond(t)
}

// respond streams the reply for t into the sentence buffer and the
// playback queue, then waits for playback to drain.
func (o *Orchestrator) respond(t *turn) {
	ctx, span := observe.StartSpan(t.ctx, "astra.turn", trace.WithAttributes(
		attribute.String("turn.id", t.ID),
	))
	defer span.End()

	sent := time.Now()
	first := true
	var streamErr error

	for frag, err := range o.dispatcher.Stream(ctx, t.Transcript, o.sensors.Snapshot()) {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			streamErr = err
			break
		}
		if frag == "" {
			continue
		}
		if first {
			first = false
			o.metrics.RecordFirstFragment(ctx, time.Since(sent))
		}

		o.mu.Lock()
		if o.current != t {
			o.mu.Unlock()
			return
		}
		t.Response += frag
		for _, unit := range t.buffer.Feed(frag) {
			o.mouth.Enqueue(unit)
		}
		id := t.ID
		o.queueLocked(func(obs domain.Observer) { obs.ResponseFragment(id, frag) })
		o.mu.Unlock()
		o.flush()
	}
	if ctx.Err() != nil {
		return
	}

	outcome := observe.OutcomeCompleted
	o.mu.Lock()
	if o.current != t {
		o.mu.Unlock()
		return
	}
	if streamErr != nil {
		outcome = observe.OutcomeFailed
		t.buffer.Reset()
		t.Final = speech.LineApology()
		o.mouth.Enqueue(t.Final)
	} else {
		if rest := t.buffer.Flush(); rest != "" {
			o.mouth.Enqueue(rest)
		}
		t.Final = t.Response
	}
	id, final := t.ID, t.Final
	o.queueLocked(func(obs domain.Observer) { obs.ResponseDone(id, final) })
	o.mu.Unlock()
	o.flush()

	if streamErr != nil {
		span.RecordError(streamErr)
		span.SetStatus(codes.Error, streamErr.Error())
		o.log.Error("turn %s: chat failed: %v", t.ID, streamErr)
	}

	if o.transcripts != nil {
		if err := o.transcripts.Append(ctx, t.exchange(streamErr != nil)); err != nil {
			o.log.Warn("turn %s: storing exchange: %v", t.ID, err)
		}
	}

	if err := o.mouth.WaitIdle(ctx); err != nil {
		return
	}
	o.log.Debug("turn %s: complete (%s)", t.ID, time.Since(t.StartedAt).Round(time.Millisecond))
	o.finish(t, outcome)
}

// finish returns to inactive if t is still the current turn.
func (o *Orchestrator) finish(t *turn, outcome string) {
	o.mu.Lock()
	if o.current != t {
		o.mu.Unlock()
		return
	}
	o.current = nil
	t.cancel()
	o.setStateLocked(domain.StateInactive)
	o.mu.Unlock()
	o.flush()

	o.metrics.RecordTurn(context.Background(), time.Since(t.StartedAt), outcome)
}

func (o *Orchestrator) alert(msg string) {
	o.mu.Lock()
	o.queueLocked(func(obs domain.Observer) { obs.Alert(msg) })
	o.mu.Unlock()
	o.flush()
}

// setStateLocked changes state and queues the event. Must hold o.mu.
func (o *Orchestrator) setStateLocked(s domain.VoiceState) {
	if o.state == s {
		return
	}
	o.log.Debug("state: %s -> %s", o.state, s)
	o.state = s
	o.queueLocked(func(obs domain.Observer) { obs.StateChanged(s) })
}

// queueLocked appends an observer event. Must hold o.mu.
func (o *Orchestrator) queueLocked(ev func(domain.Observer)) {
	o.events = append(o.events, ev)
}

// flush delivers queued events in order. Events are queued under o.mu,
// so their order matches the order of the state changes.
func (o *Orchestrator) flush() {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	for {
		o.mu.Lock()
		if len(o.events) == 0 {
			o.mu.Unlock()
			return
		}
		ev := o.events[0]
		o.events = o.events[1:]
		o.mu.Unlock()
		ev(o.observer)
	}
}
