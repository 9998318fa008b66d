package domain

import (
	"context"
	"iter"
)

// Recognizer captures one utterance. Implementations are single-shot:
// a new Recognizer is built for every capture.
type Recognizer interface {
	// Start begins capturing. It fails with ErrMicrophoneUnavailable
	// (wrapped) when the audio input cannot be opened.
	Start(ctx context.Context) error
	// Stop ends capture early; the result is still delivered on Result.
	Stop()
	// Result delivers exactly one Capture per successful Start.
	Result() <-chan Capture
}

// Capture is the final outcome of a recognizer run.
type Capture struct {
	Text string
	Err  error
}

// ChatStreamer streams the assistant's reply as text fragments.
// Iteration stops early when ctx is cancelled or the consumer breaks out.
// A non-nil error is yielded at most once and ends the stream.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req ChatRequest) iter.Seq2[string, error]
}

// Synthesizer turns text into playable audio (WAV bytes).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioPlayer plays audio data. Play blocks until playback finishes or
// Stop is called.
type AudioPlayer interface {
	Play(ctx context.Context, audio []byte) error
	Stop()
}

// SensorSource yields the latest sensor snapshot.
type SensorSource interface {
	Snapshot() SensorSnapshot
}

// TranscriptLog keeps completed exchanges for history and display.
type TranscriptLog interface {
	Append(ctx context.Context, ex Exchange) error
	Recent(ctx context.Context, n int) ([]Exchange, error)
}

// Observer receives orchestrator events. Implementations must not block
// and must not call back into the orchestrator synchronously.
type Observer interface {
	StateChanged(state VoiceState)
	Transcript(turnID, text string)
	ResponseFragment(turnID, fragment string)
	ResponseDone(turnID, final string)
	Alert(message string)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) StateChanged(VoiceState) {}
func (NopObserver) Transcript(string, string) {}
func (NopObserver) ResponseFragment(string, string) {}
func (NopObserver) ResponseDone(string, string) {}
func (NopObserver) Alert(string) {}

// Observers fans every event out to each observer in order.
type Observers []Observer

func (os Observers) StateChanged(s VoiceState) {
	for _, o := range os {
		o.StateChanged(s)
	}
}

func (os Observers) Transcript(turnID, text string) {
	for _, o := range os {
		o.Transcript(turnID, text)
	}
}

func (os Observers) ResponseFragment(turnID, fragment string) {
	for _, o := range os {
		o.ResponseFragment(turnID, fragment)
	}
}

func (os Observers) ResponseDone(turnID, final string) {
	for _, o := range os {
		o.ResponseDone(turnID, final)
	}
}

func (os Observers) Alert(message string) {
	for _, o := range os {
		o.Alert(message)
	}
}
