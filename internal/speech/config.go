package speech

import "time"

// Default voice settings for the OpenAI speech endpoint.
const (
	DefaultVoice        = "nova"
	DefaultTTSModel     = "gpt-4o-mini-tts"
	DefaultSpeed        = 1.0
	DefaultLanguage     = "es"
	DefaultInstructions = "Habla en español de España, con tono cálido, claro y natural, como una asistente del hogar."
)

// Audio parameters of the WAV the speech endpoint returns and the player expects.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Sentence buffer thresholds, in runes.
const (
	DefaultOverflowAt    = 220
	DefaultOverflowFloor = 100
)

// DefaultMaxCapture bounds a single utterance.
const DefaultMaxCapture = 8 * time.Second

// EnvOpenAIKey is the single credential. When unset, the assistant runs offline.
const EnvOpenAIKey = "OPENAI_API_KEY"

// playbackItem is a queued sentence unit tagged with the queue generation
// that was current when it was enqueued.
type playbackItem struct {
	Text       string
	Generation uint64
	QueuedAt   time.Time
}
