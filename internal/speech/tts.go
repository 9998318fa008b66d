package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

var _ domain.Synthesizer = (*OpenAITTS)(nil)

// TTSOption configures the OpenAI TTS client.
type TTSOption func(*OpenAITTS)

// WithVoice sets the TTS voice.
func WithVoice(voice string) TTSOption {
	return func(c *OpenAITTS) {
		if voice != "" {
			c.voice = voice
		}
	}
}

// WithTTSModel sets the speech model.
func WithTTSModel(model string) TTSOption {
	return func(c *OpenAITTS) {
		if model != "" {
			c.model = model
		}
	}
}

// WithSpeed sets the speaking rate (0.25 to 4.0).
func WithSpeed(speed float64) TTSOption {
	return func(c *OpenAITTS) {
		if speed > 0 {
			c.speed = speed
		}
	}
}

// WithInstructions sets the style instructions sent with every request.
func WithInstructions(s string) TTSOption {
	return func(c *OpenAITTS) { c.instructions = s }
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(url string) TTSOption {
	return func(c *OpenAITTS) { c.baseURL = url }
}

// OpenAITTS synthesizes speech through the OpenAI audio/speech endpoint
// and always asks for WAV so the player can stream the PCM directly.
type OpenAITTS struct {
	client       oai.Client
	voice        string
	model        string
	speed        float64
	instructions string
	baseURL      string
	timeout      time.Duration
	log          *logger.Logger
}

// NewOpenAITTS creates a TTS client authenticated with apiKey.
func NewOpenAITTS(apiKey string, log *logger.Logger, opts ...TTSOption) *OpenAITTS {
	c := &OpenAITTS{
		voice:        DefaultVoice,
		model:        DefaultTTSModel,
		speed:        DefaultSpeed,
		instructions: DefaultInstructions,
		timeout:      30 * time.Second,
		log:          log,
	}
	for _, opt := range opts {
		opt(c)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: c.timeout}),
	}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	c.client = oai.NewClient(reqOpts...)
	return c
}

// Voice returns the configured voice name.
func (c *OpenAITTS) Voice() string { return c.voice }

// Synthesize converts text to WAV audio.
func (c *OpenAITTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	c.log.Debug("openai tts: synthesizing %d chars with voice %s", len(text), c.voice)

	params := oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(c.model),
		Voice:          oai.AudioSpeechNewParamsVoice(c.voice),
		Speed:          oai.Float(c.speed),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	}
	if c.instructions != "" {
		params.Instructions = oai.String(c.instructions)
	}

	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("openai tts error %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio data: %w", err)
	}

	c.log.Debug("openai tts: got %d bytes of audio", len(audio))
	return audio, nil
}
