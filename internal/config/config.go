// Package config holds Astra's runtime settings: defaults, an optional
// YAML file and validation. Command-line flags are applied on top by the
// caller.
package config

import (
	"time"

	"github.com/hammamikhairi/astra/internal/gpt"
	"github.com/hammamikhairi/astra/internal/sensors"
	"github.com/hammamikhairi/astra/internal/speech"
)

// Config is the root configuration.
type Config struct {
	// Mode is the turn-taking mode: tap, hold or confirm.
	Mode string `yaml:"mode"`

	Chat     ChatConfig     `yaml:"chat"`
	Speech   SpeechConfig   `yaml:"speech"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Offline  OfflineConfig  `yaml:"offline"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	WakeWord WakeWordConfig `yaml:"wakeword"`
}

// ChatConfig configures the streaming chat service.
type ChatConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	HistoryTurns int     `yaml:"history_turns"`
	// Fallback streams canned offline replies when the service fails
	// before answering.
	Fallback bool `yaml:"fallback"`
}

// SpeechConfig configures capture and synthesis.
type SpeechConfig struct {
	Voice        string        `yaml:"voice"`
	Model        string        `yaml:"model"`
	Speed        float64       `yaml:"speed"`
	Instructions string        `yaml:"instructions"`
	CacheEntries int           `yaml:"cache_entries"`
	OverflowAt   int           `yaml:"overflow_at"`
	MaxCapture   time.Duration `yaml:"max_capture"`
	WhisperBin   string        `yaml:"whisper_bin"`
	WhisperModel string        `yaml:"whisper_model"`
	// Disabled turns synthesis off; replies are shown but not spoken.
	Disabled bool `yaml:"disabled"`
}

// SensorsConfig configures the mock sensor feed.
type SensorsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// OfflineConfig configures the canned responder.
type OfflineConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is off, normal or verbose.
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// WakeWordConfig configures the optional wake-word trigger. It is
// disabled unless Model is set.
type WakeWordConfig struct {
	Model          string        `yaml:"model"`
	MelspecModel   string        `yaml:"melspec_model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	OnnxLib        string        `yaml:"onnx_lib"`
	Threshold      float64       `yaml:"threshold"`
	Cooldown       time.Duration `yaml:"cooldown"`
}

// Enabled reports whether a wake-word model is configured.
func (w WakeWordConfig) Enabled() bool { return w.Model != "" }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode: "tap",
		Chat: ChatConfig{
			Endpoint:     gpt.DefaultEndpoint,
			Model:        gpt.DefaultModel,
			Temperature:  gpt.DefaultTemperature,
			MaxTokens:    gpt.DefaultMaxTokens,
			HistoryTurns: gpt.DefaultHistoryTurns,
			Fallback:     true,
		},
		Speech: SpeechConfig{
			Voice:        speech.DefaultVoice,
			Model:        speech.DefaultTTSModel,
			Speed:        speech.DefaultSpeed,
			Instructions: speech.DefaultInstructions,
			CacheEntries: 64,
			OverflowAt:   speech.DefaultOverflowAt,
			MaxCapture:   speech.DefaultMaxCapture,
			WhisperBin:   "whisper-cli",
			WhisperModel: "models/ggml-base.bin",
		},
		Sensors: SensorsConfig{Interval: sensors.DefaultInterval},
		Offline: OfflineConfig{Delay: gpt.DefaultOfflineDelay},
		Log: LogConfig{
			Level: "normal",
			File:  "astra.log",
		},
		WakeWord: WakeWordConfig{
			MelspecModel:   "bin/melspectrogram.onnx",
			EmbeddingModel: "bin/embedding_model.onnx",
			OnnxLib:        "bin/libonnxruntime.so",
			Threshold:      0.3,
			Cooldown:       1500 * time.Millisecond,
		},
	}
}
