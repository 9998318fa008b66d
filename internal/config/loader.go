package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, Validate(cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates it.
// Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg is coherent. It returns a joined error listing
// every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if _, err := domain.ParseTurnMode(cfg.Mode); err != nil {
		errs = append(errs, fmt.Errorf("mode: %w; valid values: tap, hold, confirm", err))
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if cfg.Chat.Endpoint == "" {
		errs = append(errs, errors.New("chat.endpoint is required"))
	}
	if cfg.Chat.Model == "" {
		errs = append(errs, errors.New("chat.model is required"))
	}
	if cfg.Chat.Temperature < 0 || cfg.Chat.Temperature > 2 {
		errs = append(errs, fmt.Errorf("chat.temperature %.2f is out of range [0, 2]", cfg.Chat.Temperature))
	}
	if cfg.Chat.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("chat.max_tokens must be positive, got %d", cfg.Chat.MaxTokens))
	}
	if cfg.Chat.HistoryTurns < 0 {
		errs = append(errs, fmt.Errorf("chat.history_turns must not be negative, got %d", cfg.Chat.HistoryTurns))
	}

	if cfg.Speech.Speed < 0.25 || cfg.Speech.Speed > 4 {
		errs = append(errs, fmt.Errorf("speech.speed %.2f is out of range [0.25, 4.0]", cfg.Speech.Speed))
	}
	if cfg.Speech.OverflowAt < 120 {
		errs = append(errs, fmt.Errorf("speech.overflow_at must be at least 120, got %d", cfg.Speech.OverflowAt))
	}
	if cfg.Speech.MaxCapture <= 0 {
		errs = append(errs, fmt.Errorf("speech.max_capture must be positive, got %s", cfg.Speech.MaxCapture))
	}
	if cfg.Speech.CacheEntries < 0 {
		errs = append(errs, fmt.Errorf("speech.cache_entries must not be negative, got %d", cfg.Speech.CacheEntries))
	}

	if cfg.Sensors.Interval <= 0 {
		errs = append(errs, fmt.Errorf("sensors.interval must be positive, got %s", cfg.Sensors.Interval))
	}
	if cfg.Offline.Delay <= 0 {
		errs = append(errs, fmt.Errorf("offline.delay must be positive, got %s", cfg.Offline.Delay))
	}

	if cfg.WakeWord.Enabled() {
		if cfg.WakeWord.Threshold <= 0 || cfg.WakeWord.Threshold >= 1 {
			errs = append(errs, fmt.Errorf("wakeword.threshold %.2f is out of range (0, 1)", cfg.WakeWord.Threshold))
		}
		if cfg.WakeWord.MelspecModel == "" || cfg.WakeWord.EmbeddingModel == "" || cfg.WakeWord.OnnxLib == "" {
			errs = append(errs, errors.New("wakeword: melspec_model, embedding_model and onnx_lib are required when model is set"))
		}
	}

	return errors.Join(errs...)
}
