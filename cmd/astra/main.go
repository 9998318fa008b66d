// Astra, a Spanish-speaking voice assistant for the home.
//
// Usage:
//
//	astra [-config astra.yaml] [-mode tap|hold|confirm] [-verbose] [-quiet]
//	      [-no-speech] [-no-voice] [-plain] [-metrics-addr :9464]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/astra/internal/config"
	"github.com/hammamikhairi/astra/internal/conversation"
	"github.com/hammamikhairi/astra/internal/display"
	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/engine"
	"github.com/hammamikhairi/astra/internal/gpt"
	"github.com/hammamikhairi/astra/internal/logger"
	"github.com/hammamikhairi/astra/internal/observe"
	"github.com/hammamikhairi/astra/internal/sensors"
	"github.com/hammamikhairi/astra/internal/speech"
	"github.com/hammamikhairi/astra/internal/storage"
	"github.com/hammamikhairi/astra/internal/wakeword"
)

const version = "0.3.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "astra: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to a YAML config file")
	mode := flag.String("mode", "", "turn-taking mode: tap, hold or confirm")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", "", "file to write logs to (use \"stderr\" to log to console)")
	noSpeech := flag.Bool("no-speech", false, "disable text-to-speech even if OPENAI_API_KEY is set")
	noVoice := flag.Bool("no-voice", false, "disable microphone capture; type instead")
	plain := flag.Bool("plain", false, "plain line-based output instead of the full-screen UI")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	whisperBin := flag.String("whisper-bin", "", "path to the whisper-cpp CLI binary")
	whisperModel := flag.String("whisper-model", "", "path to a multilingual Whisper GGML model")
	wakeModel := flag.String("wake-model", "", "path to the \"oye Astra\" wake-word ONNX model")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Flags override the file only when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = *mode
		case "log-file":
			cfg.Log.File = *logFile
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "whisper-bin":
			cfg.Speech.WhisperBin = *whisperBin
		case "whisper-model":
			cfg.Speech.WhisperModel = *whisperModel
		case "wake-model":
			cfg.WakeWord.Model = *wakeModel
		case "no-speech":
			cfg.Speech.Disabled = *noSpeech
		}
	})
	if *verbose {
		cfg.Log.Level = "verbose"
	}
	if *quiet {
		cfg.Log.Level = "off"
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	turnMode, _ := domain.ParseTurnMode(cfg.Mode)
	logLevel, _ := logger.ParseLevel(cfg.Log.Level)

	// Logs go to a file by default so the terminal UI stays clean.
	var logOut io.Writer = os.Stderr
	if cfg.Log.File != "" && cfg.Log.File != "stderr" {
		if dir := filepath.Dir(cfg.Log.File); dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.Log.File, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// The whisper transcriber logs through the standard log package.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ────────────────────────────────────────────────
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown: %v", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Sensors and transcript ───────────────────────────────────
	feed := sensors.NewFeed(log.With("sensors"), sensors.WithInterval(cfg.Sensors.Interval))
	transcripts := storage.NewMemoryLog(storage.DefaultCapacity, log.With("storage"))

	// ── Chat ─────────────────────────────────────────────────────
	apiKey := os.Getenv(speech.EnvOpenAIKey)
	offline := apiKey == ""
	responder := conversation.NewKeywordResponder(log.With("offline"))
	offlineStreamer := gpt.NewOfflineStreamer(responder, cfg.Offline.Delay, log.With("offline"))

	var streamer domain.ChatStreamer = offlineStreamer
	if !offline {
		client := gpt.NewClient(cfg.Chat.Endpoint, apiKey, log.With("gpt"), gpt.WithModel(cfg.Chat.Model))
		streamer = client
		if cfg.Chat.Fallback {
			streamer = gpt.NewFallbackStreamer(client, offlineStreamer, metrics, log.With("gpt"))
		}
		log.Info("chat enabled (model=%s)", cfg.Chat.Model)
	} else {
		log.Info("offline mode: set %s to enable chat and speech", speech.EnvOpenAIKey)
	}
	agent := gpt.NewAgent(streamer, log.With("gpt"),
		gpt.WithTemperature(cfg.Chat.Temperature),
		gpt.WithMaxTokens(cfg.Chat.MaxTokens),
		gpt.WithHistory(transcripts, cfg.Chat.HistoryTurns),
	)

	// ── Speech output ────────────────────────────────────────────
	var tts domain.Synthesizer
	var player domain.AudioPlayer
	if !offline && !cfg.Speech.Disabled {
		tts = speech.NewOpenAITTS(apiKey, log.With("tts"),
			speech.WithVoice(cfg.Speech.Voice),
			speech.WithTTSModel(cfg.Speech.Model),
			speech.WithSpeed(cfg.Speech.Speed),
			speech.WithInstructions(cfg.Speech.Instructions),
		)
		p, err := speech.NewPlayer(log.With("player"))
		if err != nil {
			log.Error("audio player init failed, playing nothing: %v", err)
			player = speech.NewNopPlayer(log.With("player"))
		} else {
			player = p
		}
	}
	mouth := speech.NewMouth(tts, player, log.With("mouth"),
		speech.WithCacheEntries(cfg.Speech.CacheEntries),
		speech.WithMetrics(metrics),
	)

	// ── Speech input ─────────────────────────────────────────────
	newEar := unavailableEars
	if !*noVoice {
		if _, err := os.Stat(cfg.Speech.WhisperModel); err != nil {
			log.Warn("whisper model not found at %s: voice capture disabled", cfg.Speech.WhisperModel)
		} else {
			newEar = speech.NewEarFactory(cfg.Speech.WhisperBin, cfg.Speech.WhisperModel, log.With("ear"),
				speech.WithMaxCapture(cfg.Speech.MaxCapture),
				speech.WithTempDir(".astra-stt"),
			)
		}
	}

	// ── Orchestrator and front end ───────────────────────────────
	var (
		ui        *display.UI
		observers domain.Observers
		detector  *wakeword.Detector
	)
	if cfg.WakeWord.Enabled() && !*noVoice {
		detector = wakeword.New(wakeword.Config{
			WakewordModel:  cfg.WakeWord.Model,
			MelspecModel:   cfg.WakeWord.MelspecModel,
			EmbeddingModel: cfg.WakeWord.EmbeddingModel,
			OnnxLib:        cfg.WakeWord.OnnxLib,
			Threshold:      cfg.WakeWord.Threshold,
			Cooldown:       cfg.WakeWord.Cooldown,
		}, log.With("wakeword"))
		observers = append(observers, detector.Gate())
	}

	var front domain.Observer
	orch := engine.New(agent, newEar, mouth, feed, log.With("engine"),
		engine.WithMode(turnMode),
		engine.WithTranscriptLog(transcripts),
		engine.WithMetrics(metrics),
		engine.WithBufferOptions(speech.WithOverflow(cfg.Speech.OverflowAt, speech.DefaultOverflowFloor)),
		engine.WithObserver(&observers),
	)
	if *plain {
		front = conversation.NewCLIObserver(log.With("cli"), os.Stdout)
	} else {
		ui = display.NewUI(orch, feed.Snapshot(), log.With("display"))
		feed.Subscribe(ui.SensorsChanged)
		front = ui
	}
	observers = append(domain.Observers{front}, observers...)

	if detector != nil {
		detector.OnDetected = func() {
			if orch.State() != domain.StateInactive {
				return
			}
			if err := orch.Wake(ctx); err != nil {
				log.Warn("wake word: %v", err)
			}
		}
	}

	// ── Run ──────────────────────────────────────────────────────
	mouth.Start(ctx)
	if tts != nil {
		mouth.Prefetch(ctx, speech.FixedLines()...)
	}
	feed.Start(ctx)
	defer feed.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(provider.Handler)}
		g.Go(func() error {
			log.Info("metrics on %s/metrics", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if detector != nil {
		g.Go(func() error {
			if err := detector.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("wake word disabled: %v", err)
			}
			return nil
		})
	}

	app := &app{
		orch:     orch,
		mouth:    mouth,
		log:      log,
		offline:  offline,
		voice:    !*noVoice,
		wakeword: detector != nil,
	}

	g.Go(func() error {
		defer stop()
		if ui != nil {
			return app.runUI(gctx, ui)
		}
		return app.runPlain(gctx, os.Stdin, os.Stdout)
	})

	return g.Wait()
}

func metricsMux(h http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	return mux
}

// unavailableEars is used when voice capture is disabled.
func unavailableEars() domain.Recognizer { return noEar{} }

type noEar struct{}

func (noEar) Start(context.Context) error {
	return fmt.Errorf("%w: voice capture disabled", domain.ErrMicrophoneUnavailable)
}
func (noEar) Stop()                          {}
func (noEar) Result() <-chan domain.Capture { return nil }
