// Command voicebridge runs the voice conversation relay server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/voicebridge/internal/config"
	"github.com/teslashibe/voicebridge/internal/log"
	"github.com/teslashibe/voicebridge/pkg/audio"
	"github.com/teslashibe/voicebridge/pkg/conversation"
	"github.com/teslashibe/voicebridge/pkg/health"
	"github.com/teslashibe/voicebridge/pkg/hub"
	"github.com/teslashibe/voicebridge/pkg/llm"
	"github.com/teslashibe/voicebridge/pkg/pipeline"
	"github.com/teslashibe/voicebridge/pkg/session"
	"github.com/teslashibe/voicebridge/pkg/stt"
	"github.com/teslashibe/voicebridge/pkg/tts"
	"github.com/teslashibe/voicebridge/pkg/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	port := flag.Int("port", 0, "Override the configured listen port")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Init("info")
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	level := cfg.App.LogLevel
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.L()

	if err := config.CheckKeys(); err != nil {
		logger.Error("startup aborted", "error", err)
		os.Exit(1)
	}

	conditioner, err := audio.NewConditioner(cfg.Audio.Channels, cfg.Audio.NoiseThreshold, cfg.Audio.TargetRMS)
	if err != nil {
		logger.Error("audio setup failed", "error", err)
		os.Exit(1)
	}

	transcriber, err := newTranscriber(cfg)
	if err != nil {
		logger.Error("speech recognition setup failed", "provider", cfg.Speech.DefaultProvider, "error", err)
		os.Exit(1)
	}
	defer transcriber.Close()

	generator, err := newGenerator(cfg)
	if err != nil {
		logger.Error("llm setup failed", "provider", cfg.LLM.DefaultProvider, "error", err)
		os.Exit(1)
	}
	defer generator.Close()

	synthesizer, err := newSynthesizer(cfg)
	if err != nil {
		logger.Error("voice setup failed", "provider", cfg.Voice.DefaultProvider, "error", err)
		os.Exit(1)
	}
	defer synthesizer.Close()

	registry := session.NewRegistry()
	history, err := conversation.NewStore(cfg.Session.HistoryCap)
	if err != nil {
		logger.Error("conversation store setup failed", "error", err)
		os.Exit(1)
	}

	orch, err := pipeline.New(pipeline.Options{
		Conditioner:    conditioner,
		Transcriber:    transcriber,
		Generator:      generator,
		Synthesizer:    synthesizer,
		Registry:       registry,
		History:        history,
		ReceiveTimeout: cfg.Server.ReceiveTimeout,
		MaxSessionAge:  cfg.Session.MaxSessionAge,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}

	checker := health.NewAggregator()
	checker.RegisterChecker("speech_recognition", transcriber)
	checker.RegisterChecker("llm", generator)
	checker.RegisterChecker("voice", synthesizer)
	checker.Register("sessions", func(ctx context.Context) health.Component {
		return health.Component{
			Status: health.StatusHealthy,
			Stats:  map[string]any{"active": registry.ActiveCount()},
		}
	})
	checker.Register("pipeline", func(ctx context.Context) health.Component {
		m := orch.Metrics().Snapshot()
		return health.Component{
			Status: health.StatusHealthy,
			Stats: map[string]any{
				"frames_processed": m.FramesProcessed,
				"exchanges":        m.Exchanges,
				"stage_failures":   m.StageFailures,
				"timeouts":         m.Timeouts,
				"avg_exchange_ms":  m.AverageExchangeLatency().Milliseconds(),
			},
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweepLoop(ctx, registry, history, cfg.Session, logger)

	statusHub := hub.New("status", logger)
	go statusLoop(ctx, statusHub, registry, orch)

	server := web.NewServer(web.Options{
		Port:         cfg.Server.Port,
		Orchestrator: orch,
		Health:       checker,
		StatusHub:    statusHub,
		Logger:       logger,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutting down", "signal", sig.String())
		cancel()
		if err := server.Shutdown(); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("voicebridge starting",
		"version", cfg.App.Version,
		"port", cfg.Server.Port,
		"speech_provider", cfg.Speech.DefaultProvider,
		"llm_provider", cfg.LLM.DefaultProvider,
		"voice_provider", cfg.Voice.DefaultProvider,
	)
	if err := server.Listen(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("voicebridge stopped")
}

// loadConfig reads the file at path, falling back to built-in defaults when
// the default config file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func newTranscriber(cfg *config.Config) (stt.Transcriber, error) {
	switch cfg.Speech.DefaultProvider {
	case "deepgram":
		return stt.NewDeepgram(
			stt.WithAPIKey(os.Getenv("DEEPGRAM_API_KEY")),
			stt.WithModel(cfg.Speech.Model),
			stt.WithLanguage(cfg.Speech.Language),
			stt.WithSampleRate(cfg.Audio.SampleRate),
			stt.WithChannels(cfg.Audio.Channels),
			stt.WithLogger(log.L()),
		)
	default:
		return nil, stt.WrapError(cfg.Speech.DefaultProvider, stt.ErrProviderUnavailable)
	}
}

func newGenerator(cfg *config.Config) (llm.Generator, error) {
	switch cfg.LLM.DefaultProvider {
	case "openai":
		return llm.NewOpenAI(
			llm.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
			llm.WithModel(cfg.LLM.Model),
			llm.WithTemperature(cfg.LLM.Temperature),
			llm.WithMaxTokens(cfg.LLM.MaxTokens),
			llm.WithLogger(log.L()),
		)
	default:
		return nil, llm.WrapError(cfg.LLM.DefaultProvider, llm.ErrProviderUnavailable)
	}
}

func newSynthesizer(cfg *config.Config) (tts.Synthesizer, error) {
	switch cfg.Voice.DefaultProvider {
	case "elevenlabs":
		return tts.NewElevenLabs(
			tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
			tts.WithVoice(cfg.Voice.VoiceID),
			tts.WithModel(cfg.Voice.Model),
			tts.WithVoiceSettings(tts.VoiceSettings{
				Stability:       cfg.Voice.Stability,
				SimilarityBoost: cfg.Voice.SimilarityBoost,
			}),
			tts.WithLogger(log.L()),
		)
	default:
		return nil, tts.WrapError(cfg.Voice.DefaultProvider, tts.ErrProviderUnavailable)
	}
}

// statusLoop broadcasts a service snapshot to status subscribers. Updates
// are skipped while nobody is listening.
func statusLoop(ctx context.Context, statusHub *hub.Hub, registry *session.Registry, orch *pipeline.Orchestrator) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if statusHub.SubscriberCount() == 0 {
				continue
			}
			m := orch.Metrics().Snapshot()
			statusHub.BroadcastJSON(map[string]any{
				"active_sessions":  registry.ActiveCount(),
				"frames_processed": m.FramesProcessed,
				"exchanges":        m.Exchanges,
				"stage_failures":   m.StageFailures,
				"timeouts":         m.Timeouts,
				"avg_exchange_ms":  m.AverageExchangeLatency().Milliseconds(),
			})
		}
	}
}

// sweepLoop periodically removes ended sessions past the retention window
// and releases their conversation history.
func sweepLoop(ctx context.Context, registry *session.Registry, history *conversation.Store, cfg config.SessionConfig, logger *slog.Logger) {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := registry.Sweep(cfg.RetentionAge)
			for _, id := range removed {
				history.Clear(id)
			}
			if len(removed) > 0 {
				logger.Debug("swept expired sessions", "count", len(removed))
			}
		}
	}
}
