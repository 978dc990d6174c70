package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/emotion-voice/backend/internal/config"
	"github.com/zhouzirui/emotion-voice/backend/internal/handler"
	"github.com/zhouzirui/emotion-voice/backend/internal/logging"
	"github.com/zhouzirui/emotion-voice/backend/internal/metrics"
	speechModel "github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/assistant"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/chat"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/lookup"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/playback"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/speech"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/voice"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log)
	log.Logger = logger
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, using process environment only")
	}

	metrics.MustRegister()

	store, err := lookup.Load(cfg.Data.EmotionTablePath, lookup.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Data.EmotionTablePath).Msg("cannot start without the emotion table")
	}
	logger.Info().Int("emotions", store.Len()).Msg("emotion table loaded")

	speechService := speech.NewService(&speechModel.SpeechConfig{
		AppID:          cfg.Speech.AppID,
		AccessToken:    cfg.Speech.AccessToken,
		APIKey:         cfg.Speech.APIKey,
		BaseURL:        cfg.Speech.BaseURL,
		ConcurrentMode: cfg.Speech.Concurrent,
		ASRLanguage:    cfg.Speech.ASRLanguage,
		TTSVoice:       cfg.Speech.TTSVoice,
		TTSSpeed:       cfg.Speech.TTSSpeed,
		TTSVolume:      cfg.Speech.TTSVolume,
		TTSLanguage:    cfg.Speech.TTSLanguage,
		Timeout:        cfg.Speech.Timeout,
	}, logger)
	if cfg.Speech.Enabled {
		logger.Info().Msg("speech engine configured")
	} else {
		logger.Warn().Msg("speech credentials missing, voice input and spoken replies will fail")
	}

	clips := playback.NewStore()
	sessions := chat.NewService()

	controller := assistant.NewController(assistant.Deps{
		Store:    store,
		Sessions: sessions,
		Input:    voice.NewInput(speechService, logger),
		Output: voice.NewOutput(speechService, clips,
			voice.WithTempDir(cfg.Audio.TempDir),
			voice.WithVoice(cfg.Speech.TTSVoice),
			voice.WithLanguage(cfg.Speech.TTSLanguage),
			voice.WithLogger(logger),
		),
		Clips:  clips,
		Logger: logger,
	})

	router := handler.NewRouter(handler.Services{
		Controller: controller,
		Sessions:   sessions,
		Clips:      clips,
		Speech:     speechService,
	}, logger)

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("emotion voice backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
