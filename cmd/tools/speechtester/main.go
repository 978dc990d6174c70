// Command speechtester exercises the voice adapters against the live speech
// engine from the command line.
//
//	speechtester -mode=listen -audio=happy.wav
//	speechtester -mode=speak -emotion=Happy -out=reply.mp3
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/emotion-voice/backend/internal/config"
	"github.com/zhouzirui/emotion-voice/backend/internal/logging"
	speechmodel "github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/assistant"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/lookup"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/playback"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/speech"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/voice"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Log.Format == "json" {
		cfg.Log.Format = "console"
	}
	logger := logging.New(cfg.Log)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, using process environment only")
	}

	mode := flag.String("mode", "", "listen or speak")
	audioPath := flag.String("audio", "", "listen: input audio file")
	format := flag.String("format", "", "listen: input format, inferred from the file extension when empty")
	emotionLabel := flag.String("emotion", "", "speak: read the reply for this emotion label")
	text := flag.String("text", "", "speak: read this text instead of an emotion reply")
	outputPath := flag.String("out", "", "speak: output mp3 path (generated when empty)")
	tablePath := flag.String("table", cfg.Data.EmotionTablePath, "emotion lookup table")
	language := flag.String("lang", "", "language code, defaults to the configured one")
	voiceID := flag.String("voice", "", "speak: voice id or alias, defaults to the configured one")
	session := flag.String("session", "", "session id, generated when empty")
	timeout := flag.Duration("timeout", 45*time.Second, "request timeout")

	flag.Parse()

	if *mode != "listen" && *mode != "speak" {
		flag.Usage()
		logger.Fatal().Msg("pick a mode with -mode=listen or -mode=speak")
	}
	if !cfg.Speech.Enabled {
		logger.Fatal().Msg("speech engine is not configured, set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	svc := speech.NewService(&speechmodel.SpeechConfig{
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)

	var runErr error
	switch *mode {
	case "listen":
		runErr = runListen(ctx, svc, logger, sessionID, *tablePath, *audioPath, *format, *language)
	case "speak":
		runErr = runSpeak(ctx, svc, cfg, logger, sessionID, *tablePath, *emotionLabel, *text, *voiceID, *language, *outputPath)
	}
	cancel()

	if runErr != nil {
		logger.Fatal().Err(runErr).Str("mode", *mode).Msg("speech test failed")
	}
}

func runListen(ctx context.Context, rec voice.Recognizer, logger zerolog.Logger, sessionID, tablePath, audioPath, format, language string) error {
	if audioPath == "" {
		return errors.New("listen mode needs -audio")
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(audioPath)), ".")
	}

	input := voice.NewInput(rec, logger)
	transcript, err := input.Listen(ctx, voice.Utterance{
		SessionID: sessionID,
		Audio:     audio,
		Format:    format,
		Language:  language,
	})
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info().Str("heard", transcript.Text).Str("label", transcript.Label).Msg("recognized")

	store, err := lookup.Load(tablePath, lookup.WithLogger(logger))
	if err != nil {
		logger.Warn().Err(err).Msg("table unavailable, skipping label check")
		return nil
	}
	entry, ok := store.Lookup(transcript.Label)
	if !ok {
		logger.Warn().Str("label", transcript.Label).Msg("not an emotion in the table")
		return nil
	}
	logger.Info().Str("emotion", entry.Emotion).Str("action", entry.SuggestedAction).Msg("emotion selected")
	return nil
}

func runSpeak(ctx context.Context, synth voice.Synthesizer, cfg *config.Config, logger zerolog.Logger, sessionID, tablePath, label, text, voiceID, language, outputPath string) error {
	if strings.TrimSpace(text) == "" {
		if label == "" {
			return errors.New("speak mode needs -emotion or -text")
		}
		store, err := lookup.Load(tablePath, lookup.WithLogger(logger))
		if err != nil {
			return err
		}
		entry, ok := store.Lookup(label)
		if !ok {
			return fmt.Errorf("unknown emotion %q, known: %s", label, strings.Join(store.Labels(), ", "))
		}
		text = assistant.SpokenText(entry)
	}

	if voiceID == "" {
		voiceID = cfg.Speech.TTSVoice
	}
	if language == "" {
		language = cfg.Speech.TTSLanguage
	}
	if outputPath == "" {
		outputPath = fmt.Sprintf("speech-%d.mp3", time.Now().Unix())
	}

	output := voice.NewOutput(synth, fileSurface{path: outputPath},
		voice.WithTempDir(cfg.Audio.TempDir),
		voice.WithVoice(voiceID),
		voice.WithLanguage(language),
		voice.WithLogger(logger),
	)

	logger.Info().Str("voice", voiceID).Str("text", text).Msg("synthesizing")
	if _, err := output.Speak(ctx, sessionID, text); err != nil {
		return err
	}
	logger.Info().Str("out", outputPath).Msg("audio written")
	return nil
}

// fileSurface keeps a copy of the staged audio at path.
type fileSurface struct {
	path string
}

func (s fileSurface) Present(ctx context.Context, sessionID, path, mime string) (playback.Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return playback.Clip{}, err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return playback.Clip{}, err
	}
	return playback.Clip{SessionID: sessionID, MIME: mime, CreatedAt: time.Now().UTC()}, nil
}
