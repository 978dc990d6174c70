package speech

import (
	"bytes"
	"context"
	"time"

	"github.com/rs/zerolog"

	speechmodel "github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
)

// Service fronts the Volcengine ASR and TTS clients and bounds every call by
// the configured timeout.
type Service struct {
	config    *speechmodel.SpeechConfig
	ttsClient *VolcengineTTSClient
	asrClient *VolcengineASRClient
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewService builds the engine clients from cfg.
func NewService(cfg *speechmodel.SpeechConfig, logger zerolog.Logger) *Service {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Service{
		config:    cfg,
		ttsClient: NewVolcengineTTSClient(cfg, logger),
		asrClient: NewVolcengineASRClient(cfg, logger),
		timeout:   timeout,
		logger:    logger.With().Str("component", "speech").Logger(),
	}
}

// Configured reports whether credentials are present.
func (s *Service) Configured() bool {
	_, _, err := resolveCredentials(s.config)
	return err == nil
}

// TranscribeAudio converts one utterance to text.
func (s *Service) TranscribeAudio(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.asrClient.Transcribe(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("session", req.SessionID).Msg("transcription failed")
		return nil, err
	}
	s.logger.Debug().
		Str("session", req.SessionID).
		Int("chars", len(resp.Text)).
		Dur("took", time.Since(start)).
		Msg("transcribed")
	return resp, nil
}

// SynthesizeSpeech converts text to audio.
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.ttsClient.Synthesize(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("session", req.SessionID).Msg("synthesis failed")
		return nil, err
	}
	s.logger.Debug().
		Str("session", req.SessionID).
		Int("bytes", len(resp.AudioData)).
		Dur("took", time.Since(start)).
		Msg("synthesized")
	return resp, nil
}

// TranscribeBuffer is TranscribeAudio for an in-memory recording.
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speechmodel.ASRResponse, error) {
	return s.TranscribeAudio(ctx, &speechmodel.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audio),
		Format:    format,
		Language:  language,
	})
}

// SynthesizeToBuffer is SynthesizeSpeech with the configured voice.
func (s *Service) SynthesizeToBuffer(ctx context.Context, sessionID, text, voice, language string) (*speechmodel.TTSResponse, error) {
	return s.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{
		SessionID: sessionID,
		Text:      text,
		Voice:     voice,
		Language:  language,
		Format:    "mp3",
	})
}
