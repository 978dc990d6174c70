package voice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"

	speechmodel "github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/playback"
	speechsvc "github.com/zhouzirui/emotion-voice/backend/internal/service/speech"
)

// Synthesizer is the part of the speech service Output needs.
type Synthesizer interface {
	SynthesizeToBuffer(ctx context.Context, sessionID, text, voice, language string) (*speechmodel.TTSResponse, error)
}

// Surface takes a staged audio file and makes it playable. The file is
// removed once Present returns.
type Surface interface {
	Present(ctx context.Context, sessionID, path, mime string) (playback.Clip, error)
}

// Output synthesizes text and hands the audio to a Surface through a
// temporary file.
type Output struct {
	synth    Synthesizer
	surface  Surface
	tempDir  string
	voice    string
	language string
	logger   zerolog.Logger
}

// OutputOption configures an Output.
type OutputOption func(*Output)

// WithTempDir stages audio under dir instead of os.TempDir().
func WithTempDir(dir string) OutputOption {
	return func(o *Output) { o.tempDir = dir }
}

// WithVoice selects the synthesis voice.
func WithVoice(voice string) OutputOption {
	return func(o *Output) { o.voice = voice }
}

// WithLanguage selects the synthesis language.
func WithLanguage(language string) OutputOption {
	return func(o *Output) { o.language = language }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) OutputOption {
	return func(o *Output) { o.logger = logger }
}

// NewOutput creates an Output.
func NewOutput(synth Synthesizer, surface Surface, opts ...OutputOption) *Output {
	o := &Output{
		synth:   synth,
		surface: surface,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "voice_output").Logger()
	return o
}

// Speak synthesizes text as mp3 and surfaces it for playback. The staged temp
// file is removed on every return path. All failures wrap ErrSynthesis.
func (o *Output) Speak(ctx context.Context, sessionID, text string) (playback.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return playback.Clip{}, fmt.Errorf("%w: %w", ErrSynthesis, speechsvc.ErrEmptyText)
	}

	resp, err := o.synth.SynthesizeToBuffer(ctx, sessionID, text, o.voice, o.language)
	if err != nil {
		return playback.Clip{}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	if len(resp.AudioData) == 0 {
		return playback.Clip{}, fmt.Errorf("%w: %w", ErrSynthesis, speechsvc.ErrEmptyAudio)
	}

	f, err := os.CreateTemp(o.tempDir, "emotion-voice-*.mp3")
	if err != nil {
		return playback.Clip{}, fmt.Errorf("%w: create temp file: %w", ErrSynthesis, err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			o.logger.Warn().Err(err).Str("path", path).Msg("temp audio not removed")
		}
	}()

	if _, err := f.Write(resp.AudioData); err != nil {
		f.Close()
		return playback.Clip{}, fmt.Errorf("%w: write temp file: %w", ErrSynthesis, err)
	}
	if err := f.Close(); err != nil {
		return playback.Clip{}, fmt.Errorf("%w: close temp file: %w", ErrSynthesis, err)
	}

	clip, err := o.surface.Present(ctx, sessionID, path, playback.MIMETypeMP3)
	if err != nil {
		return playback.Clip{}, fmt.Errorf("%w: present audio: %w", ErrSynthesis, err)
	}

	o.logger.Debug().Str("session", sessionID).Str("clip", clip.ID).Int("bytes", len(resp.AudioData)).Msg("spoken")
	return clip, nil
}
