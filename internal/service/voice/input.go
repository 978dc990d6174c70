// Package voice adapts the speech engine to the assistant: Input turns one
// recorded utterance into a label guess and Output turns a response into a
// playable clip.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	speechmodel "github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
	speechsvc "github.com/zhouzirui/emotion-voice/backend/internal/service/speech"
)

// Recognizer is the part of the speech service Input needs.
type Recognizer interface {
	TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speechmodel.ASRResponse, error)
}

// Utterance is one captured recording.
type Utterance struct {
	SessionID string
	Audio     []byte
	Format    string
	Language  string
}

// Transcript is one recognized utterance. Text is what the engine heard;
// Label is that text normalized for matching against emotion labels.
type Transcript struct {
	Text  string
	Label string
}

// Input converts utterances to capitalized text.
type Input struct {
	recognizer Recognizer
	logger     zerolog.Logger
}

// NewInput creates an Input backed by recognizer.
func NewInput(recognizer Recognizer, logger zerolog.Logger) *Input {
	return &Input{
		recognizer: recognizer,
		logger:     logger.With().Str("component", "voice_input").Logger(),
	}
}

// Listen transcribes utt. The returned Label has trailing punctuation
// stripped and is capitalized so it matches the lookup table's label casing.
// Failures wrap ErrUnrecognizedSpeech or ErrRecognitionServiceUnavailable;
// nothing is retried.
func (in *Input) Listen(ctx context.Context, utt Utterance) (Transcript, error) {
	if len(utt.Audio) == 0 {
		return Transcript{}, fmt.Errorf("%w: %w", ErrUnrecognizedSpeech, speechsvc.ErrNoAudio)
	}

	format := utt.Format
	if format == "" {
		format = "wav"
	}

	resp, err := in.recognizer.TranscribeBuffer(ctx, utt.SessionID, utt.Audio, format, utt.Language)
	if err != nil {
		if errors.Is(err, speechsvc.ErrNoAudio) {
			return Transcript{}, fmt.Errorf("%w: %w", ErrUnrecognizedSpeech, err)
		}
		in.logger.Warn().Err(err).Str("session", utt.SessionID).Msg("recognition failed")
		return Transcript{}, fmt.Errorf("%w: %w", ErrRecognitionServiceUnavailable, err)
	}

	t := Transcript{Text: strings.TrimSpace(resp.Text), Label: Normalize(resp.Text)}
	if t.Label == "" {
		return Transcript{}, ErrUnrecognizedSpeech
	}
	return t, nil
}

// Normalize turns a transcript into a label candidate: surrounding space and
// trailing punctuation ("happy." or "happy。") are dropped, then the rest is
// capitalized.
func Normalize(s string) string {
	s = strings.TrimRightFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return Capitalize(s)
}

// Capitalize trims s, title-cases its first letter and lower-cases the rest.
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToTitle(r)) + strings.ToLower(s[size:])
}
