package speech

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the engine credentials are missing.
	ErrNotConfigured = errors.New("speech engine not configured")
	// ErrEngineUnavailable covers dial, transport and protocol failures as
	// well as error codes reported by the engine.
	ErrEngineUnavailable = errors.New("speech engine unavailable")
	// ErrNoAudio means an utterance carried no audio bytes.
	ErrNoAudio = errors.New("no audio data")
	// ErrEmptyText means there was nothing to synthesize.
	ErrEmptyText = errors.New("text is empty")
	// ErrEmptyAudio means the engine finished without producing audio.
	ErrEmptyAudio = errors.New("engine returned no audio")
)

// EngineError is an error code reported by the speech engine.
type EngineError struct {
	Service string // "asr" or "tts"
	Code    int
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s engine error %d: %s", e.Service, e.Code, e.Message)
}

// Unwrap classifies every engine-reported failure as unavailability.
func (e *EngineError) Unwrap() error {
	return ErrEngineUnavailable
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrEngineUnavailable, fmt.Errorf(format, args...))
}
