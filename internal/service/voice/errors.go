package voice

import "errors"

var (
	// ErrUnrecognizedSpeech means audio arrived but produced no usable text.
	ErrUnrecognizedSpeech = errors.New("speech not recognized")
	// ErrRecognitionServiceUnavailable means the recognition engine could not
	// be reached or failed.
	ErrRecognitionServiceUnavailable = errors.New("recognition service unavailable")
	// ErrSynthesis means no playable audio was produced for a text.
	ErrSynthesis = errors.New("speech synthesis failed")
)
