package speech

import "io"

// ASRRequest is one utterance to transcribe.
type ASRRequest struct {
	SessionID string    `json:"sessionId"`
	AudioData io.Reader `json:"-"`
	Format    string    `json:"format"`   // wav, mp3, pcm, ...
	Language  string    `json:"language"` // en-US, zh-CN, ...
}

// TTSRequest is one text to synthesize.
type TTSRequest struct {
	SessionID string  `json:"sessionId"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Speed     float32 `json:"speed"`  // 0.5-2.0
	Volume    float32 `json:"volume"` // 0.0-1.0
	Format    string  `json:"format"` // mp3 unless told otherwise
	Language  string  `json:"language"`
}
