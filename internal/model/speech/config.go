package speech

// SpeechConfig holds the Volcengine OpenSpeech credentials and defaults.
type SpeechConfig struct {
	AppID          string `json:"appId"`
	AccessToken    string `json:"accessToken"`
	APIKey         string `json:"apiKey,omitempty"` // legacy alias for AccessToken
	BaseURL        string `json:"baseUrl"`          // engine host override, e.g. a regional gateway or a test server
	ConcurrentMode bool   `json:"concurrentMode"`   // concurrent ASR resource instead of the hourly one

	ASRLanguage string `json:"asrLanguage"`

	TTSVoice    string  `json:"ttsVoice"`
	TTSSpeed    float32 `json:"ttsSpeed"`
	TTSVolume   float32 `json:"ttsVolume"`
	TTSLanguage string  `json:"ttsLanguage"`

	// Timeout bounds one engine round trip, in seconds.
	Timeout int `json:"timeout"`
}
