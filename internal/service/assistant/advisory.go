package assistant

// AdvisoryKind grades a user-visible message.
type AdvisoryKind string

const (
	AdvisoryInfo    AdvisoryKind = "info"
	AdvisorySuccess AdvisoryKind = "success"
	AdvisoryWarning AdvisoryKind = "warning"
	AdvisoryError   AdvisoryKind = "error"
)

// Advisory is a non-fatal message for the user. Recoverable failures end up
// here instead of in an error response.
type Advisory struct {
	Kind    AdvisoryKind `json:"kind"`
	Message string       `json:"message"`
}

const (
	msgUnrecognizedSpeech = "Sorry, I could not understand your voice."
	msgNetworkError       = "Network error. Try again."
	msgUnknownEmotion     = "Emotion not recognized. Try again or use dropdown."
	msgYouSaid            = "You said: "
	msgPlaybackFailed     = "Could not play the spoken response. Try again."
)

func heard(text string) Advisory {
	return Advisory{Kind: AdvisorySuccess, Message: msgYouSaid + text}
}

var (
	advisoryUnrecognized   = Advisory{Kind: AdvisoryError, Message: msgUnrecognizedSpeech}
	advisoryNetwork        = Advisory{Kind: AdvisoryError, Message: msgNetworkError}
	advisoryUnknownEmotion = Advisory{Kind: AdvisoryWarning, Message: msgUnknownEmotion}
	advisoryPlayback       = Advisory{Kind: AdvisoryError, Message: msgPlaybackFailed}
)
