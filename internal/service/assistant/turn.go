package assistant

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/emotion-voice/backend/internal/model/emotion"
)

// UserMessage is the user half of a turn.
func UserMessage(label string) string {
	return fmt.Sprintf("**User:** I feel %s.", strings.ToLower(label))
}

// AssistantMessage is the markdown reply shown in the history.
func AssistantMessage(e emotion.Entry) string {
	return fmt.Sprintf("**Assistant:** You can try: **%s**\n\n_Why this helps_: %s", e.SuggestedAction, e.PsychologicalInsight)
}

// SpokenText is the plain sentence read aloud for a reply.
func SpokenText(e emotion.Entry) string {
	return fmt.Sprintf("You can try: %s. Because %s", e.SuggestedAction, e.PsychologicalInsight)
}
