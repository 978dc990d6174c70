// Package assistant drives one user's conversation: it resolves an emotion
// from voice or the dropdown, records a turn per submit and speaks the reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/emotion-voice/backend/internal/metrics"
	"github.com/zhouzirui/emotion-voice/backend/internal/model/chat"
	"github.com/zhouzirui/emotion-voice/backend/internal/model/emotion"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/playback"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/voice"
)

// ErrUnknownEmotionLabel means a label is not in the lookup table.
var ErrUnknownEmotionLabel = errors.New("emotion not recognized")

// Sessions resolves session ids.
type Sessions interface {
	GetSession(ctx context.Context, sessionID string) (*chat.Session, error)
}

// Listener turns an utterance into a label guess.
type Listener interface {
	Listen(ctx context.Context, utt voice.Utterance) (voice.Transcript, error)
}

// Speaker reads a reply aloud.
type Speaker interface {
	Speak(ctx context.Context, sessionID, text string) (playback.Clip, error)
}

// Clips exposes the latest spoken reply per session.
type Clips interface {
	Latest(sessionID string) (playback.Clip, bool)
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Store    emotion.Store
	Sessions Sessions
	Input    Listener
	Output   Speaker
	Clips    Clips
	Logger   zerolog.Logger
}

// Controller is the interaction state machine. Every operation holds the
// session lock until it returns, blocking engine calls included.
type Controller struct {
	store    emotion.Store
	sessions Sessions
	input    Listener
	output   Speaker
	clips    Clips
	logger   zerolog.Logger
	now      func() time.Time
}

// NewController wires a Controller.
func NewController(deps Deps) *Controller {
	return &Controller{
		store:    deps.Store,
		sessions: deps.Sessions,
		input:    deps.Input,
		output:   deps.Output,
		clips:    deps.Clips,
		logger:   deps.Logger.With().Str("component", "assistant").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Options lists the dropdown choices.
type Options struct {
	Placeholder string   `json:"placeholder"`
	Labels      []string `json:"labels"`
}

// View is the rendered state of a session.
type View struct {
	SessionID       string         `json:"sessionId"`
	SelectedEmotion string         `json:"selectedEmotion,omitempty"`
	History         []chat.Turn    `json:"history"` // newest first
	ExportAvailable bool           `json:"exportAvailable"`
	LatestClip      *playback.Clip `json:"latestClip,omitempty"`
}

// VoiceResult reports one voice capture. Heard is the transcript as
// recognized; Label is the emotion label it was matched as.
type VoiceResult struct {
	Heard           string     `json:"heard,omitempty"`
	Label           string     `json:"label,omitempty"`
	SelectedEmotion string     `json:"selectedEmotion,omitempty"`
	Advisories      []Advisory `json:"advisories"`
}

// SubmitResult reports one submit. Turn is nil when nothing was selected.
type SubmitResult struct {
	Turn       *chat.Turn     `json:"turn,omitempty"`
	Clip       *playback.Clip `json:"clip,omitempty"`
	Advisories []Advisory     `json:"advisories"`
	View       View           `json:"view"`
}

// Options returns the placeholder followed by every label in table order.
func (c *Controller) Options() Options {
	return Options{Placeholder: emotion.Placeholder, Labels: c.store.Labels()}
}

// View renders the session.
func (c *Controller) View(ctx context.Context, sessionID string) (View, error) {
	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	session.Lock()
	defer session.Unlock()

	return c.render(session), nil
}

// UseVoice captures one utterance and, when it names a known emotion, makes
// it the selection. Recognition failures and unknown labels come back as
// advisories with the session untouched; the returned error is reserved for
// session lookup.
func (c *Controller) UseVoice(ctx context.Context, sessionID string, utt voice.Utterance) (VoiceResult, error) {
	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return VoiceResult{}, err
	}
	session.Lock()
	defer session.Unlock()

	utt.SessionID = session.ID
	result := VoiceResult{Advisories: []Advisory{}}

	transcript, err := c.input.Listen(ctx, utt)
	switch {
	case errors.Is(err, voice.ErrUnrecognizedSpeech):
		metrics.VoiceRecognized("unrecognized")
		result.Advisories = append(result.Advisories, advisoryUnrecognized, advisoryUnknownEmotion)
	case err != nil:
		metrics.VoiceRecognized("unavailable")
		result.Advisories = append(result.Advisories, advisoryNetwork, advisoryUnknownEmotion)
	default:
		result.Heard = transcript.Text
		result.Label = transcript.Label
		result.Advisories = append(result.Advisories, heard(transcript.Text))
		if _, ok := c.store.Lookup(transcript.Label); ok {
			session.Select(transcript.Label)
			metrics.VoiceRecognized("selected")
			metrics.Selected("voice", "selected")
		} else {
			metrics.VoiceRecognized("unknown_label")
			metrics.Selected("voice", "unknown_label")
			result.Advisories = append(result.Advisories, advisoryUnknownEmotion)
		}
	}

	if err != nil {
		c.logger.Info().Err(err).Str("session", session.ID).Msg("voice capture failed")
	}

	result.SelectedEmotion, _ = session.Selected()
	return result, nil
}

// Select applies a dropdown choice. The placeholder and the empty string
// leave the selection as it is; a label outside the table is rejected with
// ErrUnknownEmotionLabel.
func (c *Controller) Select(ctx context.Context, sessionID, label string) (View, error) {
	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	session.Lock()
	defer session.Unlock()

	if err := c.applyDropdown(session, label); err != nil {
		return c.render(session), err
	}
	return c.render(session), nil
}

// Submit applies an optional dropdown choice and then, if an emotion is
// selected, appends one turn and speaks the reply. Without a selection it
// does nothing. A synthesis failure keeps the appended turn and adds an
// advisory.
func (c *Controller) Submit(ctx context.Context, sessionID, label string) (SubmitResult, error) {
	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	session.Lock()
	defer session.Unlock()

	result := SubmitResult{Advisories: []Advisory{}}

	if err := c.applyDropdown(session, label); err != nil {
		result.Advisories = append(result.Advisories, advisoryUnknownEmotion)
		result.View = c.render(session)
		return result, err
	}

	selected, ok := session.Selected()
	if !ok {
		metrics.Submitted("no_selection")
		result.View = c.render(session)
		return result, nil
	}

	entry, ok := c.store.Lookup(selected)
	if !ok {
		// The table is immutable, so a stored selection always resolves.
		return result, fmt.Errorf("%w: %q", ErrUnknownEmotionLabel, selected)
	}

	turn := chat.Turn{
		User:      UserMessage(entry.Emotion),
		Assistant: AssistantMessage(entry),
		CreatedAt: c.now(),
	}
	n := session.Append(turn)
	metrics.Submitted("appended")
	result.Turn = &turn

	c.logger.Debug().Str("session", session.ID).Str("emotion", entry.Emotion).Int("turns", n).Msg("turn appended")

	clip, err := c.output.Speak(ctx, session.ID, SpokenText(entry))
	if err != nil {
		metrics.Synthesized(false)
		c.logger.Warn().Err(err).Str("session", session.ID).Msg("spoken response dropped")
		result.Advisories = append(result.Advisories, advisoryPlayback)
	} else {
		metrics.Synthesized(true)
		result.Clip = &clip
	}

	result.View = c.render(session)
	return result, nil
}

// Export writes the session history as CSV in append order.
func (c *Controller) Export(ctx context.Context, sessionID string, w io.Writer) error {
	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Lock()
	turns := session.History()
	session.Unlock()

	if err := WriteHistoryCSV(w, turns); err != nil {
		return err
	}
	metrics.Exported()
	return nil
}

func (c *Controller) applyDropdown(session *chat.Session, label string) error {
	if label == "" || label == emotion.Placeholder {
		return nil
	}
	if _, ok := c.store.Lookup(label); !ok {
		metrics.Selected("dropdown", "unknown_label")
		return fmt.Errorf("%w: %q", ErrUnknownEmotionLabel, label)
	}
	session.Select(label)
	metrics.Selected("dropdown", "selected")
	return nil
}

// render must be called with the session locked.
func (c *Controller) render(session *chat.Session) View {
	history := session.History()
	slices.Reverse(history)

	view := View{
		SessionID:       session.ID,
		History:         history,
		ExportAvailable: len(history) > 0,
	}
	view.SelectedEmotion, _ = session.Selected()

	if c.clips != nil {
		if clip, ok := c.clips.Latest(session.ID); ok {
			view.LatestClip = &clip
		}
	}
	return view
}
