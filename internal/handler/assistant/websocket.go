package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/emotion-voice/backend/internal/service/voice"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	// One utterance may not grow past this many buffered bytes.
	maxUtteranceBytes = 10 << 20
)

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// AudioMessage carries one chunk of a recording. IsFinal closes the utterance.
type AudioMessage struct {
	AudioData  []byte `json:"audioData"`
	Format     string `json:"format"`
	Language   string `json:"language"`
	IsFinal    bool   `json:"isFinal"`
	ChunkIndex int    `json:"chunkIndex"`
}

// ConfigMessage changes the connection's capture settings.
type ConfigMessage struct {
	Language string `json:"language"`
	Format   string `json:"format"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type connectionState struct {
	sessionID   string
	language    string
	audioFormat string
	buffer      bytes.Buffer
}

func newConnectionState(sessionID string) *connectionState {
	return &connectionState{
		sessionID:   sessionID,
		language:    "en-US",
		audioFormat: "wav",
	}
}

func (s *connectionState) applyConfig(cfg ConfigMessage) {
	if cfg.Language != "" {
		s.language = cfg.Language
	}
	if cfg.Format != "" {
		s.audioFormat = cfg.Format
	}
}

// handleVoiceSocket streams microphone audio for one session. The client
// sends audio chunks and marks the last one final; each finished utterance is
// answered with a voice result.
func (h *Handler) handleVoiceSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.ctl.View(r.Context(), sessionID); err != nil {
		h.respondControllerError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("session", sessionID).Logger()
	logger.Info().Msg("voice channel opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	state := newConnectionState(sessionID)

	conn.SetReadLimit(maxUtteranceBytes * 2)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go pingLoop(ctx, conn)

	h.send(conn, outgoingMessage{Type: "connected", SessionID: sessionID, Data: map[string]any{
		"language": state.language,
		"format":   state.audioFormat,
	}})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("voice channel read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "audio":
			h.handleAudioMessage(ctx, conn, state, msg.Data)
		case "config":
			var cfg ConfigMessage
			if err := json.Unmarshal(msg.Data, &cfg); err != nil {
				h.sendError(conn, "invalid config payload")
				continue
			}
			state.applyConfig(cfg)
			h.send(conn, outgoingMessage{Type: "config", SessionID: sessionID, Data: map[string]any{
				"language": state.language,
				"format":   state.audioFormat,
			}})
		default:
			h.sendError(conn, "unsupported message type: "+msg.Type)
		}
	}
}

func (h *Handler) handleAudioMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil {
		h.sendError(conn, "invalid audio payload")
		return
	}

	if state.buffer.Len()+len(audio.AudioData) > maxUtteranceBytes {
		state.buffer.Reset()
		h.sendError(conn, "utterance too long")
		return
	}
	state.buffer.Write(audio.AudioData)
	state.applyConfig(ConfigMessage{Language: audio.Language, Format: audio.Format})

	if !audio.IsFinal {
		return
	}

	utt := voice.Utterance{
		Audio:    bytes.Clone(state.buffer.Bytes()),
		Format:   state.audioFormat,
		Language: state.language,
	}
	state.buffer.Reset()

	result, err := h.ctl.UseVoice(ctx, state.sessionID, utt)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.send(conn, outgoingMessage{Type: "voice", SessionID: state.sessionID, Data: result})
}

func (h *Handler) send(conn *websocket.Conn, msg outgoingMessage) {
	msg.Timestamp = time.Now().Unix()
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug().Err(err).Str("type", msg.Type).Msg("websocket write failed")
	}
}

func (h *Handler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, outgoingMessage{Type: "error", Data: map[string]string{"message": message}})
}

// pingLoop keeps the connection alive. WriteControl may run alongside the
// reader's WriteJSON calls.
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
