package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	speechhandler "github.com/zhouzirui/emotion-voice/backend/internal/handler/speech"
	"github.com/zhouzirui/emotion-voice/backend/internal/model/chat"
	assistantsvc "github.com/zhouzirui/emotion-voice/backend/internal/service/assistant"
	chatsvc "github.com/zhouzirui/emotion-voice/backend/internal/service/chat"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/playback"
	"github.com/zhouzirui/emotion-voice/backend/internal/service/voice"
	"github.com/zhouzirui/emotion-voice/backend/pkg/utils"
)

const maxUploadBytes = 32 << 20

// Controller is the interaction surface the routes drive.
type Controller interface {
	Options() assistantsvc.Options
	View(ctx context.Context, sessionID string) (assistantsvc.View, error)
	UseVoice(ctx context.Context, sessionID string, utt voice.Utterance) (assistantsvc.VoiceResult, error)
	Select(ctx context.Context, sessionID, label string) (assistantsvc.View, error)
	Submit(ctx context.Context, sessionID, label string) (assistantsvc.SubmitResult, error)
	Export(ctx context.Context, sessionID string, w io.Writer) error
}

// SessionCreator provisions sessions.
type SessionCreator interface {
	CreateSession(ctx context.Context) (*chat.Session, error)
}

// ClipSource serves synthesized replies.
type ClipSource interface {
	Clip(sessionID, clipID string) (playback.Clip, bool)
}

// Handler serves the assistant API.
type Handler struct {
	ctl      Controller
	sessions SessionCreator
	clips    ClipSource
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// New creates the assistant Handler.
func New(ctl Controller, sessions SessionCreator, clips ClipSource, logger zerolog.Logger) *Handler {
	return &Handler{
		ctl:      ctl,
		sessions: sessions,
		clips:    clips,
		logger:   logger.With().Str("component", "assistant_handler").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the emotion and session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/emotions", h.handleOptions)

	r.Route("/sessions", func(sr chi.Router) {
		sr.Post("/", h.handleCreateSession)

		sr.Route("/{sessionID}", func(s chi.Router) {
			s.Get("/", h.handleView)
			s.Put("/selection", h.handleSelect)
			s.Post("/voice", h.handleVoiceUpload)
			s.Get("/voice/ws", h.handleVoiceSocket)
			s.Post("/submit", h.handleSubmit)
			s.Get("/audio/{clipID}", h.handleAudio)
			s.Get("/export", h.handleExport)
		})
	})
}

type selectionRequest struct {
	Emotion string `json:"emotion"`
}

func (h *Handler) handleOptions(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.ctl.Options())
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.CreateSession(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("create session failed")
		utils.RespondError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	view, err := h.ctl.View(r.Context(), session.ID)
	if err != nil {
		h.respondControllerError(w, err)
		return
	}

	h.logger.Info().Str("session", session.ID).Msg("session created")
	utils.RespondJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := h.ctl.View(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var payload selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.ctl.Select(r.Context(), chi.URLParam(r, "sessionID"), payload.Emotion)
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleVoiceUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "could not read audio")
		return
	}

	format := strings.TrimSpace(r.FormValue("format"))
	if format == "" {
		format = speechhandler.InferAudioFormat(header.Filename)
	}

	result, err := h.ctl.UseVoice(r.Context(), chi.URLParam(r, "sessionID"), voice.Utterance{
		Audio:    audio,
		Format:   format,
		Language: r.FormValue("language"),
	})
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload selectionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.ctl.Submit(r.Context(), chi.URLParam(r, "sessionID"), payload.Emotion)
	if errors.Is(err, assistantsvc.ErrUnknownEmotionLabel) {
		utils.RespondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	clip, ok := h.clips.Clip(chi.URLParam(r, "sessionID"), chi.URLParam(r, "clipID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "clip not found")
		return
	}

	w.Header().Set("Content-Type", clip.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(clip.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(clip.Data); err != nil {
		h.logger.Debug().Err(err).Msg("write audio response")
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.ctl.Export(r.Context(), chi.URLParam(r, "sessionID"), &buf); err != nil {
		h.respondControllerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+assistantsvc.ExportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Debug().Err(err).Msg("write export response")
	}
}

func (h *Handler) respondControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatsvc.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, assistantsvc.ErrUnknownEmotionLabel):
		utils.RespondError(w, http.StatusUnprocessableEntity, "Emotion not recognized. Try again or use dropdown.")
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
	default:
		h.logger.Error().Err(err).Msg("request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
