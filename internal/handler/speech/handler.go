package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
	speechsvc "github.com/zhouzirui/emotion-voice/backend/internal/service/speech"
	"github.com/zhouzirui/emotion-voice/backend/pkg/utils"
)

// SpeechService is the engine surface the diagnostic routes need.
type SpeechService interface {
	TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error)
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
	Configured() bool
}

// Handler exposes the raw speech engine for diagnostics.
type Handler struct {
	speechSvc SpeechService
	logger    zerolog.Logger
}

// New creates a speech Handler.
func New(speechSvc SpeechService, logger zerolog.Logger) *Handler {
	return &Handler{
		speechSvc: speechSvc,
		logger:    logger.With().Str("component", "speech_handler").Logger(),
	}
}

// RegisterRoutes mounts /speech on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/transcribe", h.handleTranscribe)
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
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

	req := &speech.ASRRequest{
		SessionID: r.FormValue("sessionId"),
		AudioData: file,
		Format:    InferAudioFormat(header.Filename),
		Language:  r.FormValue("language"),
	}

	resp, err := h.speechSvc.TranscribeAudio(r.Context(), req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("transcribe failed")
		utils.RespondError(w, statusForEngineError(err), "speech recognition failed: "+err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speech.TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("synthesize failed")
		utils.RespondError(w, statusForEngineError(err), "speech synthesis failed: "+err.Error())
		return
	}

	format := resp.Format
	if format == "" {
		format = "mp3"
	}
	w.Header().Set("Content-Type", "audio/"+format)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.Header().Set("Content-Disposition", "attachment; filename=speech."+format)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		h.logger.Debug().Err(err).Msg("write audio response")
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if !h.speechSvc.Configured() {
		status = "unconfigured"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"service": "speech",
	})
}

func statusForEngineError(err error) int {
	switch {
	case errors.Is(err, speechsvc.ErrNoAudio), errors.Is(err, speechsvc.ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, speechsvc.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, speechsvc.ErrEngineUnavailable), errors.Is(err, speechsvc.ErrEmptyAudio):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// InferAudioFormat maps an upload's file extension to an engine format name.
func InferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3", ".wav", ".webm", ".m4a", ".aac", ".ogg", ".pcm":
		return ext[1:]
	default:
		return "wav"
	}
}
