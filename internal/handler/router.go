package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/emotion-voice/backend/internal/handler/assistant"
	"github.com/zhouzirui/emotion-voice/backend/internal/handler/speech"
	middlewarePkg "github.com/zhouzirui/emotion-voice/backend/internal/middleware"
	"github.com/zhouzirui/emotion-voice/backend/pkg/utils"
)

// Services are the collaborators the routes are built from. Speech may be
// nil, in which case the diagnostic routes are not mounted.
type Services struct {
	Controller assistant.Controller
	Sessions   assistant.SessionCreator
	Clips      assistant.ClipSource
	Speech     speech.SpeechService
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.AccessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	assistantHandler := assistant.New(svc.Controller, svc.Sessions, svc.Clips, logger)

	r.Route("/api", func(api chi.Router) {
		assistantHandler.RegisterRoutes(api)

		if svc.Speech != nil {
			speech.New(svc.Speech, logger).RegisterRoutes(api)
		}
	})

	return r
}
