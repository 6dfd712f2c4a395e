package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"workhub/internal/api"
	"workhub/internal/hub"
	"workhub/internal/metrics"
)

func New(log *zap.Logger, h *hub.Hub) http.Handler {
	handlers := api.NewHandlers(log, h)
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware)

	r.Get("/healthz", handlers.Health)
	r.Get("/readyz", handlers.Ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/ws", handlers.WorkspaceWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Timeout(10 * time.Second)).Group(func(r chi.Router) {
			r.Get("/presence", handlers.GetPresence)
			r.Get("/rooms/{roomId}/occupants", handlers.GetOccupants)
			r.Get("/rooms/{roomId}/editors", handlers.GetEditors)
			r.Get("/rooms/{roomId}/board", handlers.GetBoard)
		})
	})

	return r
}
