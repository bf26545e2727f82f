package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/duelarena/backend/internal/history"
	"github.com/duelarena/backend/internal/hub"
	"github.com/duelarena/backend/internal/match"
	"github.com/duelarena/backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, store *history.Store, rules match.Rules, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Post("/sessions", CreateSession(h, rules, logger))
	r.Get("/sessions/{code}", GetSession(h))
	r.Get("/matches", ListMatches(store))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, logger))
	return r
}
