package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/loomchat/loom-backend/internal/dispatch"
	"github.com/loomchat/loom-backend/internal/ws"
)

func SetupRoutes(d *dispatch.Dispatcher, stats Stats, logger *zap.Logger, originPatterns []string) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/stats", StatsHandler(stats))
	r.Get("/ws", ws.Handler(d, logger, originPatterns))
	return r
}
