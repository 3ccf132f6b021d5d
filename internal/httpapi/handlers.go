package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/loomchat/loom-backend/internal/match"
	"github.com/loomchat/loom-backend/internal/registry"
	"github.com/loomchat/loom-backend/internal/session"
)

// Stats bundles the read-only views the /stats endpoint reports on.
type Stats struct {
	Registry *registry.Registry
	Store    *session.Store
	Queue    *match.Queue
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func StatsHandler(s Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		byKind := make(map[string]int)
		for k, n := range s.Store.CountByKind() {
			byKind[string(k)] = n
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Online   int            `json:"online"`
			Sessions int            `json:"sessions"`
			ByKind   map[string]int `json:"byKind"`
			Waiting  int            `json:"matchQueue"`
		}{
			Online:   s.Registry.Count(),
			Sessions: s.Store.Len(),
			ByKind:   byKind,
			Waiting:  s.Queue.WaitingLen(),
		})
	}
}
