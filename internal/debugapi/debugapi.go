// Package debugapi exposes a minimal HTTP surface over gorilla/mux for
// local inspection: GET /peers, /collections, /healthz, and /metrics
// (promhttp), plus POST /election/tick, which forces an election
// recompute. This is the only HTTP surface this module exposes
// — the sync protocol itself is a raw framed TCP stream, never HTTP.
package debugapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peerdoc/peerdoc/internal/election"
	"github.com/peerdoc/peerdoc/internal/health"
	"github.com/peerdoc/peerdoc/internal/store"
)

// Deps are the components the debug surface reports on.
type Deps struct {
	Store    store.Contract
	Election *election.Election
	Health   *health.Probe
}

// NewRouter builds the mux.Router serving the debug endpoints.
func NewRouter(deps Deps) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/peers", peersHandler(deps)).Methods(http.MethodGet)
	router.HandleFunc("/collections", collectionsHandler(deps)).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthzHandler(deps)).Methods(http.MethodGet)
	router.HandleFunc("/election/tick", electionTickHandler(deps)).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return router
}

type peerView struct {
	NodeID   string `json:"nodeId"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Type     string `json:"type"`
	Enabled  bool   `json:"enabled"`
	IsUp     bool   `json:"isUp"`
	IsLeader bool   `json:"isLeader"`
}

func peersHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		peers, err := deps.Store.GetRemotePeers(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		leader := deps.Election.LeaderNodeID()
		out := make([]peerView, 0, len(peers))
		for _, p := range peers {
			out = append(out, peerView{
				NodeID:   p.NodeID,
				Host:     p.Host,
				Port:     p.Port,
				Type:     string(p.Type),
				Enabled:  p.Enabled,
				IsUp:     deps.Health.IsUp(p.NodeID),
				IsLeader: p.NodeID == leader,
			})
		}
		writeJSON(w, out)
	}
}

func collectionsHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		collections, err := deps.Store.GetCollections(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, collections)
	}
}

func healthzHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":         "ok",
			"isCloudGateway": deps.Election.IsCloudGateway(),
			"leader":         deps.Election.LeaderNodeID(),
		})
	}
}

// electionTickHandler forces an immediate election recompute, bypassing
// the regular interval, and reports the resulting leader.
func electionTickHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leader := deps.Election.ForceTick()
		writeJSON(w, map[string]any{
			"leader":         leader,
			"isCloudGateway": deps.Election.IsCloudGateway(),
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
