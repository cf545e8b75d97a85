package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/promoteros/admission/internal/request"
	"go.uber.org/zap"
)

// ArtistHandler serves the artist endpoints the gateway fronts. The
// handlers are intentionally thin: the gateway's job is the admission
// decision in front of them, and real scoring lives upstream.
type ArtistHandler struct {
	log *zap.Logger
}

// NewArtistHandler creates the artist handler.
func NewArtistHandler(log *zap.Logger) *ArtistHandler {
	return &ArtistHandler{log: log}
}

// RegisterRoutes mounts the artist routes on r.
func (h *ArtistHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{id}", h.Get).Methods("GET")
}

// Get returns the cached score snapshot for an artist.
func (h *ArtistHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	respondJSON(w, http.StatusOK, map[string]any{
		"artist_id": id,
		"score":     nil,
		"status":    "not_analyzed",
	})
}

// Analyze queues a scoring run for an artist. The route carries a
// per-client operation throttle in addition to the account rate limit.
func (h *ArtistHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.log.Info("analysis_queued",
		zap.String("artist_id", id),
		zap.String("subject", request.Identity(r)),
	)
	respondJSON(w, http.StatusAccepted, map[string]any{
		"artist_id": id,
		"status":    "queued",
	})
}
