package handlers

import (
	"context"
	"net/http"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// PodcastRefresher stores a podcast with its full episode list
type PodcastRefresher interface {
	RefreshPodcast(ctx context.Context, identifier string) (*models.Metadata, error)
}

// PodcastHandler refreshes podcasts from the provider
type PodcastHandler struct {
	catalog PodcastRefresher
	logger  *logrus.Logger
}

// NewPodcastHandler creates a new podcast handler
func NewPodcastHandler(catalog PodcastRefresher, logger *logrus.Logger) *PodcastHandler {
	return &PodcastHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// ServeHTTP handles POST /api/podcasts/{identifier}
func (h *PodcastHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]
	if identifier == "" {
		writeError(w, h.logger, badRequest("identifier is required"))
		return
	}

	meta, err := h.catalog.RefreshPodcast(r.Context(), identifier)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}
