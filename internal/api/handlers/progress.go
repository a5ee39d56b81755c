package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/amaumene/trackarr/internal/controllers"
	"github.com/amaumene/trackarr/internal/importer"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ProgressService records and reads consumption
type ProgressService interface {
	Apply(ctx context.Context, action models.ProgressAction, userID, metadataID uint64, params controllers.ProgressParams) (uint64, error)
	DeleteSeen(ctx context.Context, userID, seenID uint64) error
	SeenHistory(ctx context.Context, userID, metadataID uint64) ([]models.Seen, error)
	MediaConsumed(ctx context.Context, userID uint64, lot models.MediaLot, identifier string) (models.SeenStatus, error)
	MediaDetails(ctx context.Context, metadataID uint64) (*models.Metadata, error)
	MediaList(ctx context.Context, userID uint64, lot models.MediaLot, page int) (*models.MediaList, error)
}

// ProgressHandler serves the progress endpoints
type ProgressHandler struct {
	progress ProgressService
	logger   *logrus.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progress ProgressService, logger *logrus.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
		logger:   logger,
	}
}

// ProgressRequest is the body of POST /api/progress
type ProgressRequest struct {
	Action           models.ProgressAction       `json:"action"`
	MetadataID       uint64                      `json:"metadata_id"`
	Progress         *int                        `json:"progress,omitempty"`
	Date             string                      `json:"date,omitempty"`
	ExtraInformation models.SeenExtraInformation `json:"extra_information"`
}

// ProgressResponse returns the affected seen item
type ProgressResponse struct {
	SeenID uint64 `json:"seen_id"`
}

// ConsumedResponse is the body of GET /api/media/consumed
type ConsumedResponse struct {
	Status models.SeenStatus `json:"status"`
}

// Apply handles POST /api/progress
func (h *ProgressHandler) Apply(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, badRequest("invalid body: %v", err))
		return
	}
	if req.MetadataID == 0 {
		writeError(w, h.logger, badRequest("metadata_id is required"))
		return
	}

	params := controllers.ProgressParams{
		Progress:         req.Progress,
		ExtraInformation: req.ExtraInformation,
	}
	if req.Date != "" {
		date, err := importer.ParseDate(req.Date)
		if err != nil {
			writeError(w, h.logger, badRequest("invalid date %q", req.Date))
			return
		}
		params.Date = &date
	}

	seenID, err := h.progress.Apply(r.Context(), req.Action, user, req.MetadataID, params)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ProgressResponse{SeenID: seenID})
}

// DeleteSeen handles DELETE /api/seen/{id}
func (h *ProgressHandler) DeleteSeen(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	seenID, err := parseID(mux.Vars(r)["id"], "seen id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.progress.DeleteSeen(r.Context(), user, seenID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/media/{id}/history
func (h *ProgressHandler) History(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	metadataID, err := parseID(mux.Vars(r)["id"], "metadata id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	history, err := h.progress.SeenHistory(r.Context(), user, metadataID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if history == nil {
		history = []models.Seen{}
	}
	writeJSON(w, http.StatusOK, history)
}

// Consumed handles GET /api/media/consumed?lot=&identifier=
func (h *ProgressHandler) Consumed(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	lot, err := models.ParseMediaLot(r.URL.Query().Get("lot"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeError(w, h.logger, badRequest("identifier is required"))
		return
	}

	status, err := h.progress.MediaConsumed(r.Context(), user, lot, identifier)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ConsumedResponse{Status: status})
}

// Details handles GET /api/media/{id}
func (h *ProgressHandler) Details(w http.ResponseWriter, r *http.Request) {
	metadataID, err := parseID(mux.Vars(r)["id"], "metadata id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	meta, err := h.progress.MediaDetails(r.Context(), metadataID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// List handles GET /api/media?lot=&page=
func (h *ProgressHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	lot, err := models.ParseMediaLot(r.URL.Query().Get("lot"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, h.logger, badRequest("invalid page %q", raw))
			return
		}
	}

	list, err := h.progress.MediaList(r.Context(), user, lot, page)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
