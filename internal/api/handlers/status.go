package handlers

import (
	"context"
	"net/http"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/sirupsen/logrus"
)

// StatsReader counts what the store holds
type StatsReader interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

// StatusHandler handles status requests
type StatusHandler struct {
	stats  StatsReader
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(stats StatsReader, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		stats:  stats,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalMetadata int            `json:"total_metadata"`
	MetadataByLot map[string]int `json:"metadata_by_lot"`
	Underway      int            `json:"underway"`
	Completed     int            `json:"completed"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := StatusResponse{
		TotalMetadata: stats.Metadata,
		MetadataByLot: make(map[string]int, len(stats.MetadataByLot)),
		Underway:      stats.Underway,
		Completed:     stats.Completed,
	}
	for lot, count := range stats.MetadataByLot {
		response.MetadataByLot[string(lot)] = count
	}

	writeJSON(w, http.StatusOK, response)
}
