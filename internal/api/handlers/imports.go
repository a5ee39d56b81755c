package handlers

import (
	"context"
	"net/http"

	"github.com/amaumene/trackarr/internal/controllers"
	"github.com/amaumene/trackarr/internal/importer"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ImportRunner runs an import for a user
type ImportRunner interface {
	Run(ctx context.Context, userID uint64, source models.ImportSource, streams []importer.Stream) (*controllers.ImportReport, error)
}

// ImportHandler imports export files already present on the server
type ImportHandler struct {
	imports ImportRunner
	logger  *logrus.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(imports ImportRunner, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		imports: imports,
		logger:  logger,
	}
}

// ServeHTTP handles POST /api/imports/{source}
func (h *ImportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	source, err := models.ParseImportSource(mux.Vars(r)["source"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var files importer.ExportFiles
	if err := json.NewDecoder(r.Body).Decode(&files); err != nil {
		writeError(w, h.logger, badRequest("invalid body: %v", err))
		return
	}
	streams, err := importer.FileStreams(source, files)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	report, err := h.imports.Run(r.Context(), user, source, streams)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
