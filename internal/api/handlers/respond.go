package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// UserIDHeader carries the authenticated user
const UserIDHeader = "X-User-ID"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrOwnership):
		return http.StatusForbidden
	case errors.Is(err, models.ErrState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
		message = "Internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

// userID reads the user from the request header
func userID(r *http.Request) (uint64, error) {
	raw := r.Header.Get(UserIDHeader)
	if raw == "" {
		return 0, badRequest("missing %s header", UserIDHeader)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid %s header %q", UserIDHeader, raw)
	}
	return id, nil
}

func parseID(raw, what string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid %s %q", what, raw)
	}
	return id, nil
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", models.ErrValidation, fmt.Sprintf(format, args...))
}
