package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/skillforge/internal/progression"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// statusFor maps engine failures to HTTP status codes. Failed assessments
// and lock states that are not errors never reach here.
func statusFor(err error) int {
	switch {
	case errors.Is(err, progression.ErrInvalidInput),
		errors.Is(err, progression.ErrInvalidAnswer),
		errors.Is(err, progression.ErrIncompleteSubmission):
		return http.StatusBadRequest
	case errors.Is(err, progression.ErrPlanNotFound),
		errors.Is(err, progression.ErrSessionNotFound),
		errors.Is(err, progression.ErrModuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, progression.ErrModuleLocked),
		errors.Is(err, progression.ErrFinalLocked),
		errors.Is(err, progression.ErrSessionClosed):
		return http.StatusConflict
	case progression.Retryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Retryable: progression.Retryable(err),
	})
}

// decodeBody reads a JSON request body. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed request body: %w", progression.ErrInvalidInput, err)
	}
	return nil
}
