package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/HatiCode/tempalign/pkg/align"
)

// ErrorResponse is the body of every error reply: {"error": "<msg>"}.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteError writes err as an ErrorResponse.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes message as an ErrorResponse.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	if err := WriteJSON(w, status, ErrorResponse{Error: message}); err != nil {
		slog.Error("failed to write error response", "error", err, "message", message)
	}
}

// StatusForError maps alignment errors to HTTP statuses: 400 for invalid
// input, 422 for unresolvable raw tables, 500 otherwise.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, align.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, align.ErrSchema):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteAlignError writes err with the status chosen by StatusForError.
// Internal errors are logged and replaced by a generic message.
func WriteAlignError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusForError(err)
	if status == http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("alignment failed", "error", err)
		WriteErrorMessage(w, status, "internal server error")
		return
	}
	WriteError(w, status, err)
}

// DecodeJSON decodes a request body of at most maxBytes into v, rejecting
// unknown fields.
func DecodeJSON(r *http.Request, maxBytes int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	if dec.More() {
		return errors.New("decode request: trailing data after JSON body")
	}
	return nil
}
