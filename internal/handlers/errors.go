package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"morph/internal/contextutil"
	"morph/internal/indexer"
	"morph/internal/storage"
)

var (
	// ErrSubmissionFailed is returned when a task could not be handed to
	// the inference service.
	ErrSubmissionFailed = errors.New("submission failed")
)

// maxK caps the k query parameter of similarity searches.
const maxK = 50

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// writeJSON writes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// handleError maps errors to appropriate HTTP status codes and responses.
func handleError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		logger.WarnContext(ctx, "invalid request", "error", err)
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}

	if errors.Is(err, ErrSubmissionFailed) || errors.Is(err, indexer.ErrSubmissionFailed) {
		logger.WarnContext(ctx, "submission failed", "error", err)
		writeError(w, http.StatusBadGateway, "Inference service unavailable")
		return
	}

	logger.ErrorContext(ctx, "request failed", "error", err)
	writeError(w, http.StatusInternalServerError, defaultMsg)
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for bodies that may be empty.
func decodeOptionalJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// parseK reads the k query parameter. Missing means def.
func parseK(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("k")
	if raw == "" {
		return def, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k <= 0 || k > maxK {
		return 0, &ValidationError{Field: "k", Message: fmt.Sprintf("must be an integer between 1 and %d", maxK)}
	}
	return k, nil
}

// required returns a ValidationError when value is empty.
func required(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}
