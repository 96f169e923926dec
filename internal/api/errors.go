package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/signalsfoundry/rail-corridor-sim/internal/orchestrator"
)

var (
	// ErrBadRequest marks malformed client input (bodies, query params).
	ErrBadRequest = errors.New("bad request")
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StatusFor maps orchestrator errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, orchestrator.ErrTrainNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrAIDisabled):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrInvalidPosition),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing message for err. Internal errors are
// not echoed back verbatim.
func messageFor(err error) string {
	switch StatusFor(err) {
	case http.StatusConflict:
		return "AI mode is not enabled"
	case http.StatusInternalServerError:
		return "internal error"
	default:
		return err.Error()
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), ErrorResponse{
		Status:  "error",
		Message: messageFor(err),
	})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
