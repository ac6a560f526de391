package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and the request id, and
// returned to the client as a JSON body carrying the user message, the
// suggested action and the support code from core.MapError.

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error returned by the runner.
func statusFor(err error) int {
	var cfg *core.ConfigurationError
	switch {
	case errors.Is(err, errBadRequest), errors.As(err, &cfg):
		return http.StatusBadRequest
	case errors.Is(err, errPathForbidden):
		return http.StatusForbidden
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user message. A zero statusCode
// derives the status from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	ue := core.NewUserError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", ue.Technical.Error(),
		"code", ue.User.Code,
	}
	// unmapped errors are logged as errors whatever their status
	if statusCode >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if statusCode == http.StatusServiceUnavailable || statusCode == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	respondErrorJSON(w, ue.User, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
