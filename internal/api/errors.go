package api

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every failed request.
type Error struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeTimeout      = "timeout"
)

// defaultCodes maps a status to the code used when a handler gives none.
var defaultCodes = map[int]string{
	http.StatusBadRequest:          ErrCodeBadRequest,
	http.StatusUnauthorized:        ErrCodeUnauthorized,
	http.StatusNotFound:            ErrCodeNotFound,
	http.StatusConflict:            ErrCodeConflict,
	http.StatusInternalServerError: ErrCodeInternal,
	http.StatusServiceUnavailable:  ErrCodeUnavailable,
	http.StatusGatewayTimeout:      ErrCodeTimeout,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Client may have gone away
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes an Error carrying the request's ID. An empty code falls
// back to the status default.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if code == "" {
		code = defaultCodes[status]
	}
	if code == "" {
		code = ErrCodeInternal
	}
	requestID, _ := r.Context().Value(ctxKeyRequestID).(string)
	writeJSON(w, status, Error{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestID,
	})
}
