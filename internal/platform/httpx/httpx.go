// Package httpx holds the JSON request/response helpers shared by every
// handler, including the mapping from fault kinds to HTTP status codes.
package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"compliance-portal/backend/internal/fault"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error string `json:"error"`
}

// StatusOf maps a fault kind to its HTTP status code.
func StatusOf(err error) int {
	switch fault.KindOf(err) {
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindForbidden:
		return http.StatusForbidden
	case fault.KindExpired:
		return http.StatusGone
	case fault.KindLocked:
		return http.StatusTooManyRequests
	case fault.KindConflict:
		return http.StatusConflict
	case fault.KindNoOp:
		return http.StatusUnprocessableEntity
	case fault.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpx: encode response: %v", err)
	}
}

// WriteError writes err as a JSON error response. Only the fault's
// caller-safe message crosses the wire; causes stay in the server log.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Printf("httpx: %v", err)
	}
	WriteJSON(w, status, ErrorBody{Error: fault.Message(err)})
}

// Decode reads the request body as JSON into v. Unknown fields are rejected
// so typos in client payloads fail loudly.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// BadRequest writes a 400 with the given message.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: msg})
}

// IsFault reports whether err carries any fault kind (vs a plain error).
func IsFault(err error) bool {
	var fe *fault.Error
	return errors.As(err, &fe)
}
