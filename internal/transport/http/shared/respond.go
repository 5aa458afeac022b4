// Package shared holds the response envelope used by every HTTP handler.
// All responses, success and failure alike, carry the same shape so clients
// can parse them uniformly.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "manasik/pkg/domain-errors"
)

// Envelope is the uniform response body.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// WriteJSON writes a success envelope.
func WriteJSON(w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteError maps a domain error onto the envelope. Uncoded errors become
// opaque 500s so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	status := dErrors.HTTPStatus(err)
	message := dErrors.MessageOf(err)
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeEnvelope(w, status, Envelope{Success: false, Message: message})
}

// WriteErrorDetail writes a failure envelope with field-level details.
func WriteErrorDetail(w http.ResponseWriter, status int, message string, details map[string]string) {
	writeEnvelope(w, status, Envelope{Success: false, Message: message, Errors: details})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
