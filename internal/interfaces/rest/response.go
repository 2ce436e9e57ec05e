package rest

import (
	"encoding/json"
	"net/http"

	"github.com/quickcart/order-service/internal/application"
)

// WriteJSON encodes data as the response body.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteRaw writes pre-serialized bytes. Used for idempotent replays, which
// must be byte-identical to the original response.
func WriteRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteError maps application errors to HTTP responses using the canonical
// error body, so a fresh failure and its idempotent replay share bytes.
func WriteError(w http.ResponseWriter, err error) {
	status, body := application.ErrorBody(err)
	WriteRaw(w, status, body)
}
