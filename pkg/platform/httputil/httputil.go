// Package httputil centralizes the JSON error envelope so every handler
// reports failures the same way.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "corebank/pkg/domain-errors"
)

// WriteError translates a domain error into the JSON error envelope. Internal
// errors omit the description so storage details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	body := map[string]string{"error": string(code)}
	var de *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &de) {
		body["error_description"] = de.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Decode reads a JSON request body into T. On failure it writes the error
// envelope and returns ok=false; the handler just returns.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return req, false
	}
	return req, true
}

// WriteJSON writes a success payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
