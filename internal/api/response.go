package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/ecoleta/internal/model"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx JSON answer.
type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorResponse{Error: message})
}

// validationError writes a 400 listing every problem of ve.
func validationError(w http.ResponseWriter, ve *model.ValidationError) {
	jsonResponse(w, http.StatusBadRequest, errorResponse{Error: ve.Error(), Fields: ve.Problems})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(target)
}

// decodeError answers a failed decodeJSON: 413 when the body hit maxBodyBytes,
// 400 otherwise.
func decodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		jsonError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	jsonError(w, http.StatusBadRequest, "invalid request body")
}
