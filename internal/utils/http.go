package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WriteJSON serializes the given data to JSON and writes it to the HTTP response.
//
// It sets the "Content-Type" header to "application/json" and writes
// the provided HTTP status code before sending the response body.
//
// If marshaling fails, it responds with 500 Internal Server Error
// and returns a wrapped error.
func WriteJSON(w http.ResponseWriter, data any, statusCode int) (int, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "error writing data to JSON", http.StatusInternalServerError)
		return 0, fmt.Errorf("error writing data to JSON: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return w.Write(jsonData)
}

// ErrorBody is the JSON error document understood by the transport adapter.
type ErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"description,omitempty"`
}

// WriteError writes an [ErrorBody] with the given status code. name is the
// machine-readable error name, e.g. "ParameterValueOutOfRange".
func WriteError(w http.ResponseWriter, statusCode int, name, description string) {
	_, _ = WriteJSON(w, ErrorBody{Error: name, Description: description}, statusCode)
}
