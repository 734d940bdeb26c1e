package server

import (
	"encoding/json"
	"net/http"

	"github.com/taro8383/duracalm-proxy/core"
)

// errorEnvelope is the wire shape for every failed request.
type errorEnvelope struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	mapped := core.MapError(err)
	if mapped == nil {
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: "An unexpected error occurred"})
		return
	}
	status := mapped.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}
	envelope := errorEnvelope{Error: mapped.Message}
	if details, ok := mapped.Metadata["details"]; ok {
		envelope.Details = details
	}
	writeJSON(w, status, envelope)
}
