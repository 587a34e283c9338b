package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/glizzus/jukebox/internal/jukebox"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError writes the same error body viewers receive over their socket.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, jukebox.ErrorBody{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
