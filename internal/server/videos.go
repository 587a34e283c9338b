package server

import (
	"log/slog"
	"net/http"
)

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}

	tracks, err := s.searcher.Search(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		slog.Error("video search failed", "error", err)
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}
