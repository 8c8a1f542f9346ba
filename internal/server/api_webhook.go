package server

import (
	"net/http"

	"overlite/internal/plex"
)

// handlePlexWebhook receives Plex's multipart webhook. Anything the engine
// chooses not to act on still gets a 200 so Plex does not retry forever;
// only a malformed payload is the client's fault.
func (s *Server) handlePlexWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBodySize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	raw := r.FormValue("payload")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing payload field")
		return
	}
	payload, err := plex.ParsePayload([]byte(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	result, err := s.engine.HandleWebhook(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
