package server

import (
	"encoding/json"
	"net/http"

	"overlite/internal/models"
	"overlite/internal/store"
)

// handleSyncLibrary ingests a full or partial library snapshot posted by
// the external sync helper.
func (s *Server) handleSyncLibrary(w http.ResponseWriter, r *http.Request) {
	mediaType := r.URL.Query().Get("media_type")
	if !models.MediaType(mediaType).Valid() {
		writeError(w, http.StatusBadRequest, "media_type must be movie or tv")
		return
	}
	clear := r.URL.Query().Get("clear") == "true" || r.URL.Query().Get("clear") == "1"

	var items []store.LibraryItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of library items")
		return
	}

	synced, marked, err := s.engine.SyncLibrary(r.Context(), mediaType, items, clear)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "library sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"synced": synced, "marked_as_added": marked})
}
