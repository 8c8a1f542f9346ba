package server

import (
	"net/http"

	"overlite/internal/models"
)

// handleLibraryStatus gives the frontend everything it needs to badge
// search results: library membership ids plus the still-pending requests.
func (s *Server) handleLibraryStatus(w http.ResponseWriter, r *http.Request) {
	library, err := s.store.LibraryTMDBIDs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing library failed")
		return
	}
	all, err := s.store.Requests("")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing requests failed")
		return
	}
	pending := []*models.Request{}
	for _, req := range all {
		if req.Pending() {
			pending = append(pending, req)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"library":  library,
		"requests": pending,
	})
}
