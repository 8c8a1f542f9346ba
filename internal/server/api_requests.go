package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"overlite/internal/models"
)

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TMDBID      int64  `json:"tmdb_id"`
		MediaType   string `json:"media_type"`
		RequestedBy string `json:"requested_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.TMDBID == 0 || !models.MediaType(body.MediaType).Valid() {
		writeError(w, http.StatusBadRequest, "tmdb_id and media_type are required")
		return
	}

	requestedBy := body.RequestedBy
	if requestedBy == "" {
		requestedBy = sessionName(r)
	}

	details, err := s.tmdb.Details(r.Context(), body.MediaType, body.TMDBID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetching details failed")
		return
	}

	created, err := s.store.AddRequest(&models.Request{
		MediaType:   body.MediaType,
		TMDBID:      body.TMDBID,
		Title:       details.DisplayTitle(),
		Year:        details.Year(),
		Overview:    details.Overview,
		PosterPath:  details.PosterPath,
		IMDBID:      details.ExternalIDs.IMDBID,
		TVDBID:      details.ExternalIDs.TVDBID,
		RequestedBy: requestedBy,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storing request failed")
		return
	}

	message := "Request added"
	if !created {
		message = "Already requested"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": created, "message": message})
}

func (s *Server) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	mediaType := chi.URLParam(r, "mediaType")
	if !models.MediaType(mediaType).Valid() {
		writeError(w, http.StatusBadRequest, "media_type must be movie or tv")
		return
	}
	tmdbID, err := strconv.ParseInt(chi.URLParam(r, "tmdbID"), 10, 64)
	if err != nil || tmdbID == 0 {
		writeError(w, http.StatusBadRequest, "invalid tmdb_id")
		return
	}

	existed, err := s.store.RemoveRequest(mediaType, tmdbID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "removing request failed")
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	mediaType := r.URL.Query().Get("media_type")
	if mediaType != "" && !models.MediaType(mediaType).Valid() {
		writeError(w, http.StatusBadRequest, "media_type must be movie or tv")
		return
	}
	requests, err := s.store.Requests(mediaType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing requests failed")
		return
	}
	if requests == nil {
		requests = []*models.Request{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}
