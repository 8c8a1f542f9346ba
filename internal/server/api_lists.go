package server

import (
	"fmt"
	"net/http"
	"strconv"

	"overlite/internal/models"
	"overlite/internal/tmdb"
)

// The list endpoints feed Radarr and Sonarr import lists. Both only ever
// see pending requests; fulfilled ones drop out on the next poll.

type radarrItem struct {
	Title     string `json:"title"`
	IMDBID    string `json:"imdb_id,omitempty"`
	PosterURL string `json:"poster_url,omitempty"`
}

func (s *Server) handleRadarrList(w http.ResponseWriter, r *http.Request) {
	requests, err := s.store.Requests(string(models.MediaTypeMovie))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing requests failed")
		return
	}
	items := []radarrItem{}
	for _, req := range requests {
		if !req.Pending() {
			continue
		}
		title := req.Title
		if req.Year != 0 {
			title = fmt.Sprintf("%s (%d)", req.Title, req.Year)
		}
		items = append(items, radarrItem{
			Title:     title,
			IMDBID:    req.IMDBID,
			PosterURL: tmdb.ImageURL("w300", req.PosterPath),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// sonarrItem's tvdbId is a string; Sonarr's list importer rejects numbers.
type sonarrItem struct {
	TVDBID string `json:"tvdbId"`
}

func (s *Server) handleSonarrList(w http.ResponseWriter, r *http.Request) {
	requests, err := s.store.Requests(string(models.MediaTypeTV))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing requests failed")
		return
	}
	items := []sonarrItem{}
	for _, req := range requests {
		if !req.Pending() || req.TVDBID == 0 {
			continue
		}
		items = append(items, sonarrItem{TVDBID: strconv.FormatInt(req.TVDBID, 10)})
	}
	writeJSON(w, http.StatusOK, items)
}
