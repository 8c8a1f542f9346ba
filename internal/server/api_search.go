package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"overlite/internal/models"
)

// itemID reads a TMDB id out of a loosely-typed search result.
func itemID(item map[string]any) int64 {
	switch v := item["id"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

// handleSearch proxies a TMDB search and annotates each movie/tv result
// with request and library status. TV results additionally get a season
// count, fetched concurrently and dropped silently on error.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query     string `json:"query"`
		MediaType string `json:"media_type"`
		Page      int    `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if body.MediaType != "" && !models.MediaType(body.MediaType).Valid() {
		writeError(w, http.StatusBadRequest, "media_type must be movie or tv")
		return
	}

	page, err := s.tmdb.Search(r.Context(), body.Query, body.MediaType, body.Page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	if err := s.annotateResults(r.Context(), page.Results); err != nil {
		writeError(w, http.StatusInternalServerError, "annotating results failed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) annotateResults(ctx context.Context, results []map[string]any) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	var mu sync.Mutex

	for _, item := range results {
		mediaType, _ := item["media_type"].(string)
		if !models.MediaType(mediaType).Valid() {
			continue
		}
		id := itemID(item)
		if id == 0 {
			continue
		}

		requested, err := s.store.IsRequested(mediaType, id)
		if err != nil {
			return err
		}
		inLibrary, err := s.store.IsInLibrary(mediaType, id)
		if err != nil {
			return err
		}
		item["requested"] = requested
		item["in_library"] = inLibrary

		if mediaType != string(models.MediaTypeTV) {
			continue
		}
		item := item
		g.Go(func() error {
			details, err := s.tmdb.TVDetails(gctx, id)
			if err != nil {
				return nil // best-effort
			}
			mu.Lock()
			item["number_of_seasons"] = details.NumberOfSeasons
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}
