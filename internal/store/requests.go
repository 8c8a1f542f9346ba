package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"overlite/internal/models"
)

// Requests live in the "movie" and "tv" partitions keyed by tmdb_id.

func requestItem(r *models.Request) Item {
	item := Item{
		"media_type": r.MediaType,
		"tmdb_id":    r.TMDBID,
		"title":      r.Title,
		"created_at": r.CreatedAt,
	}
	if r.Year != 0 {
		item["year"] = r.Year
	}
	if r.Overview != "" {
		item["overview"] = r.Overview
	}
	if r.PosterPath != "" {
		item["poster_path"] = r.PosterPath
	}
	if r.IMDBID != "" {
		item["imdb_id"] = r.IMDBID
	}
	if r.TVDBID != 0 {
		item["tvdb_id"] = r.TVDBID
	}
	if r.RequestedBy != "" {
		item["requested_by"] = r.RequestedBy
	}
	if r.AddedAt != "" {
		item["added_at"] = r.AddedAt
	}
	if r.PlexGUID != "" {
		item["plex_guid"] = r.PlexGUID
	}
	return item
}

func requestFromItem(item Item) *models.Request {
	return &models.Request{
		MediaType:   stringAttr(item, "media_type"),
		TMDBID:      intAttr(item, "tmdb_id"),
		Title:       stringAttr(item, "title"),
		Year:        intAttr(item, "year"),
		Overview:    stringAttr(item, "overview"),
		PosterPath:  stringAttr(item, "poster_path"),
		IMDBID:      stringAttr(item, "imdb_id"),
		TVDBID:      intAttr(item, "tvdb_id"),
		RequestedBy: stringAttr(item, "requested_by"),
		CreatedAt:   stringAttr(item, "created_at"),
		AddedAt:     stringAttr(item, "added_at"),
		PlexGUID:    stringAttr(item, "plex_guid"),
	}
}

// AddRequest inserts a request unless one already exists for the key.
// Returns false when the item was already requested.
func (s *Store) AddRequest(r *models.Request) (bool, error) {
	if r.CreatedAt == "" {
		r.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	err := s.PutItem(r.MediaType, r.TMDBID, requestItem(r), IfNotExists())
	if errors.Is(err, ErrConditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("adding request: %w", err)
	}
	return true, nil
}

func (s *Store) GetRequest(mediaType string, tmdbID int64) (*models.Request, error) {
	item, err := s.GetItem(mediaType, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("request %s/%d: %w", mediaType, tmdbID, models.ErrNotFound)
	}
	return requestFromItem(item), nil
}

func (s *Store) IsRequested(mediaType string, tmdbID int64) (bool, error) {
	item, err := s.GetItem(mediaType, tmdbID)
	if err != nil {
		return false, fmt.Errorf("checking request: %w", err)
	}
	return item != nil, nil
}

// RemoveRequest deletes a request; false when none existed.
func (s *Store) RemoveRequest(mediaType string, tmdbID int64) (bool, error) {
	existed, err := s.DeleteItem(mediaType, tmdbID)
	if err != nil {
		return false, fmt.Errorf("removing request: %w", err)
	}
	return existed, nil
}

// Requests lists requests, newest first. An empty mediaType returns both
// partitions.
func (s *Store) Requests(mediaType string) ([]*models.Request, error) {
	partitions := []string{mediaType}
	if mediaType == "" {
		partitions = []string{string(models.MediaTypeMovie), string(models.MediaTypeTV)}
	}
	var items []Item
	for _, p := range partitions {
		part, err := s.QueryItems(p, nil)
		if err != nil {
			return nil, fmt.Errorf("listing requests: %w", err)
		}
		items = append(items, part...)
	}
	sortItemsByAttrDesc(items, "created_at")
	out := make([]*models.Request, len(items))
	for i, item := range items {
		out[i] = requestFromItem(item)
	}
	return out, nil
}

// MarkAdded fulfills a request: sets added_at iff it was never set. Returns
// the post-image on success and nil when the request is absent or already
// fulfilled, so replays are visible to the caller without being errors.
func (s *Store) MarkAdded(mediaType string, tmdbID int64) (*models.Request, error) {
	item, err := s.UpdateItem(mediaType, tmdbID, Update{
		Set:       map[string]any{"added_at": time.Now().UTC().Format(time.RFC3339)},
		Condition: IfAttributeAbsent("added_at"),
		Return:    ReturnAllNew,
	})
	if errors.Is(err, ErrConditionFailed) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("marking request added: %w", err)
	}
	return requestFromItem(item), nil
}

// SetRequestPlexGUID caches the show-level Plex GUID on a request.
func (s *Store) SetRequestPlexGUID(mediaType string, tmdbID int64, plexGUID string) error {
	_, err := s.UpdateItem(mediaType, tmdbID, Update{
		Set:       map[string]any{"plex_guid": plexGUID},
		Condition: IfExists(),
	})
	if errors.Is(err, ErrConditionFailed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("setting request plex guid: %w", err)
	}
	return nil
}

// FindRequestByTVDB queries a media-type partition for a request carrying
// the tvdb id.
func (s *Store) FindRequestByTVDB(mediaType string, tvdbID int64) (*models.Request, error) {
	items, err := s.QueryItems(mediaType, func(item Item) bool {
		return intAttr(item, "tvdb_id") == tvdbID
	})
	if err != nil {
		return nil, fmt.Errorf("finding request by tvdb id: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return requestFromItem(items[0]), nil
}

// FindRequestByPlexGUID scans for a request carrying the Plex GUID.
func (s *Store) FindRequestByPlexGUID(plexGUID string) (*models.Request, error) {
	items, err := s.ScanItems(func(item Item) bool {
		return stringAttr(item, "plex_guid") == plexGUID
	})
	if err != nil {
		return nil, fmt.Errorf("finding request by plex guid: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return requestFromItem(items[0]), nil
}

// FindRequestByTitle matches on normalized title within a media type. A year,
// when given, must match within one year. Ambiguous matches (more than one
// candidate) yield nil rather than a guess.
func (s *Store) FindRequestByTitle(title, mediaType string, year int64) (*models.Request, error) {
	want := normalizeTitle(title)
	if want == "" {
		return nil, nil
	}
	items, err := s.QueryItems(mediaType, func(item Item) bool {
		if normalizeTitle(stringAttr(item, "title")) != want {
			return false
		}
		if year != 0 {
			ry := intAttr(item, "year")
			if ry != 0 && (ry < year-1 || ry > year+1) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("finding request by title: %w", err)
	}
	if len(items) != 1 {
		return nil, nil
	}
	return requestFromItem(items[0]), nil
}

// normalizeTitle lowercases, strips punctuation, and collapses whitespace.
func normalizeTitle(title string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}
