package store

import (
	"fmt"
	"time"

	"overlite/internal/models"
)

// The GUID cache maps show-level Plex GUIDs to resolved (tmdb, tvdb) pairs
// in the "GUIDCACHE" partition keyed by the GUID itself. It is an
// optimization: matching still works with an empty cache, at the cost of a
// TVDB reverse lookup per episode.

const guidCachePartition = "GUIDCACHE"

// GetGuidCache returns the cached show-level ids for a Plex GUID, or nil on
// a miss.
func (s *Store) GetGuidCache(plexGUID string) (*models.GuidCacheEntry, error) {
	item, err := s.GetItem(guidCachePartition, plexGUID)
	if err != nil {
		return nil, fmt.Errorf("reading guid cache: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	return &models.GuidCacheEntry{
		PlexGUID: plexGUID,
		TMDBID:   intAttr(item, "show_tmdb_id"),
		TVDBID:   intAttr(item, "show_tvdb_id"),
		CachedAt: stringAttr(item, "cached_at"),
	}, nil
}

// SetGuidCache records resolved show-level ids for a Plex GUID. A zero tmdb
// id is legal: it caches "this show has no matching request" so later
// episodes skip the TVDB call. Overwrites are last-writer-wins.
func (s *Store) SetGuidCache(plexGUID string, tmdbID, tvdbID int64) error {
	item := Item{
		"cached_at": time.Now().UTC().Format(time.RFC3339),
	}
	if tmdbID != 0 {
		item["show_tmdb_id"] = tmdbID
	}
	if tvdbID != 0 {
		item["show_tvdb_id"] = tvdbID
	}
	if err := s.PutItem(guidCachePartition, plexGUID, item, nil); err != nil {
		return fmt.Errorf("writing guid cache: %w", err)
	}
	return nil
}
