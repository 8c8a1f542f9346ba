package store

import (
	"fmt"
	"time"

	"overlite/internal/models"
)

// Library membership lives in the "LIB#movie" and "LIB#tv" partitions keyed
// by tmdb_id. Presence means the media server has indexed the item.

func libraryPartition(mediaType string) string {
	return "LIB#" + mediaType
}

// LibraryItem is one element of a sync batch (and of a webhook-driven
// single-item upsert).
type LibraryItem struct {
	TMDBID int64  `json:"tmdb_id"`
	TVDBID int64  `json:"tvdb_id,omitempty"`
	Title  string `json:"title"`
}

// SyncLibrary upserts library members for a media type. With clear set, the
// whole partition is dropped first. Returns the number of items written.
func (s *Store) SyncLibrary(mediaType string, items []LibraryItem, clear bool) (int, error) {
	if clear {
		if err := s.DeletePartition(libraryPartition(mediaType)); err != nil {
			return 0, fmt.Errorf("clearing library: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	count := 0
	for _, li := range items {
		if li.TMDBID == 0 {
			continue
		}
		item := Item{
			"tmdb_id":   li.TMDBID,
			"title":     li.Title,
			"synced_at": now,
		}
		if li.TVDBID != 0 {
			item["tvdb_id"] = li.TVDBID
		}
		if err := s.PutItem(libraryPartition(mediaType), li.TMDBID, item, nil); err != nil {
			return count, fmt.Errorf("upserting library item %d: %w", li.TMDBID, err)
		}
		count++
	}
	return count, nil
}

func (s *Store) IsInLibrary(mediaType string, tmdbID int64) (bool, error) {
	item, err := s.GetItem(libraryPartition(mediaType), tmdbID)
	if err != nil {
		return false, fmt.Errorf("checking library: %w", err)
	}
	return item != nil, nil
}

// LibraryTMDBIDs returns every library member id grouped by media type.
func (s *Store) LibraryTMDBIDs() (map[string][]int64, error) {
	out := map[string][]int64{
		string(models.MediaTypeMovie): {},
		string(models.MediaTypeTV):    {},
	}
	for mt := range out {
		items, err := s.QueryItems(libraryPartition(mt), nil)
		if err != nil {
			return nil, fmt.Errorf("listing library ids: %w", err)
		}
		for _, item := range items {
			out[mt] = append(out[mt], intAttr(item, "tmdb_id"))
		}
	}
	return out, nil
}
