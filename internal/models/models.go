package models

import "errors"

var ErrNotFound = errors.New("not found")

type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

func (mt MediaType) Valid() bool {
	return mt == MediaTypeMovie || mt == MediaTypeTV
}

// Request is a user-requested media item. (media_type, tmdb_id) is unique;
// AddedAt is set exactly once, when reconciliation finds the item in the
// library.
type Request struct {
	MediaType   string `json:"media_type"`
	TMDBID      int64  `json:"tmdb_id"`
	Title       string `json:"title"`
	Year        int64  `json:"year,omitempty"`
	Overview    string `json:"overview,omitempty"`
	PosterPath  string `json:"poster_path,omitempty"`
	IMDBID      string `json:"imdb_id,omitempty"`
	TVDBID      int64  `json:"tvdb_id,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
	CreatedAt   string `json:"created_at"`
	AddedAt     string `json:"added_at,omitempty"`
	PlexGUID    string `json:"plex_guid,omitempty"`
}

// Pending reports whether the request has not yet been fulfilled.
func (r *Request) Pending() bool {
	return r.AddedAt == ""
}

// LibraryMember records that the media server has indexed an item.
type LibraryMember struct {
	MediaType string `json:"media_type"`
	TMDBID    int64  `json:"tmdb_id"`
	TVDBID    int64  `json:"tvdb_id,omitempty"`
	Title     string `json:"title"`
	SyncedAt  string `json:"synced_at"`
}

// GuidCacheEntry maps a show-level Plex GUID to resolved show-level ids so
// later episodes of the same show skip the TVDB reverse lookup.
type GuidCacheEntry struct {
	PlexGUID string
	TMDBID   int64 // 0 when the show never matched a request
	TVDBID   int64
	CachedAt string
}

// PushSubscription is a Web Push subscription, one per user name.
type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// MediaIdentity is the normalized output of Plex webhook parsing. Show-level
// ids only: episode- and season-scoped ids from the payload are either moved
// to EpisodeTVDBID or dropped.
type MediaIdentity struct {
	MediaType     string // "movie" or "tv"
	PlexType      string // movie, show, season, episode
	Title         string
	Year          int64
	TMDBID        int64
	TVDBID        int64
	IMDBID        string
	PlexGUID      string
	EpisodeTVDBID int64
}
