// Package plex parses Plex webhook payloads into normalized media
// identities. Plex reports external ids at the level of the item that
// triggered the event, so episode and season payloads need their ids
// rescoped before anything downstream may treat them as show ids.
package plex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"overlite/internal/models"
)

// EventLibraryNew is the only webhook event reconciliation acts on.
const EventLibraryNew = "library.new"

// Payload is the subset of a Plex webhook body we care about.
type Payload struct {
	Event    string   `json:"event"`
	Server   Server   `json:"Server"`
	Metadata Metadata `json:"Metadata"`
}

type Server struct {
	Title string `json:"title"`
}

type Metadata struct {
	Type             string    `json:"type"`
	Title            string    `json:"title"`
	Year             int64     `json:"year"`
	GUID             string    `json:"guid"`
	ParentTitle      string    `json:"parentTitle"`
	ParentYear       int64     `json:"parentYear"`
	ParentGUID       string    `json:"parentGuid"`
	GrandparentTitle string    `json:"grandparentTitle"`
	GrandparentYear  int64     `json:"grandparentYear"`
	GrandparentGUID  string    `json:"grandparentGuid"`
	Guid             []GuidRef `json:"Guid"`
}

// GuidRef is one entry of the Metadata.Guid array, e.g. {"id":"tmdb://603"}.
type GuidRef struct {
	ID string `json:"id"`
}

// ParsePayload decodes a raw webhook body.
func ParsePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding plex payload: %w", err)
	}
	return &p, nil
}

// externalIDs pulls the tmdb/tvdb/imdb ids out of a Guid array. Entries
// with unknown schemes or malformed values are skipped.
func externalIDs(refs []GuidRef) (tmdbID, tvdbID int64, imdbID string) {
	for _, ref := range refs {
		scheme, value, ok := strings.Cut(ref.ID, "://")
		if !ok || value == "" {
			continue
		}
		switch scheme {
		case "tmdb":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				tmdbID = n
			}
		case "tvdb":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				tvdbID = n
			}
		case "imdb":
			imdbID = value
		}
	}
	return tmdbID, tvdbID, imdbID
}

// Identity normalizes the payload's metadata into a MediaIdentity, or nil
// for media types reconciliation does not handle.
//
// Episode and season payloads carry item-scoped external ids. A season's
// ids are useless at the show level and are dropped outright. An episode's
// tvdb id identifies the episode itself and is kept only as EpisodeTVDBID
// for reverse lookup; treating it as a show id would poison the library.
func (m *Metadata) Identity() *models.MediaIdentity {
	tmdbID, tvdbID, imdbID := externalIDs(m.Guid)

	switch m.Type {
	case "movie":
		return &models.MediaIdentity{
			MediaType: string(models.MediaTypeMovie),
			PlexType:  m.Type,
			Title:     m.Title,
			Year:      m.Year,
			TMDBID:    tmdbID,
			TVDBID:    tvdbID,
			IMDBID:    imdbID,
			PlexGUID:  m.GUID,
		}
	case "show":
		return &models.MediaIdentity{
			MediaType: string(models.MediaTypeTV),
			PlexType:  m.Type,
			Title:     m.Title,
			Year:      m.Year,
			TMDBID:    tmdbID,
			TVDBID:    tvdbID,
			IMDBID:    imdbID,
			PlexGUID:  m.GUID,
		}
	case "season":
		return &models.MediaIdentity{
			MediaType: string(models.MediaTypeTV),
			PlexType:  m.Type,
			Title:     m.ParentTitle,
			Year:      m.ParentYear,
			IMDBID:    imdbID,
			PlexGUID:  m.ParentGUID,
		}
	case "episode":
		return &models.MediaIdentity{
			MediaType:     string(models.MediaTypeTV),
			PlexType:      m.Type,
			Title:         m.GrandparentTitle,
			Year:          m.GrandparentYear,
			IMDBID:        imdbID,
			PlexGUID:      m.GrandparentGUID,
			EpisodeTVDBID: tvdbID,
		}
	default:
		return nil
	}
}
