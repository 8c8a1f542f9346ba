// Package reconcile matches newly-indexed library content against pending
// requests. Identifiers arrive in several shapes (TMDB id, TVDB id, Plex
// GUID, episode-scoped TVDB id, bare title), so matching runs a fixed
// ladder of strategies and stops at the first one that fulfills a request.
package reconcile

import (
	"context"
	"fmt"
	"log"

	"overlite/internal/models"
	"overlite/internal/plex"
	"overlite/internal/store"
)

// SeriesResolver is the TVDB episode-to-series reverse lookup.
type SeriesResolver interface {
	SeriesIDFromEpisode(ctx context.Context, episodeID int64) int64
}

// FulfillmentNotifier reports whether a notification was delivered.
type FulfillmentNotifier interface {
	NotifyFulfilled(ctx context.Context, req *models.Request) bool
}

type Engine struct {
	store      *store.Store
	tvdb       SeriesResolver
	notifier   FulfillmentNotifier
	serverName string
}

// New builds an Engine. serverName, when non-empty, restricts webhook
// processing to payloads from that Plex server.
func New(s *store.Store, tvdb SeriesResolver, notifier FulfillmentNotifier, serverName string) *Engine {
	return &Engine{store: s, tvdb: tvdb, notifier: notifier, serverName: serverName}
}

// Result is the structured outcome of one webhook.
type Result struct {
	Status           string `json:"status"` // processed | ignored
	Reason           string `json:"reason,omitempty"`
	MatchedBy        string `json:"matched_by,omitempty"`
	AddedToLibrary   bool   `json:"added_to_library"`
	MatchedRequest   bool   `json:"matched_request"`
	NotificationSent bool   `json:"notification_sent"`
}

func ignored(reason string) *Result {
	return &Result{Status: "ignored", Reason: reason}
}

// matchState carries the resolved show-level view of one webhook through
// the strategy ladder.
type matchState struct {
	identity *models.MediaIdentity
	showTMDB int64
	showTVDB int64
	cacheHit bool
}

type strategy struct {
	name    string
	applies func(*matchState) bool
	run     func(context.Context, *matchState) (*models.Request, error)
}

// HandleWebhook runs the webhook half of reconciliation. The returned
// error means a storage failure; everything recoverable lands in Result.
func (e *Engine) HandleWebhook(ctx context.Context, p *plex.Payload) (*Result, error) {
	if p.Event != plex.EventLibraryNew {
		return ignored("unsupported event"), nil
	}
	if e.serverName != "" && p.Server.Title != e.serverName {
		return ignored("server name mismatch"), nil
	}
	id := p.Metadata.Identity()
	if id == nil {
		return ignored("unsupported media type"), nil
	}

	st := &matchState{identity: id, showTMDB: id.TMDBID, showTVDB: id.TVDBID}

	// Episode and season payloads arrive with no usable show-level ids;
	// the GUID cache is the only source for them.
	if (id.PlexType == "episode" || id.PlexType == "season") && id.PlexGUID != "" {
		entry, err := e.store.GetGuidCache(id.PlexGUID)
		if err != nil {
			return nil, fmt.Errorf("guid cache lookup: %w", err)
		}
		if entry != nil {
			st.showTMDB = entry.TMDBID
			st.showTVDB = entry.TVDBID
			st.cacheHit = true
		}
	}

	result := &Result{Status: "processed", Reason: "no match"}

	if st.showTMDB != 0 {
		member := store.LibraryItem{TMDBID: st.showTMDB, TVDBID: st.showTVDB, Title: id.Title}
		if _, err := e.store.SyncLibrary(id.MediaType, []store.LibraryItem{member}, false); err != nil {
			return nil, fmt.Errorf("library upsert: %w", err)
		}
		result.AddedToLibrary = true
	}

	var fulfilled *models.Request
	for _, s := range e.strategies() {
		if !s.applies(st) {
			continue
		}
		req, err := s.run(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", s.name, err)
		}
		if req != nil {
			fulfilled = req
			result.MatchedBy = s.name
			break
		}
	}

	if fulfilled != nil {
		result.MatchedRequest = true
		result.Reason = ""
		if e.notifier != nil {
			result.NotificationSent = e.notifier.NotifyFulfilled(ctx, fulfilled)
		}
	}
	return result, nil
}

func (e *Engine) strategies() []strategy {
	return []strategy{
		{
			name:    "tmdb_id",
			applies: func(st *matchState) bool { return st.showTMDB != 0 },
			run:     e.matchByTMDB,
		},
		{
			name: "tvdb_id",
			applies: func(st *matchState) bool {
				return st.showTVDB != 0 && st.identity.MediaType == string(models.MediaTypeTV)
			},
			run: e.matchByTVDB,
		},
		{
			name:    "plex_guid",
			applies: func(st *matchState) bool { return st.identity.PlexGUID != "" },
			run:     e.matchByPlexGUID,
		},
		{
			name: "tvdb_episode_lookup",
			applies: func(st *matchState) bool {
				return st.identity.EpisodeTVDBID != 0 && !st.cacheHit
			},
			run: e.matchByEpisodeLookup,
		},
		{
			name: "title_match",
			applies: func(st *matchState) bool {
				return st.showTMDB == 0 && st.showTVDB == 0
			},
			run: e.matchByTitle,
		},
	}
}

// cacheGUID best-effort records a show-level resolution for a Plex GUID.
func (e *Engine) cacheGUID(plexGUID string, tmdbID, tvdbID int64) {
	if plexGUID == "" {
		return
	}
	if err := e.store.SetGuidCache(plexGUID, tmdbID, tvdbID); err != nil {
		log.Printf("reconcile: caching guid %s: %v", plexGUID, err)
	}
}

// rememberGUID stores the show-level Plex GUID on a matched request so the
// plex_guid strategy can find it directly next time.
func (e *Engine) rememberGUID(req *models.Request, plexGUID string) {
	if plexGUID == "" || req.PlexGUID == plexGUID {
		return
	}
	if err := e.store.SetRequestPlexGUID(req.MediaType, req.TMDBID, plexGUID); err != nil {
		log.Printf("reconcile: recording guid on request %s/%d: %v", req.MediaType, req.TMDBID, err)
	}
}

func (e *Engine) matchByTMDB(_ context.Context, st *matchState) (*models.Request, error) {
	req, err := e.store.MarkAdded(st.identity.MediaType, st.showTMDB)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}
	e.cacheGUID(st.identity.PlexGUID, st.showTMDB, st.showTVDB)
	e.rememberGUID(req, st.identity.PlexGUID)
	return req, nil
}

func (e *Engine) matchByTVDB(_ context.Context, st *matchState) (*models.Request, error) {
	candidate, err := e.store.FindRequestByTVDB(string(models.MediaTypeTV), st.showTVDB)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, nil
	}
	req, err := e.store.MarkAdded(candidate.MediaType, candidate.TMDBID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}
	e.cacheGUID(st.identity.PlexGUID, req.TMDBID, st.showTVDB)
	e.rememberGUID(req, st.identity.PlexGUID)
	return req, nil
}

func (e *Engine) matchByPlexGUID(_ context.Context, st *matchState) (*models.Request, error) {
	candidate, err := e.store.FindRequestByPlexGUID(st.identity.PlexGUID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, nil
	}
	req, err := e.store.MarkAdded(candidate.MediaType, candidate.TMDBID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}
	e.cacheGUID(st.identity.PlexGUID, req.TMDBID, req.TVDBID)
	return req, nil
}

// matchByEpisodeLookup resolves the episode's series via TVDB. The
// resolution is cached even when no request matches, so later episodes of
// the same unmatched show skip the remote call.
func (e *Engine) matchByEpisodeLookup(ctx context.Context, st *matchState) (*models.Request, error) {
	resolvedTVDB := e.tvdb.SeriesIDFromEpisode(ctx, st.identity.EpisodeTVDBID)
	if resolvedTVDB == 0 {
		return nil, nil
	}
	candidate, err := e.store.FindRequestByTVDB(string(models.MediaTypeTV), resolvedTVDB)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		e.cacheGUID(st.identity.PlexGUID, 0, resolvedTVDB)
		return nil, nil
	}
	e.cacheGUID(st.identity.PlexGUID, candidate.TMDBID, resolvedTVDB)
	e.rememberGUID(candidate, st.identity.PlexGUID)
	req, err := e.store.MarkAdded(candidate.MediaType, candidate.TMDBID)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// matchByTitle is the last resort when no identifier survived: a unique
// normalized-title match within the media type, with a one-year tolerance
// when both sides know the year. A fulfillment here also backfills library
// membership, since the earlier upsert had no tmdb id to key on.
func (e *Engine) matchByTitle(_ context.Context, st *matchState) (*models.Request, error) {
	candidate, err := e.store.FindRequestByTitle(st.identity.Title, st.identity.MediaType, st.identity.Year)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, nil
	}
	req, err := e.store.MarkAdded(candidate.MediaType, candidate.TMDBID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}
	member := store.LibraryItem{TMDBID: req.TMDBID, TVDBID: req.TVDBID, Title: req.Title}
	if _, err := e.store.SyncLibrary(req.MediaType, []store.LibraryItem{member}, false); err != nil {
		return nil, err
	}
	e.cacheGUID(st.identity.PlexGUID, req.TMDBID, req.TVDBID)
	e.rememberGUID(req, st.identity.PlexGUID)
	return req, nil
}

// SyncLibrary runs the bulk half of reconciliation: upsert the batch (after
// an optional wholesale clear), then conditionally fulfill the request
// behind every synced item. Returns (synced, fulfilled) counts.
func (e *Engine) SyncLibrary(ctx context.Context, mediaType string, items []store.LibraryItem, clear bool) (int, int, error) {
	synced, err := e.store.SyncLibrary(mediaType, items, clear)
	if err != nil {
		return 0, 0, fmt.Errorf("library sync: %w", err)
	}

	marked := 0
	for _, item := range items {
		if item.TMDBID == 0 {
			continue
		}
		req, err := e.store.MarkAdded(mediaType, item.TMDBID)
		if err != nil {
			return synced, marked, fmt.Errorf("fulfilling %s/%d: %w", mediaType, item.TMDBID, err)
		}
		if req == nil {
			continue
		}
		marked++
		if e.notifier != nil {
			e.notifier.NotifyFulfilled(ctx, req)
		}
	}
	return synced, marked, nil
}
