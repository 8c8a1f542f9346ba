package server

import (
	"net/http"
	"testing"

	"overlite/internal/models"
)

func seedListRequests(t *testing.T, e *testEnv) {
	t.Helper()
	seed := []*models.Request{
		{MediaType: "movie", TMDBID: 603, Title: "The Matrix", Year: 1999, IMDBID: "tt0133093", PosterPath: "/matrix.jpg"},
		{MediaType: "movie", TMDBID: 550, Title: "Fight Club"},
		{MediaType: "movie", TMDBID: 78, Title: "Blade Runner", AddedAt: "2026-01-01T00:00:00Z"},
		{MediaType: "tv", TMDBID: 1399, Title: "Game of Thrones", TVDBID: 121361},
		{MediaType: "tv", TMDBID: 456, Title: "No TVDB Yet"},
		{MediaType: "tv", TMDBID: 789, Title: "Done", TVDBID: 999, AddedAt: "2026-01-01T00:00:00Z"},
	}
	for _, r := range seed {
		if _, err := e.store.AddRequest(r); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRadarrList(t *testing.T) {
	e := newTestEnv(t)
	seedListRequests(t, e)

	w := e.do(t, http.MethodGet, "/list/radarr?token="+testFeedToken, nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var items []map[string]any
	decodeBody(t, w, &items)
	if len(items) != 2 {
		t.Fatalf("items = %v", items)
	}

	byTitle := map[string]map[string]any{}
	for _, item := range items {
		byTitle[item["title"].(string)] = item
	}
	matrix, ok := byTitle["The Matrix (1999)"]
	if !ok {
		t.Fatalf("missing year-suffixed title: %v", items)
	}
	if matrix["imdb_id"] != "tt0133093" {
		t.Errorf("imdb_id = %v", matrix["imdb_id"])
	}
	if matrix["poster_url"] != "https://image.tmdb.org/t/p/w300/matrix.jpg" {
		t.Errorf("poster_url = %v", matrix["poster_url"])
	}

	// Fields are omitted, not emptied, when unknown; no year means a bare
	// title.
	fc, ok := byTitle["Fight Club"]
	if !ok {
		t.Fatalf("missing bare title: %v", items)
	}
	if _, present := fc["imdb_id"]; present {
		t.Error("empty imdb_id not omitted")
	}
	if _, present := fc["poster_url"]; present {
		t.Error("empty poster_url not omitted")
	}
}

func TestSonarrList(t *testing.T) {
	e := newTestEnv(t)
	seedListRequests(t, e)

	w := e.do(t, http.MethodGet, "/list/sonarr?token="+testFeedToken, nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var items []map[string]any
	decodeBody(t, w, &items)
	if len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
	if items[0]["tvdbId"] != "121361" {
		t.Errorf("tvdbId = %#v, want the string form", items[0]["tvdbId"])
	}
}

func TestListFeedToken(t *testing.T) {
	e := newTestEnv(t)

	if w := e.do(t, http.MethodGet, "/list/radarr", nil, false); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/list/radarr?token=wrong", nil, false); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", w.Code)
	}
}

func TestListFeedTokenUnsetLeavesFeedsOpen(t *testing.T) {
	e := newTestEnv(t, WithFeedToken(""))
	if w := e.do(t, http.MethodGet, "/list/sonarr", nil, false); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestEmptyListsAreArrays(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/list/radarr", "/list/sonarr"} {
		w := e.do(t, http.MethodGet, path+"?token="+testFeedToken, nil, false)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
		if got := w.Body.String(); got != "[]\n" {
			t.Errorf("%s body = %q, want empty array", path, got)
		}
	}
}

func TestFeedsEndpoint(t *testing.T) {
	e := newTestEnv(t, WithBaseURL("https://requests.example.com/"))
	w := e.do(t, http.MethodGet, "/api/feeds", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["radarr"] != "https://requests.example.com/list/radarr?token="+testFeedToken {
		t.Errorf("radarr = %q", body["radarr"])
	}
	if body["sonarr"] != "https://requests.example.com/list/sonarr?token="+testFeedToken {
		t.Errorf("sonarr = %q", body["sonarr"])
	}
}
