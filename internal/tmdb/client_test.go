package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithBaseURL("test-key", srv.URL)
}

func TestSearchMulti(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/multi" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("expected api_key=test-key, got %s", r.URL.Query().Get("api_key"))
		}
		if r.URL.Query().Get("query") != "matrix" {
			t.Errorf("query = %s", r.URL.Query().Get("query"))
		}
		w.Write([]byte(`{"page":1,"total_pages":1,"total_results":2,"results":[
			{"id":603,"media_type":"movie","title":"The Matrix"},
			{"id":1438,"media_type":"tv","name":"The Wire"}
		]}`))
	}))

	page, err := c.Search(context.Background(), "matrix", "", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.TotalResults != 2 || len(page.Results) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Results[0]["media_type"] != "movie" {
		t.Errorf("media_type = %v", page.Results[0]["media_type"])
	}
}

func TestSearchSingleTypeFillsMediaType(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tv" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"page":1,"results":[{"id":1399,"name":"Game of Thrones"}]}`))
	}))

	page, err := c.Search(context.Background(), "thrones", "tv", 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Results[0]["media_type"] != "tv" {
		t.Errorf("media_type not injected: %v", page.Results[0])
	}
}

func TestMovieDetails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("append_to_response") != "external_ids" {
			t.Error("expected append_to_response=external_ids")
		}
		w.Write([]byte(`{
			"id":603,"title":"The Matrix","release_date":"1999-03-31",
			"overview":"A hacker learns the truth.","poster_path":"/matrix.jpg",
			"external_ids":{"imdb_id":"tt0133093"}
		}`))
	}))

	d, err := c.MovieDetails(context.Background(), 603)
	if err != nil {
		t.Fatalf("MovieDetails: %v", err)
	}
	if d.DisplayTitle() != "The Matrix" {
		t.Errorf("title = %q", d.DisplayTitle())
	}
	if d.Year() != 1999 {
		t.Errorf("year = %d", d.Year())
	}
	if d.ExternalIDs.IMDBID != "tt0133093" {
		t.Errorf("imdb = %q", d.ExternalIDs.IMDBID)
	}
}

func TestTVDetails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1399" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"id":1399,"name":"Game of Thrones","first_air_date":"2011-04-17",
			"number_of_seasons":8,
			"external_ids":{"imdb_id":"tt0944947","tvdb_id":121361}
		}`))
	}))

	d, err := c.Details(context.Background(), "tv", 1399)
	if err != nil {
		t.Fatal(err)
	}
	if d.DisplayTitle() != "Game of Thrones" || d.Year() != 2011 {
		t.Errorf("details = %+v", d)
	}
	if d.NumberOfSeasons != 8 || d.ExternalIDs.TVDBID != 121361 {
		t.Errorf("details = %+v", d)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status_message":"not found"}`))
	}))

	if _, err := c.MovieDetails(context.Background(), 99999); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestYearMissingDate(t *testing.T) {
	d := &Details{Name: "Unknown"}
	if y := d.Year(); y != 0 {
		t.Errorf("year = %d, want 0", y)
	}
}

func TestImageURL(t *testing.T) {
	if got := ImageURL("w300", "/poster.jpg"); got != "https://image.tmdb.org/t/p/w300/poster.jpg" {
		t.Errorf("got %q", got)
	}
	if got := ImageURL("w92", ""); got != "" {
		t.Errorf("empty path produced %q", got)
	}
}
