package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"overlite/internal/auth"
	"overlite/internal/models"
	"overlite/internal/reconcile"
	"overlite/internal/store"
	"overlite/internal/tmdb"
)

const (
	testSecret       = "test-secret"
	testPassword     = "hunter2"
	testFeedToken    = "feed-token"
	testWebhookToken = "hook-token"
)

type stubResolver struct {
	series map[int64]int64
}

func (s *stubResolver) SeriesIDFromEpisode(_ context.Context, episodeID int64) int64 {
	return s.series[episodeID]
}

type stubNotifier struct {
	notified []*models.Request
}

func (s *stubNotifier) NotifyFulfilled(_ context.Context, req *models.Request) bool {
	s.notified = append(s.notified, req)
	return true
}

type testEnv struct {
	srv      *Server
	store    *store.Store
	auth     *auth.Authenticator
	notifier *stubNotifier
	token    string
}

// stubTMDB serves the handful of TMDB routes the handlers touch.
func stubTMDB(t *testing.T) *tmdb.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/multi", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"page":1,"total_pages":1,"total_results":2,"results":[
			{"id":603,"media_type":"movie","title":"The Matrix"},
			{"id":1399,"media_type":"tv","name":"Game of Thrones"}
		]}`))
	})
	mux.HandleFunc("/movie/603", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id":603,"title":"The Matrix","release_date":"1999-03-31",
			"overview":"A hacker learns the truth.","poster_path":"/matrix.jpg",
			"external_ids":{"imdb_id":"tt0133093"}
		}`))
	})
	mux.HandleFunc("/tv/1399", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id":1399,"name":"Game of Thrones","first_air_date":"2011-04-17",
			"number_of_seasons":8,
			"external_ids":{"imdb_id":"tt0944947","tvdb_id":121361}
		}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status_message":"not found"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return tmdb.NewWithBaseURL("test-key", srv.URL)
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	a := auth.New(testSecret, testPassword)
	notifier := &stubNotifier{}
	engine := reconcile.New(s, &stubResolver{series: map[int64]int64{}}, notifier, "")

	base := []Option{
		WithTMDB(stubTMDB(t)),
		WithEngine(engine),
		WithAuth(a, auth.NewRateLimiter(s, false, 5, 900)),
		WithFeedToken(testFeedToken),
		WithWebhookToken(testWebhookToken),
	}
	srv := NewServer(s, append(base, opts...)...)

	return &testEnv{
		srv:      srv,
		store:    s,
		auth:     a,
		notifier: notifier,
		token:    a.CreateToken("alice", time.Now()),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

// postWebhook posts a Plex-style multipart webhook body.
func (e *testEnv) postWebhook(t *testing.T, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		if err := mw.WriteField("payload", string(raw)); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/webhook/plex?token="+token, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}
