package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(limitBody)
		r.Use(jsonContentType)
		r.Use(corsMiddleware(s.corsOrigin))

		r.Get("/auth/params", s.handleAuthParams)
		r.Post("/auth/verify", s.handleAuthVerify)

		r.Group(func(pr chi.Router) {
			pr.Use(s.requireSession)

			pr.Post("/search", s.handleSearch)

			pr.Post("/request", s.handleCreateRequest)
			pr.Delete("/request/{mediaType}/{tmdbID}", s.handleDeleteRequest)
			pr.Get("/requests", s.handleListRequests)
			pr.Get("/library-status", s.handleLibraryStatus)

			pr.Route("/push", func(sr chi.Router) {
				sr.Get("/vapid-public-key", s.handleVAPIDPublicKey)
				sr.Get("/status", s.handlePushStatus)
				sr.Post("/subscribe", s.handlePushSubscribe)
				sr.Delete("/subscribe", s.handlePushUnsubscribe)
			})

			pr.Get("/feeds", s.handleFeeds)
		})
	})

	// Downstream pollers authenticate with a token in the query string, not
	// a session.
	s.router.Group(func(r chi.Router) {
		r.Use(jsonContentType)
		r.Use(s.requireFeedToken)
		r.Get("/list/radarr", s.handleRadarrList)
		r.Get("/list/sonarr", s.handleSonarrList)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(jsonContentType)
		r.Use(s.requireWebhookToken)
		r.Post("/webhook/plex", s.handlePlexWebhook)
		r.Post("/sync/library", s.handleSyncLibrary)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
