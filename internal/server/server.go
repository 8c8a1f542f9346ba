package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"overlite/internal/auth"
	"overlite/internal/reconcile"
	"overlite/internal/store"
	"overlite/internal/tmdb"
)

type Server struct {
	router chi.Router
	store  *store.Store
	tmdb   *tmdb.Client
	engine *reconcile.Engine
	auth   *auth.Authenticator
	limiter *auth.RateLimiter

	corsOrigin     string
	feedToken      string
	webhookToken   string
	baseURL        string
	vapidPublicKey string
}

func NewServer(s *store.Store, opts ...Option) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		store:  s,
	}
	for _, o := range opts {
		o(srv)
	}
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.routes()
	return srv
}

type Option func(*Server)

func WithTMDB(c *tmdb.Client) Option {
	return func(s *Server) { s.tmdb = c }
}

func WithEngine(e *reconcile.Engine) Option {
	return func(s *Server) { s.engine = e }
}

func WithAuth(a *auth.Authenticator, rl *auth.RateLimiter) Option {
	return func(s *Server) { s.auth = a; s.limiter = rl }
}

func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

func WithFeedToken(token string) Option {
	return func(s *Server) { s.feedToken = token }
}

func WithWebhookToken(token string) Option {
	return func(s *Server) { s.webhookToken = token }
}

func WithBaseURL(u string) Option {
	return func(s *Server) { s.baseURL = u }
}

func WithVAPIDPublicKey(key string) Option {
	return func(s *Server) { s.vapidPublicKey = key }
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
