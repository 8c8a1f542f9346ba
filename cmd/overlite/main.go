package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"overlite/internal/auth"
	"overlite/internal/notifier"
	"overlite/internal/reconcile"
	"overlite/internal/server"
	"overlite/internal/store"
	"overlite/internal/tmdb"
	"overlite/internal/tvdb"
	"overlite/internal/webpush"
)

func main() {
	dbPath := envOr("DB_PATH", "./data/overlite.db")
	listenAddr := envOr("LISTEN_ADDR", ":7936")

	secretKey := os.Getenv("APP_SECRET_KEY")
	if secretKey == "" {
		log.Fatal("APP_SECRET_KEY is required")
	}
	password := os.Getenv("PRESHARED_PASSWORD")
	if password == "" {
		log.Fatal("PRESHARED_PASSWORD is required")
	}
	tmdbKey := os.Getenv("TMDB_API_KEY")
	if tmdbKey == "" {
		log.Fatal("TMDB_API_KEY is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatal(err)
	}

	s, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer s.Close()

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go s.StartReaper(reaperCtx, time.Hour)

	vapidPrivate := os.Getenv("VAPID_PRIVATE_KEY")
	vapidPublic := os.Getenv("VAPID_PUBLIC_KEY")
	var sender notifier.PushSender
	if vapidPrivate != "" {
		if vapidPublic == "" {
			vapidPublic, err = webpush.PublicKeyFromPrivate(vapidPrivate)
			if err != nil {
				log.Fatalf("deriving VAPID public key: %v", err)
			}
		}
		ws, err := webpush.NewSender(vapidPrivate, vapidPublic, envOr("VAPID_SUBJECT", "mailto:admin@localhost"))
		if err != nil {
			log.Fatalf("initializing web push: %v", err)
		}
		sender = ws
		log.Println("Web push notifications enabled")
	} else {
		log.Println("VAPID keys not configured; web push disabled")
	}

	tmdbClient := tmdb.New(tmdbKey)
	tvdbClient := tvdb.New(os.Getenv("TVDB_API_KEY"))
	notify := notifier.New(s, sender)
	engine := reconcile.New(s, tvdbClient, notify, os.Getenv("PLEX_SERVER_NAME"))

	authenticator := auth.New(secretKey, password)
	limiter := auth.NewRateLimiter(s,
		envBool("RATE_LIMIT_ENABLED", false),
		envInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
		envInt("RATE_LIMIT_WINDOW_SECONDS", 900))

	opts := []server.Option{
		server.WithTMDB(tmdbClient),
		server.WithEngine(engine),
		server.WithAuth(authenticator, limiter),
		server.WithFeedToken(os.Getenv("FEED_TOKEN")),
		server.WithWebhookToken(os.Getenv("PLEX_WEBHOOK_TOKEN")),
		server.WithBaseURL(os.Getenv("BASE_URL")),
		server.WithVAPIDPublicKey(vapidPublic),
	}
	if origin := os.Getenv("ALLOWED_ORIGIN"); origin != "" {
		opts = append(opts, server.WithCORSOrigin(origin))
	}
	srv := server.NewServer(s, opts...)

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Overlite listening on %s", listenAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return n
}
