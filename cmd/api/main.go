package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/api"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/auth"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/config"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/domain"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/ingest"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/outbox"
	persistence "github.com/NickPugin/wattsup-training-tracker-app/internal/persistence/postgres"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/strava"
	httptransport "github.com/NickPugin/wattsup-training-tracker-app/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	dispatcher := outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	stravaClient := strava.NewClient(strava.Config{
		ClientID:     cfg.StravaClientID,
		ClientSecret: cfg.StravaClientSecret,
	})
	tokens := strava.NewTokenManager(stravaClient, repo)
	pipeline := ingest.NewPipeline(repo, repo, tokens, stravaClient)

	service := domain.NewService(repo)

	mux := http.NewServeMux()
	api.NewHandler(service).RegisterRoutes(mux)
	api.NewWebhookHandler(pipeline, cfg.StravaVerifyToken).RegisterRoutes(mux)
	api.NewCallbackHandler(stravaClient, repo, cfg.AppBaseURL).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Simple CORS middleware for local dev
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	// Provider-facing paths carry no bearer token.
	skipper := func(r *http.Request) bool {
		switch r.URL.Path {
		case "/healthz", "/metrics", "/strava/webhook", "/strava/callback":
			return true
		}
		return false
	}
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, skipper)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(logger(cors(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("wattsup api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Wait()
}
