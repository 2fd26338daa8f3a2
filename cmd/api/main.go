package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Vazhid/lezgian-tts/internal/api"
	"github.com/Vazhid/lezgian-tts/internal/audiostore"
	"github.com/Vazhid/lezgian-tts/internal/config"
	"github.com/Vazhid/lezgian-tts/internal/coordinator"
	"github.com/Vazhid/lezgian-tts/internal/db"
	"github.com/Vazhid/lezgian-tts/internal/delivery"
	"github.com/Vazhid/lezgian-tts/internal/synth"
)

func main() {
	log.Println("Starting Lezgian TTS API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Optional error reporting
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Printf("WARNING: Sentry init failed: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Println("Sentry error reporting enabled")
		}
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Initialize audio storage
	store, err := audiostore.New(cfg.AudioDir)
	if err != nil {
		log.Fatalf("Failed to initialize audio storage: %v", err)
	}
	log.Printf("Audio storage root: %s", store.Root())

	// Initialize synthesis engine — local model server preferred,
	// OpenAI speech as fallback
	var engine synth.Engine
	if cfg.ModelServerURL != "" {
		engine = synth.NewModelServerEngine(cfg.ModelServerURL)
		log.Printf("Synthesis engine: model server (%s)", cfg.ModelServerURL)
	} else {
		engine = synth.NewOpenAIEngine(cfg.OpenAIKey, cfg.OpenAIVoice)
		log.Printf("Synthesis engine: OpenAI speech (voice: %s)", cfg.OpenAIVoice)
	}

	// Create coordinator and start the worker pool
	coord := coordinator.New(database, store, engine, coordinator.Options{
		Workers:          cfg.MaxConcurrentJobs,
		QueueSize:        cfg.QueueSize,
		SynthesisTimeout: cfg.SynthesisTimeout,
		ResultRetention:  cfg.ResultRetention,
	})

	coordCtx, coordCancel := context.WithCancel(context.Background())
	go func() {
		if err := coord.Start(coordCtx); err != nil {
			log.Printf("Coordinator stopped with error: %v", err)
		}
	}()

	// Audio delivery with on-demand transcoding
	audio := delivery.New(database, store, cfg.FFmpegPath)

	// Create API handler
	handler := api.NewHandler(database, coord, audio, cfg.JWTSecret, cfg.DefaultLanguage)
	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:          cfg.JWTSecret,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker pool
	coordCancel()

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
