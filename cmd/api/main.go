package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/clipforge/internal/api"
	"github.com/bobarin/clipforge/internal/config"
	"github.com/bobarin/clipforge/internal/db"
	"github.com/bobarin/clipforge/internal/jobs"
	"github.com/bobarin/clipforge/internal/pipeline"
	"github.com/bobarin/clipforge/internal/services"
	"github.com/bobarin/clipforge/internal/storage"
	"github.com/bobarin/clipforge/internal/workspace"
)

func main() {
	log.Println("Starting Clipforge API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis job tracker
	tracker, err := jobs.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to job tracker: %v", err)
	}
	defer tracker.Close()
	log.Println("Connected to Redis job tracker")

	// Initialize storage
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.Println("Initialized Supabase storage")

	// Initialize workspace root
	workspaces, err := workspace.NewManager(cfg.WorkspaceRoot)
	if err != nil {
		log.Fatalf("Failed to initialize workspace root: %v", err)
	}

	// Initialize generation services
	openaiSvc := services.NewOpenAIService(cfg.OpenAIKey, cfg.SceneCount)
	elevenSvc := services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	geminiSvc := services.NewGeminiService(cfg.GeminiKey)
	ffmpegSvc := services.NewFFmpegService()
	log.Printf("Pipeline configured (scenes=%d, voice=%s)", cfg.SceneCount, cfg.ElevenLabsVoiceID)

	// Wire the pipeline
	orchestrator := pipeline.New(
		openaiSvc,
		elevenSvc,
		geminiSvc,
		openaiSvc,
		ffmpegSvc,
		stor,
		database,
		tracker,
		workspaces,
		cfg.SceneCount,
		cfg.SignedURLTTL,
	)

	// Create API handler
	handler := api.NewHandler(orchestrator, tracker, cfg.ExposeDiagnostics)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		RequestTimeout:     time.Duration(cfg.RequestTimeout) * time.Second,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server. Read/write timeouts must outlast the request
	// timeout since video creation runs the whole pipeline in-request.
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.RequestTimeout+30) * time.Second,
	}

	// Start server in goroutine
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

	// Let in-flight pipeline runs finish draining
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
