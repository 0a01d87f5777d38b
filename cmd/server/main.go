package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docqa/doc-qa-service/internal/api"
	"github.com/docqa/doc-qa-service/internal/config"
	"github.com/docqa/doc-qa-service/internal/core"
	"github.com/docqa/doc-qa-service/internal/pdf"
	"github.com/docqa/doc-qa-service/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	if err := os.MkdirAll(config.AppConfig.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}

	// Initialize LLM service (Gemini completions + embeddings)
	llmService := core.NewLLMService()
	defer llmService.Close()

	// Initialize PDF extraction
	extractor, err := pdf.NewExtractor()
	if err != nil {
		log.Fatalf("Failed to initialize PDF extractor: %v", err)
	}

	// Optional embedding cache; the engine runs fine without it.
	var embedCache core.EmbedCache
	if config.AppConfig.EmbedCachePath != "" {
		cache, err := store.NewEmbeddingCache(config.AppConfig.EmbedCachePath, "text-embedding-004")
		if err != nil {
			log.Fatalf("Failed to initialize embedding cache: %v", err)
		}
		defer cache.Close()
		embedCache = cache
	}

	// Session registry, explicitly constructed and passed down.
	sessions := core.NewSessionManager(
		config.AppConfig.MaxSessions,
		time.Duration(config.AppConfig.SessionIdleTTLMin)*time.Minute,
	)

	// The RAG engine the transport wraps.
	engine := core.NewEngine(sessions, extractor, llmService, llmService, embedCache)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(engine, config.AppConfig.UploadDir)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,  // Uploads plus slow LLM handshakes
		WriteTimeout: 120 * time.Second, // Ingestion embeds every chunk before responding
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish before forcing the exit.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
