package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/genai"

	"github.com/m2tx/gemini_relay/internal/agent"
	"github.com/m2tx/gemini_relay/internal/api"
	"github.com/m2tx/gemini_relay/internal/catalog"
	"github.com/m2tx/gemini_relay/internal/config"
	"github.com/m2tx/gemini_relay/internal/repository"
	"github.com/m2tx/gemini_relay/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	cat := catalog.Default()
	if cfg.DefaultModel != "" {
		cat, err = cat.WithDefaultModel(cfg.DefaultModel)
		if err != nil {
			log.Fatal(err)
		}
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatal(err)
	}
	gen := agent.New(client)

	var transcripts repository.TranscriptRepository
	if cfg.ArchiveEnabled() {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				log.Printf("mongodb disconnect: %v", err)
			}
		}()

		transcripts = repository.NewMongoTranscriptRepository(mongoClient.Database(cfg.MongoDB), cfg.MongoCollection)
		log.Printf("Archiving transcripts to %s.%s", cfg.MongoDB, cfg.MongoCollection)
	}

	wsServer := ws.NewServer(cfg, cat, gen, transcripts)
	apiServer := api.NewServer(cat, gen, transcripts, wsServer.ActiveConnections)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.GET("/ws/chat", wsServer.HandleChat)
	apiServer.Register(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Gemini relay listening on port %d (default model %s)", cfg.HTTPPort, cat.DefaultModel())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// sockets are hijacked, so echo's shutdown does not wait for them
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to close chat connections: %v", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	log.Println("Gemini relay stopped")
}
