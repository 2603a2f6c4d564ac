// Package api provides the stateless HTTP endpoints that sit next to the
// WebSocket chat: one-shot generation, history-carrying chat, catalog
// listings, health and the transcript archive.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/m2tx/gemini_relay/internal/catalog"
	"github.com/m2tx/gemini_relay/internal/model"
	"github.com/m2tx/gemini_relay/internal/normalize"
	"github.com/m2tx/gemini_relay/internal/repository"
)

// Error texts returned by the HTTP endpoints.
const (
	msgGenerationFailed = "Generation failed: "
	msgChatFailed       = "Chat session failed: "
	msgInvalidMessages  = "Invalid JSON format for messages."
	msgNoArchive        = "Transcript archive is not configured."
	msgNotFound         = "Transcript not found."
)

// Generator produces model output for a list of turns.
type Generator interface {
	GenerateReply(ctx context.Context, turns []model.Turn, modelName string, cfg model.GenerationConfig, stream bool) (*model.RawOutput, error)
}

// Server serves the HTTP API.
type Server struct {
	catalog     *catalog.Catalog
	generator   Generator
	transcripts repository.TranscriptRepository
	connections func() int64
}

// NewServer creates the API. transcripts may be nil when no archive is
// configured; connections reports the number of open chat sockets.
func NewServer(cat *catalog.Catalog, gen Generator, transcripts repository.TranscriptRepository, connections func() int64) *Server {
	if connections == nil {
		connections = func() int64 { return 0 }
	}
	return &Server{
		catalog:     cat,
		generator:   gen,
		transcripts: transcripts,
		connections: connections,
	}
}

// Register mounts the API routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.handleHealth)
	e.GET("/models", s.handleModels)
	e.GET("/languages", s.handleLanguages)
	e.POST("/generate", s.handleGenerate)
	e.POST("/chat", s.handleChat)
	e.GET("/transcripts/:id", s.handleGetTranscript)
	e.DELETE("/transcripts/:id", s.handleDeleteTranscript)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections": s.connections(),
		"archive":     s.transcripts != nil,
	})
}

func (s *Server) handleModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"models": s.catalog.Models(),
	})
}

func (s *Server) handleLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"languages": s.catalog.Languages(),
	})
}

// handleGenerate runs a single prompt. One candidate is returned as
// "response", several as "responses" in candidate order.
func (s *Server) handleGenerate(c echo.Context) error {
	req, err := parseGenerateForm(c, s.catalog)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var turns []model.Turn
	if req.Text != "" {
		turns = append(turns, model.UserTurn(req.Text))
	}

	out, err := s.generator.GenerateReply(c.Request().Context(), turns, req.Model, req.Config, req.Stream)
	if err == nil && out == nil {
		err = errNoOutput
	}
	if err != nil {
		log.Printf("api: generate with %s failed: %v", req.Model, err)
		return c.JSON(http.StatusInternalServerError, errorBody(msgGenerationFailed+err.Error()))
	}

	if req.Config.CandidateCount == 1 {
		return c.JSON(http.StatusOK, map[string]string{"response": normalize.Text(*out)})
	}
	return c.JSON(http.StatusOK, map[string][]string{"responses": normalize.Replies(*out)})
}

// handleChat continues a conversation the client carries itself. Nothing is
// kept between requests.
func (s *Server) handleChat(c echo.Context) error {
	req, err := parseChatForm(c, s.catalog)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var history []model.Content
	if err := json.Unmarshal([]byte(c.FormValue("messages")), &history); err != nil {
		return badRequest(c, msgInvalidMessages)
	}

	turns := model.TurnsFromContents(history)
	out, err := s.generator.GenerateReply(c.Request().Context(), turns, req.Model, req.Config, false)
	if err == nil && out == nil {
		err = errNoOutput
	}
	if err != nil {
		log.Printf("api: chat with %s failed: %v", req.Model, err)
		return c.JSON(http.StatusInternalServerError, errorBody(msgChatFailed+err.Error()))
	}

	return c.JSON(http.StatusOK, map[string]string{"response": normalize.Text(*out)})
}

func (s *Server) handleGetTranscript(c echo.Context) error {
	if s.transcripts == nil {
		return c.JSON(http.StatusNotFound, errorBody(msgNoArchive))
	}

	id := c.Param("id")
	history, err := s.transcripts.Load(c.Request().Context(), id)
	if err != nil {
		log.Printf("api: load transcript %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, errorBody("failed to load transcript"))
	}
	if history == nil {
		return c.JSON(http.StatusNotFound, errorBody(msgNotFound))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": id,
		"history":    history,
	})
}

func (s *Server) handleDeleteTranscript(c echo.Context) error {
	if s.transcripts == nil {
		return c.JSON(http.StatusNotFound, errorBody(msgNoArchive))
	}

	ctx := c.Request().Context()
	id := c.Param("id")

	history, err := s.transcripts.Load(ctx, id)
	if err != nil {
		log.Printf("api: load transcript %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, errorBody("failed to load transcript"))
	}
	if history == nil {
		return c.JSON(http.StatusNotFound, errorBody(msgNotFound))
	}

	if err := s.transcripts.Delete(ctx, id); err != nil {
		log.Printf("api: delete transcript %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, errorBody("failed to delete transcript"))
	}

	return c.NoContent(http.StatusNoContent)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody(msg))
}
