// Package ws provides the WebSocket chat endpoint.
package ws

import (
	"context"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/m2tx/gemini_relay/internal/catalog"
	"github.com/m2tx/gemini_relay/internal/config"
	"github.com/m2tx/gemini_relay/internal/model"
	"github.com/m2tx/gemini_relay/internal/session"
)

const (
	archiveTimeout = 5 * time.Second

	// frames read ahead of the turn in progress
	frameQueueSize = 16
)

// Archiver stores the transcript of a closed connection.
type Archiver interface {
	Save(ctx context.Context, sessionID string, history []model.Content) error
}

// Server upgrades HTTP requests to chat sessions, one session per connection.
type Server struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	generator session.Generator
	archive   Archiver
	upgrader  websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewServer creates a new WebSocket server. archive may be nil.
func NewServer(cfg *config.Config, cat *catalog.Catalog, gen session.Generator, archive Archiver) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:       cfg,
		catalog:   cat,
		generator: gen,
		archive:   archive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// HandleChat upgrades the request and runs the session until the client
// disconnects or the server shuts down.
func (s *Server) HandleChat(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		log.Printf("ws: failed to upgrade: %v", err)
		return nil
	}

	s.wg.Add(1)
	defer s.wg.Done()

	s.serve(ws, c.RealIP())
	return nil
}

// ActiveConnections returns the number of open chat connections.
func (s *Server) ActiveConnections() int64 {
	return s.active.Load()
}

// Shutdown ends every session and waits for their connections to close.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) serve(ws *websocket.Conn, remote string) {
	conn := newConn(ws, s.cfg.WriteTimeout)
	sess := session.New("sess_"+uuid.New().String()[:8], s.catalog, s.generator,
		session.WithModelTimeout(s.cfg.ModelTimeout))

	s.active.Add(1)
	defer s.active.Add(-1)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	frames := make(chan []byte, frameQueueSize)
	go s.readPump(ctx, cancel, conn, frames)
	go s.keepalive(ctx, conn)

	log.Printf("ws: session %s opened from %s", sess.ID(), remote)

	if err := sess.Run(ctx, frames, conn); err != nil {
		log.Printf("ws: %v", err)
	}

	if s.ctx.Err() != nil {
		conn.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	conn.Close()

	s.archiveTranscript(sess)
	log.Printf("ws: session %s closed", sess.ID())
}

// readPump queues text frames for the session and cancels it once the
// connection fails. It only blocks when the queue is full.
func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, conn *Conn, frames chan<- []byte) {
	defer cancel()
	defer close(frames)

	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		conn.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Printf("ws: read error: %v", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) keepalive(ctx context.Context, conn *Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

// archiveTranscript writes the final transcript when an archive is configured.
// The archive is never read back into a session.
func (s *Server) archiveTranscript(sess *session.Session) {
	if s.archive == nil {
		return
	}

	turns := sess.Transcript()
	if len(turns) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if err := s.archive.Save(ctx, sess.ID(), model.ToContents(turns)); err != nil {
		log.Printf("ws: warning: failed to archive session %s: %v", sess.ID(), err)
	}
}
