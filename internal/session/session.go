// Package session runs the per-connection chat loop: validate an inbound
// frame, record the user turn, call the model, normalize its output, record
// the model turn and emit a single reply frame.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/m2tx/gemini_relay/internal/catalog"
	"github.com/m2tx/gemini_relay/internal/model"
	"github.com/m2tx/gemini_relay/internal/normalize"
	"github.com/m2tx/gemini_relay/internal/protocol"
	"github.com/m2tx/gemini_relay/internal/transcript"
)

// Generator is the external model capability.
type Generator interface {
	GenerateReply(ctx context.Context, turns []model.Turn, modelName string, cfg model.GenerationConfig, stream bool) (*model.RawOutput, error)
}

// Sender delivers one outbound frame to the client.
type Sender interface {
	SendJSON(v any) error
}

// State is the position of a session in its turn cycle.
type State int

const (
	StateOpen State = iota
	StateValidating
	StateInvoking
	StateNormalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateValidating:
		return "validating"
	case StateInvoking:
		return "invoking"
	case StateNormalizing:
		return "normalizing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session owns one connection's transcript. All methods must be called from
// the single goroutine that drives the connection.
type Session struct {
	id           string
	catalog      *catalog.Catalog
	generator    Generator
	transcript   *transcript.Transcript
	modelTimeout time.Duration
	state        State
}

// Option configures a Session.
type Option func(*Session)

// WithModelTimeout bounds each model invocation. Zero disables the bound.
func WithModelTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.modelTimeout = d
	}
}

func New(id string, cat *catalog.Catalog, gen Generator, opts ...Option) *Session {
	s := &Session{
		id:         id,
		catalog:    cat,
		generator:  gen,
		transcript: transcript.New(),
		state:      StateOpen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return s.state
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []model.Turn {
	return s.transcript.Snapshot()
}

// Run processes frames one at a time until frames is closed or ctx is done.
// A reply computed after ctx is cancelled is dropped. Run returns the send
// error if the client can no longer be written to.
func (s *Session) Run(ctx context.Context, frames <-chan []byte, out Sender) error {
	defer s.setState(StateClosed)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-frames:
			if !ok {
				return nil
			}
			// frames may be queued behind a turn that outlived the client
			if ctx.Err() != nil {
				return nil
			}

			frame := s.Handle(ctx, data)
			if ctx.Err() != nil {
				log.Printf("session %s: connection gone, dropping reply", s.id)
				return nil
			}

			if err := out.SendJSON(frame); err != nil {
				return fmt.Errorf("session %s: send frame: %w", s.id, err)
			}
		}
	}
}

// Handle runs one full turn and returns the frame to send. It always returns
// exactly one frame and leaves the session Open.
func (s *Session) Handle(ctx context.Context, data []byte) (frame protocol.Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session %s: recovered from panic in state %s: %v", s.id, s.state, r)
			frame = protocol.ErrorFrame{Error: protocol.ChatFailedMessage(fmt.Sprint(r))}
		}
		s.setState(StateOpen)
	}()

	s.setState(StateValidating)
	msg, err := protocol.Validate(data, s.catalog)
	if err != nil {
		return s.rejected(err)
	}

	s.transcript.Append(model.UserTurn(msg.Text))

	s.setState(StateInvoking)
	raw, err := s.invoke(ctx, msg)
	if err != nil {
		log.Printf("session %s: Chat failed: %v", s.id, err)
		return protocol.ErrorFrame{Error: protocol.ChatFailedMessage(err.Error())}
	}

	s.setState(StateNormalizing)
	reply := normalize.Text(*raw)
	s.transcript.Append(model.ModelTurn(reply))

	log.Printf("session %s: turn complete, model=%s transcript=%d turns", s.id, msg.ModelName, s.transcript.Len())

	return protocol.ResponseFrame{Response: reply}
}

func (s *Session) invoke(ctx context.Context, msg model.InboundMessage) (*model.RawOutput, error) {
	if s.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.modelTimeout)
		defer cancel()
	}

	raw, err := s.generator.GenerateReply(ctx, s.transcript.Snapshot(), msg.ModelName, msg.GenerationConfig, msg.Stream)
	if err != nil {
		return nil, err
	}
	if raw == nil || len(raw.Candidates) == 0 {
		return nil, errors.New("model returned no output")
	}
	return raw, nil
}

func (s *Session) rejected(err error) protocol.Frame {
	var verr *protocol.ValidationError
	if !errors.As(err, &verr) {
		return protocol.ErrorFrame{Error: protocol.ChatFailedMessage(err.Error())}
	}

	if verr.Kind == protocol.KindUnsupportedMessageType {
		log.Printf("session %s: rejected message: %s payload=%s", s.id, verr.Kind, verr.Payload)
	} else {
		log.Printf("session %s: rejected message: %s", s.id, verr.Kind)
	}

	return protocol.ErrorFrame{Error: verr.Message}
}

func (s *Session) setState(state State) {
	s.state = state
}
