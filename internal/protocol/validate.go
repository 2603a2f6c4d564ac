package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/m2tx/gemini_relay/internal/catalog"
	"github.com/m2tx/gemini_relay/internal/model"
)

// Kind classifies a validation failure.
type Kind int

const (
	KindMalformedPayload Kind = iota + 1
	KindUnsupportedMessageType
	KindInvalidTurnShape
	KindUnknownModel
	KindUnsupportedMIMEType
	KindInvalidGenerationConfig
)

func (k Kind) String() string {
	switch k {
	case KindMalformedPayload:
		return "malformed_payload"
	case KindUnsupportedMessageType:
		return "unsupported_message_type"
	case KindInvalidTurnShape:
		return "invalid_turn_shape"
	case KindUnknownModel:
		return "unknown_model"
	case KindUnsupportedMIMEType:
		return "unsupported_mime_type"
	case KindInvalidGenerationConfig:
		return "invalid_generation_config"
	default:
		return "unknown"
	}
}

// ValidationError is the only error type Validate returns. Message is the
// text sent to the client.
type ValidationError struct {
	Kind    Kind
	Message string
	Payload []byte
}

func (e *ValidationError) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// Validate decodes one inbound frame and checks it against the catalog.
// Checks run in a fixed order and the first failure is returned:
// payload decoding, message type, turn shape, model, response MIME type,
// generation ranges, the model's output token limit.
func Validate(data []byte, cat *catalog.Catalog) (model.InboundMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return model.InboundMessage{}, invalid(KindMalformedPayload, MsgInvalidJSON, data)
	}

	if typ, _ := stringField(fields, "type"); typ != TypeText {
		return model.InboundMessage{}, invalid(KindUnsupportedMessageType, MsgUnsupportedType, data)
	}

	role, _ := stringField(fields, "role")
	text, _ := stringField(fields, "text")
	if role != string(model.RoleUser) || text == "" {
		return model.InboundMessage{}, invalid(KindInvalidTurnShape, MsgInvalidFormat, nil)
	}

	modelName := cat.DefaultModel()
	if present(fields, "model_name") {
		modelName, _ = stringField(fields, "model_name")
	}
	if !cat.HasModel(modelName) {
		return model.InboundMessage{}, invalid(KindUnknownModel, UnsupportedModelMessage(cat), nil)
	}

	cfg, verr := generationConfig(fields, cat, modelName)
	if verr != nil {
		return model.InboundMessage{}, verr
	}

	stream, _ := boolField(fields, "stream")

	return model.InboundMessage{
		Type:             TypeText,
		Role:             model.RoleUser,
		Text:             text,
		ModelName:        modelName,
		GenerationConfig: cfg,
		Stream:           stream,
	}, nil
}

// generationConfig merges a client supplied config over the defaults.
func generationConfig(fields map[string]json.RawMessage, cat *catalog.Catalog, modelName string) (model.GenerationConfig, *ValidationError) {
	cfg := model.DefaultGenerationConfig()

	// the default never exceeds what the chosen model can produce
	limit := 0
	if m, ok := cat.Model(modelName); ok && m.OutputTokenLimit > 0 {
		limit = m.OutputTokenLimit
		cfg.MaxOutputTokens = min(cfg.MaxOutputTokens, limit)
	}

	if !present(fields, "generation_config") {
		return cfg, nil
	}

	var gc map[string]json.RawMessage
	if err := json.Unmarshal(fields["generation_config"], &gc); err != nil {
		return cfg, invalid(KindInvalidGenerationConfig, InvalidGenerationMessage("generation_config must be an object"), nil)
	}

	if present(gc, "response_mime_type") {
		cfg.ResponseMIMEType, _ = stringField(gc, "response_mime_type")
	}
	if !cat.SupportsMIMEType(cfg.ResponseMIMEType) {
		return cfg, invalid(KindUnsupportedMIMEType, UnsupportedMIMEMessage(cat), nil)
	}

	numeric := []struct {
		name string
		dst  any
	}{
		{"temperature", &cfg.Temperature},
		{"top_p", &cfg.TopP},
		{"max_output_tokens", &cfg.MaxOutputTokens},
		{"candidate_count", &cfg.CandidateCount},
	}
	for _, f := range numeric {
		if !present(gc, f.name) {
			continue
		}
		if err := json.Unmarshal(gc[f.name], f.dst); err != nil {
			return cfg, invalid(KindInvalidGenerationConfig, InvalidGenerationMessage(fmt.Sprintf("%s must be a number", f.name)), nil)
		}
	}

	if err := cfg.CheckRanges(); err != nil {
		return cfg, invalid(KindInvalidGenerationConfig, InvalidGenerationMessage(err.Error()), nil)
	}

	if limit > 0 && cfg.MaxOutputTokens > limit {
		detail := fmt.Sprintf("max_output_tokens must be at most %d for %s", limit, modelName)
		return cfg, invalid(KindInvalidGenerationConfig, InvalidGenerationMessage(detail), nil)
	}

	return cfg, nil
}

func invalid(kind Kind, message string, payload []byte) *ValidationError {
	return &ValidationError{Kind: kind, Message: message, Payload: payload}
}

// present reports whether key exists with a non-null value.
func present(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	return ok && string(raw) != "null"
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func boolField(fields map[string]json.RawMessage, key string) (bool, bool) {
	raw, ok := fields[key]
	if !ok {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}
