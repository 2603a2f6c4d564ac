package api

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/m2tx/gemini_relay/internal/catalog"
	"github.com/m2tx/gemini_relay/internal/model"
	"github.com/m2tx/gemini_relay/internal/protocol"
)

const (
	maxCandidateCount   = 5
	maxOutputTokens     = 8192
	defaultMaxTokens    = 500
	defaultLanguage     = "en"
	defaultRESTMIMEType = "application/json"
)

var errNoOutput = errors.New("model returned no output")

type generateRequest struct {
	Model    string
	Text     string
	Language string
	Config   model.GenerationConfig
	Stream   bool
}

type chatRequest struct {
	Model  string
	Config model.GenerationConfig
}

// parseGenerateForm reads the /generate form, applying the REST defaults and
// checking every value against the catalog.
func parseGenerateForm(c echo.Context, cat *catalog.Catalog) (generateRequest, error) {
	req := generateRequest{
		Model:    c.FormValue("model"),
		Text:     c.FormValue("text"),
		Language: formString(c, "language", defaultLanguage),
	}

	if !cat.HasModel(req.Model) {
		return req, errors.New(protocol.UnsupportedModelMessage(cat))
	}
	if !cat.SupportsLanguage(req.Language) {
		return req, errors.New(protocol.UnsupportedLanguageMessage(cat))
	}

	cfg := model.DefaultGenerationConfig()
	cfg.MaxOutputTokens = defaultMaxTokens
	cfg.ResponseMIMEType = formString(c, "response_mime_type", defaultRESTMIMEType)

	if !cat.SupportsMIMEType(cfg.ResponseMIMEType) {
		return req, errors.New(protocol.UnsupportedMIMEMessage(cat))
	}

	var err error
	if cfg.CandidateCount, err = formInt(c, "candidate_count", cfg.CandidateCount); err != nil {
		return req, err
	}
	if cfg.MaxOutputTokens, err = formInt(c, "max_output_tokens", cfg.MaxOutputTokens); err != nil {
		return req, err
	}
	if cfg.Temperature, err = formFloat(c, "temperature", cfg.Temperature); err != nil {
		return req, err
	}
	if cfg.TopP, err = formFloat(c, "top_p", cfg.TopP); err != nil {
		return req, err
	}
	if req.Stream, err = formBool(c, "stream", false); err != nil {
		return req, err
	}

	if err := checkRanges(cfg); err != nil {
		return req, err
	}

	req.Config = cfg
	return req, nil
}

// parseChatForm reads the model and sampling fields of the /chat form.
// The messages field is decoded by the handler.
func parseChatForm(c echo.Context, cat *catalog.Catalog) (chatRequest, error) {
	req := chatRequest{Model: c.FormValue("model")}
	if !cat.HasModel(req.Model) {
		return req, errors.New(protocol.UnsupportedModelMessage(cat))
	}

	cfg := model.DefaultGenerationConfig()

	var err error
	if cfg.Temperature, err = formFloat(c, "temperature", cfg.Temperature); err != nil {
		return req, err
	}
	if cfg.TopP, err = formFloat(c, "top_p", cfg.TopP); err != nil {
		return req, err
	}
	if err := checkRanges(cfg); err != nil {
		return req, err
	}

	req.Config = cfg
	return req, nil
}

func checkRanges(cfg model.GenerationConfig) error {
	if err := cfg.CheckRanges(); err != nil {
		return errors.New(protocol.InvalidGenerationMessage(err.Error()))
	}
	switch {
	case cfg.CandidateCount > maxCandidateCount:
		return errors.New(protocol.InvalidGenerationMessage(fmt.Sprintf("candidate_count must be at most %d", maxCandidateCount)))
	case cfg.MaxOutputTokens > maxOutputTokens:
		return errors.New(protocol.InvalidGenerationMessage(fmt.Sprintf("max_output_tokens must be at most %d", maxOutputTokens)))
	}
	return nil
}

func formString(c echo.Context, name, fallback string) string {
	if v := c.FormValue(name); v != "" {
		return v
	}
	return fallback
}

func formInt(c echo.Context, name string, fallback int) (int, error) {
	v := c.FormValue(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalidField(name)
	}
	return n, nil
}

func formFloat(c echo.Context, name string, fallback float64) (float64, error) {
	v := c.FormValue(name)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, invalidField(name)
	}
	return f, nil
}

func formBool(c echo.Context, name string, fallback bool) (bool, error) {
	v := c.FormValue(name)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, invalidField(name)
	}
	return b, nil
}

func invalidField(name string) error {
	return errors.New(protocol.InvalidGenerationMessage(name + " has an invalid value"))
}
