// Package catalog holds the static set of Gemini model variants, response MIME
// types and language codes the relay accepts.
package catalog

import (
	"fmt"
	"slices"
	"strings"
)

// Model describes one Gemini model variant.
type Model struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	Description      string `json:"description"`
	InputTokenLimit  int    `json:"input_token_limit"`
	OutputTokenLimit int    `json:"output_token_limit"`
}

// Language is a supported language code.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Catalog is immutable after construction and safe to share between sessions.
type Catalog struct {
	models       []Model
	index        map[string]int
	defaultModel string
	mimeTypes    []string
	languages    []Language
}

const DefaultModelID = "gemini-1.5-flash-8b"

var defaultModels = []Model{
	{
		ID:               "gemini-1.5-flash",
		DisplayName:      "Gemini 1.5 Flash",
		Description:      "Fast and versatile multimodal model for scaling across diverse tasks.",
		InputTokenLimit:  1048576,
		OutputTokenLimit: 8192,
	},
	{
		ID:               "gemini-1.5-flash-8b",
		DisplayName:      "Gemini 1.5 Flash-8B",
		Description:      "Small model designed for lower intelligence tasks.",
		InputTokenLimit:  1048576,
		OutputTokenLimit: 8192,
	},
	{
		ID:               "gemini-1.5-flash-002",
		DisplayName:      "Gemini 1.5 Flash 002",
		Description:      "Stable Flash release with updated quality.",
		InputTokenLimit:  1048576,
		OutputTokenLimit: 8192,
	},
	{
		ID:               "gemini-1.5-pro",
		DisplayName:      "Gemini 1.5 Pro",
		Description:      "Mid-size multimodal model optimized for complex reasoning tasks.",
		InputTokenLimit:  2097152,
		OutputTokenLimit: 8192,
	},
	{
		ID:               "gemini-1.5-pro-002",
		DisplayName:      "Gemini 1.5 Pro 002",
		Description:      "Stable Pro release with updated quality.",
		InputTokenLimit:  2097152,
		OutputTokenLimit: 8192,
	},
	{
		ID:               "gemini-2.0-flash",
		DisplayName:      "Gemini 2.0 Flash",
		Description:      "Next generation features, speed and multimodal generation.",
		InputTokenLimit:  1048576,
		OutputTokenLimit: 8192,
	},
}

var defaultMIMETypes = []string{
	"text/plain",
	"application/json",
	"text/x.enum",
}

var defaultLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "zh", Name: "Chinese"},
	{Code: "hi", Name: "Hindi"},
	{Code: "ar", Name: "Arabic"},
	{Code: "ru", Name: "Russian"},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultModels, DefaultModelID, defaultMIMETypes, defaultLanguages)
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid built-in catalog: %v", err))
	}
	return c
}

// New builds a catalog. Order of models, MIME types and languages is preserved
// in every listing and error message.
func New(models []Model, defaultModel string, mimeTypes []string, languages []Language) (*Catalog, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("catalog: at least one model is required")
	}
	if len(mimeTypes) == 0 {
		return nil, fmt.Errorf("catalog: at least one response MIME type is required")
	}

	index := make(map[string]int, len(models))
	for i, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("catalog: model at position %d has no id", i)
		}
		if _, dup := index[m.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate model %q", m.ID)
		}
		index[m.ID] = i
	}

	if _, ok := index[defaultModel]; !ok {
		return nil, fmt.Errorf("catalog: default model %q is not in the catalog", defaultModel)
	}

	return &Catalog{
		models:       slices.Clone(models),
		index:        index,
		defaultModel: defaultModel,
		mimeTypes:    slices.Clone(mimeTypes),
		languages:    slices.Clone(languages),
	}, nil
}

// WithDefaultModel returns a copy of the catalog using id as the default model.
func (c *Catalog) WithDefaultModel(id string) (*Catalog, error) {
	return New(c.models, id, c.mimeTypes, c.languages)
}

func (c *Catalog) HasModel(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Model returns the descriptor for id.
func (c *Catalog) Model(id string) (Model, bool) {
	i, ok := c.index[id]
	if !ok {
		return Model{}, false
	}
	return c.models[i], true
}

func (c *Catalog) Models() []Model {
	return slices.Clone(c.models)
}

// ModelIDs lists the model identifiers in catalog order.
func (c *Catalog) ModelIDs() []string {
	ids := make([]string, 0, len(c.models))
	for _, m := range c.models {
		ids = append(ids, m.ID)
	}
	return ids
}

func (c *Catalog) DefaultModel() string {
	return c.defaultModel
}

func (c *Catalog) SupportsMIMEType(mimeType string) bool {
	return slices.Contains(c.mimeTypes, mimeType)
}

func (c *Catalog) MIMETypes() []string {
	return slices.Clone(c.mimeTypes)
}

func (c *Catalog) SupportsLanguage(code string) bool {
	return slices.ContainsFunc(c.languages, func(l Language) bool { return l.Code == code })
}

func (c *Catalog) Languages() []Language {
	return slices.Clone(c.languages)
}

// LanguageCodes lists the language codes in catalog order.
func (c *Catalog) LanguageCodes() []string {
	codes := make([]string, 0, len(c.languages))
	for _, l := range c.languages {
		codes = append(codes, l.Code)
	}
	return codes
}

// FormatList renders values the way error messages enumerate them: [a, b, c].
func FormatList(values []string) string {
	return "[" + strings.Join(values, ", ") + "]"
}
