package model

import "fmt"

// GenerationConfig carries the sampling parameters for one model invocation.
type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	MaxOutputTokens  int     `json:"max_output_tokens"`
	CandidateCount   int     `json:"candidate_count"`
	ResponseMIMEType string  `json:"response_mime_type"`
}

// DefaultGenerationConfig is applied to any field a client leaves out.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:      0.95,
		TopP:             0.9,
		MaxOutputTokens:  8192,
		CandidateCount:   1,
		ResponseMIMEType: "text/plain",
	}
}

// MaxCandidateCount is the most candidates a single request may ask for.
const MaxCandidateCount = 8

// CheckRanges reports the first numeric field outside its accepted range.
// The MIME type and the model's output token limit are checked against the
// catalog elsewhere.
func (g GenerationConfig) CheckRanges() error {
	switch {
	case g.Temperature < 0 || g.Temperature > 2:
		return fmt.Errorf("temperature must be between 0 and 2")
	case g.TopP < 0 || g.TopP > 1:
		return fmt.Errorf("top_p must be between 0 and 1")
	case g.MaxOutputTokens < 1:
		return fmt.Errorf("max_output_tokens must be at least 1")
	case g.CandidateCount < 1:
		return fmt.Errorf("candidate_count must be at least 1")
	case g.CandidateCount > MaxCandidateCount:
		return fmt.Errorf("candidate_count must be at most %d", MaxCandidateCount)
	}
	return nil
}

// InboundMessage is a validated client message.
type InboundMessage struct {
	Type             string
	Role             Role
	Text             string
	ModelName        string
	GenerationConfig GenerationConfig
	Stream           bool
}

// RawOutput is what the model capability returns before normalization.
// Candidates holds the text of every candidate in candidate order.
type RawOutput struct {
	Candidates []string
}

// Text returns the first candidate, or "" when there is none.
func (o RawOutput) Text() string {
	if len(o.Candidates) == 0 {
		return ""
	}
	return o.Candidates[0]
}
