package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"google.golang.org/genai"

	"github.com/m2tx/gemini_relay/internal/model"
)

// Agent invokes Gemini models through the genai client. It holds no
// conversation state: every call receives the full transcript.
type Agent struct {
	client         *genai.Client
	safetySettings []*genai.SafetySetting
}

func New(client *genai.Client) *Agent {
	return &Agent{
		client:         client,
		safetySettings: []*genai.SafetySetting{},
	}
}

// GenerateReply sends the transcript to modelName and returns the complete
// output. With stream set, chunks are gathered until the stream ends and
// only the final text is returned.
func (a *Agent) GenerateReply(ctx context.Context, turns []model.Turn, modelName string, cfg model.GenerationConfig, stream bool) (*model.RawOutput, error) {
	if len(turns) == 0 {
		return nil, fmt.Errorf("agent: empty transcript")
	}

	contents := toGenAIContents(turns)
	config := a.generateConfig(cfg)

	if stream {
		return a.generateStream(ctx, modelName, contents, config)
	}

	resp, err := a.client.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return nil, err
	}

	acc := newCandidateAccumulator()
	acc.add(resp)

	return acc.output()
}

func (a *Agent) generateStream(ctx context.Context, modelName string, contents []*genai.Content, config *genai.GenerateContentConfig) (*model.RawOutput, error) {
	acc := newCandidateAccumulator()

	for resp, err := range a.client.Models.GenerateContentStream(ctx, modelName, contents, config) {
		if err != nil {
			return nil, err
		}
		acc.add(resp)
	}

	return acc.output()
}

func (a *Agent) generateConfig(cfg model.GenerationConfig) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(cfg.Temperature)),
		TopP:             genai.Ptr(float32(cfg.TopP)),
		MaxOutputTokens:  int32(cfg.MaxOutputTokens),
		CandidateCount:   int32(cfg.CandidateCount),
		ResponseMIMEType: cfg.ResponseMIMEType,
		SafetySettings:   a.safetySettings,
	}
}

// candidateAccumulator joins candidate text across one response or many
// stream chunks, keyed by candidate index. A candidate is only kept once it
// has produced visible text.
type candidateAccumulator struct {
	texts        map[int32]*strings.Builder
	sawCandidate bool
	finishReason string
	blockReason  string
}

func newCandidateAccumulator() *candidateAccumulator {
	return &candidateAccumulator{texts: make(map[int32]*strings.Builder)}
}

func (c *candidateAccumulator) add(resp *genai.GenerateContentResponse) {
	if resp == nil {
		return
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		c.blockReason = string(resp.PromptFeedback.BlockReason)
	}

	for _, candidate := range resp.Candidates {
		if candidate == nil {
			continue
		}
		c.sawCandidate = true
		if candidate.FinishReason != "" {
			c.finishReason = string(candidate.FinishReason)
		}

		if candidate.Content == nil {
			continue
		}
		text := partsText(candidate.Content.Parts)
		if text == "" {
			continue
		}

		b, ok := c.texts[candidate.Index]
		if !ok {
			b = &strings.Builder{}
			c.texts[candidate.Index] = b
		}
		b.WriteString(text)
	}
}

func (c *candidateAccumulator) output() (*model.RawOutput, error) {
	if len(c.texts) == 0 {
		switch {
		case c.blockReason != "":
			return nil, fmt.Errorf("agent: prompt blocked: %s", c.blockReason)
		case !c.sawCandidate:
			return nil, fmt.Errorf("agent: model returned no candidates")
		case c.finishReason != "":
			return nil, fmt.Errorf("agent: no text in response (finish reason: %s)", c.finishReason)
		default:
			return nil, fmt.Errorf("agent: no text in response")
		}
	}

	indexes := make([]int32, 0, len(c.texts))
	for i := range c.texts {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	out := &model.RawOutput{Candidates: make([]string, 0, len(indexes))}
	for _, i := range indexes {
		out.Candidates = append(out.Candidates, c.texts[i].String())
	}

	return out, nil
}

// partsText joins the visible text of a candidate, skipping thought parts.
func partsText(parts []*genai.Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// toGenAIContents converts the transcript into genai history.
func toGenAIContents(turns []model.Turn) []*genai.Content {
	result := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		result = append(result, &genai.Content{
			Role:  string(t.Role),
			Parts: []*genai.Part{{Text: t.Text}},
		})
	}
	return result
}
