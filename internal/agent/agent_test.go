package agent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/m2tx/gemini_relay/internal/model"
)

func textCandidate(index int32, texts ...string) *genai.Candidate {
	parts := make([]*genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, &genai.Part{Text: t})
	}
	return &genai.Candidate{
		Index:   index,
		Content: &genai.Content{Role: "model", Parts: parts},
	}
}

func TestToGenAIContents(t *testing.T) {
	contents := toGenAIContents([]model.Turn{model.UserTurn("hello"), model.ModelTurn("hi")})

	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "hello", contents[0].Parts[0].Text)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "hi", contents[1].Parts[0].Text)
}

func TestGenerateConfig(t *testing.T) {
	a := New(nil)
	cfg := a.generateConfig(model.DefaultGenerationConfig())

	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.95, *cfg.Temperature, 1e-6)
	require.NotNil(t, cfg.TopP)
	assert.InDelta(t, 0.9, *cfg.TopP, 1e-6)
	assert.Equal(t, int32(8192), cfg.MaxOutputTokens)
	assert.Equal(t, int32(1), cfg.CandidateCount)
	assert.Equal(t, "text/plain", cfg.ResponseMIMEType)
	assert.Empty(t, cfg.SafetySettings)
}

func TestAccumulatorSingleResponse(t *testing.T) {
	acc := newCandidateAccumulator()
	acc.add(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			textCandidate(1, "second"),
			textCandidate(0, "fir", "st"),
		},
	})

	out, err := acc.output()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, out.Candidates)
}

func TestAccumulatorStreamChunks(t *testing.T) {
	acc := newCandidateAccumulator()
	for _, chunk := range []string{"hi", " ", "there"} {
		acc.add(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{textCandidate(0, chunk)},
		})
	}

	out, err := acc.output()
	require.NoError(t, err)
	assert.Equal(t, "hi there", out.Text())
}

func TestAccumulatorSkipsThoughts(t *testing.T) {
	acc := newCandidateAccumulator()
	acc.add(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "answer"},
			}},
		}},
	})

	out, err := acc.output()
	require.NoError(t, err)
	assert.Equal(t, "answer", out.Text())
}

func TestAccumulatorNoCandidates(t *testing.T) {
	acc := newCandidateAccumulator()
	acc.add(&genai.GenerateContentResponse{})

	_, err := acc.output()
	assert.EqualError(t, err, "agent: model returned no candidates")
}

func TestAccumulatorBlockedPrompt(t *testing.T) {
	acc := newCandidateAccumulator()
	acc.add(&genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY"},
	})

	_, err := acc.output()
	assert.EqualError(t, err, "agent: prompt blocked: SAFETY")
}

func TestGenerateReplyRejectsEmptyTranscript(t *testing.T) {
	_, err := New(nil).GenerateReply(t.Context(), nil, "gemini-1.5-flash", model.DefaultGenerationConfig(), false)
	assert.EqualError(t, err, "agent: empty transcript")
}

func TestAccumulatorCandidateWithoutText(t *testing.T) {
	acc := newCandidateAccumulator()
	acc.add(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Index: 0, FinishReason: genai.FinishReasonSafety}},
	})

	out, err := acc.output()
	assert.Nil(t, out)
	assert.EqualError(t, err, "agent: no text in response (finish reason: SAFETY)")
}

func TestAccumulatorDropsEmptyCandidates(t *testing.T) {
	acc := newCandidateAccumulator()
	acc.add(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Index: 0, FinishReason: genai.FinishReasonRecitation},
			textCandidate(1, "kept"),
		},
	})

	out, err := acc.output()
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, out.Candidates)
}

// geminiServer fakes the generateContent and streamGenerateContent REST calls.
type geminiServer struct {
	mu       sync.Mutex
	paths    []string
	contents int
}

func (g *geminiServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Contents []json.RawMessage `json:"contents"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	g.mu.Lock()
	g.paths = append(g.paths, r.URL.Path)
	g.contents = len(body.Contents)
	g.mu.Unlock()

	chunk := func(text string) string {
		return fmt.Sprintf(`{"candidates":[{"index":0,"content":{"role":"model","parts":[{"text":%q}]}}]}`, text)
	}

	w.Header().Set("Content-Type", "application/json")
	if strings.HasSuffix(r.URL.Path, ":streamGenerateContent") {
		for _, text := range []string{"hi", " there"} {
			fmt.Fprintf(w, "data: %s\n\n", chunk(text))
		}
		return
	}
	fmt.Fprint(w, chunk(`{"text":"hello back"}`))
}

func newTestAgent(t *testing.T) (*Agent, *geminiServer) {
	t.Helper()

	fake := &geminiServer{}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	client, err := genai.NewClient(t.Context(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: ts.URL},
	})
	require.NoError(t, err)

	return New(client), fake
}

func TestGenerateReplyUnary(t *testing.T) {
	a, fake := newTestAgent(t)
	turns := []model.Turn{model.UserTurn("hello"), model.ModelTurn("hi"), model.UserTurn("again")}

	out, err := a.GenerateReply(t.Context(), turns, "gemini-1.5-flash", model.DefaultGenerationConfig(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"text":"hello back"}`}, out.Candidates)

	require.Len(t, fake.paths, 1)
	assert.True(t, strings.HasSuffix(fake.paths[0], "gemini-1.5-flash:generateContent"), fake.paths[0])
	assert.Equal(t, 3, fake.contents)
}

func TestGenerateReplyStream(t *testing.T) {
	a, fake := newTestAgent(t)

	out, err := a.GenerateReply(t.Context(), []model.Turn{model.UserTurn("hello")}, "gemini-1.5-flash", model.DefaultGenerationConfig(), true)
	require.NoError(t, err)
	assert.Equal(t, "hi there", out.Text())

	require.Len(t, fake.paths, 1)
	assert.True(t, strings.HasSuffix(fake.paths[0], "gemini-1.5-flash:streamGenerateContent"), fake.paths[0])
}
