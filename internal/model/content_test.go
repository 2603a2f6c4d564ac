package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnContentRoundTrip(t *testing.T) {
	turns := []Turn{UserTurn("hello"), ModelTurn("hi there")}

	contents := ToContents(turns)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, []Part{{Text: "hi there"}}, contents[1].Parts)

	assert.Equal(t, turns, TurnsFromContents(contents))
}

func TestTurnFromContentJoinsParts(t *testing.T) {
	turn := TurnFromContent(Content{Role: "model", Parts: []Part{{Text: "a"}, {Text: "b"}}})
	assert.Equal(t, ModelTurn("ab"), turn)
}

func TestCheckRanges(t *testing.T) {
	assert.NoError(t, DefaultGenerationConfig().CheckRanges())

	cfg := DefaultGenerationConfig()
	cfg.Temperature = 2.5
	assert.EqualError(t, cfg.CheckRanges(), "temperature must be between 0 and 2")

	cfg = DefaultGenerationConfig()
	cfg.TopP = -0.1
	assert.EqualError(t, cfg.CheckRanges(), "top_p must be between 0 and 1")

	cfg = DefaultGenerationConfig()
	cfg.MaxOutputTokens = 0
	assert.EqualError(t, cfg.CheckRanges(), "max_output_tokens must be at least 1")

	cfg = DefaultGenerationConfig()
	cfg.CandidateCount = 0
	assert.EqualError(t, cfg.CheckRanges(), "candidate_count must be at least 1")
}

func TestRawOutputText(t *testing.T) {
	assert.Equal(t, "", RawOutput{}.Text())
	assert.Equal(t, "a", RawOutput{Candidates: []string{"a", "b"}}.Text())
}
