// Package normalize turns raw model output into the reply text stored in the
// transcript and sent to clients.
//
// The model does not always honour the requested response MIME type, and
// sometimes serializes its own answer as a JSON object with a "text" field.
// Reply resolves that with a fixed priority: a JSON object carrying a
// non-null "text" wins, anything else is returned verbatim.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/m2tx/gemini_relay/internal/model"
)

// Reply normalizes a single piece of raw model text.
func Reply(raw string) string {
	if text, ok := structuredText(raw); ok {
		return text
	}
	return raw
}

// Text normalizes the reply used by a chat session: the first candidate.
func Text(out model.RawOutput) string {
	return Reply(out.Text())
}

// Replies normalizes every candidate, keeping candidate order.
func Replies(out model.RawOutput) []string {
	replies := make([]string, 0, len(out.Candidates))
	for _, c := range out.Candidates {
		replies = append(replies, Reply(c))
	}
	return replies
}

func structuredText(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return "", false
	}

	field, ok := obj["text"]
	if !ok || string(field) == "null" {
		return "", false
	}

	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		return s, true
	}
	// non-string text field, e.g. {"text": 42}
	return string(field), true
}
