package repository

import (
	"context"

	"github.com/m2tx/gemini_relay/internal/model"
)

// TranscriptRepository archives the transcripts of closed chat connections.
// Archived transcripts are for inspection only; sessions never load them.
type TranscriptRepository interface {
	// Save archives the final transcript of a closed connection, overwriting
	// an earlier archive under the same id.
	Save(ctx context.Context, sessionID string, history []model.Content) error

	// Load returns an archived transcript, or nil without error when nothing
	// was archived under sessionID.
	Load(ctx context.Context, sessionID string) ([]model.Content, error)

	// Delete drops an archived transcript. Unknown ids are ignored.
	Delete(ctx context.Context, sessionID string) error
}
