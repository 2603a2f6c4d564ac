package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/m2tx/gemini_relay/internal/model"
)

var history = []model.Content{
	model.UserTurn("hello").ToContent(),
	model.ModelTurn("hi there").ToContent(),
}

func TestNewTranscriptDocument(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	doc := newTranscriptDocument("sess_1", history, now)
	assert.Equal(t, "sess_1", doc.ID)
	assert.Equal(t, 2, doc.TurnCount)
	assert.Equal(t, time.UTC, doc.ArchivedAt.Location())

	empty := newTranscriptDocument("sess_2", nil, now)
	assert.NotNil(t, empty.History)
	assert.Equal(t, 0, empty.TurnCount)
}

func TestMongoTranscriptRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		repo := NewMongoTranscriptRepository(mt.DB, "")
		require.NoError(t, repo.Save(context.Background(), "sess_1", history))
	})

	mt.Run("save error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad value",
		}))

		repo := NewMongoTranscriptRepository(mt.DB, "transcripts")
		err := repo.Save(context.Background(), "sess_1", history)
		assert.ErrorContains(t, err, `repository: upsert transcript "sess_1"`)
	})

	mt.Run("load", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".transcripts"
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "sess_1"},
			{Key: "history", Value: bson.A{
				bson.D{{Key: "parts", Value: bson.A{bson.D{{Key: "text", Value: "hello"}}}}, {Key: "role", Value: "user"}},
				bson.D{{Key: "parts", Value: bson.A{bson.D{{Key: "text", Value: "hi there"}}}}, {Key: "role", Value: "model"}},
			}},
			{Key: "turn_count", Value: 2},
		}))

		repo := NewMongoTranscriptRepository(mt.DB, "transcripts")
		got, err := repo.Load(context.Background(), "sess_1")
		require.NoError(t, err)
		assert.Equal(t, history, got)
	})

	mt.Run("load missing", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".transcripts"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		repo := NewMongoTranscriptRepository(mt.DB, "transcripts")
		got, err := repo.Load(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		repo := NewMongoTranscriptRepository(mt.DB, "transcripts")
		require.NoError(t, repo.Delete(context.Background(), "sess_1"))
	})
}
