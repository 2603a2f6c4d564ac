package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/m2tx/gemini_relay/internal/model"
)

type transcriptDocument struct {
	ID         string          `bson:"_id"`
	History    []model.Content `bson:"history"`
	TurnCount  int             `bson:"turn_count"`
	ArchivedAt time.Time       `bson:"archived_at"`
}

// MongoTranscriptRepository implements TranscriptRepository using MongoDB.
type MongoTranscriptRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoTranscriptRepository creates a new MongoTranscriptRepository.
// collectionName defaults to "transcripts" if empty.
func NewMongoTranscriptRepository(db *mongo.Database, collectionName string) *MongoTranscriptRepository {
	if collectionName == "" {
		collectionName = "transcripts"
	}
	return &MongoTranscriptRepository{
		collection: db.Collection(collectionName),
		now:        time.Now,
	}
}

func (r *MongoTranscriptRepository) Save(ctx context.Context, sessionID string, history []model.Content) error {
	doc := newTranscriptDocument(sessionID, history, r.now())

	filter := bson.M{"_id": sessionID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("repository: upsert transcript %q: %w", sessionID, err)
	}

	return nil
}

func (r *MongoTranscriptRepository) Load(ctx context.Context, sessionID string) ([]model.Content, error) {
	filter := bson.M{"_id": sessionID}

	var doc transcriptDocument
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find transcript %q: %w", sessionID, err)
	}

	return doc.History, nil
}

func (r *MongoTranscriptRepository) Delete(ctx context.Context, sessionID string) error {
	filter := bson.M{"_id": sessionID}

	_, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("repository: delete transcript %q: %w", sessionID, err)
	}

	return nil
}

func newTranscriptDocument(sessionID string, history []model.Content, now time.Time) transcriptDocument {
	if history == nil {
		history = []model.Content{}
	}
	return transcriptDocument{
		ID:         sessionID,
		History:    history,
		TurnCount:  len(history),
		ArchivedAt: now.UTC(),
	}
}
