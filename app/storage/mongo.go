package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	e "filmcode-tg-bot/pkg/entities"
)

type Mongo struct {
	client *mongo.Client
	col    *mongo.Collection
}

type movieDoc struct {
	Code      string  `bson:"code"`
	MessageID int     `bson:"message_id"`
	ChatID    int64   `bson:"chat_id"`
	Link      *string `bson:"link,omitempty"`
}

// NewMongo connects to the cluster behind uri and prepares the movies
// collection. The unique index on code is the duplicate-rejection mechanism,
// same as the SQL unique constraint. Ephemeral mode drops the collection.
func NewMongo(ctx context.Context, uri string, mode e.StorageMode) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	col := client.Database("filmcode").Collection("movies")

	if mode == e.ModeEphemeral {
		if err := col.Drop(ctx); err != nil {
			return nil, fmt.Errorf("dropping movies collection: %w", err)
		}
	}

	_, err = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("creating code index: %w", err)
	}

	return &Mongo{client: client, col: col}, nil
}

func (c *Mongo) Close() error {
	return c.client.Disconnect(context.Background())
}

func (c *Mongo) Add(ctx context.Context, entry e.MovieEntry) error {
	_, err := c.col.InsertOne(ctx, movieDoc{
		Code:      entry.Code,
		MessageID: entry.MessageID,
		ChatID:    entry.ChatID,
		Link:      entry.Link,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return e.ErrDuplicateCode
		}

		return fmt.Errorf("inserting movie: %w", err)
	}

	return nil
}

func (c *Mongo) Find(ctx context.Context, code string) (*e.MovieEntry, error) {
	var doc movieDoc
	err := c.col.FindOne(ctx, bson.M{"code": code}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}

		return nil, fmt.Errorf("finding movie: %w", err)
	}

	entry := docToEntry(doc)
	return &entry, nil
}

func (c *Mongo) Delete(ctx context.Context, code string) (bool, error) {
	result, err := c.col.DeleteOne(ctx, bson.M{"code": code})
	if err != nil {
		return false, fmt.Errorf("deleting movie: %w", err)
	}

	return result.DeletedCount > 0, nil
}

func (c *Mongo) ListAll(ctx context.Context) ([]e.MovieEntry, error) {
	cursor, err := c.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("listing movies: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var entries []e.MovieEntry
	for cursor.Next(ctx) {
		var doc movieDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding movie document: %w", err)
		}
		entries = append(entries, docToEntry(doc))
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating movie documents: %w", err)
	}

	return entries, nil
}

func docToEntry(doc movieDoc) e.MovieEntry {
	return e.MovieEntry{
		Code:      doc.Code,
		MessageID: doc.MessageID,
		ChatID:    doc.ChatID,
		Link:      doc.Link,
	}
}
