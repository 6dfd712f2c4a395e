package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"workhub/internal/models"
)

// Mongo implements UserStore and HistoryStore on a MongoDB database.
type Mongo struct {
	users    *mongo.Collection
	messages *mongo.Collection
	boards   *mongo.Collection
}

func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	c, err := mongo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	db := c.Database(dbName)
	m := &Mongo{
		users:    db.Collection("users"),
		messages: db.Collection("messages"),
		boards:   db.Collection("boards"),
	}

	_, _ = m.messages.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "sentAt", Value: 1}},
	})

	return m, nil
}

func (m *Mongo) FindUser(ctx context.Context, userID string) (models.UserIdentity, error) {
	var user models.UserIdentity
	err := m.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.UserIdentity{}, ErrUserNotFound
	}
	if err != nil {
		return models.UserIdentity{}, err
	}
	return user, nil
}

// IncrementPoints adds amount to one counter with $inc and returns the
// post-increment value, so callers never have to guess concurrent totals.
func (m *Mongo) IncrementPoints(ctx context.Context, userID string, field PointsField, amount int) (int64, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated struct {
		Given    int64 `bson:"pointsGiven"`
		Received int64 `bson:"pointsReceived"`
	}
	err := m.users.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$inc": bson.M{string(field): amount}},
		opts,
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	if field == FieldGiven {
		return updated.Given, nil
	}
	return updated.Received, nil
}

func (m *Mongo) AppendMessage(ctx context.Context, rec ChatRecord) error {
	_, err := m.messages.InsertOne(ctx, rec)
	return err
}

func (m *Mongo) WriteBoardSnapshot(ctx context.Context, roomID string, doc models.BoardDoc) error {
	opts := options.Update().SetUpsert(true)
	_, err := m.boards.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$set": bson.M{
			"text":      doc.Text,
			"version":   doc.Version,
			"updatedAt": time.Now().UTC(),
		}},
		opts,
	)
	return err
}
