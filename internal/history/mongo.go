package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/raglab/docchat/internal/models"
)

const (
	messagesCollection = "messages"
	sessionsCollection = "sessions"
)

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI      string
	Database string
}

// Mongo is a MongoDB-backed ConversationStore. Messages live in one
// collection indexed by session id and timestamp; session metadata in
// another.
type Mongo struct {
	client   *mongo.Client
	messages *mongo.Collection
	sessions *mongo.Collection
}

var _ ConversationStore = (*Mongo)(nil)

// NewMongo connects to MongoDB and ensures the collection indexes.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Mongo{
		client:   client,
		messages: db.Collection(messagesCollection),
		sessions: db.Collection(sessionsCollection),
	}
	if err := s.createIndexes(connectCtx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return s, nil
}

func (s *Mongo) createIndexes(ctx context.Context) error {
	messageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	}
	if _, err := s.messages.Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return err
	}

	sessionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := s.sessions.Indexes().CreateMany(ctx, sessionIndexes)
	return err
}

// Close disconnects from MongoDB.
func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Mongo) Append(ctx context.Context, msg models.Message) error {
	if msg.SessionID == "" {
		return fmt.Errorf("append message: empty session id")
	}

	// Register the session on first write. $setOnInsert keeps the
	// original created_at on subsequent appends.
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"session_id": msg.SessionID},
		bson.M{"$setOnInsert": bson.M{
			"session_id": msg.SessionID,
			"created_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert session: %v", ErrUnavailable, err)
	}

	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("%w: insert message: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Mongo) History(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	// Newest-first with a limit, then reversed, so the window holds
	// the most recent turns in chronological order.
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find messages: %v", ErrUnavailable, err)
	}
	defer cursor.Close(ctx)

	var msgs []models.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("%w: decode messages: %v", ErrUnavailable, err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Mongo) Session(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	var sess models.ConversationSession
	err := s.sessions.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&sess)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find session: %v", ErrUnavailable, err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find messages: %v", ErrUnavailable, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &sess.Messages); err != nil {
		return nil, fmt.Errorf("%w: decode messages: %v", ErrUnavailable, err)
	}
	return &sess, nil
}

func (s *Mongo) Sessions(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"session_id": 1})
	cursor, err := s.sessions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find sessions: %v", ErrUnavailable, err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		SessionID string `bson:"session_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode sessions: %v", ErrUnavailable, err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.SessionID
	}
	return ids, nil
}
