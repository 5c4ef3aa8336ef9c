package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"conversation-service/internal/models"
)

const messagesCollection = "messages"

type messageDocument struct {
	ID             bson.ObjectID `bson:"_id"`
	ConversationID string        `bson:"conversation_id"`
	SenderID       string        `bson:"sender_id"`
	SenderUsername string        `bson:"sender_username"`
	Content        string        `bson:"content"`
	Timestamp      time.Time     `bson:"timestamp"`
}

func (d messageDocument) toModel() models.Message {
	return models.Message{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		SenderUsername: d.SenderUsername,
		Content:        d.Content,
		Timestamp:      d.Timestamp,
	}
}

// MongoMessageRepo serves the message store from MongoDB.
// SearchText requires the text index created by EnsureIndexes; without it the server rejects $text.
type MongoMessageRepo struct {
	coll *mongo.Collection
}

// NewMongoMessageRepo constructs a MongoMessageRepo over db.messages.
func NewMongoMessageRepo(db *mongo.Database) *MongoMessageRepo {
	return &MongoMessageRepo{coll: db.Collection(messagesCollection)}
}

// EnsureIndexes creates the scoping, ordering and text indexes.
func (r *MongoMessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "content", Value: "text"}}},
	})
	return err
}

func textFilter(conversationID, query string) bson.M {
	return bson.M{
		"conversation_id": conversationID,
		"$text":           bson.M{"$search": query},
	}
}

func patternFilter(conversationID, pattern string) bson.M {
	return bson.M{
		"conversation_id": conversationID,
		"content":         bson.M{"$regex": pattern, "$options": "i"},
	}
}

// SearchText runs a $text query.
func (r *MongoMessageRepo) SearchText(ctx context.Context, conversationID, query string, page PageRequest) ([]models.Message, error) {
	return r.find(ctx, textFilter(conversationID, query), page)
}

// CountText counts $text matches.
func (r *MongoMessageRepo) CountText(ctx context.Context, conversationID, query string) (int64, error) {
	return r.coll.CountDocuments(ctx, textFilter(conversationID, query))
}

// SearchPattern runs a case-insensitive $regex query.
func (r *MongoMessageRepo) SearchPattern(ctx context.Context, conversationID, pattern string, page PageRequest) ([]models.Message, error) {
	return r.find(ctx, patternFilter(conversationID, pattern), page)
}

// CountPattern counts $regex matches.
func (r *MongoMessageRepo) CountPattern(ctx context.Context, conversationID, pattern string) (int64, error) {
	return r.coll.CountDocuments(ctx, patternFilter(conversationID, pattern))
}

func (r *MongoMessageRepo) find(ctx context.Context, filter bson.M, page PageRequest) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))
	return r.collect(ctx, filter, opts)
}

func (r *MongoMessageRepo) collect(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]models.Message, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, d.toModel())
	}
	return msgs, nil
}

// GetMessage retrieves a message by its hex object id.
func (r *MongoMessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	oid, err := bson.ObjectIDFromHex(messageID)
	if err != nil {
		return models.Message{}, ErrMessageNotFound
	}
	var doc messageDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return doc.toModel(), nil
}

// ListInRange returns the messages of a conversation inside [from, to], oldest first.
func (r *MongoMessageRepo) ListInRange(ctx context.Context, conversationID string, from, to time.Time) ([]models.Message, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"timestamp":       bson.M{"$gte": from, "$lte": to},
	}
	return r.collect(ctx, filter, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
}
