package mongostore

import (
	"context"
	"time"

	"cardcircle/internal/domain/direct"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type directDoc struct {
	ID              string     `bson:"_id"`
	UserLow         string     `bson:"user_low"`
	UserHigh        string     `bson:"user_high"`
	PairKey         string     `bson:"pair_key"`
	LastMessageText string     `bson:"last_message_text"`
	LastMessageAt   *time.Time `bson:"last_message_at"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

func (d directDoc) toConversation() direct.Conversation {
	return direct.Conversation{
		ID:              parseID(d.ID),
		UserLow:         parseID(d.UserLow),
		UserHigh:        parseID(d.UserHigh),
		LastMessageText: d.LastMessageText,
		LastMessageAt:   d.LastMessageAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type DirectStore struct {
	c *mongo.Collection
}

func NewDirectStore(db *mongo.Database) *DirectStore {
	return &DirectStore{c: db.Collection(directsCollection)}
}

func (s *DirectStore) Create(ctx context.Context, c *direct.Conversation) error {
	c.UserLow, c.UserHigh = direct.Pair(c.UserLow, c.UserHigh)
	doc := directDoc{
		ID:              c.ID.String(),
		UserLow:         c.UserLow.String(),
		UserHigh:        c.UserHigh.String(),
		PairKey:         c.PairKey(),
		LastMessageText: c.LastMessageText,
		LastMessageAt:   c.LastMessageAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	_, err := s.c.InsertOne(ctx, doc)
	return translateError(err)
}

func (s *DirectStore) GetByID(ctx context.Context, id uuid.UUID) (direct.Conversation, error) {
	return s.findOne(ctx, bson.M{"_id": id.String()})
}

func (s *DirectStore) GetByPair(ctx context.Context, a, b uuid.UUID) (direct.Conversation, error) {
	return s.findOne(ctx, bson.M{"pair_key": direct.PairKey(a, b)})
}

func (s *DirectStore) findOne(ctx context.Context, filter bson.M) (direct.Conversation, error) {
	var doc directDoc
	if err := s.c.FindOne(ctx, filter).Decode(&doc); err != nil {
		return direct.Conversation{}, translateError(err)
	}
	return doc.toConversation(), nil
}

func (s *DirectStore) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]direct.Conversation, error) {
	uid := userID.String()
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "updated_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"$or": []bson.M{{"user_low": uid}, {"user_high": uid}}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []direct.Conversation
	for cur.Next(ctx) {
		var doc directDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toConversation())
	}
	return out, cur.Err()
}

func (s *DirectStore) UpdatePreview(ctx context.Context, id uuid.UUID, text string, at time.Time) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{
			"last_message_text": text,
			"last_message_at":   at,
			"updated_at":        time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return cardcircle_errors.ErrNotFound
	}
	return nil
}
