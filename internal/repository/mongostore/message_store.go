package mongostore

import (
	"context"
	"encoding/json"
	"time"

	"cardcircle/internal/domain/message"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/datatypes"
)

type messageDoc struct {
	ID            string                 `bson:"_id"`
	ContainerType string                 `bson:"container_type"`
	ContainerID   string                 `bson:"container_id"`
	AuthorID      string                 `bson:"author_id"`
	Kind          string                 `bson:"kind"`
	Text          string                 `bson:"text,omitempty"`
	Card          *message.CardReference `bson:"card,omitempty"`
	CreatedAt     time.Time              `bson:"created_at"`
}

func toMessageDoc(m message.Message) (messageDoc, error) {
	card, err := m.Card()
	if err != nil {
		return messageDoc{}, err
	}
	return messageDoc{
		ID:            m.ID.String(),
		ContainerType: string(m.ContainerType),
		ContainerID:   m.ContainerID.String(),
		AuthorID:      m.AuthorID.String(),
		Kind:          string(m.Kind),
		Text:          m.Text,
		Card:          card,
		CreatedAt:     m.CreatedAt,
	}, nil
}

func (d messageDoc) toMessage() message.Message {
	m := message.Message{
		ID:            parseID(d.ID),
		ContainerType: message.ContainerType(d.ContainerType),
		ContainerID:   parseID(d.ContainerID),
		AuthorID:      parseID(d.AuthorID),
		Kind:          message.Kind(d.Kind),
		Text:          d.Text,
		CreatedAt:     d.CreatedAt,
	}
	if d.Card != nil {
		if raw, err := json.Marshal(d.Card); err == nil {
			m.Payload = datatypes.JSON(raw)
		}
	}
	return m
}

type MessageStore struct {
	c *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{c: db.Collection(messagesCollection)}
}

// Create stores m. BSON dates carry millisecond precision, so CreatedAt is
// truncated first and the caller sees the value that will be read back.
func (s *MessageStore) Create(ctx context.Context, m *message.Message) error {
	m.CreatedAt = m.CreatedAt.UTC().Truncate(time.Millisecond)
	doc, err := toMessageDoc(*m)
	if err != nil {
		return err
	}
	_, err = s.c.InsertOne(ctx, doc)
	return translateError(err)
}

func (s *MessageStore) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var doc messageDoc
	if err := s.c.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return message.Message{}, translateError(err)
	}
	return doc.toMessage(), nil
}

func (s *MessageStore) List(ctx context.Context, q message.Query) ([]message.Message, error) {
	and := []bson.M{{
		"container_type": string(q.ContainerType),
		"container_id":   q.ContainerID.String(),
	}}
	if q.After != nil {
		and = append(and, bson.M{"$or": []bson.M{
			{"created_at": bson.M{"$gt": q.After.CreatedAt}},
			{"created_at": q.After.CreatedAt, "_id": bson.M{"$gt": q.After.ID.String()}},
		}})
	}
	if q.Since != nil {
		and = append(and, bson.M{"created_at": bson.M{"$gt": *q.Since}})
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := s.c.Find(ctx, bson.M{"$and": and}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]message.Message, 0)
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toMessage())
	}
	return out, cur.Err()
}

func (s *MessageStore) DeleteByContainer(ctx context.Context, containerType message.ContainerType, containerID uuid.UUID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{
		"container_type": string(containerType),
		"container_id":   containerID.String(),
	})
	return err
}
