package directory

import (
	"context"
	"errors"

	"cardcircle/internal/domain/user"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type userDoc struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Phone string `bson:"phone"`
}

func (d userDoc) public() (user.PublicUser, bool) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return user.PublicUser{}, false
	}
	return user.PublicUser{ID: id, Name: d.Name, Email: d.Email, Phone: d.Phone}, true
}

// MongoDirectory reads the users collection. Emails are stored lower-cased.
type MongoDirectory struct {
	c *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{c: db.Collection("users")}
}

func (d *MongoDirectory) FindByIdentifier(ctx context.Context, id user.Identifier) (user.PublicUser, error) {
	var filter bson.M
	switch id.Kind {
	case user.IdentifierEmail:
		filter = bson.M{"email": id.Value}
	case user.IdentifierPhone:
		filter = bson.M{"phone": id.Value}
	default:
		return user.PublicUser{}, cardcircle_errors.ErrInvalidInput
	}

	var doc userDoc
	if err := d.c.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.PublicUser{}, cardcircle_errors.ErrNotFound
		}
		return user.PublicUser{}, err
	}
	u, ok := doc.public()
	if !ok {
		return user.PublicUser{}, cardcircle_errors.ErrNotFound
	}
	return u, nil
}

func (d *MongoDirectory) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]user.PublicUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	cur, err := d.c.Find(ctx, bson.M{"_id": bson.M{"$in": values}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []user.PublicUser
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		if u, ok := doc.public(); ok {
			out = append(out, u)
		}
	}
	return out, cur.Err()
}
