// Package mongostore implements the repositories on MongoDB. One document per
// group keeps members and admins as arrays mutated only through $addToSet and
// $pull so concurrent membership changes never overwrite each other.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"cardcircle/internal/repository"
	cardcircle_errors "cardcircle/pkg/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	groupsCollection   = "chat_groups"
	directsCollection  = "direct_conversations"
	messagesCollection = "chat_messages"
)

// New returns the three stores backed by db.
func New(db *mongo.Database) repository.Stores {
	messages := NewMessageStore(db)
	return repository.Stores{
		Groups:   NewGroupStore(db, messages),
		Directs:  NewDirectStore(db),
		Messages: messages,
	}
}

// EnsureIndexes creates the unique and ordering indexes the stores rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		groupsCollection: {
			{Keys: bson.D{{Key: "join_code", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_join_code")},
			{Keys: bson.D{{Key: "members", Value: 1}}, Options: options.Index().SetName("idx_members")},
		},
		directsCollection: {
			{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_pair_key")},
			{Keys: bson.D{{Key: "user_low", Value: 1}}, Options: options.Index().SetName("idx_user_low")},
			{Keys: bson.D{{Key: "user_high", Value: 1}}, Options: options.Index().SetName("idx_user_high")},
		},
		messagesCollection: {
			{Keys: bson.D{
				{Key: "container_type", Value: 1},
				{Key: "container_id", Value: 1},
				{Key: "created_at", Value: 1},
				{Key: "_id", Value: 1},
			}, Options: options.Index().SetName("idx_container_order")},
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return cardcircle_errors.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return cardcircle_errors.ErrConflict
	default:
		return err
	}
}
