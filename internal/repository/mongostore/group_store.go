package mongostore

import (
	"context"
	"time"

	"cardcircle/internal/domain/group"
	"cardcircle/internal/domain/message"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type groupDoc struct {
	ID              string     `bson:"_id"`
	Name            string     `bson:"name"`
	OwnerID         string     `bson:"owner_id"`
	JoinCode        string     `bson:"join_code"`
	Members         []string   `bson:"members"`
	Admins          []string   `bson:"admins"`
	Description     string     `bson:"description"`
	PhotoURL        string     `bson:"photo_url"`
	LastMessageText string     `bson:"last_message_text"`
	LastMessageAt   *time.Time `bson:"last_message_at"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

func toGroupDoc(g group.Group) groupDoc {
	return groupDoc{
		ID:              g.ID.String(),
		Name:            g.Name,
		OwnerID:         g.OwnerID.String(),
		JoinCode:        g.JoinCode,
		Members:         idStrings(g.Members),
		Admins:          idStrings(g.Admins),
		Description:     g.Description,
		PhotoURL:        g.PhotoURL,
		LastMessageText: g.LastMessageText,
		LastMessageAt:   g.LastMessageAt,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}
}

func (d groupDoc) toGroup() group.Group {
	return group.Group{
		ID:              parseID(d.ID),
		Name:            d.Name,
		OwnerID:         parseID(d.OwnerID),
		JoinCode:        d.JoinCode,
		Members:         parseIDs(d.Members),
		Admins:          parseIDs(d.Admins),
		Description:     d.Description,
		PhotoURL:        d.PhotoURL,
		LastMessageText: d.LastMessageText,
		LastMessageAt:   d.LastMessageAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type GroupStore struct {
	c        *mongo.Collection
	messages *MessageStore
}

func NewGroupStore(db *mongo.Database, messages *MessageStore) *GroupStore {
	return &GroupStore{c: db.Collection(groupsCollection), messages: messages}
}

func (s *GroupStore) Create(ctx context.Context, g *group.Group) error {
	doc := toGroupDoc(*g)
	if _, err := s.c.InsertOne(ctx, doc); err != nil {
		return translateError(err)
	}
	return nil
}

func (s *GroupStore) GetByID(ctx context.Context, id uuid.UUID) (group.Group, error) {
	return s.findOne(ctx, bson.M{"_id": id.String()})
}

func (s *GroupStore) GetByJoinCode(ctx context.Context, code string) (group.Group, error) {
	return s.findOne(ctx, bson.M{"join_code": code})
}

func (s *GroupStore) findOne(ctx context.Context, filter bson.M) (group.Group, error) {
	var doc groupDoc
	if err := s.c.FindOne(ctx, filter).Decode(&doc); err != nil {
		return group.Group{}, translateError(err)
	}
	return doc.toGroup(), nil
}

func (s *GroupStore) ListByMember(ctx context.Context, userID uuid.UUID) ([]group.Group, error) {
	uid := userID.String()
	filter := bson.M{"$or": []bson.M{{"members": uid}, {"owner_id": uid}}}
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "updated_at", Value: -1}})
	return s.find(ctx, filter, opts)
}

func (s *GroupStore) ListAll(ctx context.Context) ([]group.Group, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (s *GroupStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]group.Group, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []group.Group
	for cur.Next(ctx) {
		var doc groupDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toGroup())
	}
	return out, cur.Err()
}

func (s *GroupStore) exists(ctx context.Context, groupID uuid.UUID) error {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": groupID.String()}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return cardcircle_errors.ErrNotFound
	}
	return nil
}

func (s *GroupStore) AddMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	uid := userID.String()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": groupID.String(), "members": bson.M{"$ne": uid}},
		bson.M{
			"$addToSet": bson.M{"members": uid},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, s.exists(ctx, groupID)
	}
	return true, nil
}

func (s *GroupStore) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	uid := userID.String()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": groupID.String(), "owner_id": bson.M{"$ne": uid}, "members": uid},
		bson.M{
			"$pull": bson.M{"members": uid, "admins": uid},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, s.exists(ctx, groupID)
	}
	return true, nil
}

func (s *GroupStore) SetAdmin(ctx context.Context, groupID, userID uuid.UUID, isAdmin bool) error {
	uid := userID.String()
	filter := bson.M{"_id": groupID.String(), "members": uid}
	update := bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}}
	if isAdmin {
		update["$addToSet"] = bson.M{"admins": uid}
	} else {
		filter["owner_id"] = bson.M{"$ne": uid}
		update["$pull"] = bson.M{"admins": uid}
	}

	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	g, err := s.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !isAdmin && g.OwnerID == userID {
		return nil
	}
	return cardcircle_errors.ErrNotFound
}

func (s *GroupStore) UpdateSettings(ctx context.Context, groupID uuid.UUID, patch group.SettingsPatch) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	return s.set(ctx, groupID, set)
}

func (s *GroupStore) UpdatePhoto(ctx context.Context, groupID uuid.UUID, url string) error {
	return s.set(ctx, groupID, bson.M{"photo_url": url, "updated_at": time.Now().UTC()})
}

func (s *GroupStore) UpdateJoinCode(ctx context.Context, groupID uuid.UUID, code string) error {
	return s.set(ctx, groupID, bson.M{"join_code": code, "updated_at": time.Now().UTC()})
}

func (s *GroupStore) UpdatePreview(ctx context.Context, groupID uuid.UUID, text string, at time.Time) error {
	return s.set(ctx, groupID, bson.M{
		"last_message_text": text,
		"last_message_at":   at,
		"updated_at":        time.Now().UTC(),
	})
}

func (s *GroupStore) set(ctx context.Context, groupID uuid.UUID, fields bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": groupID.String()}, bson.M{"$set": fields})
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return cardcircle_errors.ErrNotFound
	}
	return nil
}

// RestoreOwner repairs the document in one pipeline update that reads the
// arrays as they are at write time, so a concurrent add or promote is never
// lost to a stale snapshot.
func (s *GroupStore) RestoreOwner(ctx context.Context, groupID uuid.UUID) (bool, error) {
	members := bson.M{"$ifNull": bson.A{"$members", bson.A{}}}
	admins := bson.M{"$ifNull": bson.A{"$admins", bson.A{}}}
	broken := bson.M{"$or": bson.A{
		bson.M{"$not": bson.A{bson.M{"$in": bson.A{"$owner_id", members}}}},
		bson.M{"$not": bson.A{bson.M{"$in": bson.A{"$owner_id", admins}}}},
		bson.M{"$not": bson.A{bson.M{"$setIsSubset": bson.A{admins, members}}}},
	}}
	withOwner := func(list interface{}) bson.M {
		return bson.M{"$cond": bson.A{
			bson.M{"$in": bson.A{"$owner_id", list}},
			list,
			bson.M{"$concatArrays": bson.A{bson.A{"$owner_id"}, list}},
		}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"members": withOwner(members)}}},
		{{Key: "$set", Value: bson.M{
			"admins": withOwner(bson.M{"$filter": bson.M{
				"input": admins,
				"as":    "admin",
				"cond":  bson.M{"$in": bson.A{"$$admin", "$members"}},
			}}),
			"updated_at": time.Now().UTC(),
		}}},
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": groupID.String(), "$expr": broken}, pipeline)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, s.exists(ctx, groupID)
	}
	return res.ModifiedCount > 0, nil
}

func (s *GroupStore) Delete(ctx context.Context, groupID uuid.UUID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": groupID.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return cardcircle_errors.ErrNotFound
	}
	if s.messages != nil {
		return s.messages.DeleteByContainer(ctx, message.ContainerGroup, groupID)
	}
	return nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseIDs(values []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		if id, err := uuid.Parse(v); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func parseID(value string) uuid.UUID {
	id, _ := uuid.Parse(value)
	return id
}
