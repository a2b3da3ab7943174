package repository

import (
	"context"
	"errors"
	"time"

	"cardcircle/internal/domain/group"
	"cardcircle/internal/domain/message"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresGroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &PostgresGroupRepository{db: db}
}

func (r *PostgresGroupRepository) Create(ctx context.Context, g *group.Group) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(g).Error; err != nil {
			return err
		}
		owner := group.Member{
			GroupID:  g.ID,
			UserID:   g.OwnerID,
			IsAdmin:  true,
			JoinedAt: g.CreatedAt,
		}
		return tx.Create(&owner).Error
	}))
}

func (r *PostgresGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (group.Group, error) {
	return r.getWhere(ctx, "id = ?", id)
}

func (r *PostgresGroupRepository) GetByJoinCode(ctx context.Context, code string) (group.Group, error) {
	return r.getWhere(ctx, "join_code = ?", code)
}

func (r *PostgresGroupRepository) getWhere(ctx context.Context, query string, args ...interface{}) (group.Group, error) {
	var g group.Group
	if err := r.db.WithContext(ctx).Where(query, args...).First(&g).Error; err != nil {
		return group.Group{}, translateError(err)
	}
	groups := []group.Group{g}
	if err := r.loadMembers(ctx, groups); err != nil {
		return group.Group{}, err
	}
	return groups[0], nil
}

func (r *PostgresGroupRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]group.Group, error) {
	subQuery := r.db.Model(&group.Member{}).
		Select("group_id").
		Where("user_id = ?", userID)

	var groups []group.Group
	err := r.db.WithContext(ctx).
		Where("id IN (?) OR owner_id = ?", subQuery, userID).
		Order("last_message_at DESC NULLS LAST").
		Order("updated_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadMembers(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *PostgresGroupRepository) ListAll(ctx context.Context) ([]group.Group, error) {
	var groups []group.Group
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	if err := r.loadMembers(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// loadMembers fills Members and Admins for every group with one query.
func (r *PostgresGroupRepository) loadMembers(ctx context.Context, groups []group.Group) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(groups))
	index := make(map[uuid.UUID]int, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
		index[g.ID] = i
	}

	var rows []group.Member
	err := r.db.WithContext(ctx).
		Where("group_id IN ?", ids).
		Order("joined_at ASC").
		Order("user_id ASC").
		Find(&rows).Error
	if err != nil {
		return err
	}

	for i := range groups {
		groups[i].Members = []uuid.UUID{}
		groups[i].Admins = []uuid.UUID{}
	}
	for _, row := range rows {
		g := &groups[index[row.GroupID]]
		g.Members = append(g.Members, row.UserID)
		if row.IsAdmin {
			g.Admins = append(g.Admins, row.UserID)
		}
	}
	return nil
}

func (r *PostgresGroupRepository) ownerOf(ctx context.Context, groupID uuid.UUID) (uuid.UUID, error) {
	var g group.Group
	err := r.db.WithContext(ctx).
		Select("id", "owner_id").
		Where("id = ?", groupID).
		First(&g).Error
	if err != nil {
		return uuid.Nil, translateError(err)
	}
	return g.OwnerID, nil
}

func (r *PostgresGroupRepository) ownerSubQuery(groupID uuid.UUID) *gorm.DB {
	return r.db.Model(&group.Group{}).Select("owner_id").Where("id = ?", groupID)
}

func (r *PostgresGroupRepository) AddMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	if _, err := r.ownerOf(ctx, groupID); err != nil {
		return false, err
	}
	member := group.Member{GroupID: groupID, UserID: userID, JoinedAt: time.Now().UTC()}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member)
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.touch(ctx, groupID)
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresGroupRepository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	if _, err := r.ownerOf(ctx, groupID); err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Where("user_id <> (?)", r.ownerSubQuery(groupID)).
		Delete(&group.Member{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		r.touch(ctx, groupID)
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresGroupRepository) SetAdmin(ctx context.Context, groupID, userID uuid.UUID, isAdmin bool) error {
	ownerID, err := r.ownerOf(ctx, groupID)
	if err != nil {
		return err
	}
	if !isAdmin && userID == ownerID {
		return nil
	}
	q := r.db.WithContext(ctx).
		Model(&group.Member{}).
		Where("group_id = ? AND user_id = ?", groupID, userID)
	if !isAdmin {
		q = q.Where("user_id <> (?)", r.ownerSubQuery(groupID))
	}
	res := q.Update("is_admin", isAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return cardcircle_errors.ErrNotFound
	}
	r.touch(ctx, groupID)
	return nil
}

func (r *PostgresGroupRepository) UpdateSettings(ctx context.Context, groupID uuid.UUID, patch group.SettingsPatch) error {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	return r.updateColumns(ctx, groupID, updates)
}

func (r *PostgresGroupRepository) UpdatePhoto(ctx context.Context, groupID uuid.UUID, url string) error {
	return r.updateColumns(ctx, groupID, map[string]interface{}{
		"photo_url":  url,
		"updated_at": time.Now().UTC(),
	})
}

func (r *PostgresGroupRepository) UpdateJoinCode(ctx context.Context, groupID uuid.UUID, code string) error {
	return r.updateColumns(ctx, groupID, map[string]interface{}{
		"join_code":  code,
		"updated_at": time.Now().UTC(),
	})
}

func (r *PostgresGroupRepository) UpdatePreview(ctx context.Context, groupID uuid.UUID, text string, at time.Time) error {
	return r.updateColumns(ctx, groupID, map[string]interface{}{
		"last_message_text": text,
		"last_message_at":   at,
		"updated_at":        time.Now().UTC(),
	})
}

func (r *PostgresGroupRepository) updateColumns(ctx context.Context, groupID uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&group.Group{}).
		Where("id = ?", groupID).
		UpdateColumns(updates)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return cardcircle_errors.ErrNotFound
	}
	return nil
}

// touch bumps updated_at after a membership change. Failures are ignored:
// the timestamp only feeds list ordering.
func (r *PostgresGroupRepository) touch(ctx context.Context, groupID uuid.UUID) {
	_ = r.db.WithContext(ctx).
		Model(&group.Group{}).
		Where("id = ?", groupID).
		UpdateColumn("updated_at", time.Now().UTC()).Error
}

func (r *PostgresGroupRepository) RestoreOwner(ctx context.Context, groupID uuid.UUID) (bool, error) {
	repaired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g group.Group
		if err := tx.Select("id", "owner_id", "created_at").Where("id = ?", groupID).First(&g).Error; err != nil {
			return err
		}

		var current group.Member
		err := tx.Where("group_id = ? AND user_id = ?", groupID, g.OwnerID).First(&current).Error
		if err == nil && current.IsAdmin {
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		owner := group.Member{GroupID: groupID, UserID: g.OwnerID, IsAdmin: true, JoinedAt: g.CreatedAt}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"is_admin": true}),
		}).Create(&owner).Error; err != nil {
			return err
		}
		repaired = true
		return nil
	})
	if err != nil {
		return false, translateError(err)
	}
	return repaired, nil
}

func (r *PostgresGroupRepository) Delete(ctx context.Context, groupID uuid.UUID) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("container_type = ? AND container_id = ?", message.ContainerGroup, groupID).
			Delete(&message.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&group.Member{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", groupID).Delete(&group.Group{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}
