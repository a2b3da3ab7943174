// Package directory implements read-only lookups over the users table owned
// by the account subsystem.
package directory

import (
	"context"
	"errors"

	"cardcircle/internal/domain/user"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) FindByIdentifier(ctx context.Context, id user.Identifier) (user.PublicUser, error) {
	query := d.db.WithContext(ctx).Model(&user.User{})
	switch id.Kind {
	case user.IdentifierEmail:
		query = query.Where("LOWER(email) = ?", id.Value)
	case user.IdentifierPhone:
		query = query.Where("phone = ?", id.Value)
	default:
		return user.PublicUser{}, cardcircle_errors.ErrInvalidInput
	}

	var u user.User
	if err := query.First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.PublicUser{}, cardcircle_errors.ErrNotFound
		}
		return user.PublicUser{}, err
	}
	return u.Public(), nil
}

func (d *GormDirectory) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]user.PublicUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []user.User
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]user.PublicUser, 0, len(rows))
	for _, u := range rows {
		out = append(out, u.Public())
	}
	return out, nil
}
