package gorm

import (
	"context"

	"github.com/gofrs/uuid"

	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/repository"
)

// GetUser implements UserRepository interface.
func (repo *Repository) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if id == uuid.Nil {
		return nil, repository.ErrNilID
	}
	var u model.User
	if err := repo.db.WithContext(ctx).First(&u, &model.User{ID: id}).Error; err != nil {
		return nil, convertError(err)
	}
	return &u, nil
}
