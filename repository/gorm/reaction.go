package gorm

import (
	"context"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/repository"
)

// AddReaction implements ReactionRepository interface.
func (repo *Repository) AddReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*model.Reaction, error) {
	if messageID == uuid.Nil || userID == uuid.Nil {
		return nil, repository.ErrNilID
	}

	r := &model.Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	}
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c int64
		err := tx.Model(&model.Reaction{}).
			Where(&model.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}).
			Count(&c).
			Error
		if err != nil {
			return err
		}
		if c > 0 {
			return repository.ErrAlreadyExists
		}
		return tx.Create(r).Error
	})
	if err != nil {
		return nil, convertError(err)
	}
	return r, nil
}

// RemoveReaction implements ReactionRepository interface.
func (repo *Repository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	if messageID == uuid.Nil || userID == uuid.Nil {
		return repository.ErrNilID
	}
	result := repo.db.WithContext(ctx).
		Where(&model.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}).
		Delete(&model.Reaction{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
