package gorm

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/repository"
)

// CreateMessage implements MessageRepository interface.
func (repo *Repository) CreateMessage(ctx context.Context, m *model.Message) (*model.Message, error) {
	if m.UserID == uuid.Nil || m.RoomID == uuid.Nil {
		return nil, repository.ErrNilID
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.Must(uuid.NewV7())
	}
	for i := range m.Attachments {
		if m.Attachments[i].ID == uuid.Nil {
			m.Attachments[i].ID = uuid.Must(uuid.NewV7())
		}
		m.Attachments[i].MessageID = m.ID
	}

	if err := repo.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}

	// 投稿者・添付・リアクションをプリロードしたハイドレート済みレコードを1論理操作で返す
	var created model.Message
	err := repo.db.WithContext(ctx).
		Preload("User").
		Preload("Attachments").
		Preload("Reactions").
		First(&created, &model.Message{ID: m.ID}).
		Error
	if err != nil {
		return nil, convertError(err)
	}
	return &created, nil
}

// GetMessageByID implements MessageRepository interface.
func (repo *Repository) GetMessageByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	if id == uuid.Nil {
		return nil, repository.ErrNilID
	}
	var m model.Message
	err := repo.db.WithContext(ctx).
		Preload("User").
		Preload("Attachments").
		Preload("Reactions").
		First(&m, &model.Message{ID: id}).
		Error
	if err != nil {
		return nil, convertError(err)
	}
	return &m, nil
}

// UpdateMessage implements MessageRepository interface.
func (repo *Repository) UpdateMessage(ctx context.Context, id uuid.UUID, text string) error {
	if id == uuid.Nil {
		return repository.ErrNilID
	}
	result := repo.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("text", text)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteMessage implements MessageRepository interface.
func (repo *Repository) DeleteMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	if id == uuid.Nil {
		return repository.ErrNilID
	}
	// 論理削除のみ。返信・リアクションからの参照を保つため行は物理削除しない
	result := repo.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"text":       model.MessageTombstone,
			"deleted_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetMessages implements MessageRepository interface.
func (repo *Repository) GetMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*model.Message, error) {
	if roomID == uuid.Nil {
		return nil, repository.ErrNilID
	}
	messages := make([]*model.Message, 0)
	tx := repo.db.WithContext(ctx).
		Preload("User").
		Preload("Attachments").
		Preload("Reactions").
		Where(&model.Message{RoomID: roomID}).
		Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// CreateForward implements MessageRepository interface.
func (repo *Repository) CreateForward(ctx context.Context, f *model.ForwardRecord) error {
	if f.MessageID == uuid.Nil || f.RoomID == uuid.Nil || f.UserID == uuid.Nil {
		return repository.ErrNilID
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.Must(uuid.NewV7())
	}
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(f).Error
	})
}
