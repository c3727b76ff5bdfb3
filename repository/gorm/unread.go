package gorm

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/repository"
)

// IncrementUnread implements UnreadRepository interface.
func (repo *Repository) IncrementUnread(ctx context.Context, userID, roomID uuid.UUID) error {
	if userID == uuid.Nil || roomID == uuid.Nil {
		return repository.ErrNilID
	}
	// SQL上の加算で行うため、並行インクリメントでlost updateは起きない
	return repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "room_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count": gorm.Expr("`unreads`.`count` + 1"),
			}),
		}).
		Create(&model.Unread{
			UserID:     userID,
			RoomID:     roomID,
			Count:      1,
			LastReadAt: time.Now(),
		}).
		Error
}

// SetRoomRead implements UnreadRepository interface.
func (repo *Repository) SetRoomRead(ctx context.Context, userID, roomID uuid.UUID, at time.Time) error {
	if userID == uuid.Nil || roomID == uuid.Nil {
		return repository.ErrNilID
	}
	return repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "room_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":        0,
				"last_read_at": at,
			}),
		}).
		Create(&model.Unread{
			UserID:     userID,
			RoomID:     roomID,
			Count:      0,
			LastReadAt: at,
		}).
		Error
}

// GetUnreadsByUserID implements UnreadRepository interface.
func (repo *Repository) GetUnreadsByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Unread, error) {
	if userID == uuid.Nil {
		return nil, repository.ErrNilID
	}
	unreads := make([]*model.Unread, 0)
	err := repo.db.WithContext(ctx).
		Where(&model.Unread{UserID: userID}).
		Find(&unreads).
		Error
	if err != nil {
		return nil, err
	}
	return unreads, nil
}
