package gorm

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/repository"
)

// GetRoom implements RoomRepository interface.
func (repo *Repository) GetRoom(ctx context.Context, roomID uuid.UUID) (*model.Room, error) {
	if roomID == uuid.Nil {
		return nil, repository.ErrNilID
	}

	var ch model.Channel
	err := repo.db.WithContext(ctx).First(&ch, &model.Channel{ID: roomID}).Error
	if err == nil {
		return &model.Room{ID: ch.ID, Kind: model.RoomKindChannel, WorkspaceID: ch.WorkspaceID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var cv model.Conversation
	err = repo.db.WithContext(ctx).First(&cv, &model.Conversation{ID: roomID}).Error
	if err != nil {
		return nil, convertError(err)
	}
	return &model.Room{ID: cv.ID, Kind: model.RoomKindConversation, WorkspaceID: cv.WorkspaceID}, nil
}

// IsRoomMember implements RoomRepository interface.
func (repo *Repository) IsRoomMember(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	if userID == uuid.Nil || roomID == uuid.Nil {
		return false, repository.ErrNilID
	}

	r, err := repo.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}

	var c int64
	if r.IsChannel() {
		err = repo.db.WithContext(ctx).
			Model(&model.ChannelMember{}).
			Where(&model.ChannelMember{ChannelID: roomID, UserID: userID}).
			Count(&c).
			Error
	} else {
		err = repo.db.WithContext(ctx).
			Model(&model.ConversationParticipant{}).
			Where(&model.ConversationParticipant{ConversationID: roomID, UserID: userID}).
			Count(&c).
			Error
	}
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// GetRoomMemberIDs implements RoomRepository interface.
func (repo *Repository) GetRoomMemberIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	if roomID == uuid.Nil {
		return nil, repository.ErrNilID
	}

	r, err := repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0)
	if r.IsChannel() {
		err = repo.db.WithContext(ctx).
			Model(&model.ChannelMember{}).
			Where(&model.ChannelMember{ChannelID: roomID}).
			Pluck("user_id", &ids).
			Error
	} else {
		err = repo.db.WithContext(ctx).
			Model(&model.ConversationParticipant{}).
			Where(&model.ConversationParticipant{ConversationID: roomID}).
			Pluck("user_id", &ids).
			Error
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// IsWorkspaceAdmin implements RoomRepository interface.
func (repo *Repository) IsWorkspaceAdmin(ctx context.Context, userID, workspaceID uuid.UUID) (bool, error) {
	if userID == uuid.Nil || workspaceID == uuid.Nil {
		return false, repository.ErrNilID
	}
	var c int64
	err := repo.db.WithContext(ctx).
		Model(&model.WorkspaceMember{}).
		Where(&model.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: model.WorkspaceRoleAdmin}).
		Count(&c).
		Error
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
