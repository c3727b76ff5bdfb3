package gorm

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/repository"
)

// Repository リポジトリ実装
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormRepository リポジトリ実装を初期化して生成します
func NewGormRepository(db *gorm.DB, logger *zap.Logger) (repository.Repository, error) {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Workspace{},
		&model.WorkspaceMember{},
		&model.Channel{},
		&model.ChannelMember{},
		&model.Conversation{},
		&model.ConversationParticipant{},
		&model.Message{},
		&model.Attachment{},
		&model.Reaction{},
		&model.ForwardRecord{},
		&model.Unread{},
	); err != nil {
		return nil, err
	}
	return &Repository{
		db:     db,
		logger: logger.Named("repository"),
	}, nil
}
