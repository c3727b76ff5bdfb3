package repository

// Repository データリポジトリ
type Repository interface {
	UserRepository
	RoomRepository
	MessageRepository
	ReactionRepository
	UnreadRepository
}
