package event

const (
	// WSConnected ユーザーのWebSocketセッションが確立された
	// 	Fields:
	// 		user_id: uuid.UUID
	// 		session_key: string
	WSConnected = "ws.connected"
	// WSDisconnected ユーザーのWebSocketセッションが切断された
	// 	Fields:
	// 		user_id: uuid.UUID
	// 		session_key: string
	WSDisconnected = "ws.disconnected"

	// UserOnline ユーザーがオンラインになった
	// 	Fields:
	// 		user_id: uuid.UUID
	// 		datetime: time.Time
	UserOnline = "user.online"
	// UserOffline ユーザーがオフラインになった
	// 	Fields:
	// 		user_id: uuid.UUID
	// 		datetime: time.Time
	UserOffline = "user.offline"

	// MessageCreated メッセージが投稿された
	// 	Fields:
	// 		message_id: uuid.UUID
	// 		message: *model.Message
	MessageCreated = "message.created"
	// MessageUpdated メッセージが編集された
	// 	Fields:
	// 		message_id: uuid.UUID
	// 		message: *model.Message
	MessageUpdated = "message.updated"
	// MessageDeleted メッセージが削除された
	// 	Fields:
	// 		message_id: uuid.UUID
	// 		message: *model.Message
	MessageDeleted = "message.deleted"
	// MessageForwarded メッセージが転送された
	// 	Fields:
	// 		message_id: uuid.UUID (転送元メッセージ)
	// 		forward: *model.ForwardRecord
	// 		message: *model.Message
	MessageForwarded = "message.forwarded"

	// ReactionAdded メッセージにリアクションが追加された
	// 	Fields:
	// 		message_id: uuid.UUID
	// 		reaction: *model.Reaction
	// 		room_id: uuid.UUID
	ReactionAdded = "message.reaction.added"
	// ReactionRemoved メッセージからリアクションが削除された
	// 	Fields:
	// 		message_id: uuid.UUID
	// 		reaction: *model.Reaction
	// 		room_id: uuid.UUID
	ReactionRemoved = "message.reaction.removed"

	// RoomRead ユーザーがルームを既読にした
	// 	Fields:
	// 		user_id: uuid.UUID
	// 		room_id: uuid.UUID
	RoomRead = "room.read"
	// UnreadUpdated ユーザーの未読数が変化した
	// 	Fields:
	// 		user_id: uuid.UUID
	UnreadUpdated = "unread.updated"
)
