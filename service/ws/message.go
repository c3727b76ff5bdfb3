package ws

type rawMessage struct {
	t    int
	data []byte
}

type message struct {
	Type string      `json:"type"`
	Body interface{} `json:"body"`
}

func makeMessage(t string, b interface{}) (m *message) {
	return &message{
		Type: t,
		Body: b,
	}
}

func (m *message) toJSON() (b []byte) {
	b, _ = json.Marshal(m)
	return
}

// クライアントへ送出するイベント名
const (
	EventNewMessage          = "new_message"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventMessageForwarded    = "message_forwarded"
	EventReactionAdded       = "reaction_added"
	EventReactionRemoved     = "reaction_removed"
	EventUserStatusChange    = "user_status_change"
	EventUnreadCountsUpdated = "unread_counts_updated"
	EventPong                = "pong"
	EventError               = "error"
)

// クライアントから受け取るコマンド名
const (
	CommandSendMessage    = "send_message"
	CommandEditMessage    = "edit_message"
	CommandDeleteMessage  = "delete_message"
	CommandForwardMessage = "forward_message"
	CommandAddReaction    = "add_reaction"
	CommandRemoveReaction = "remove_reaction"
	CommandJoinRoom       = "join_room"
	CommandLeaveRoom      = "leave_room"
	CommandMarkAsRead     = "mark_as_read"
	CommandPing           = "ping"
)
