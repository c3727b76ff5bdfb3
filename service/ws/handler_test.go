package ws

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/leandro-lugaresi/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/event"
	"github.com/quartzchat/quartz/model"
	msgsvc "github.com/quartzchat/quartz/service/message"
	"github.com/quartzchat/quartz/service/ratelimit"
	"github.com/quartzchat/quartz/service/room"
	"github.com/quartzchat/quartz/service/unread"
)

// fakeManager テスト用のメッセージマネージャ
type fakeManager struct {
	err           error
	membershipErr error

	creates  int
	lastRoom uuid.UUID
	lastText string
}

func (m *fakeManager) Create(_ context.Context, userID, roomID uuid.UUID, text string, _ uuid.UUID, _ []model.Attachment) (*model.Message, error) {
	m.creates++
	m.lastRoom = roomID
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	return &model.Message{ID: uuid.Must(uuid.NewV7()), UserID: userID, RoomID: roomID, Text: text}, nil
}

func (m *fakeManager) Edit(_ context.Context, _, messageID uuid.UUID, text string) (*model.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &model.Message{ID: messageID, Text: text}, nil
}

func (m *fakeManager) Delete(_ context.Context, _, _ uuid.UUID) error {
	return m.err
}

func (m *fakeManager) Forward(_ context.Context, userID, messageID, targetRoomID uuid.UUID) (*model.ForwardRecord, *model.Message, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return &model.ForwardRecord{MessageID: messageID, RoomID: targetRoomID, UserID: userID}, &model.Message{ID: messageID}, nil
}

func (m *fakeManager) AddReaction(_ context.Context, userID, messageID uuid.UUID, emoji string) (*model.Reaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &model.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}, nil
}

func (m *fakeManager) RemoveReaction(_ context.Context, _, _ uuid.UUID, _ string) error {
	return m.err
}

func (m *fakeManager) CheckMembership(_ context.Context, _, _ uuid.UUID) error {
	return m.membershipErr
}

func (m *fakeManager) GetRoom(_ context.Context, roomID uuid.UUID) (*model.Room, error) {
	return &model.Room{ID: roomID}, nil
}

type noopUnreadRepository struct{}

func (noopUnreadRepository) IncrementUnread(_ context.Context, _, _ uuid.UUID) error { return nil }
func (noopUnreadRepository) SetRoomRead(_ context.Context, _, _ uuid.UUID, _ time.Time) error {
	return nil
}
func (noopUnreadRepository) GetUnreadsByUserID(_ context.Context, _ uuid.UUID) ([]*model.Unread, error) {
	return nil, nil
}

type handlerTestEnv struct {
	hub      *hub.Hub
	registry *room.Registry
	manager  *fakeManager
	session  *session
}

func newHandlerTestEnv(t *testing.T, ceiling int) *handlerTestEnv {
	t.Helper()
	h := hub.New()
	registry := room.NewRegistry()
	manager := &fakeManager{}
	limiter := ratelimit.NewLimiter(ceiling, time.Minute)
	ledger := unread.NewLedger(noopUnreadRepository{}, zap.NewNop())
	streamer := NewStreamer(h, registry, limiter, manager, ledger, zap.NewNop())

	s := &session{
		key:      "test-session",
		userID:   uuid.Must(uuid.NewV7()),
		open:     true,
		streamer: streamer,
		send:     make(chan *rawMessage, 16),
	}
	return &handlerTestEnv{hub: h, registry: registry, manager: manager, session: s}
}

type receivedEvent struct {
	Type string `json:"type"`
	Body struct {
		Command      string `json:"command"`
		Code         string `json:"code"`
		Message      string `json:"message"`
		RetryAfterMs int64  `json:"retryAfterMs"`
	} `json:"body"`
}

// nextEvent セッションの送信バッファから次のフレームを取り出します
func (env *handlerTestEnv) nextEvent(t *testing.T) *receivedEvent {
	t.Helper()
	select {
	case raw := <-env.session.send:
		var ev receivedEvent
		require.NoError(t, stdjson.Unmarshal(raw.data, &ev))
		return &ev
	default:
		t.Fatal("no event was written to the session")
		return nil
	}
}

func (env *handlerTestEnv) assertNoEvent(t *testing.T) {
	t.Helper()
	select {
	case raw := <-env.session.send:
		t.Fatalf("unexpected event: %s", raw.data)
	default:
	}
}

func encodeCommand(t *testing.T, typ string, body interface{}) []byte {
	t.Helper()
	b, err := stdjson.Marshal(map[string]interface{}{"type": typ, "body": body})
	require.NoError(t, err)
	return b
}

func TestCommandHandler_SendMessage(t *testing.T) {
	t.Parallel()

	env := newHandlerTestEnv(t, 100)
	roomID := uuid.Must(uuid.NewV7())

	env.session.commandHandler(encodeCommand(t, CommandSendMessage, map[string]interface{}{
		"roomId":  roomID,
		"content": "hello",
	}))

	// 成功時のブロードキャストは通知サービス経由で届くため、
	// ハンドラ自身はフレームを書かない
	env.assertNoEvent(t)
	assert.Equal(t, 1, env.manager.creates)
	assert.Equal(t, roomID, env.manager.lastRoom)
	assert.Equal(t, "hello", env.manager.lastText)
	// 送信による黙示的な参加
	assert.True(t, env.registry.IsMember(roomID, env.session.key))
}

func TestCommandHandler_Validation(t *testing.T) {
	t.Parallel()

	t.Run("malformed frame", func(t *testing.T) {
		env := newHandlerTestEnv(t, 100)
		env.session.commandHandler([]byte("{not json"))

		ev := env.nextEvent(t)
		assert.Equal(t, EventError, ev.Type)
		assert.Equal(t, errCodeValidation, ev.Body.Code)
		env.assertNoEvent(t)
	})

	t.Run("missing room id", func(t *testing.T) {
		env := newHandlerTestEnv(t, 100)
		env.session.commandHandler(encodeCommand(t, CommandSendMessage, map[string]interface{}{
			"content": "hello",
		}))

		ev := env.nextEvent(t)
		assert.Equal(t, EventError, ev.Type)
		assert.Equal(t, errCodeValidation, ev.Body.Code)
		assert.Equal(t, 0, env.manager.creates)
		env.assertNoEvent(t)
	})

	t.Run("unknown command", func(t *testing.T) {
		env := newHandlerTestEnv(t, 100)
		env.session.commandHandler(encodeCommand(t, "bogus", map[string]interface{}{}))

		ev := env.nextEvent(t)
		assert.Equal(t, EventError, ev.Type)
		assert.Equal(t, errCodeValidation, ev.Body.Code)
		env.assertNoEvent(t)
	})
}

func TestCommandHandler_ErrorTaxonomy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		code string
	}{
		{msgsvc.ErrForbidden, errCodeAuthorization},
		{msgsvc.ErrNotFound, errCodeNotFound},
		{msgsvc.ErrAlreadyExists, errCodeConflict},
		{msgsvc.ErrAlreadyDeleted, errCodeConflict},
		{msgsvc.ErrInvalidArgument, errCodeValidation},
		{errors.New("db gone"), errCodePersistence},
	}
	for _, tc := range cases {
		t.Run(tc.code+"/"+tc.err.Error(), func(t *testing.T) {
			env := newHandlerTestEnv(t, 100)
			env.manager.err = tc.err

			env.session.commandHandler(encodeCommand(t, CommandDeleteMessage, map[string]interface{}{
				"messageId": uuid.Must(uuid.NewV7()),
			}))

			ev := env.nextEvent(t)
			assert.Equal(t, EventError, ev.Type)
			assert.Equal(t, tc.code, ev.Body.Code)
			assert.Equal(t, CommandDeleteMessage, ev.Body.Command)
			// コマンド1つにつきエラーイベントは1つ
			env.assertNoEvent(t)
		})
	}
}

func TestCommandHandler_DoubleDeleteConflict(t *testing.T) {
	t.Parallel()

	env := newHandlerTestEnv(t, 100)
	messageID := uuid.Must(uuid.NewV7())
	body := map[string]interface{}{"messageId": messageID}

	env.session.commandHandler(encodeCommand(t, CommandDeleteMessage, body))
	env.assertNoEvent(t)

	env.manager.err = msgsvc.ErrAlreadyDeleted
	env.session.commandHandler(encodeCommand(t, CommandDeleteMessage, body))

	ev := env.nextEvent(t)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, errCodeConflict, ev.Body.Code)
	env.assertNoEvent(t)
}

func TestCommandHandler_RateLimit(t *testing.T) {
	t.Parallel()

	env := newHandlerTestEnv(t, 1)
	roomID := uuid.Must(uuid.NewV7())
	body := map[string]interface{}{"roomId": roomID, "content": "hello"}

	env.session.commandHandler(encodeCommand(t, CommandSendMessage, body))
	env.assertNoEvent(t)
	require.Equal(t, 1, env.manager.creates)

	// 上限を超えたコマンドは実行されず、再試行ヒント付きで拒否される
	env.session.commandHandler(encodeCommand(t, CommandSendMessage, body))
	ev := env.nextEvent(t)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, errCodeRateLimited, ev.Body.Code)
	assert.Greater(t, ev.Body.RetryAfterMs, int64(0))
	assert.Equal(t, 1, env.manager.creates)

	// 流量制限はバリデーションエラーと区別できるコードを返す
	assert.NotEqual(t, errCodeValidation, ev.Body.Code)
}

func TestCommandHandler_PingExemptFromRateLimit(t *testing.T) {
	t.Parallel()

	env := newHandlerTestEnv(t, 1)
	env.session.commandHandler(encodeCommand(t, CommandSendMessage, map[string]interface{}{
		"roomId":  uuid.Must(uuid.NewV7()),
		"content": "hello",
	}))
	env.assertNoEvent(t)

	// ウィンドウが尽きていてもpingには応答する
	for i := 0; i < 3; i++ {
		env.session.commandHandler(encodeCommand(t, CommandPing, map[string]interface{}{}))
		ev := env.nextEvent(t)
		assert.Equal(t, EventPong, ev.Type)
	}
}

func TestCommandHandler_MarkAsRead(t *testing.T) {
	t.Parallel()

	env := newHandlerTestEnv(t, 100)
	roomID := uuid.Must(uuid.NewV7())

	sub := env.hub.Subscribe(1, event.RoomRead)
	defer env.hub.Unsubscribe(sub)

	env.session.commandHandler(encodeCommand(t, CommandMarkAsRead, map[string]interface{}{
		"roomId": roomID,
	}))
	env.assertNoEvent(t)

	select {
	case msg := <-sub.Receiver:
		assert.Equal(t, env.session.userID, msg.Fields["user_id"])
		assert.Equal(t, roomID, msg.Fields["room_id"])
	case <-time.After(time.Second):
		t.Fatal("room read event was not published")
	}
}

func TestCommandHandler_MembershipDenied(t *testing.T) {
	t.Parallel()

	env := newHandlerTestEnv(t, 100)
	env.manager.membershipErr = msgsvc.ErrForbidden
	roomID := uuid.Must(uuid.NewV7())

	env.session.commandHandler(encodeCommand(t, CommandJoinRoom, map[string]interface{}{
		"roomId": roomID,
	}))

	ev := env.nextEvent(t)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, errCodeAuthorization, ev.Body.Code)
	assert.False(t, env.registry.IsMember(roomID, env.session.key))
}
