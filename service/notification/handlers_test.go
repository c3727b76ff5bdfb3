package notification

import (
	"context"
	stdjson "encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"github.com/leandro-lugaresi/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/event"
	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/router/extension/ctxkey"
	"github.com/quartzchat/quartz/service/ratelimit"
	"github.com/quartzchat/quartz/service/room"
	"github.com/quartzchat/quartz/service/unread"
	"github.com/quartzchat/quartz/service/ws"
)

// fakeRepository 通知経路テスト用のインメモリリポジトリ
type fakeRepository struct {
	mu         sync.Mutex
	members    map[uuid.UUID][]uuid.UUID
	unreads    map[uuid.UUID][]*model.Unread
	increments int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		members: map[uuid.UUID][]uuid.UUID{},
		unreads: map[uuid.UUID][]*model.Unread{},
	}
}

func (r *fakeRepository) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	return &model.User{ID: id}, nil
}

func (r *fakeRepository) GetRoom(_ context.Context, roomID uuid.UUID) (*model.Room, error) {
	return &model.Room{ID: roomID}, nil
}

func (r *fakeRepository) IsRoomMember(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return true, nil
}

func (r *fakeRepository) GetRoomMemberIDs(_ context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[roomID], nil
}

func (r *fakeRepository) IsWorkspaceAdmin(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (r *fakeRepository) CreateMessage(_ context.Context, m *model.Message) (*model.Message, error) {
	return m, nil
}

func (r *fakeRepository) GetMessageByID(_ context.Context, _ uuid.UUID) (*model.Message, error) {
	return nil, nil
}

func (r *fakeRepository) UpdateMessage(_ context.Context, _ uuid.UUID, _ string) error { return nil }

func (r *fakeRepository) DeleteMessage(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (r *fakeRepository) GetMessages(_ context.Context, _ uuid.UUID, _, _ int) ([]*model.Message, error) {
	return nil, nil
}

func (r *fakeRepository) CreateForward(_ context.Context, _ *model.ForwardRecord) error { return nil }

func (r *fakeRepository) AddReaction(_ context.Context, messageID, userID uuid.UUID, emoji string) (*model.Reaction, error) {
	return &model.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}, nil
}

func (r *fakeRepository) RemoveReaction(_ context.Context, _, _ uuid.UUID, _ string) error {
	return nil
}

func (r *fakeRepository) IncrementUnread(_ context.Context, _, _ uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increments++
	return nil
}

func (r *fakeRepository) SetRoomRead(_ context.Context, _, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (r *fakeRepository) GetUnreadsByUserID(_ context.Context, userID uuid.UUID) ([]*model.Unread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unreads[userID], nil
}

func (r *fakeRepository) incrementCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.increments
}

// noopManager ストリーマー生成用のダミーメッセージマネージャ
type noopManager struct{}

func (noopManager) Create(_ context.Context, userID, roomID uuid.UUID, text string, _ uuid.UUID, _ []model.Attachment) (*model.Message, error) {
	return &model.Message{UserID: userID, RoomID: roomID, Text: text}, nil
}

func (noopManager) Edit(_ context.Context, _, messageID uuid.UUID, text string) (*model.Message, error) {
	return &model.Message{ID: messageID, Text: text}, nil
}

func (noopManager) Delete(_ context.Context, _, _ uuid.UUID) error { return nil }

func (noopManager) Forward(_ context.Context, userID, messageID, targetRoomID uuid.UUID) (*model.ForwardRecord, *model.Message, error) {
	return &model.ForwardRecord{MessageID: messageID, RoomID: targetRoomID, UserID: userID}, &model.Message{ID: messageID}, nil
}

func (noopManager) AddReaction(_ context.Context, userID, messageID uuid.UUID, emoji string) (*model.Reaction, error) {
	return &model.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}, nil
}

func (noopManager) RemoveReaction(_ context.Context, _, _ uuid.UUID, _ string) error { return nil }

func (noopManager) CheckMembership(_ context.Context, _, _ uuid.UUID) error { return nil }

func (noopManager) GetRoom(_ context.Context, roomID uuid.UUID) (*model.Room, error) {
	return &model.Room{ID: roomID}, nil
}

type notificationTestEnv struct {
	hub      *hub.Hub
	repo     *fakeRepository
	registry *room.Registry
	ledger   *unread.Ledger
	streamer *ws.Streamer
	server   *httptest.Server
}

func newNotificationTestEnv(t *testing.T) *notificationTestEnv {
	t.Helper()
	h := hub.New()
	repo := newFakeRepository()
	registry := room.NewRegistry()
	ledger := unread.NewLedger(repo, zap.NewNop())
	limiter := ratelimit.NewLimiter(1000, time.Minute)
	streamer := ws.NewStreamer(h, registry, limiter, &noopManager{}, ledger, zap.NewNop())
	NewService(repo, h, zap.NewNop(), streamer, registry, ledger)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := uuid.FromStringOrNil(r.URL.Query().Get("user"))
		ctx := context.WithValue(r.Context(), ctxkey.UserID, uid)
		streamer.ServeHTTP(w, r.WithContext(ctx))
	}))
	t.Cleanup(server.Close)

	return &notificationTestEnv{
		hub:      h,
		repo:     repo,
		registry: registry,
		ledger:   ledger,
		streamer: streamer,
		server:   server,
	}
}

// dial 指定したユーザーとしてWebSocket接続を張ります
func (env *notificationTestEnv) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/?user=" + userID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// joinRoom 指定したユーザーのライブセッションをルームに参加させます
func (env *notificationTestEnv) joinRoom(t *testing.T, userID, roomID uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		var found ws.Session
		env.streamer.IterateSessions(func(s ws.Session) {
			if s.UserID() == userID {
				found = s
			}
		})
		if found != nil {
			env.registry.Join(found, roomID)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session was not registered in time")
}

type wsEvent struct {
	Type string             `json:"type"`
	Body stdjson.RawMessage `json:"body"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev wsEvent
	require.NoError(t, stdjson.Unmarshal(raw, &ev))
	return ev
}

func assertNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected event: %s", raw)
	}
}

func TestMessageCreatedFanOut(t *testing.T) {
	t.Parallel()

	env := newNotificationTestEnv(t)
	author := uuid.Must(uuid.NewV7())
	reader := uuid.Must(uuid.NewV7())
	roomID := uuid.Must(uuid.NewV7())
	env.repo.members[roomID] = []uuid.UUID{author, reader}

	conn := env.dial(t, reader)
	env.joinRoom(t, reader, roomID)

	m := &model.Message{ID: uuid.Must(uuid.NewV7()), UserID: author, RoomID: roomID, Text: "hello"}
	env.hub.Publish(hub.Message{
		Name:   event.MessageCreated,
		Fields: hub.Fields{"message_id": m.ID, "message": m},
	})

	// 参加中のセッションにはメッセージ本体が届く
	ev := readEvent(t, conn)
	assert.Equal(t, "new_message", ev.Type)
	var got model.Message
	require.NoError(t, stdjson.Unmarshal(ev.Body, &got))
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "hello", got.Text)

	// 続いて未読サマリの更新が届く。投稿者は数えられない
	ev = readEvent(t, conn)
	assert.Equal(t, "unread_counts_updated", ev.Type)
	var summary unread.Summary
	require.NoError(t, stdjson.Unmarshal(ev.Body, &summary))
	assert.Equal(t, 1, summary.TotalUnread)
	assert.Equal(t, 1, summary.PerRoom[roomID].Count)
	assert.Equal(t, 0, env.ledger.GetRoomUnread(author, roomID).Count)
}

func TestMessageForwardedFanOut(t *testing.T) {
	t.Parallel()

	env := newNotificationTestEnv(t)
	dest := uuid.Must(uuid.NewV7())
	source := uuid.Must(uuid.NewV7())
	inDest := uuid.Must(uuid.NewV7())
	inSource := uuid.Must(uuid.NewV7())

	destConn := env.dial(t, inDest)
	env.joinRoom(t, inDest, dest)
	sourceConn := env.dial(t, inSource)
	env.joinRoom(t, inSource, source)

	m := &model.Message{ID: uuid.Must(uuid.NewV7()), RoomID: source, Text: "original"}
	fr := &model.ForwardRecord{MessageID: m.ID, RoomID: dest, UserID: inDest}
	env.hub.Publish(hub.Message{
		Name:   event.MessageForwarded,
		Fields: hub.Fields{"message_id": m.ID, "forward": fr, "message": m},
	})

	// 転送イベントは転送先ルームにだけ流れる
	ev := readEvent(t, destConn)
	assert.Equal(t, "message_forwarded", ev.Type)
	assertNoEvent(t, sourceConn)
}

func TestRemoteMessageCreatedRehydrates(t *testing.T) {
	t.Parallel()

	env := newNotificationTestEnv(t)
	author := uuid.Must(uuid.NewV7())
	reader := uuid.Must(uuid.NewV7())
	roomID := uuid.Must(uuid.NewV7())
	env.repo.members[roomID] = []uuid.UUID{author, reader}
	// 発信元インスタンスが永続化済みの状態
	env.repo.unreads[reader] = []*model.Unread{{UserID: reader, RoomID: roomID, Count: 5}}

	conn := env.dial(t, reader)
	env.joinRoom(t, reader, roomID)

	m := &model.Message{ID: uuid.Must(uuid.NewV7()), UserID: author, RoomID: roomID, Text: "hello"}
	env.hub.Publish(hub.Message{
		Name:   event.MessageCreated,
		Fields: hub.Fields{"message_id": m.ID, "message": m, "remote": true},
	})

	ev := readEvent(t, conn)
	assert.Equal(t, "new_message", ev.Type)

	// 他インスタンス由来のイベントでは台帳を再水和し、二重加算しない
	ev = readEvent(t, conn)
	assert.Equal(t, "unread_counts_updated", ev.Type)
	var summary unread.Summary
	require.NoError(t, stdjson.Unmarshal(ev.Body, &summary))
	assert.Equal(t, 5, summary.TotalUnread)
	assert.Equal(t, 0, env.repo.incrementCount())
}

func TestUserStatusChangeBroadcast(t *testing.T) {
	t.Parallel()

	env := newNotificationTestEnv(t)
	watcher := uuid.Must(uuid.NewV7())
	subject := uuid.Must(uuid.NewV7())

	conn := env.dial(t, watcher)
	// ルームに参加していなくても在席変化は全セッションに届く
	deadline := time.Now().Add(time.Second)
	for env.streamer.SessionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, env.streamer.SessionCount())

	env.hub.Publish(hub.Message{
		Name:   event.UserOnline,
		Fields: hub.Fields{"user_id": subject, "datetime": time.Now()},
	})

	ev := readEvent(t, conn)
	assert.Equal(t, "user_status_change", ev.Type)
	var body struct {
		UserID uuid.UUID `json:"userId"`
		Status string    `json:"status"`
	}
	require.NoError(t, stdjson.Unmarshal(ev.Body, &body))
	assert.Equal(t, subject, body.UserID)
	assert.Equal(t, "online", body.Status)
}
