package unread

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/model"
)

type fakeUnreadRepository struct {
	mu         sync.Mutex
	increments map[uuid.UUID]int
	reads      map[uuid.UUID]time.Time
	records    []*model.Unread
	setErr     error
}

func newFakeUnreadRepository() *fakeUnreadRepository {
	return &fakeUnreadRepository{
		increments: make(map[uuid.UUID]int),
		reads:      make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeUnreadRepository) IncrementUnread(_ context.Context, userID, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments[userID]++
	return nil
}

func (f *fakeUnreadRepository) SetRoomRead(_ context.Context, userID, _ uuid.UUID, at time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[userID] = at
	return nil
}

func (f *fakeUnreadRepository) GetUnreadsByUserID(_ context.Context, _ uuid.UUID) ([]*model.Unread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, nil
}

func TestLedger_RecordNewMessage(t *testing.T) {
	t.Parallel()

	repo := newFakeUnreadRepository()
	l := NewLedger(repo, zap.NewNop())

	roomID := uuid.Must(uuid.NewV7())
	author := uuid.Must(uuid.NewV7())
	other := uuid.Must(uuid.NewV7())

	updated := l.RecordNewMessage(roomID, author, []uuid.UUID{author, other})

	// 投稿者本人の未読は増えない
	assert.Equal(t, []uuid.UUID{other}, updated)
	assert.Equal(t, 1, l.GetRoomUnread(other, roomID).Count)
	assert.Equal(t, 0, l.GetRoomUnread(author, roomID).Count)
}

func TestLedger_UnreadMonotonicity(t *testing.T) {
	t.Parallel()

	repo := newFakeUnreadRepository()
	l := NewLedger(repo, zap.NewNop())

	roomID := uuid.Must(uuid.NewV7())
	author := uuid.Must(uuid.NewV7())
	member := uuid.Must(uuid.NewV7())

	const n = 7
	for i := 0; i < n; i++ {
		l.RecordNewMessage(roomID, author, []uuid.UUID{member})
	}
	assert.Equal(t, n, l.GetRoomUnread(member, roomID).Count)

	require.NoError(t, l.MarkRead(member, roomID))
	assert.Equal(t, 0, l.GetRoomUnread(member, roomID).Count)
	assert.False(t, l.GetRoomUnread(member, roomID).LastReadAt.IsZero())
}

func TestLedger_MarkReadPersistFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeUnreadRepository()
	repo.setErr = assert.AnError
	l := NewLedger(repo, zap.NewNop())

	roomID := uuid.Must(uuid.NewV7())
	member := uuid.Must(uuid.NewV7())
	l.RecordNewMessage(roomID, uuid.Must(uuid.NewV7()), []uuid.UUID{member})

	// 永続化に失敗した場合、台帳は既読扱いにしない
	assert.Error(t, l.MarkRead(member, roomID))
	assert.Equal(t, 1, l.GetRoomUnread(member, roomID).Count)
}

func TestLedger_Hydration(t *testing.T) {
	t.Parallel()

	repo := newFakeUnreadRepository()
	member := uuid.Must(uuid.NewV7())
	roomID := uuid.Must(uuid.NewV7())
	repo.records = []*model.Unread{
		{UserID: member, RoomID: roomID, Count: 3, LastReadAt: time.Now().Add(-time.Hour)},
	}
	l := NewLedger(repo, zap.NewNop())

	// 初回読み取りでリポジトリから再水和される
	assert.Equal(t, 3, l.GetRoomUnread(member, roomID).Count)

	s := l.GetSummary(member)
	assert.Equal(t, 3, s.TotalUnread)
	assert.Len(t, s.PerRoom, 1)
}

func TestLedger_Forget(t *testing.T) {
	t.Parallel()

	repo := newFakeUnreadRepository()
	l := NewLedger(repo, zap.NewNop())

	member := uuid.Must(uuid.NewV7())
	roomID := uuid.Must(uuid.NewV7())
	l.RecordNewMessage(roomID, uuid.Must(uuid.NewV7()), []uuid.UUID{member})
	assert.Equal(t, 1, l.GetRoomUnread(member, roomID).Count)

	// 破棄後はリポジトリの内容(空)で再水和
	l.Forget(member)
	assert.Equal(t, 0, l.GetRoomUnread(member, roomID).Count)
}

func TestLedger_GetSummaryTotals(t *testing.T) {
	t.Parallel()

	repo := newFakeUnreadRepository()
	l := NewLedger(repo, zap.NewNop())

	member := uuid.Must(uuid.NewV7())
	author := uuid.Must(uuid.NewV7())
	room1 := uuid.Must(uuid.NewV7())
	room2 := uuid.Must(uuid.NewV7())

	l.RecordNewMessage(room1, author, []uuid.UUID{member})
	l.RecordNewMessage(room1, author, []uuid.UUID{member})
	l.RecordNewMessage(room2, author, []uuid.UUID{member})

	s := l.GetSummary(member)
	assert.Equal(t, 3, s.TotalUnread)
	assert.Equal(t, 2, s.PerRoom[room1].Count)
	assert.Equal(t, 1, s.PerRoom[room2].Count)
}

// blockingUnreadRepository 指定ユーザーの再水和だけをブロックする
type blockingUnreadRepository struct {
	*fakeUnreadRepository
	blockUser uuid.UUID
	release   chan struct{}
}

func (f *blockingUnreadRepository) GetUnreadsByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Unread, error) {
	if userID == f.blockUser {
		<-f.release
	}
	return f.fakeUnreadRepository.GetUnreadsByUserID(ctx, userID)
}

func TestLedger_HydrationDoesNotBlockShard(t *testing.T) {
	t.Parallel()

	// 同一シャードに割り当てられる2ユーザー
	slow := uuid.Must(uuid.NewV7())
	fast := uuid.Must(uuid.NewV7())
	fast[0] = slow[0]

	repo := &blockingUnreadRepository{
		fakeUnreadRepository: newFakeUnreadRepository(),
		blockUser:            slow,
		release:              make(chan struct{}),
	}
	l := NewLedger(repo, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.GetSummary(slow)
	}()

	// slow側の再水和がストアで止まっていても、同一シャードの別ユーザーは
	// 読み書きできる
	roomID := uuid.Must(uuid.NewV7())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		l.RecordNewMessage(roomID, uuid.Must(uuid.NewV7()), []uuid.UUID{fast})
		l.GetSummary(fast)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("shard blocked by another user's hydration")
	}

	close(repo.release)
	<-done
	assert.Equal(t, 1, l.GetRoomUnread(fast, roomID).Count)
}
