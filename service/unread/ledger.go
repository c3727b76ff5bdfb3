package unread

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/repository"
)

const (
	shardCount     = 16
	persistTimeout = 3 * time.Second
)

// RoomUnread ルームごとの未読状態
type RoomUnread struct {
	Count      int       `json:"count"`
	LastReadAt time.Time `json:"lastReadAt"`
}

// Summary ユーザーの未読サマリ
type Summary struct {
	TotalUnread int                      `json:"totalUnread"`
	PerRoom     map[uuid.UUID]RoomUnread `json:"perRoom"`
}

// Ledger 通知・未読台帳
//
// ユーザー・ルームごとの未読数と最終既読時刻を保持します。
// メモリ上の台帳が読み取りの正であり、リポジトリへは書き込み時に
// 反映します(インクリメントはSQL上の加算で永続化されるため、
// 並行するメッセージ投稿で更新が失われることはありません)。
type Ledger struct {
	repo   repository.UnreadRepository
	logger *zap.Logger
	shards [shardCount]*shard
}

type shard struct {
	users map[uuid.UUID]*userEntry
	mu    sync.Mutex
}

type userEntry struct {
	rooms    map[uuid.UUID]*RoomUnread
	hydrated bool
}

// NewLedger 台帳を生成します
func NewLedger(repo repository.UnreadRepository, logger *zap.Logger) *Ledger {
	l := &Ledger{
		repo:   repo,
		logger: logger.Named("unread"),
	}
	for i := range l.shards {
		l.shards[i] = &shard{users: make(map[uuid.UUID]*userEntry)}
	}
	return l
}

// RecordNewMessage 新着メッセージを台帳に記録します
//
// 投稿者本人を除く各recipientの未読数を1増やし、増加したユーザーの
// UUIDを返します。増分はエントリロック下で行うため並行する投稿で
// カウントが失われることはありません。
func (l *Ledger) RecordNewMessage(roomID, authorID uuid.UUID, recipients []uuid.UUID) []uuid.UUID {
	updated := make([]uuid.UUID, 0, len(recipients))
	for _, userID := range recipients {
		if userID == authorID {
			continue
		}
		l.increment(userID, roomID)
		updated = append(updated, userID)
	}
	return updated
}

// MarkRead 指定したユーザー・ルームの未読数を0にし、既読時刻を記録します
//
// ユーザー起点の既読確認のみが呼び出します。ソケットへの配信完了は
// 既読を意味しません。永続化失敗はエラーとして返します。
func (l *Ledger) MarkRead(userID, roomID uuid.UUID) error {
	now := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := l.repo.SetRoomRead(ctx, userID, roomID, now); err != nil {
		return fmt.Errorf("failed to SetRoomRead: %w", err)
	}

	s := l.shardOf(userID)
	l.hydrate(s, userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e := l.entryOf(s, userID)
	e.rooms[roomID] = &RoomUnread{Count: 0, LastReadAt: now}
	return nil
}

// GetSummary 指定したユーザーの未読サマリを取得します
//
// ホットキャッシュは経由せず、台帳の現在の状態を直接読みます。
func (l *Ledger) GetSummary(userID uuid.UUID) Summary {
	s := l.shardOf(userID)
	l.hydrate(s, userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e := l.entryOf(s, userID)
	summary := Summary{PerRoom: make(map[uuid.UUID]RoomUnread, len(e.rooms))}
	for roomID, r := range e.rooms {
		summary.PerRoom[roomID] = *r
		summary.TotalUnread += r.Count
	}
	return summary
}

// Forget 指定したユーザーの台帳エントリを破棄します
//
// 次の読み取り時にリポジトリから再水和されます。他インスタンスが
// 永続化した更新を取り込むために使います。
func (l *Ledger) Forget(userID uuid.UUID) {
	s := l.shardOf(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}

// GetRoomUnread 指定したユーザー・ルームの未読状態を取得します
func (l *Ledger) GetRoomUnread(userID, roomID uuid.UUID) RoomUnread {
	s := l.shardOf(userID)
	l.hydrate(s, userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e := l.entryOf(s, userID)
	if r, ok := e.rooms[roomID]; ok {
		return *r
	}
	return RoomUnread{}
}

func (l *Ledger) increment(userID, roomID uuid.UUID) {
	s := l.shardOf(userID)
	l.hydrate(s, userID)
	s.mu.Lock()
	e := l.entryOf(s, userID)
	r, ok := e.rooms[roomID]
	if !ok {
		r = &RoomUnread{}
		e.rooms[roomID] = r
	}
	r.Count++
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := l.repo.IncrementUnread(ctx, userID, roomID); err != nil {
		// 台帳はメモリ上が正。永続化失敗は記録して続行する
		l.logger.Warn("failed to persist unread increment",
			zap.Stringer("userId", userID), zap.Stringer("roomId", roomID), zap.Error(err))
	}
}

// entryOf 呼び出し側がシャードロックを保持していること
func (l *Ledger) entryOf(s *shard, userID uuid.UUID) *userEntry {
	e, ok := s.users[userID]
	if !ok {
		e = &userEntry{rooms: make(map[uuid.UUID]*RoomUnread)}
		s.users[userID] = e
	}
	return e
}

// hydrate 初回アクセス時にリポジトリの記録を台帳へ取り込みます
//
// リポジトリ呼び出し中はシャードロックを持たないため、遅いストアでも
// 同一シャードの他ユーザーの読み書きは止まりません。取得中に積まれた
// メモリ上の更新が優先されます。
func (l *Ledger) hydrate(s *shard, userID uuid.UUID) {
	s.mu.Lock()
	if e, ok := s.users[userID]; ok && e.hydrated {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	records, err := l.repo.GetUnreadsByUserID(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	e := l.entryOf(s, userID)
	if e.hydrated {
		return
	}
	e.hydrated = true
	if err != nil {
		l.logger.Warn("failed to hydrate unread ledger", zap.Stringer("userId", userID), zap.Error(err))
		return
	}
	for _, rec := range records {
		if _, ok := e.rooms[rec.RoomID]; !ok {
			e.rooms[rec.RoomID] = &RoomUnread{Count: rec.Count, LastReadAt: rec.LastReadAt}
		}
	}
}

func (l *Ledger) shardOf(userID uuid.UUID) *shard {
	return l.shards[int(userID[0])%shardCount]
}
