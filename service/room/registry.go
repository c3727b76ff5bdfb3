package room

import (
	"sync"

	"github.com/gofrs/uuid"

	"github.com/quartzchat/quartz/utils/set"
)

const shardCount = 32

// Member ルームに参加できる実体(通常はWebSocketセッション)
type Member interface {
	// Key コネクションを一意に識別するキー
	Key() string
	// UserID このコネクションのUserID
	UserID() uuid.UUID
}

// Registry ライブなルーム購読状態のレジストリ
//
// ルームはCRUD層が所有する永続的な実体であり、ここで管理するのは
// 「いまそのルームを購読しているコネクションの集合」だけです。
// ルームIDでシャーディングされており、無関係なルーム同士が
// 競合することはありません。
type Registry struct {
	shards [shardCount]*shard

	// joined コネクションキー -> 参加中ルームの索引。
	// LeaveAllを参加ルーム数に比例するコストに抑えるために持つ
	joined   map[string]set.UUID
	joinedMu sync.Mutex
}

type shard struct {
	rooms map[uuid.UUID]map[string]Member
	mu    sync.RWMutex
}

// NewRegistry レジストリを生成します
func NewRegistry() *Registry {
	r := &Registry{
		joined: make(map[string]set.UUID),
	}
	for i := range r.shards {
		r.shards[i] = &shard{rooms: make(map[uuid.UUID]map[string]Member)}
	}
	return r
}

// Join 指定したコネクションを指定したルームに参加させます
//
// 既に参加している場合は何もしません。
func (r *Registry) Join(m Member, roomID uuid.UUID) {
	s := r.shardOf(roomID)

	s.mu.Lock()
	members, ok := s.rooms[roomID]
	if !ok {
		members = make(map[string]Member)
		s.rooms[roomID] = members
	}
	members[m.Key()] = m
	s.mu.Unlock()

	r.joinedMu.Lock()
	rooms, ok := r.joined[m.Key()]
	if !ok {
		rooms = set.UUID{}
		r.joined[m.Key()] = rooms
	}
	rooms.Add(roomID)
	r.joinedMu.Unlock()
}

// Leave 指定したコネクションを指定したルームから退出させます
//
// 戻る時点でこのコネクションは以後のディスパッチ対象から外れています。
func (r *Registry) Leave(m Member, roomID uuid.UUID) {
	s := r.shardOf(roomID)

	s.mu.Lock()
	if members, ok := s.rooms[roomID]; ok {
		delete(members, m.Key())
		if len(members) == 0 {
			delete(s.rooms, roomID)
		}
	}
	s.mu.Unlock()

	r.joinedMu.Lock()
	if rooms, ok := r.joined[m.Key()]; ok {
		rooms.Remove(roomID)
		if len(rooms) == 0 {
			delete(r.joined, m.Key())
		}
	}
	r.joinedMu.Unlock()
}

// LeaveAll 指定したコネクションを参加中の全ルームから退出させます
func (r *Registry) LeaveAll(m Member) {
	r.joinedMu.Lock()
	rooms, ok := r.joined[m.Key()]
	if !ok {
		r.joinedMu.Unlock()
		return
	}
	ids := rooms.Array()
	delete(r.joined, m.Key())
	r.joinedMu.Unlock()

	for _, roomID := range ids {
		s := r.shardOf(roomID)
		s.mu.Lock()
		if members, ok := s.rooms[roomID]; ok {
			delete(members, m.Key())
			if len(members) == 0 {
				delete(s.rooms, roomID)
			}
		}
		s.mu.Unlock()
	}
}

// MembersOf 指定したルームのライブなメンバーのスナップショットを取得します
func (r *Registry) MembersOf(roomID uuid.UUID) []Member {
	s := r.shardOf(roomID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.rooms[roomID]
	result := make([]Member, 0, len(members))
	for _, m := range members {
		result = append(result, m)
	}
	return result
}

// IsMember 指定したコネクションが指定したルームに参加しているかどうか
func (r *Registry) IsMember(roomID uuid.UUID, key string) bool {
	s := r.shardOf(roomID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = members[key]
	return ok
}

// JoinedRooms 指定したコネクションが参加中のルームのスナップショットを取得します
func (r *Registry) JoinedRooms(key string) []uuid.UUID {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()

	rooms, ok := r.joined[key]
	if !ok {
		return nil
	}
	return rooms.Array()
}

// Counts ルームごとのライブメンバー数を取得します
func (r *Registry) Counts() map[uuid.UUID]int {
	result := make(map[uuid.UUID]int)
	for _, s := range r.shards {
		s.mu.RLock()
		for roomID, members := range s.rooms {
			result[roomID] = len(members)
		}
		s.mu.RUnlock()
	}
	return result
}

func (r *Registry) shardOf(roomID uuid.UUID) *shard {
	return r.shards[int(roomID[0])%shardCount]
}
