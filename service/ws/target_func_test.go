package ws

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/quartzchat/quartz/service/room"
	"github.com/quartzchat/quartz/utils/set"
)

type testSession struct {
	key    string
	userID uuid.UUID
}

func (s *testSession) Key() string         { return s.key }
func (s *testSession) UserID() uuid.UUID   { return s.userID }
func (s *testSession) DisplayName() string { return "" }
func (s *testSession) IconURL() string     { return "" }

func TestTargetUsers(t *testing.T) {
	t.Parallel()

	u1 := uuid.Must(uuid.NewV7())
	u2 := uuid.Must(uuid.NewV7())
	s1 := &testSession{key: "a", userID: u1}
	s2 := &testSession{key: "b", userID: u2}

	f := TargetUsers(u1)
	assert.True(t, f(s1))
	assert.False(t, f(s2))
}

func TestTargetUserSets(t *testing.T) {
	t.Parallel()

	u1 := uuid.Must(uuid.NewV7())
	u2 := uuid.Must(uuid.NewV7())
	s := set.UUIDSetFromArray([]uuid.UUID{u1})

	f := TargetUserSets(s)
	assert.True(t, f(&testSession{key: "a", userID: u1}))
	assert.False(t, f(&testSession{key: "b", userID: u2}))
}

func TestTargetRoom(t *testing.T) {
	t.Parallel()

	registry := room.NewRegistry()
	roomID := uuid.Must(uuid.NewV7())
	joined := &testSession{key: "a", userID: uuid.Must(uuid.NewV7())}
	outside := &testSession{key: "b", userID: uuid.Must(uuid.NewV7())}

	registry.Join(joined, roomID)

	f := TargetRoom(registry, roomID)
	assert.True(t, f(joined))
	assert.False(t, f(outside))

	// 退出後はディスパッチ対象から外れる
	registry.Leave(joined, roomID)
	assert.False(t, f(joined))
}

func TestTargetCombinators(t *testing.T) {
	t.Parallel()

	u := uuid.Must(uuid.NewV7())
	s := &testSession{key: "a", userID: u}

	assert.True(t, TargetAll()(s))
	assert.False(t, TargetNone()(s))
	assert.True(t, Or(TargetNone(), TargetUsers(u))(s))
	assert.False(t, And(TargetAll(), TargetNone())(s))
	assert.True(t, Not(TargetNone())(s))
}
