package presence

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/leandro-lugaresi/hub"
	"github.com/stretchr/testify/assert"
)

func TestTracker_SingleConnection(t *testing.T) {
	t.Parallel()

	tr := NewTracker(hub.New())
	u := uuid.Must(uuid.NewV7())

	assert.False(t, tr.IsOnline(u))
	assert.True(t, tr.MarkOnline(u))
	assert.True(t, tr.IsOnline(u))
	assert.True(t, tr.MarkOffline(u))
	assert.False(t, tr.IsOnline(u))
}

func TestTracker_MultipleConnections(t *testing.T) {
	t.Parallel()

	tr := NewTracker(hub.New())
	u := uuid.Must(uuid.NewV7())

	// 1本目の接続だけがオンライン遷移
	assert.True(t, tr.MarkOnline(u))
	assert.False(t, tr.MarkOnline(u))

	// 1本目の切断ではオフラインにならない
	assert.False(t, tr.MarkOffline(u))
	assert.True(t, tr.IsOnline(u))

	// 最後の切断でオフライン遷移
	assert.True(t, tr.MarkOffline(u))
	assert.False(t, tr.IsOnline(u))
}

func TestTracker_OfflineWithoutOnline(t *testing.T) {
	t.Parallel()

	tr := NewTracker(hub.New())
	assert.False(t, tr.MarkOffline(uuid.Must(uuid.NewV7())))
}

func TestTracker_OnlineUserIDs(t *testing.T) {
	t.Parallel()

	tr := NewTracker(hub.New())
	u1 := uuid.Must(uuid.NewV7())
	u2 := uuid.Must(uuid.NewV7())

	tr.MarkOnline(u1)
	tr.MarkOnline(u2)
	tr.MarkOffline(u2)

	ids := tr.OnlineUserIDs()
	assert.Contains(t, ids, u1)
	assert.NotContains(t, ids, u2)
}
