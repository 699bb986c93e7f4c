package rooms

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	mu      sync.Mutex
	evicted []string
}

func (b *fakeBus) EvictRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evicted = append(b.evicted, roomID)
}

func (b *fakeBus) evictedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.evicted...)
}

func TestSweepEvictsOnlyIdleRooms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := NewApp(clock, 12)
	bus := &fakeBus{}
	reaper := NewReaper(app, bus, clock, 12*time.Hour, 24*time.Hour)

	idle := app.CreateRoom()
	clock.Advance(25 * time.Hour)
	fresh := app.CreateRoom()

	reaper.Sweep()

	assert.Equal(t, []string{idle.RoomID}, bus.evictedIDs())
	assert.False(t, app.CheckRoom(idle.EditToken), "tokens of a reaped room must be invalid")
	assert.False(t, app.CheckRoom(idle.ViewToken))
	assert.True(t, app.CheckRoom(fresh.EditToken))
	assert.Equal(t, 1, app.RoomCount())
}

func TestSweepNotifiesBeforeDestroy(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := NewApp(clock, 12)

	var aliveAtEviction bool
	var room RoomInfo
	bus := evictFunc(func(roomID string) {
		// the room must still exist while subscribers are notified
		aliveAtEviction = app.CheckRoom(room.EditToken)
	})
	reaper := NewReaper(app, bus, clock, 12*time.Hour, 24*time.Hour)

	room = app.CreateRoom()
	clock.Advance(25 * time.Hour)
	reaper.Sweep()

	assert.True(t, aliveAtEviction)
	assert.False(t, app.CheckRoom(room.EditToken))
}

type evictFunc func(roomID string)

func (f evictFunc) EvictRoom(roomID string) { f(roomID) }

func TestSweepSparesRoomTouchedDuringEviction(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := NewApp(clock, 12)

	var room RoomInfo
	bus := evictFunc(func(roomID string) {
		// a subscribe lands between the notice and the destroy
		_, err := app.Subscribe(room.ViewToken)
		require.NoError(t, err)
	})
	reaper := NewReaper(app, bus, clock, 12*time.Hour, 24*time.Hour)

	room = app.CreateRoom()
	clock.Advance(25 * time.Hour)
	reaper.Sweep()

	assert.True(t, app.CheckRoom(room.ViewToken), "a room touched mid-sweep must survive")
	assert.Equal(t, 1, app.RoomCount())
}

func TestSweepRespectsThresholdBoundary(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := NewApp(clock, 12)
	bus := &fakeBus{}
	reaper := NewReaper(app, bus, clock, 12*time.Hour, 24*time.Hour)

	room := app.CreateRoom()
	clock.Advance(24 * time.Hour)
	reaper.Sweep()

	// exactly at the threshold is not past it
	assert.Empty(t, bus.evictedIDs())
	assert.True(t, app.CheckRoom(room.EditToken))
}

func TestRunSweepsOnTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := NewApp(clock, 12)
	bus := &fakeBus{}
	reaper := NewReaper(app, bus, clock, 12*time.Hour, 24*time.Hour)

	room := app.CreateRoom()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(25 * time.Hour)

	require.Eventually(t, func() bool {
		return !app.CheckRoom(room.EditToken)
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{room.RoomID}, bus.evictedIDs())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop on context cancellation")
	}
}
