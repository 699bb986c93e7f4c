package rooms

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// App owns the room and token registries. Every operation runs to
// completion under one mutex, so no two mutations of the same room ever
// interleave and the registries can never drift apart mid-operation.
type App struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	tokens *tokenRegistry
	rooms  map[string]*Room
}

// NewApp creates an empty room registry. The clock is injected so tests
// can drive activity timestamps with a fake clock.
func NewApp(clock clockwork.Clock, tokenLength int) *App {
	return &App{
		clock:  clock,
		tokens: newTokenRegistry(tokenLength),
		rooms:  make(map[string]*Room),
	}
}

// CreateRoom registers a new empty room with a freshly issued token pair
// and returns its edit-tier info.
func (a *App) CreateRoom() RoomInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	roomID := uuid.Must(uuid.NewV7()).String()
	room := &Room{
		ID:           roomID,
		EditToken:    a.tokens.issue(roomID),
		ViewToken:    a.tokens.issue(roomID),
		Timers:       []TimerRecord{},
		LastActivity: a.clock.Now(),
	}
	a.rooms[roomID] = room

	log.Info().Str("room_id", roomID).Msg("room created")
	return infoFor(room, AccessLevelEdit)
}

// Subscribe resolves a token at view tier and returns the room's current
// state at the tier the token actually grants.
func (a *App) Subscribe(token string) (RoomInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	room, err := a.resolveLocked(token, false)
	if err != nil {
		return RoomInfo{}, err
	}

	level := AccessLevelViewOnly
	if token == room.EditToken {
		level = AccessLevelEdit
	}
	return infoFor(room, level), nil
}

// Unsubscribe resolves a token at view tier and returns the room id the
// caller should be removed from.
func (a *App) Unsubscribe(token string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	room, err := a.resolveLocked(token, false)
	if err != nil {
		return "", err
	}
	return room.ID, nil
}

// Timers returns a snapshot of the room's timer set.
func (a *App) Timers(token string) ([]TimerRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	room, err := a.resolveLocked(token, false)
	if err != nil {
		return nil, err
	}
	return snapshotTimers(room), nil
}

// CreateTimer appends a timer to the room's set and returns the room id
// for the resulting broadcast. A duplicate id is rejected so that later
// updates and deletes by id stay unambiguous.
func (a *App) CreateTimer(token string, timer TimerRecord) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	room, err := a.resolveLocked(token, true)
	if err != nil {
		return "", err
	}
	if timerIndex(room, timer.ID) >= 0 {
		return "", ErrTimerExists
	}
	room.Timers = append(room.Timers, timer)

	log.Debug().Str("room_id", room.ID).Str("timer_id", timer.ID).Msg("timer created")
	return room.ID, nil
}

// UpdateTimer merges the incoming timer object onto the stored record:
// every field present in the patch overwrites the stored one, absent
// fields keep their values. Returns the room id for the broadcast.
func (a *App) UpdateTimer(token, id string, patch json.RawMessage) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	room, err := a.resolveLocked(token, true)
	if err != nil {
		return "", err
	}
	idx := timerIndex(room, id)
	if idx < 0 {
		return "", ErrTimerNotFound
	}

	merged := room.Timers[idx]
	if err := json.Unmarshal(patch, &merged); err != nil {
		return "", fmt.Errorf("merge timer %s: %w", id, err)
	}
	merged.ID = id
	room.Timers[idx] = merged

	log.Debug().Str("room_id", room.ID).Str("timer_id", id).Msg("timer updated")
	return room.ID, nil
}

// DeleteTimer removes the timer with the given id and returns the room id
// for the broadcast.
func (a *App) DeleteTimer(token, id string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	room, err := a.resolveLocked(token, true)
	if err != nil {
		return "", err
	}
	idx := timerIndex(room, id)
	if idx < 0 {
		return "", ErrTimerNotFound
	}
	room.Timers = append(room.Timers[:idx], room.Timers[idx+1:]...)

	log.Debug().Str("room_id", room.ID).Str("timer_id", id).Msg("timer deleted")
	return room.ID, nil
}

// CheckRoom reports whether a token currently resolves to a live room. It
// is a pure existence probe: it works for unknown tokens without erroring
// and never touches the room's activity timestamp.
func (a *App) CheckRoom(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	roomID, ok := a.tokens.resolve(token)
	if !ok {
		return false
	}
	_, ok = a.rooms[roomID]
	return ok
}

// Destroy removes a room and revokes both of its tokens. Destroying an
// absent room is a no-op.
func (a *App) Destroy(roomID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	room, ok := a.rooms[roomID]
	if !ok {
		return
	}
	a.tokens.revoke(room.EditToken)
	a.tokens.revoke(room.ViewToken)
	delete(a.rooms, roomID)

	log.Info().Str("room_id", roomID).Msg("room destroyed")
}

// DestroyIfIdle destroys the room only if it is still idle past the
// threshold at the time of the call. The re-check happens under the
// mutex, so a subscribe that touched the room after the sweep selected
// it keeps the room alive. Reports whether the room was destroyed.
func (a *App) DestroyIfIdle(roomID string, threshold time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	room, ok := a.rooms[roomID]
	if !ok {
		return false
	}
	if a.clock.Now().Sub(room.LastActivity) <= threshold {
		return false
	}
	a.tokens.revoke(room.EditToken)
	a.tokens.revoke(room.ViewToken)
	delete(a.rooms, roomID)

	log.Info().Str("room_id", roomID).Msg("room destroyed")
	return true
}

// IdleRoomIDs returns the ids of every room whose last activity is older
// than the threshold.
func (a *App) IdleRoomIDs(threshold time.Duration) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	var ids []string
	for id, room := range a.rooms {
		if now.Sub(room.LastActivity) > threshold {
			ids = append(ids, id)
		}
	}
	return ids
}

// RoomCount returns the number of live rooms.
func (a *App) RoomCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rooms)
}

// resolveLocked is the single gate for every tier-sensitive operation: it
// validates the token, enforces the required tier and touches the room's
// last-activity timestamp on success. It must run before any mutation,
// never after.
func (a *App) resolveLocked(token string, requireEdit bool) (*Room, error) {
	roomID, ok := a.tokens.resolve(token)
	if !ok {
		return nil, ErrInvalidToken
	}
	room, ok := a.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if requireEdit && token != room.EditToken {
		return nil, ErrInsufficientAccess
	}
	room.LastActivity = a.clock.Now()
	return room, nil
}

func infoFor(room *Room, level AccessLevel) RoomInfo {
	info := RoomInfo{
		RoomID:      room.ID,
		AccessLevel: level,
		ViewToken:   room.ViewToken,
		Timers:      snapshotTimers(room),
	}
	if level == AccessLevelEdit {
		info.EditToken = room.EditToken
	}
	return info
}

// snapshotTimers copies the timer set so callers can use it outside the
// App mutex. The copy is never nil, so it encodes as an empty JSON array.
func snapshotTimers(room *Room) []TimerRecord {
	timers := make([]TimerRecord, len(room.Timers))
	copy(timers, room.Timers)
	return timers
}

func timerIndex(room *Room, id string) int {
	for i, timer := range room.Timers {
		if timer.ID == id {
			return i
		}
	}
	return -1
}
