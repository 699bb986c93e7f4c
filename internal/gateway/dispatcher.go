package gateway

import (
	"encoding/json"
	"errors"

	"github.com/roundtimer/roundtimer/internal/rooms"
	"github.com/rs/zerolog/log"
)

// Dispatcher routes decoded client messages to room operations and turns
// the results into private replies or room broadcasts.
type Dispatcher struct {
	app *rooms.App
	cm  *ConnectionManager
}

func NewDispatcher(app *rooms.App, cm *ConnectionManager) *Dispatcher {
	return &Dispatcher{app: app, cm: cm}
}

// Dispatch handles one inbound frame. Malformed or unrecognized frames
// are logged and dropped without a reply; nothing in here may take down
// the connection.
func (d *Dispatcher) Dispatch(conn *Connection, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("dropping undecodable message")
		return
	}

	switch msg.Type {
	case TypeCreateRoom:
		d.handleCreateRoom(conn)
	case TypeSubscribe:
		d.Subscribe(conn, msg.AccessID)
	case TypeUnsubscribe:
		d.handleUnsubscribe(conn, msg.AccessID)
	case TypeGetRoomInfo:
		d.handleGetRoomInfo(conn, msg.AccessID)
	case TypeCreateTimer:
		d.handleCreateTimer(conn, msg.AccessID, msg.Timer)
	case TypeUpdateTimer:
		d.handleUpdateTimer(conn, msg.AccessID, msg.Timer)
	case TypeDeleteTimer:
		d.handleDeleteTimer(conn, msg.AccessID, msg.ID)
	case TypeRoomCheck:
		d.handleRoomCheck(conn, msg.AccessID)
	default:
		log.Warn().
			Str("type", string(msg.Type)).
			Str("connection_id", conn.ID).
			Msg("dropping message with unknown type")
	}
}

// Subscribe resolves the token at view tier, adds the connection to the
// room's broadcast group and replies with the room's current state. Also
// used for the connect-time auto-subscribe parameter.
func (d *Dispatcher) Subscribe(conn *Connection, accessID string) {
	info, err := d.app.Subscribe(accessID)
	if err != nil {
		d.sendError(conn, err)
		return
	}
	d.cm.Subscribe(info.RoomID, conn)
	d.sendRoomState(conn, info)
}

func (d *Dispatcher) handleCreateRoom(conn *Connection) {
	info := d.app.CreateRoom()
	d.cm.Subscribe(info.RoomID, conn)
	d.sendRoomState(conn, info)
}

func (d *Dispatcher) handleUnsubscribe(conn *Connection, accessID string) {
	roomID, err := d.app.Unsubscribe(accessID)
	if err != nil {
		d.sendError(conn, err)
		return
	}
	d.cm.Unsubscribe(roomID, conn)
	conn.enqueue(encode(AckMessage{Type: TypeUnsubscribeSuccess}))
}

func (d *Dispatcher) handleGetRoomInfo(conn *Connection, accessID string) {
	timers, err := d.app.Timers(accessID)
	if err != nil {
		d.sendError(conn, err)
		return
	}
	conn.enqueue(encode(RoomUpdateMessage{Type: TypeRoomUpdate, Timers: timers}))
}

func (d *Dispatcher) handleCreateTimer(conn *Connection, accessID string, raw json.RawMessage) {
	timer, ok := decodeTimer(conn, raw)
	if !ok {
		return
	}
	roomID, err := d.app.CreateTimer(accessID, timer)
	if err != nil {
		d.sendError(conn, err)
		return
	}
	d.cm.Publish(roomID, encode(TimerMessage{Type: TypeTimerCreated, Timer: raw}))
}

func (d *Dispatcher) handleUpdateTimer(conn *Connection, accessID string, raw json.RawMessage) {
	timer, ok := decodeTimer(conn, raw)
	if !ok {
		return
	}
	roomID, err := d.app.UpdateTimer(accessID, timer.ID, raw)
	if err != nil {
		d.sendError(conn, err)
		return
	}
	d.cm.Publish(roomID, encode(TimerMessage{Type: TypeTimerUpdate, Timer: raw}))
}

func (d *Dispatcher) handleDeleteTimer(conn *Connection, accessID, id string) {
	roomID, err := d.app.DeleteTimer(accessID, id)
	if err != nil {
		d.sendError(conn, err)
		return
	}
	d.cm.Publish(roomID, encode(TimerDeletedMessage{Type: TypeTimerDeleted, ID: id}))
}

// handleRoomCheck is a pure existence probe: it answers for unknown and
// expired tokens without erroring and without touching room activity.
func (d *Dispatcher) handleRoomCheck(conn *Connection, accessID string) {
	conn.enqueue(encode(RoomValidityMessage{
		Type:  TypeRoomValidity,
		Valid: d.app.CheckRoom(accessID),
	}))
}

func (d *Dispatcher) sendRoomState(conn *Connection, info rooms.RoomInfo) {
	conn.enqueue(encode(RoomInfoMessage{
		Type:         TypeRoomInfo,
		AccessLevel:  info.AccessLevel,
		ViewAccessID: info.ViewToken,
		EditAccessID: info.EditToken, // omitted for view-only tier
	}))
	conn.enqueue(encode(RoomUpdateMessage{Type: TypeRoomUpdate, Timers: info.Timers}))
}

func (d *Dispatcher) sendError(conn *Connection, err error) {
	conn.enqueue(encode(ErrorMessage{Type: TypeError, Message: errorText(err)}))
}

// decodeTimer validates a raw timer payload. An undecodable payload is a
// malformed request: logged and dropped, no reply.
func decodeTimer(conn *Connection, raw json.RawMessage) (rooms.TimerRecord, bool) {
	var timer rooms.TimerRecord
	if len(raw) == 0 {
		log.Warn().Str("connection_id", conn.ID).Msg("dropping timer message without payload")
		return timer, false
	}
	if err := json.Unmarshal(raw, &timer); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("dropping undecodable timer payload")
		return timer, false
	}
	return timer, true
}

// errorText maps core failures to the protocol's human-readable reasons.
func errorText(err error) string {
	switch {
	case errors.Is(err, rooms.ErrInvalidToken):
		return "Invalid access ID"
	case errors.Is(err, rooms.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, rooms.ErrInsufficientAccess):
		return "Insufficient access level"
	case errors.Is(err, rooms.ErrTimerNotFound):
		return "Timer not found"
	case errors.Is(err, rooms.ErrTimerExists):
		return "Timer already exists"
	default:
		return "Internal error"
	}
}
