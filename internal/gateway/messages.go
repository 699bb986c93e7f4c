package gateway

import (
	"encoding/json"

	"github.com/roundtimer/roundtimer/internal/rooms"
	"github.com/rs/zerolog/log"
)

// MessageType discriminates the tagged message union on both directions
// of the wire.
type MessageType string

// Client message types.
const (
	TypeCreateRoom  MessageType = "createRoom"
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypeGetRoomInfo MessageType = "getRoomInfo"
	TypeCreateTimer MessageType = "createTimer"
	TypeUpdateTimer MessageType = "updateTimer"
	TypeDeleteTimer MessageType = "deleteTimer"
	TypeRoomCheck   MessageType = "roomCheck"
)

// Server message types.
const (
	TypeRoomInfo           MessageType = "roomInfo"
	TypeRoomUpdate         MessageType = "roomUpdate"
	TypeTimerCreated       MessageType = "timerCreated"
	TypeTimerUpdate        MessageType = "timerUpdate"
	TypeTimerDeleted       MessageType = "timerDeleted"
	TypeUnsubscribeSuccess MessageType = "unsubscribeSuccess"
	TypeRoomValidity       MessageType = "roomValidity"
	TypeError              MessageType = "error"
)

// ClientMessage is the decoded envelope of an inbound request. The timer
// payload stays raw so updateTimer merges exactly the fields the client
// sent and broadcasts carry the record verbatim.
type ClientMessage struct {
	Type     MessageType     `json:"type"`
	AccessID string          `json:"accessId,omitempty"`
	Timer    json.RawMessage `json:"timer,omitempty"`
	ID       string          `json:"id,omitempty"`
}

// RoomInfoMessage tells a subscriber which tier it holds. The edit token
// is only present for edit-tier subscribers.
type RoomInfoMessage struct {
	Type         MessageType       `json:"type"`
	AccessLevel  rooms.AccessLevel `json:"accessLevel"`
	ViewAccessID string            `json:"viewAccessId"`
	EditAccessID string            `json:"editAccessId,omitempty"`
}

// RoomUpdateMessage carries the room's full timer set.
type RoomUpdateMessage struct {
	Type   MessageType         `json:"type"`
	Timers []rooms.TimerRecord `json:"timers"`
}

// TimerMessage carries a single timer record for timerCreated and
// timerUpdate broadcasts.
type TimerMessage struct {
	Type  MessageType     `json:"type"`
	Timer json.RawMessage `json:"timer"`
}

// TimerDeletedMessage announces the removal of a timer by id.
type TimerDeletedMessage struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id"`
}

// RoomValidityMessage answers a roomCheck existence probe.
type RoomValidityMessage struct {
	Type  MessageType `json:"type"`
	Valid bool        `json:"valid"`
}

// ErrorMessage surfaces an access or validation failure to the requester.
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// AckMessage is a bare typed acknowledgement (unsubscribeSuccess).
type AckMessage struct {
	Type MessageType `json:"type"`
}

// encode marshals an outbound message. All outbound types marshal
// cleanly; a failure here is a programming error worth a log line, not a
// reason to tear anything down.
func encode(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal outbound message")
		return nil
	}
	return payload
}
