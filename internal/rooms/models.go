package rooms

import "time"

// AccessLevel identifies the tier a token grants on its room.
type AccessLevel string

const (
	AccessLevelEdit     AccessLevel = "edit"
	AccessLevelViewOnly AccessLevel = "viewonly"
)

// TimerRecord is the countdown state shared within a room. The server
// stores and republishes these fields verbatim; countdown arithmetic is
// the clients' job.
type TimerRecord struct {
	ID                 string  `json:"id"`
	EndTime            float64 `json:"endTime"`
	TimeRemaining      float64 `json:"timeRemaining"`
	Running            bool    `json:"running"`
	EventName          string  `json:"eventName"`
	Rounds             int     `json:"rounds"`
	RoundTime          float64 `json:"roundTime"`
	HasDraft           bool    `json:"hasDraft"`
	DraftTime          float64 `json:"draftTime"`
	CurrentRoundNumber int     `json:"currentRoundNumber"`
	CurrentRoundLength float64 `json:"currentRoundLength"`
}

// Room is the synchronization scope reachable through one token pair.
// Subscriber membership lives with the transport layer; the room itself
// never holds connection objects.
type Room struct {
	ID           string
	EditToken    string
	ViewToken    string
	Timers       []TimerRecord
	LastActivity time.Time
}

// RoomInfo is the view of a room handed back to a subscriber. The edit
// token is disclosed only to edit-tier callers.
type RoomInfo struct {
	RoomID      string
	AccessLevel AccessLevel
	ViewToken   string
	EditToken   string // empty for view-only access
	Timers      []TimerRecord
}
