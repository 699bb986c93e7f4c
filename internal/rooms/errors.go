package rooms

import "errors"

// Failure taxonomy for token-gated operations. The gateway maps these to
// protocol error replies; none of them is fatal to the process.
var (
	// ErrInvalidToken means the access token is unknown to the registry.
	ErrInvalidToken = errors.New("invalid access ID")

	// ErrRoomNotFound means a known token points at a missing room. The
	// registries are kept in lockstep, so this is a defensive case only.
	ErrRoomNotFound = errors.New("room not found")

	// ErrInsufficientAccess means a view-only token was used for an
	// edit-tier operation.
	ErrInsufficientAccess = errors.New("insufficient access level")

	// ErrTimerNotFound means an update or delete referenced an unknown
	// timer id.
	ErrTimerNotFound = errors.New("timer not found")

	// ErrTimerExists means a create reused an id already present in the
	// room's timer set.
	ErrTimerExists = errors.New("timer already exists")
)
