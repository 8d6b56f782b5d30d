package apperror

import "errors"

// Sentinels used by the POS agent. These are plain errors, matched with
// errors.Is; they never cross the wire.
var (
	// ErrSnapshotMissing means a sale line references an item the local
	// reference cache does not hold an active snapshot for.
	ErrSnapshotMissing = errors.New("reference snapshot missing")

	// ErrInvalidTransition means a sale was not in the state the requested
	// lifecycle transition needs.
	ErrInvalidTransition = errors.New("invalid sale state transition")

	// ErrNotLeader means this drainer instance does not hold the lease.
	ErrNotLeader = errors.New("not the drain leader")

	// ErrStaleAttempt means a delivery outcome arrived for a superseded
	// attempt and was discarded.
	ErrStaleAttempt = errors.New("stale delivery attempt")
)
