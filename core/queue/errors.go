package queue

import "errors"

var (
	// ErrAlreadyQueued is returned by Import when the item's hash is already
	// present in the processing map (still unverified, verifying, or
	// verified but not yet drained and marked good/bad).
	ErrAlreadyQueued = errors.New("block already in the queue")
	// ErrKnownBad is returned by Import when the item itself, or its parent,
	// is in the bad set.
	ErrKnownBad = errors.New("block known to be bad")
)
