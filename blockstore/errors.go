package blockstore

import "errors"

var (
	ErrStoreClosed     = errors.New("the store has been closed")
	ErrStoreFull       = errors.New("the store has no free slots, resize it before appending")
	ErrBlockOutOfRange = errors.New("the slot index is beyond the store capacity")

	// ErrBlockEmpty reports an all zero slot. It is purposefully distinct
	// from a corrupt slot: an empty slot is expected in a store that has
	// capacity headroom, a corrupt one never is.
	ErrBlockEmpty = errors.New("the slot holds no record")
	// ErrBlockCorrupt reports a slot that holds bytes which do not verify as
	// a node record.
	ErrBlockCorrupt = errors.New("the slot bytes do not verify as a node record")
)

var (
	ErrLimitExceeded     = errors.New("the requested capacity exceeds the store growth limit")
	ErrShrinkBelowStored = errors.New("the requested capacity would discard stored blocks")
	ErrResizeInProgress  = errors.New("a resize is already in progress")
	ErrCollideInvalid    = errors.New("the collide threshold must be at least 2")
)
