package story

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
)

const (
	// DigestBytes is the width of every identity in the tree. It is fixed by
	// the choice of SHA-512 and the wire format depends on it: a record is
	// always exactly NodeBytes wide, which keeps store addressing a pure
	// multiplication.
	DigestBytes = sha512.Size

	// StoryBytes is the maximum story payload. The value is chosen so that a
	// full record packs to exactly 1KiB.
	StoryBytes = DigestBytes * (1<<4 - 2)

	// NodeBytes is the width of one encoded node record.
	NodeBytes = DigestBytes + StoryBytes + DigestBytes

	// Node record layout
	//
	// .     | parent id | story, null padded | self id |
	// bytes |    64     |        896         |   64    |

	PIDFirstByte   = 0
	PIDEnd         = PIDFirstByte + DigestBytes
	StoryFirstByte = PIDEnd
	StoryEnd       = StoryFirstByte + StoryBytes
	SIDFirstByte   = StoryEnd
	SIDEnd         = SIDFirstByte + DigestBytes
)

var (
	ErrStoryTooLong   = errors.New("story exceeds the maximum story payload")
	ErrStoryNullByte  = errors.New("story contains a null byte, null is reserved for wire padding")
	ErrParentInvalid  = errors.New("parent is not a root sentinel, a resident node, or a digest")
	ErrNodeDataLength = errors.New("to few or to many bytes to represent a node record")
	ErrSidMismatch    = errors.New("embedded sid does not match the sid recomputed from the record content")
	ErrNilNode        = errors.New("nil node")
)

// ErrRegistryDiverged indicates the identity map and the children map disagree
// on membership for the same node. This is a broken invariant in the engine,
// not a data problem, and is never repaired in place.
var ErrRegistryDiverged = errors.New("registry identity and children maps diverged")

// Sid is a node identity digest. It is comparable, so it serves directly as a
// map key with the same semantics as the node's cryptographic fingerprint.
type Sid [DigestBytes]byte

// IsZero reports whether s is the all zero digest. The zero digest is the wire
// sentinel for "no parent" and is never a valid identity.
func (s Sid) IsZero() bool {
	return s == Sid{}
}

// String renders the digest as lowercase hex.
func (s Sid) String() string {
	return hex.EncodeToString(s[:])
}

// sidHash computes the identity digest for a (pid, story) pair. pid is empty
// for a root.
func sidHash(pid []byte, story string) Sid {
	h := sha512.New()
	h.Write(pid)
	h.Write([]byte(story))
	var sid Sid
	copy(sid[:], h.Sum(nil))
	return sid
}

// checkStory applies the construction rules for story content: at most
// StoryBytes bytes and no null bytes, because null is the padding sentinel in
// the wire form.
func checkStory(story string) error {
	if len(story) > StoryBytes {
		return ErrStoryTooLong
	}
	for i := 0; i < len(story); i++ {
		if story[i] == 0 {
			return ErrStoryNullByte
		}
	}
	return nil
}
