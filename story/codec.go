package story

import (
	"bytes"
	"fmt"
	"strings"
)

// MarshalBinary packs the node into its fixed width wire form:
//
//	| parent id [64] | story, null padded [896] | sid [64] |
//
// A root node packs the zero digest into the parent field. The encoding is
// computed once and cached, subsequent calls return a copy of the cached
// bytes.
func (n *Node) MarshalBinary() ([]byte, error) {
	n.encOnce.Do(func() {
		b := make([]byte, NodeBytes)
		copy(b[PIDFirstByte:PIDEnd], n.PID())
		copy(b[StoryFirstByte:StoryEnd], n.story)
		sid := n.SID()
		copy(b[SIDFirstByte:SIDEnd], sid[:])
		n.enc = b
	})
	out := make([]byte, NodeBytes)
	copy(out, n.enc)
	return out, nil
}

// VerifyRecord checks a wire record without constructing or registering a
// node: the sid is recomputed from the parent identity and story fields and
// compared against the embedded sid. On success the verified identity is
// returned. The store's compaction path uses this to classify slots without
// touching any registry.
func VerifyRecord(b []byte) (Sid, error) {
	if len(b) != NodeBytes {
		return Sid{}, fmt.Errorf("%w: got %d", ErrNodeDataLength, len(b))
	}
	content := strings.TrimRight(string(b[StoryFirstByte:StoryEnd]), "\x00")
	if err := checkStory(content); err != nil {
		return Sid{}, err
	}
	pid := b[PIDFirstByte:PIDEnd]
	if bytes.Equal(pid, make([]byte, DigestBytes)) {
		pid = nil
	}
	var embedded Sid
	copy(embedded[:], b[SIDFirstByte:SIDEnd])
	if sidHash(pid, content) != embedded {
		return Sid{}, fmt.Errorf("record %x: %w", embedded[:4], ErrSidMismatch)
	}
	return embedded, nil
}

// UnmarshalNode decodes a wire record, verifies it, and interns the resulting
// node in reg. The record is self verifying: the sid is recomputed from the
// decoded parent identity and story and compared against the embedded sid
// before anything is registered. A disagreement fails with ErrSidMismatch,
// which guards against both corruption and tampering.
//
// An all zero parent field decodes as "no parent". A non zero parent field
// decodes as an unresolved link; it heals to the live parent through the
// registry whenever that parent is, or becomes, resident.
//
// The caller owns the returned handle.
func UnmarshalNode(reg *Registry, b []byte) (*Node, error) {
	if _, err := VerifyRecord(b); err != nil {
		return nil, fmt.Errorf("unmarshal node: %w", err)
	}

	content := strings.TrimRight(string(b[StoryFirstByte:StoryEnd]), "\x00")
	parent := RootParent()
	if !bytes.Equal(b[PIDFirstByte:PIDEnd], make([]byte, DigestBytes)) {
		var psid Sid
		copy(psid[:], b[PIDFirstByte:PIDEnd])
		parent = UnresolvedParent(psid)
	}
	return reg.New(content, parent)
}
