package story

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sync"
)

// Node is one record in the tree. A node is immutable once constructed; the
// sid and encoded form fields are lazily computed caches of pure functions of
// the construction arguments, published at most once.
type Node struct {
	reg    *Registry
	story  string
	parent Parent

	sidOnce sync.Once
	sid     Sid

	encOnce sync.Once
	enc     []byte
}

// Story returns the content payload.
func (n *Node) Story() string {
	return n.story
}

// SID returns the self identity of the node:
//
//	sid = SHA512(pid || story)
//
// The digest is computed on first use and cached for the life of the node.
// The node content is immutable so the cached value can never go stale.
func (n *Node) SID() Sid {
	n.sidOnce.Do(func() {
		n.sid = sidHash(n.PID(), n.story)
	})
	return n.sid
}

// PID returns the identity bytes contributed by the parent: nil for a root,
// the parent digest otherwise. Promotion of an unresolved parent never changes
// the pid, the digest and the resident node it names are the same identity.
func (n *Node) PID() []byte {
	return n.parent.pid()
}

// Parent returns the parent link. An unresolved link is transparently
// promoted when a node with that identity has become resident in the
// registry, otherwise the bare digest link is returned unchanged.
func (n *Node) Parent() Parent {
	return n.parent.Resolve(n.reg)
}

// Branch creates, registers and returns a new child of n. It is the only
// operation that grows the tree and it never mutates n. The caller owns the
// returned handle and must Release it when done with it.
func (n *Node) Branch(story string) (*Node, error) {
	return n.reg.New(story, ResolvedParent(n))
}

// Children returns a snapshot of the currently resident children of n.
func (n *Node) Children() []*Node {
	return n.reg.Children(n)
}

// Equal reports structural equality: both parent identities and both stories
// match. The comparison is purposefully not in terms of the cached sids, the
// sid is defined by these fields so comparing them directly would be
// circular.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return bytes.Equal(n.PID(), other.PID()) && n.story == other.story
}

// Matches reports identity equality between the node and a raw digest.
func (n *Node) Matches(sid Sid) bool {
	return n.SID() == sid
}

// String renders the node with the leading digits of its identity.
func (n *Node) String() string {
	sid := n.SID()
	return fmt.Sprintf("<Node : %s>", hex.EncodeToString(sid[:4]))
}

// Resolve returns the promoted form of the link: an unresolved digest becomes
// a resolved link when a node with that identity is resident in reg. The
// operation is idempotent and never fails, when the digest cannot be resolved
// the link is returned unchanged.
func (p Parent) Resolve(reg *Registry) Parent {
	if p.kind != ParentUnresolved || reg == nil {
		return p
	}
	if live, ok := reg.Resolve(p.sid); ok {
		return ResolvedParent(live)
	}
	return p
}
