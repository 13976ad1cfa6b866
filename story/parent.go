package story

// ParentKind discriminates the three states a parent link can be in.
type ParentKind uint8

const (
	// ParentRoot marks a node with no parent. Its contribution to the child
	// sid is the empty byte sequence.
	ParentRoot ParentKind = iota
	// ParentUnresolved is a parent known only by digest. The referenced node
	// is not (or not yet) resident in the registry.
	ParentUnresolved
	// ParentResolved is a parent held as a live node instance.
	ParentResolved
)

// Parent is the tagged variant for a node's parent link:
// Root | Unresolved(Sid) | Resolved(*Node).
//
// The zero value is the root sentinel.
type Parent struct {
	kind ParentKind
	sid  Sid
	node *Node
}

// RootParent returns the "no parent" sentinel.
func RootParent() Parent {
	return Parent{kind: ParentRoot}
}

// UnresolvedParent returns a parent link holding only the digest of the
// referenced node.
func UnresolvedParent(sid Sid) Parent {
	return Parent{kind: ParentUnresolved, sid: sid}
}

// ResolvedParent returns a parent link holding a live node.
func ResolvedParent(node *Node) Parent {
	return Parent{kind: ParentResolved, sid: node.SID(), node: node}
}

func (p Parent) Kind() ParentKind { return p.kind }

// SID returns the digest identifying the parent. It is the zero digest for a
// root sentinel.
func (p Parent) SID() Sid { return p.sid }

// Node returns the resident parent instance, or nil unless the link is
// resolved.
func (p Parent) Node() *Node { return p.node }

// pid returns the identity bytes the parent contributes to a child sid: empty
// for a root, the digest otherwise.
func (p Parent) pid() []byte {
	if p.kind == ParentRoot {
		return nil
	}
	return p.sid[:]
}

// check validates a parent value supplied by a caller. An unresolved link
// carrying the zero digest is rejected because the zero digest is the wire
// sentinel for "no parent".
func (p Parent) check() error {
	switch p.kind {
	case ParentRoot:
		if p.node != nil || !p.sid.IsZero() {
			return ErrParentInvalid
		}
		return nil
	case ParentUnresolved:
		if p.node != nil || p.sid.IsZero() {
			return ErrParentInvalid
		}
		return nil
	case ParentResolved:
		if p.node == nil {
			return ErrParentInvalid
		}
		if p.sid != p.node.SID() {
			return ErrParentInvalid
		}
		return nil
	default:
		return ErrParentInvalid
	}
}
