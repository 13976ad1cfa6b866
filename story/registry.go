package story

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotRegistered = errors.New("the node is not registered")
)

// entry is the registry record for one resident node. refs counts the
// external owners of the node: handles returned to callers and, when
// ownsParent is set on a child, the child's link to its parent. The registry
// maps themselves never count as owners.
type entry struct {
	node *Node
	refs int
	// ownsParent records that this node was registered with a resolved
	// parent, so releasing the last reference to it also releases its share
	// of the parent.
	ownsParent bool
}

// Registry interns nodes by identity and tracks parent to child
// relationships. It is an explicit object rather than ambient process state
// so that independent trees, and tests, get independent registries.
//
// Invariant: a sid is a key of nodes iff it is a key of children. The two
// maps are only ever mutated together under mu; observing a divergence means
// the engine itself is broken and the operation fails with
// ErrRegistryDiverged rather than repairing anything.
//
// All methods are safe for concurrent use. Branch calls from different
// goroutines race on the same parent's child set and on the identity map, so
// the locking here is required, not optional.
type Registry struct {
	mu       sync.RWMutex
	nodes    map[Sid]*entry
	children map[Sid]map[Sid]*Node
	// pending holds child edges keyed by a parent digest that is not (or no
	// longer) resident. When a node with that identity is interned the edges
	// move into children, so a store loaded out of order ends up with the
	// same child sets as one loaded in order. pending keys are disjoint from
	// the nodes/children keys and are not subject to the membership
	// invariant.
	pending map[Sid]map[Sid]*Node
}

func NewRegistry() *Registry {
	return &Registry{
		nodes:    map[Sid]*entry{},
		children: map[Sid]map[Sid]*Node{},
		pending:  map[Sid]map[Sid]*Node{},
	}
}

// NewRoot constructs and registers a parentless node.
func (r *Registry) NewRoot(story string) (*Node, error) {
	return r.New(story, RootParent())
}

// New constructs and registers a node. If a node with the same parent
// identity and story is already resident the canonical instance is returned
// and the new handle counts against it; otherwise a fresh instance is
// interned. Either way the caller owns exactly one handle and must Release
// it.
//
// The parent, when resolved and not already resident, is registered too, as
// an owner-less entry kept alive by the child's link.
func (r *Registry) New(story string, parent Parent) (*Node, error) {
	if err := checkStory(story); err != nil {
		return nil, err
	}
	if err := parent.check(); err != nil {
		return nil, err
	}

	sid := sidHash(parent.pid(), story)

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.nodes[sid]; ok {
		if _, ok := r.children[sid]; !ok {
			return nil, fmt.Errorf("interning %s: %w", story, ErrRegistryDiverged)
		}
		e.refs++
		return e.node, nil
	}
	if _, ok := r.children[sid]; ok {
		return nil, fmt.Errorf("interning %s: %w", story, ErrRegistryDiverged)
	}

	n := &Node{reg: r, story: story, parent: parent}

	if parent.Kind() == ParentResolved {
		if err := r.adoptParentLocked(parent); err != nil {
			return nil, err
		}
	}

	r.internLocked(sid, &entry{
		node:       n,
		refs:       1,
		ownsParent: parent.Kind() == ParentResolved,
	})
	// the back link goes against the resident parent when there is one, and
	// is parked under the bare digest otherwise; a parent known just by
	// digest gains no identity entry of its own
	if parent.Kind() != ParentRoot {
		psid := parent.SID()
		if set, ok := r.children[psid]; ok {
			set[sid] = n
		} else {
			if r.pending[psid] == nil {
				r.pending[psid] = map[Sid]*Node{}
			}
			r.pending[psid][sid] = n
		}
	}
	return n, nil
}

// internLocked records the identity and child set entries for sid together,
// and adopts any child edges that were parked before sid became resident.
func (r *Registry) internLocked(sid Sid, e *entry) {
	r.nodes[sid] = e
	set, ok := r.pending[sid]
	if !ok {
		set = map[Sid]*Node{}
	}
	delete(r.pending, sid)
	r.children[sid] = set
}

// adoptParentLocked registers the resolved parent if it is not already
// resident, and in either case adds the child's owning share to it. The
// membership invariant is checked across both maps before any mutation.
func (r *Registry) adoptParentLocked(parent Parent) error {
	psid := parent.SID()
	pe, inNodes := r.nodes[psid]
	_, inChildren := r.children[psid]
	if inNodes != inChildren {
		return fmt.Errorf("adopting parent %x: %w", psid[:4], ErrRegistryDiverged)
	}
	if !inNodes {
		// ownsParent is left false: no share of the grandparent is taken
		// here, so none may be released when this entry is evicted.
		pe = &entry{node: parent.Node()}
		r.internLocked(psid, pe)
	}
	pe.refs++
	return nil
}

// Resolve returns the resident node with the given identity, if any. The
// returned instance is not a new handle; callers that need to keep it alive
// must hold a handle of their own.
func (r *Registry) Resolve(sid Sid) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.nodes[sid]
	if !ok {
		return nil, false
	}
	return e.node, true
}

// Children returns a snapshot of the resident children of n.
func (r *Registry) Children(n *Node) []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.children[n.SID()]
	out := make([]*Node, 0, len(set))
	for _, child := range set {
		out = append(out, child)
	}
	return out
}

// Resident returns the number of interned nodes.
func (r *Registry) Resident() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Release gives up one handle on n. When the last owner of a node is gone its
// identity entry and its child set are dropped together, and the node's own
// share of its parent, if it held one, is released in turn. The cascade is
// iterative, chains can be arbitrarily long.
func (r *Registry) Release(n *Node) error {
	if n == nil {
		return ErrNilNode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := n
	for cur != nil {
		sid := cur.SID()
		e, inNodes := r.nodes[sid]
		_, inChildren := r.children[sid]
		if inNodes != inChildren {
			return fmt.Errorf("releasing %x: %w", sid[:4], ErrRegistryDiverged)
		}
		if !inNodes {
			return fmt.Errorf("releasing %x: %w", sid[:4], ErrNotRegistered)
		}

		e.refs--
		if e.refs > 0 {
			return nil
		}

		delete(r.nodes, sid)
		// surviving edges can only come from digest linked children, a child
		// holding a resolved link owns a share and would have kept refs
		// above zero. Park them so a re-interned node gets its children
		// back.
		if set := r.children[sid]; len(set) > 0 {
			r.pending[sid] = set
		}
		delete(r.children, sid)
		// drop the weak back link from the parent's child set, parked or not
		if cur.parent.Kind() != ParentRoot {
			psid := cur.parent.SID()
			if set, ok := r.children[psid]; ok {
				delete(set, sid)
			} else if set, ok := r.pending[psid]; ok {
				delete(set, sid)
				if len(set) == 0 {
					delete(r.pending, psid)
				}
			}
		}

		if !e.ownsParent {
			return nil
		}
		cur = cur.parent.Node()
	}
	return nil
}
