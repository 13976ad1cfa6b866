package story

// Retrace walks from n toward the root and returns the ordered chain
// [n, parent, grandparent, ...]. The walk is iterative, chains are not
// limited by stack depth.
//
// stop names an ancestor identity at which to cut the walk short; the stop
// ancestor itself is excluded from the result. The zero digest means no stop,
// the walk runs to the deepest resolvable ancestor.
//
// The walk also ends, without including the link, when it reaches a root or
// an ancestor that is known only by digest: an unresolved ancestor cannot be
// walked through until it becomes resident.
func (n *Node) Retrace(stop Sid) []*Node {
	current := n
	chain := []*Node{current}
	for {
		parent := current.Parent()
		switch parent.Kind() {
		case ParentRoot:
			return chain
		case ParentUnresolved:
			// whether or not this is the stop, the chain ends here and the
			// parent is excluded
			return chain
		default:
			if !stop.IsZero() && parent.SID() == stop {
				return chain
			}
			current = parent.Node()
			chain = append(chain, current)
		}
	}
}
