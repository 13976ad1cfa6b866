package story

/*

# Story node primitives

This package defines the node entity for an append-only tree of content
records. A node carries a short content payload (its "story") and a link to
its parent. The identity of a node is a SHA-512 digest over its parent's
identity bytes and its own story, so any change to any ancestor's content
changes the identity of every descendant. Given a chain of nodes, anyone can
re-verify the provenance of the head without trusting an index.

It follows the same "explicit byte layout" style as the rest of this repo:

- fixed width records, offsets derived from a single const block
- a self-verifying wire form; decode recomputes the embedded identity
- no recursion on chain walks, chains can be arbitrarily long

## Identity

	sid = SHA512(pid || story)

where pid is empty for a root node, the raw digest for an unresolved parent,
and the parent's own sid when the parent is resident. Two nodes with the same
pid and story are the same logical entity regardless of how many in-memory
instances exist.

## The registry

Node instances are interned in a Registry. The registry deduplicates nodes by
identity and tracks the children of each node. Membership is reference
counted: the registry itself never keeps a node alive, only handles returned
to callers (and a child's link to its resolved parent) do. Release returns a
handle; when the last handle for a node is released its registry entries are
dropped together.

The registry also heals links: a node holding only its parent's digest will
transparently resolve to the live parent instance once that parent becomes
resident, which is what makes loading a store out of order workable.

*/
