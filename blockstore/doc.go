package blockstore

/*

# Fast file storage for story nodes

A store is a single file laid out as a small fixed header followed by a run
of fixed width slots, one encoded node per slot:

	+----------------------+  32B header (stored, size, limit, previous)
	| Header               |
	+----------------------+  1KiB slots
	| slot 0               |
	+----------------------+
	| slot 1               |
	+----------------------+
	| ...                  |

Because every slot is exactly story.NodeBytes wide, addressing is pure
arithmetic: slot i begins at HeaderBytes + i*story.NodeBytes. Nothing is ever
scanned to reach a slot.

The header carries the occupancy count, the current slot capacity, the
capacity ceiling the store may grow to, and a resize transition marker. The
marker is zero except while a resize is changing the capacity; a non zero
value on open means the previous process died mid resize, and open completes
the transition before handing the store out (the header records both the
capacity being left and the capacity being adopted, so recovery needs nothing
else).

Slots verify themselves: a slot decodes into a node only if the identity
digest embedded in it agrees with the digest recomputed from its content.
Empty slots (all zero) and corrupt slots are reported distinctly; a caller
that conflates them cannot tell truncation from tampering.

Two locks guard the store, one for the underlying file and one for the in
memory header fields, each held for the shortest interval that is correct.
Where both are needed they are taken in a fixed order, header lock first.

*/
