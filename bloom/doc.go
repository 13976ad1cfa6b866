package bloom

/*

# Bloom primitives for sid prefiltering (in-place)

This package provides primitive building blocks for a Bloom filter over
64-byte node identities. The block store uses it during compaction as a cheap
prefilter for duplicate detection: most slots are unique, and the filter lets
the scan skip the exact set lookup for them.

It mirrors the style of the rest of the repo:

- small, composable functions
- explicit byte layouts
- index arithmetic on byte slices
- a burden of knowledge on the caller for hot paths

## What Bloom filters are (and are not)

- If the filter says "definitely not present", then the element is not present.
- If the filter says "maybe present", then the element may or may not be
  present (false positives are possible).

Bloom filters are NOT cryptographic commitments. They are only an I/O and CPU
optimization; every "maybe" answer must be confirmed against the real data.

## Region layout

	+----------------------+  16B header (magic, version, params)
	| HeaderV1             |
	+----------------------+  bitset bytes
	| bitset               |
	+----------------------+

We use deterministic double hashing (SHA-256 of a domain byte and the
element) and LSB0 bit numbering.

## API versioning

Functions are suffixed with the format version they implement (`InitV1`,
`InsertV1`, `MaybeContainsV1`). Incompatible changes to the header layout or
the hashing scheme are introduced side by side as `V2` rather than silently
changing the meaning of persisted or exchanged regions.

*/
