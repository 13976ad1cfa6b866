package blockstore

import (
	"encoding/binary"
	"errors"

	"github.com/Tankobot/pyble/story"
)

const (
	// Header layout
	//
	// .     | stored | size | limit | previous |
	// bytes |   8    |  8   |   8   |    8     |
	//
	// All fields are big endian uint64. previous is zero except while a
	// resize is in flight, when it holds the capacity being transitioned
	// away from.

	HeaderBytes = 32

	StoredFirstByte   = 0
	StoredEnd         = StoredFirstByte + 8
	SizeFirstByte     = StoredEnd
	SizeEnd           = SizeFirstByte + 8
	LimitFirstByte    = SizeEnd
	LimitEnd          = LimitFirstByte + 8
	PreviousFirstByte = LimitEnd
	PreviousEnd       = PreviousFirstByte + 8

	// DefaultSize is the slot capacity a brand new store is created with.
	DefaultSize = 16
	// DefaultLimit caps growth at 1Gi of slot data for a new store.
	DefaultLimit = 1 << 20
)

var (
	ErrHeaderShort   = errors.New("to few bytes to represent a store header")
	ErrHeaderInvalid = errors.New("the store header fields are inconsistent")
)

// Header is the bookkeeping record at the front of every store file. It is
// loaded once on open, mutated in memory under the header lock, and flushed
// back to offset zero on every structural change and on close.
type Header struct {
	Stored   uint64
	Size     uint64
	Limit    uint64
	Previous uint64
}

// NewHeader returns the header a freshly created store starts from.
func NewHeader() Header {
	return Header{Size: DefaultSize, Limit: DefaultLimit}
}

func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderBytes)
	binary.BigEndian.PutUint64(b[StoredFirstByte:StoredEnd], h.Stored)
	binary.BigEndian.PutUint64(b[SizeFirstByte:SizeEnd], h.Size)
	binary.BigEndian.PutUint64(b[LimitFirstByte:LimitEnd], h.Limit)
	binary.BigEndian.PutUint64(b[PreviousFirstByte:PreviousEnd], h.Previous)
	return b, nil
}

func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderBytes {
		return ErrHeaderShort
	}
	h.Stored = binary.BigEndian.Uint64(b[StoredFirstByte:StoredEnd])
	h.Size = binary.BigEndian.Uint64(b[SizeFirstByte:SizeEnd])
	h.Limit = binary.BigEndian.Uint64(b[LimitFirstByte:LimitEnd])
	h.Previous = binary.BigEndian.Uint64(b[PreviousFirstByte:PreviousEnd])
	return nil
}

// Check applies the invariants every at-rest header satisfies: occupancy
// never exceeds capacity, capacity never exceeds the growth limit, and a
// resize marker, when present, names a capacity on the other side of the
// current one.
func (h Header) Check() error {
	if h.Size == 0 || h.Size > h.Limit {
		return ErrHeaderInvalid
	}
	if h.Stored > h.Size {
		return ErrHeaderInvalid
	}
	if h.Previous != 0 && h.Previous > h.Limit {
		return ErrHeaderInvalid
	}
	return nil
}

// BlockOffset returns the file offset of slot i:
//
//	HeaderBytes + i*story.NodeBytes
func BlockOffset(i uint64) int64 {
	return int64(HeaderBytes + i*story.NodeBytes)
}

// regionBytes returns the file length covering the header and size slots.
func regionBytes(size uint64) int64 {
	return BlockOffset(size)
}
