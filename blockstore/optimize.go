package blockstore

import (
	"github.com/Tankobot/pyble/bloom"
	"github.com/Tankobot/pyble/story"
)

// bloomBitsPerElem sizes the duplicate prefilter used by Optimize. 10 bits
// per element with 7 probes keeps the false positive rate under about 1%.
const (
	bloomBitsPerElem = 10
	bloomProbes      = 7
)

// Optimize compacts the slot region in place: empty gaps, slots that fail
// verification, and colliding copies of the same identity are removed, with
// every surviving block moved down to the lowest free slot. Slot order among
// survivors is preserved, so a store populated by Append stays in append
// order. Freed slots at the tail are zeroed and the occupancy count is
// flushed.
//
// collide is the copy count at which an identity is considered colliding: at
// collide copies and beyond, the extras are dropped and only the first
// collide-1 survive. The useful default is 2, meaning the second copy of any
// identity is already a collision. Values below 2 are rejected, a threshold
// of 1 would empty the store.
//
// The scan is two passes. The first builds a bloom prefilter over every
// verified identity; only identities the filter has seen before (a set that
// is small for healthy stores: true duplicates plus the filter's false
// positives) get exact counters. The second pass moves the survivors. The
// header lock is held throughout, appends cannot interleave with compaction.
func (s *Store) Optimize(collide int) error {
	if collide < 2 {
		return ErrCollideInvalid
	}

	s.optMu.Lock()
	defer s.optMu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	stored := s.hdr.Stored
	if stored == 0 {
		return nil
	}

	region := make([]byte, bloom.RegionBytesV1(bloom.MBitsSafeCast(bloom.MBitsV1(stored, bloomBitsPerElem))))
	if err := bloom.InitV1(region, stored, bloomBitsPerElem, bloomProbes); err != nil {
		return err
	}

	// pass 1: find the identities that need exact counting
	suspects := map[story.Sid]int{}
	for i := uint64(0); i < stored; i++ {
		b, err := s.readRaw(i)
		if err != nil {
			return err
		}
		sid, err := story.VerifyRecord(b)
		if err != nil {
			continue // classified in pass 2
		}
		maybe, err := bloom.MaybeContainsV1(region, sid[:])
		if err != nil {
			return err
		}
		if maybe {
			suspects[sid] = 0
			continue
		}
		if err = bloom.InsertV1(region, sid[:]); err != nil {
			return err
		}
	}

	// pass 2: compact the survivors down
	w := uint64(0)
	dropped := 0
	for i := uint64(0); i < stored; i++ {
		b, err := s.readRaw(i)
		if err != nil {
			return err
		}
		if allZero(b) {
			continue
		}
		sid, err := story.VerifyRecord(b)
		if err != nil {
			s.log.Infof("store %s: dropping corrupt slot %d: %v", s.name, i, err)
			dropped++
			continue
		}
		if n, suspect := suspects[sid]; suspect {
			if n+1 >= collide {
				dropped++
				continue
			}
			suspects[sid] = n + 1
		}
		if w != i {
			if err = s.writeRaw(w, b); err != nil {
				return err
			}
		}
		w++
	}

	// zero the freed tail so the slots read back as empty, not stale
	zero := make([]byte, story.NodeBytes)
	for i := w; i < stored; i++ {
		if err := s.writeRaw(i, zero); err != nil {
			return err
		}
	}

	if w != stored {
		s.log.Infof("store %s: optimize compacted %d -> %d (%d dropped)", s.name, stored, w, dropped)
	}
	s.hdr.Stored = w
	return s.writeHeader()
}

// readRaw reads one slot without the range checks ReadBlock applies, for use
// by paths that already hold optMu.
func (s *Store) readRaw(i uint64) ([]byte, error) {
	b := make([]byte, story.NodeBytes)
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if _, err := s.f.ReadAt(b, BlockOffset(i)); err != nil {
		return nil, err
	}
	return b, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
