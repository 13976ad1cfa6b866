package blockstore

import (
	"fmt"

	"github.com/Tankobot/pyble/story"
)

// resizeChunkSlots bounds how much file growth happens per file operation
// during a progressive resize, so readers are not starved of the file lock by
// one enormous truncate.
const resizeChunkSlots = 1024

// Resize changes the slot capacity of the store, growing or shrinking the
// slot region on disk. Growth is capped by the header limit; shrinking below
// the current occupancy is refused, a resize never loses stored blocks.
//
// The transition is crash safe: before the file changes, the header is
// flushed with size already naming the target capacity and previous naming
// the capacity being left. A process dying anywhere after that point leaves
// enough information for Open to finish the job. Once the slot region covers
// the target, previous is cleared and the header flushed again, completing
// the transition.
//
// When progressive is set, growth happens in bounded chunks with the file
// lock released between chunks, trading total elapsed time for shorter
// blocking of concurrent readers.
//
// The header lock is not held while the slot region grows. Readers and
// appends proceed against the already persisted header, and a competing
// resize is turned away by the non zero previous marker until the transition
// completes.
func (s *Store) Resize(size uint64, progressive bool) error {
	s.optMu.Lock()

	if s.closed {
		s.optMu.Unlock()
		return ErrStoreClosed
	}
	if s.hdr.Previous != 0 {
		s.optMu.Unlock()
		return ErrResizeInProgress
	}
	if size > s.hdr.Limit {
		s.optMu.Unlock()
		return fmt.Errorf("%d > %d: %w", size, s.hdr.Limit, ErrLimitExceeded)
	}
	if size < s.hdr.Stored {
		s.optMu.Unlock()
		return fmt.Errorf("%d < %d: %w", size, s.hdr.Stored, ErrShrinkBelowStored)
	}
	if size == s.hdr.Size {
		s.optMu.Unlock()
		return nil
	}

	previous := s.hdr.Size
	s.hdr.Previous = previous
	s.hdr.Size = size
	if err := s.writeHeader(); err != nil {
		s.optMu.Unlock()
		return err
	}
	s.log.Infof("store %s: resizing %d -> %d", s.name, previous, size)
	s.optMu.Unlock()

	if err := s.growRegion(regionBytes(previous), regionBytes(size), progressive); err != nil {
		// previous is left in place on purpose, reopening recovers
		return err
	}

	s.optMu.Lock()
	defer s.optMu.Unlock()
	s.hdr.Previous = 0
	return s.writeHeader()
}

// growRegion moves the file length from have to want. Shrinks are a single
// truncate; grows are optionally chunked.
func (s *Store) growRegion(have, want int64, progressive bool) error {
	if want <= have {
		return s.truncate(want)
	}
	if !progressive {
		return s.truncate(want)
	}
	for have < want {
		next := have + resizeChunkSlots*int64(story.NodeBytes)
		if next > want {
			next = want
		}
		if err := s.truncate(next); err != nil {
			return err
		}
		have = next
	}
	return nil
}

func (s *Store) truncate(length int64) error {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if err := s.f.Truncate(length); err != nil {
		return fmt.Errorf("resizing store %s: %w", s.name, err)
	}
	return nil
}

// recoverResize completes an interrupted resize found at open time. The
// header already names both capacities: size is the target, previous the
// origin. Completion is simply making the slot region cover the target and
// clearing the marker; this is idempotent so repeated crashes during
// recovery are fine.
func (s *Store) recoverResize() error {
	fi, err := s.f.Stat()
	if err != nil {
		return err
	}
	target := regionBytes(s.hdr.Size)
	if fi.Size() != target {
		if err := s.truncate(target); err != nil {
			return err
		}
	}
	s.log.Infof("store %s: completed interrupted resize %d -> %d", s.name, s.hdr.Previous, s.hdr.Size)
	s.hdr.Previous = 0
	return s.writeHeader()
}
