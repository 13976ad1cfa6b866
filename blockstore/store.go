package blockstore

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/Tankobot/pyble/story"
)

// StoreOptions configure creation time defaults. They have no effect when the
// named file already exists, the authoritative values then come from its
// header.
type StoreOptions struct {
	createSize  uint64
	createLimit uint64
}

type Option func(*StoreOptions)

// WithCreateSize sets the initial slot capacity used when the store file is
// created.
func WithCreateSize(size uint64) Option {
	return func(o *StoreOptions) { o.createSize = size }
}

// WithCreateLimit sets the capacity ceiling used when the store file is
// created.
func WithCreateLimit(limit uint64) Option {
	return func(o *StoreOptions) { o.createLimit = limit }
}

// Store is fast file storage for story nodes.
//
// Methods are safe for concurrent use. bufMu guards the file and is held for
// single seeks/reads/writes only; optMu guards the header fields. Where both
// are required they are acquired optMu first, bufMu second, always.
type Store struct {
	log  logger.Logger
	name string

	optMu  sync.Mutex
	hdr    Header
	closed bool

	bufMu sync.Mutex
	f     *os.File
}

// Open opens the named store file for read/write, creating it if absent. A
// brand new file is initialized immediately: the default header is written
// and the slot region is preallocated, so a subsequent open always finds a
// well formed header. An interrupted resize, detected by a non zero previous
// field, is completed before the store is returned.
func Open(log logger.Logger, name string, opts ...Option) (*Store, error) {
	options := StoreOptions{
		createSize:  DefaultSize,
		createLimit: DefaultLimit,
	}
	for _, o := range opts {
		o(&options)
	}

	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", name, err)
	}

	s := &Store{log: log, name: name, f: f}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening store %s: %w", name, err)
	}

	if fi.Size() == 0 {
		s.hdr = Header{Size: options.createSize, Limit: options.createLimit}
		if err = s.hdr.Check(); err != nil {
			f.Close()
			return nil, err
		}
		if err = s.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		if err = f.Truncate(regionBytes(s.hdr.Size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("preallocating store %s: %w", name, err)
		}
		s.log.Infof("created store %s: size=%d limit=%d", name, s.hdr.Size, s.hdr.Limit)
		return s, nil
	}

	b := make([]byte, HeaderBytes)
	if _, err = f.ReadAt(b, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading store header %s: %w", name, err)
	}
	if err = s.hdr.UnmarshalBinary(b); err != nil {
		f.Close()
		return nil, err
	}
	if err = s.hdr.Check(); err != nil {
		f.Close()
		return nil, fmt.Errorf("store %s: %w", name, err)
	}

	if s.hdr.Previous != 0 {
		if err = s.recoverResize(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

// Stored returns the number of occupied slots.
func (s *Store) Stored() uint64 {
	s.optMu.Lock()
	defer s.optMu.Unlock()
	return s.hdr.Stored
}

// Size returns the current slot capacity.
func (s *Store) Size() uint64 {
	s.optMu.Lock()
	defer s.optMu.Unlock()
	return s.hdr.Size
}

// Limit returns the capacity ceiling.
func (s *Store) Limit() uint64 {
	s.optMu.Lock()
	defer s.optMu.Unlock()
	return s.hdr.Limit
}

// Header returns a snapshot of the header fields.
func (s *Store) Header() Header {
	s.optMu.Lock()
	defer s.optMu.Unlock()
	return s.hdr
}

// SeekBlock positions the file at slot i and returns the offset. Addressing
// is O(1), the offset is computed, never found by scanning.
func (s *Store) SeekBlock(i uint64) (int64, error) {
	off := BlockOffset(i)
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if _, err := s.f.Seek(off, 0); err != nil {
		return 0, err
	}
	return off, nil
}

// ReadBlock returns the raw bytes of slot i.
func (s *Store) ReadBlock(i uint64) ([]byte, error) {
	s.optMu.Lock()
	if s.closed {
		s.optMu.Unlock()
		return nil, ErrStoreClosed
	}
	size := s.hdr.Size
	s.optMu.Unlock()

	if i >= size {
		return nil, fmt.Errorf("slot %d of %d: %w", i, size, ErrBlockOutOfRange)
	}

	b := make([]byte, story.NodeBytes)
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if _, err := s.f.ReadAt(b, BlockOffset(i)); err != nil {
		return nil, fmt.Errorf("reading slot %d: %w", i, err)
	}
	return b, nil
}

// WriteBlock writes the encoded form of n into slot i. It does not change the
// occupancy count; use Append to store new records.
func (s *Store) WriteBlock(i uint64, n *story.Node) error {
	if n == nil {
		return story.ErrNilNode
	}
	b, err := n.MarshalBinary()
	if err != nil {
		return err
	}

	s.optMu.Lock()
	if s.closed {
		s.optMu.Unlock()
		return ErrStoreClosed
	}
	size := s.hdr.Size
	s.optMu.Unlock()

	if i >= size {
		return fmt.Errorf("slot %d of %d: %w", i, size, ErrBlockOutOfRange)
	}
	return s.writeRaw(i, b)
}

// Append stores n in the next free slot and returns its index. The header is
// flushed before Append returns, occupancy on disk never trails a stored
// record.
func (s *Store) Append(n *story.Node) (uint64, error) {
	if n == nil {
		return 0, story.ErrNilNode
	}
	b, err := n.MarshalBinary()
	if err != nil {
		return 0, err
	}

	s.optMu.Lock()
	defer s.optMu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	if s.hdr.Stored >= s.hdr.Size {
		return 0, ErrStoreFull
	}

	i := s.hdr.Stored
	if err = s.writeRaw(i, b); err != nil {
		return 0, err
	}
	s.hdr.Stored++
	if err = s.writeHeader(); err != nil {
		return 0, err
	}
	return i, nil
}

// Identify decodes and verifies slot i, interning the node in reg. The two
// failure shapes a caller must distinguish are reported distinctly:
// ErrBlockEmpty for an untouched slot, ErrBlockCorrupt for one whose bytes do
// not verify.
func (s *Store) Identify(reg *story.Registry, i uint64) (*story.Node, error) {
	b, err := s.ReadBlock(i)
	if err != nil {
		return nil, err
	}
	n, err := IdentifyBlock(reg, b)
	if err != nil {
		return nil, fmt.Errorf("slot %d: %w", i, err)
	}
	return n, nil
}

// IdentifyBlock decodes raw slot bytes into a verified node interned in reg.
func IdentifyBlock(reg *story.Registry, b []byte) (*story.Node, error) {
	if bytes.Equal(b, make([]byte, story.NodeBytes)) {
		return nil, ErrBlockEmpty
	}
	n, err := story.UnmarshalNode(reg, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlockCorrupt, err)
	}
	return n, nil
}

// Close persists the header and releases the file. Both locks are held so no
// read, write or resize can straddle the final flush. Operations after Close
// fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.optMu.Lock()
	defer s.optMu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := s.writeHeader(); err != nil {
		return err
	}

	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	s.closed = true
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("closing store %s: %w", s.name, err)
	}
	return nil
}

// writeRaw writes one encoded record at slot i. The caller has already range
// checked i.
func (s *Store) writeRaw(i uint64, b []byte) error {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if _, err := s.f.WriteAt(b, BlockOffset(i)); err != nil {
		return fmt.Errorf("writing slot %d: %w", i, err)
	}
	return nil
}

// writeHeader flushes the in memory header to the front of the file. optMu
// must be held by the caller.
func (s *Store) writeHeader() error {
	b, err := s.hdr.MarshalBinary()
	if err != nil {
		return err
	}
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if _, err := s.f.WriteAt(b, 0); err != nil {
		return fmt.Errorf("writing store header %s: %w", s.name, err)
	}
	return nil
}
