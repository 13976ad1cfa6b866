package blockstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tankobot/pyble/story"
)

func testLog(t *testing.T) logger.Logger {
	t.Helper()
	logger.New("NOOP")
	return logger.Sugar.WithServiceName("blockstore")
}

func testStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.pyb")
}

func TestOpenCreatesInitializedFile(t *testing.T) {
	name := testStorePath(t)
	s, err := Open(testLog(t), name)
	require.NoError(t, err)

	h := s.Header()
	assert.Equal(t, uint64(0), h.Stored)
	assert.Equal(t, uint64(DefaultSize), h.Size)
	assert.Equal(t, uint64(DefaultLimit), h.Limit)
	assert.Equal(t, uint64(0), h.Previous)

	// the slot region is preallocated and the header is already on disk
	fi, err := os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, regionBytes(DefaultSize), fi.Size())

	require.NoError(t, s.Close())

	// reopening an initialized empty store finds the same header
	s, err = Open(testLog(t), name)
	require.NoError(t, err)
	assert.Equal(t, h, s.Header())
	require.NoError(t, s.Close())
}

func TestOpenCreateOptions(t *testing.T) {
	s, err := Open(testLog(t), testStorePath(t), WithCreateSize(4), WithCreateLimit(8))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, uint64(4), s.Size())
	assert.Equal(t, uint64(8), s.Limit())
}

func TestAppendIdentifyRoundTrip(t *testing.T) {
	reg := story.NewRegistry()
	s, err := Open(testLog(t), testStorePath(t))
	require.NoError(t, err)
	defer s.Close()

	root, err := reg.NewRoot("genesis")
	require.NoError(t, err)
	child, err := root.Branch("first entry")
	require.NoError(t, err)

	i, err := s.Append(root)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), i)
	i, err = s.Append(child)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), i)
	assert.Equal(t, uint64(2), s.Stored())

	// read back through a fresh registry, as a different process would
	fresh := story.NewRegistry()
	got0, err := s.Identify(fresh, 0)
	require.NoError(t, err)
	got1, err := s.Identify(fresh, 1)
	require.NoError(t, err)

	assert.True(t, root.Equal(got0))
	assert.True(t, child.Equal(got1))
	// lineage heals inside the fresh registry
	assert.Same(t, got0, got1.Parent().Node())
}

func TestAppendPersistsOccupancy(t *testing.T) {
	name := testStorePath(t)
	reg := story.NewRegistry()

	s, err := Open(testLog(t), name)
	require.NoError(t, err)
	n, err := reg.NewRoot("durable")
	require.NoError(t, err)
	_, err = s.Append(n)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(testLog(t), name)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, uint64(1), s.Stored())

	got, err := s.Identify(story.NewRegistry(), 0)
	require.NoError(t, err)
	assert.True(t, n.Equal(got))
}

func TestAppendFull(t *testing.T) {
	reg := story.NewRegistry()
	s, err := Open(testLog(t), testStorePath(t), WithCreateSize(2), WithCreateLimit(4))
	require.NoError(t, err)
	defer s.Close()

	chain := mustChain(t, reg, 3)
	_, err = s.Append(chain[0])
	require.NoError(t, err)
	_, err = s.Append(chain[1])
	require.NoError(t, err)

	_, err = s.Append(chain[2])
	assert.ErrorIs(t, err, ErrStoreFull)

	// growth clears the condition
	require.NoError(t, s.Resize(4, false))
	_, err = s.Append(chain[2])
	assert.NoError(t, err)
}

func TestEmptyVersusCorrupt(t *testing.T) {
	reg := story.NewRegistry()
	s, err := Open(testLog(t), testStorePath(t))
	require.NoError(t, err)
	defer s.Close()

	n, err := reg.NewRoot("present")
	require.NoError(t, err)
	_, err = s.Append(n)
	require.NoError(t, err)

	// slot 1 was never written: empty, not corrupt
	_, err = s.Identify(story.NewRegistry(), 1)
	assert.ErrorIs(t, err, ErrBlockEmpty)

	// scribble over slot 0's story region: corrupt, not empty
	b, err := s.ReadBlock(0)
	require.NoError(t, err)
	b[story.StoryFirstByte] ^= 0x40
	_, err = s.f.WriteAt(b, BlockOffset(0))
	require.NoError(t, err)

	_, err = s.Identify(story.NewRegistry(), 0)
	assert.ErrorIs(t, err, ErrBlockCorrupt)
	assert.NotErrorIs(t, err, ErrBlockEmpty)
}

func TestBlockRangeChecks(t *testing.T) {
	s, err := Open(testLog(t), testStorePath(t), WithCreateSize(4), WithCreateLimit(8))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReadBlock(4)
	assert.ErrorIs(t, err, ErrBlockOutOfRange)

	n, err := story.NewRegistry().NewRoot("beyond")
	require.NoError(t, err)
	assert.ErrorIs(t, s.WriteBlock(4, n), ErrBlockOutOfRange)
}

func TestSeekBlock(t *testing.T) {
	s, err := Open(testLog(t), testStorePath(t))
	require.NoError(t, err)
	defer s.Close()

	for _, i := range []uint64{0, 1, 7} {
		off, err := s.SeekBlock(i)
		require.NoError(t, err)
		assert.Equal(t, BlockOffset(i), off)
	}
}

func TestCloseSemantics(t *testing.T) {
	reg := story.NewRegistry()
	s, err := Open(testLog(t), testStorePath(t))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), ErrStoreClosed)

	n, err := reg.NewRoot("too late")
	require.NoError(t, err)
	_, err = s.Append(n)
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = s.ReadBlock(0)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, s.Resize(32, false), ErrStoreClosed)
	assert.ErrorIs(t, s.Optimize(2), ErrStoreClosed)
}

// mustChain builds a chain of count nodes and returns it root first.
func mustChain(t *testing.T, reg *story.Registry, count int) []*story.Node {
	t.Helper()
	out := make([]*story.Node, 0, count)
	n, err := reg.NewRoot("chain root")
	require.NoError(t, err)
	out = append(out, n)
	for len(out) < count {
		n, err = n.Branch(string(rune('a' + len(out))))
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}
