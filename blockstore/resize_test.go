package blockstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tankobot/pyble/story"
)

func TestResizeGrow(t *testing.T) {
	tests := []struct {
		name        string
		progressive bool
	}{
		{name: "one shot"},
		{name: "progressive", progressive: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := testStorePath(t)
			s, err := Open(testLog(t), name, WithCreateSize(4), WithCreateLimit(1<<16))
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.Resize(2048, tt.progressive))

			h := s.Header()
			assert.Equal(t, uint64(2048), h.Size)
			assert.Equal(t, uint64(0), h.Previous)

			fi, err := os.Stat(name)
			require.NoError(t, err)
			assert.Equal(t, regionBytes(2048), fi.Size())
		})
	}
}

func TestResizeShrinkAndRefusals(t *testing.T) {
	reg := story.NewRegistry()
	name := testStorePath(t)
	s, err := Open(testLog(t), name, WithCreateSize(16), WithCreateLimit(64))
	require.NoError(t, err)
	defer s.Close()

	for _, n := range mustChain(t, reg, 4) {
		_, err = s.Append(n)
		require.NoError(t, err)
	}

	// beyond the limit
	assert.ErrorIs(t, s.Resize(128, false), ErrLimitExceeded)
	// below the occupancy
	assert.ErrorIs(t, s.Resize(3, false), ErrShrinkBelowStored)
	// no-op
	require.NoError(t, s.Resize(16, false))

	// a legal shrink gives back the file space and keeps every block
	require.NoError(t, s.Resize(4, false))
	fi, err := os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, regionBytes(4), fi.Size())

	got, err := s.Identify(story.NewRegistry(), 3)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestResizeRecovery(t *testing.T) {
	reg := story.NewRegistry()
	name := testStorePath(t)
	s, err := Open(testLog(t), name, WithCreateSize(4), WithCreateLimit(64))
	require.NoError(t, err)

	n, err := reg.NewRoot("survives the crash")
	require.NoError(t, err)
	_, err = s.Append(n)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// forge the on-disk state a crash mid-resize leaves behind: the header
	// names the target size with previous set, the file was never extended
	crashed := Header{Stored: 1, Size: 32, Limit: 64, Previous: 4}
	b, err := crashed.MarshalBinary()
	require.NoError(t, err)
	f, err := os.OpenFile(name, os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.WriteAt(b, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// reopening completes the transition
	s, err = Open(testLog(t), name)
	require.NoError(t, err)
	defer s.Close()

	h := s.Header()
	assert.Equal(t, uint64(32), h.Size)
	assert.Equal(t, uint64(0), h.Previous)

	fi, err := os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, regionBytes(32), fi.Size())

	// and the stored block is intact
	got, err := s.Identify(story.NewRegistry(), 0)
	require.NoError(t, err)
	assert.True(t, n.Equal(got))
}

// TestResizeProgressiveDoesNotBlockReaders drives reads against the store for
// the whole duration of a chunked grow. The header lock is dropped while the
// slot region extends, so every read of an occupied slot must succeed no
// matter how the two goroutines interleave.
func TestResizeProgressiveDoesNotBlockReaders(t *testing.T) {
	reg := story.NewRegistry()
	s, err := Open(testLog(t), testStorePath(t), WithCreateSize(4), WithCreateLimit(1<<16))
	require.NoError(t, err)
	defer s.Close()

	n, err := reg.NewRoot("read me throughout")
	require.NoError(t, err)
	_, err = s.Append(n)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		// enough slots for many chunks of progressive growth
		done <- s.Resize(1<<16, true)
	}()

	reads := 0
	for {
		b, err := s.ReadBlock(0)
		require.NoError(t, err)
		sid, err := story.VerifyRecord(b)
		require.NoError(t, err)
		assert.True(t, n.Matches(sid))
		reads++

		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Positive(t, reads)
			assert.Equal(t, uint64(1<<16), s.Size())
			got, err := s.Identify(story.NewRegistry(), 0)
			require.NoError(t, err)
			assert.True(t, n.Equal(got))
			return
		default:
		}
	}
}

func TestResizeRejectedWhileMarked(t *testing.T) {
	s, err := Open(testLog(t), filepath.Join(t.TempDir(), "marked.pyb"), WithCreateSize(4), WithCreateLimit(64))
	require.NoError(t, err)
	defer s.Close()

	// force the marker to exercise the in-progress guard
	s.optMu.Lock()
	s.hdr.Previous = 4
	s.optMu.Unlock()

	assert.ErrorIs(t, s.Resize(8, false), ErrResizeInProgress)
}
