package bloom

import (
	"crypto/sha512"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testElem(i int) []byte {
	sum := sha512.Sum512([]byte(fmt.Sprintf("elem-%d", i)))
	return sum[:]
}

func TestInitInsertContains(t *testing.T) {
	const elems = 128
	mBits := MBitsSafeCast(MBitsV1(elems, 10))
	require.NotZero(t, mBits)

	region := make([]byte, RegionBytesV1(mBits))
	require.NoError(t, InitV1(region, elems, 10, 7))

	for i := 0; i < elems; i++ {
		require.NoError(t, InsertV1(region, testElem(i)))
	}

	// no false negatives, ever
	for i := 0; i < elems; i++ {
		ok, err := MaybeContainsV1(region, testElem(i))
		require.NoError(t, err)
		assert.True(t, ok, "inserted element %d must test positive", i)
	}

	// false positives are possible but must be rare at 10 bits/elem
	fp := 0
	for i := elems; i < elems+1000; i++ {
		ok, err := MaybeContainsV1(region, testElem(i))
		require.NoError(t, err)
		if ok {
			fp++
		}
	}
	assert.Less(t, fp, 30, "false positive rate far above the configured bound")

	h, ok, err := DecodeHeaderV1(region)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(elems), h.NInserted)
}

func TestUninitializedRegion(t *testing.T) {
	region := make([]byte, RegionBytesV1(1024))

	_, _, err := DecodeHeaderV1(region)
	require.NoError(t, err)

	err = InsertV1(region, testElem(0))
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = MaybeContainsV1(region, testElem(0))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestBadArguments(t *testing.T) {
	region := make([]byte, RegionBytesV1(1024))
	require.NoError(t, InitV1(region, 128, 8, 5))

	err := InsertV1(region, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrBadElemSize)

	err = InitV1(make([]byte, 4), 128, 8, 5)
	assert.ErrorIs(t, err, ErrBadRegionSize)

	err = InitV1(region, 0, 8, 5)
	assert.ErrorIs(t, err, ErrBadMBits)

	err = InitV1(region, 128, 8, 0)
	assert.ErrorIs(t, err, ErrBadK)
}

func TestHeaderRoundTrip(t *testing.T) {
	region := make([]byte, HeaderBytesV1)
	want := HeaderV1{BitOrder: BitOrderLSB0, K: 7, MBits: 1280, NInserted: 42}
	require.NoError(t, EncodeHeaderV1(region, want))

	got, ok, err := DecodeHeaderV1(region)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}
