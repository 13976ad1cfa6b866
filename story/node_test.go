package story

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoryValidation(t *testing.T) {
	tests := []struct {
		name    string
		story   string
		wantErr error
	}{
		{
			name:  "empty story is fine",
			story: "",
		},
		{
			name:  "typical story",
			story: "the fox jumped",
		},
		{
			name:  "exactly the maximum payload succeeds",
			story: strings.Repeat("a", StoryBytes),
		},
		{
			name:    "one byte over the maximum fails",
			story:   strings.Repeat("a", StoryBytes+1),
			wantErr: ErrStoryTooLong,
		},
		{
			name:    "null byte anywhere fails",
			story:   "a\x00b",
			wantErr: ErrStoryNullByte,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			n, err := reg.NewRoot(tt.story)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.story, n.Story())
		})
	}
}

func TestParentValidation(t *testing.T) {
	reg := NewRegistry()

	// an unresolved parent must not carry the zero digest, that is the wire
	// sentinel for "no parent"
	_, err := reg.New("x", UnresolvedParent(Sid{}))
	assert.ErrorIs(t, err, ErrParentInvalid)

	_, err = reg.New("x", Parent{kind: ParentResolved})
	assert.ErrorIs(t, err, ErrParentInvalid)

	_, err = reg.New("x", Parent{kind: ParentKind(9)})
	assert.ErrorIs(t, err, ErrParentInvalid)
}

func TestSidDeterminism(t *testing.T) {
	rega := NewRegistry()
	regb := NewRegistry()

	a, err := rega.NewRoot("determined")
	require.NoError(t, err)
	b, err := regb.NewRoot("determined")
	require.NoError(t, err)

	// distinct instances, same identity, byte identical encodings
	assert.NotSame(t, a, b)
	assert.Equal(t, a.SID(), b.SID())
	assert.Equal(t, a.SID(), a.SID())

	ba, err := a.MarshalBinary()
	require.NoError(t, err)
	bb, err := b.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, ba, bb)
}

func TestNodeEquality(t *testing.T) {
	rega := NewRegistry()
	regb := NewRegistry()

	a, err := rega.NewRoot("same")
	require.NoError(t, err)
	b, err := regb.NewRoot("same")
	require.NoError(t, err)
	c, err := regb.NewRoot("different")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, a.Matches(b.SID()))
	assert.False(t, a.Matches(c.SID()))

	// Sid is comparable, equal nodes collapse to one map key
	m := map[Sid]bool{}
	m[a.SID()] = true
	m[b.SID()] = true
	assert.Len(t, m, 1)
}

func TestChildEqualityAcrossParentForms(t *testing.T) {
	rega := NewRegistry()
	regb := NewRegistry()

	parent, err := rega.NewRoot("lineage")
	require.NoError(t, err)
	byNode, err := parent.Branch("child")
	require.NoError(t, err)

	// same child, constructed from the bare digest in a different registry
	byDigest, err := regb.New("child", UnresolvedParent(parent.SID()))
	require.NoError(t, err)

	assert.True(t, byNode.Equal(byDigest))
	assert.Equal(t, byNode.SID(), byDigest.SID())
}

func TestBranchChildren(t *testing.T) {
	reg := NewRegistry()

	root, err := reg.NewRoot("root")
	require.NoError(t, err)

	x, err := root.Branch("x")
	require.NoError(t, err)
	y, err := root.Branch("y")
	require.NoError(t, err)

	children := root.Children()
	assert.Len(t, children, 2)
	sids := map[Sid]bool{}
	for _, c := range children {
		sids[c.SID()] = true
	}
	assert.True(t, sids[x.SID()])
	assert.True(t, sids[y.SID()])
	assert.Empty(t, x.Children())
}
