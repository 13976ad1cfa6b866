// Package storytesting provides the shared scaffolding for tests that need a
// registry, a throwaway store file, or generated story content.
package storytesting

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Tankobot/pyble/blockstore"
	"github.com/Tankobot/pyble/story"
)

type TestContext struct {
	Log logger.Logger
	Reg *story.Registry
	T   *testing.T

	rng *rand.Rand
}

type TestConfig struct {
	// Seed fixes the RNG so generated stories are the same from run to run.
	// It is normal to force it to some fixed value.
	Seed            int64
	TestLabelPrefix string
}

func NewTestContext(t *testing.T, cfg TestConfig) TestContext {
	logger.New("NOOP")
	return TestContext{
		Log: logger.Sugar.WithServiceName(cfg.TestLabelPrefix),
		Reg: story.NewRegistry(),
		T:   t,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (c *TestContext) GetLog() logger.Logger { return c.Log }

// NewStore opens a store under the test's temp dir. The file name is
// uniquified so parallel tests in one package never collide.
func (c *TestContext) NewStore(opts ...blockstore.Option) *blockstore.Store {
	name := filepath.Join(c.T.TempDir(), fmt.Sprintf("store-%s.pyb", uuid.New().String()))
	s, err := blockstore.Open(c.Log, name, opts...)
	require.NoError(c.T, err)
	return s
}

// GenerateStory returns deterministic printable content of the given length.
func (c *TestContext) GenerateStory(length int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz "
	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[c.rng.Intn(len(alphabet))]
	}
	return string(b)
}

// GenerateChain builds a chain of count nodes rooted at a fresh root and
// returns it leaf last.
func (c *TestContext) GenerateChain(count int) []*story.Node {
	require.Positive(c.T, count)
	out := make([]*story.Node, 0, count)

	n, err := c.Reg.NewRoot(c.GenerateStory(12))
	require.NoError(c.T, err)
	out = append(out, n)

	for len(out) < count {
		n, err = n.Branch(c.GenerateStory(18))
		require.NoError(c.T, err)
		out = append(out, n)
	}
	return out
}
