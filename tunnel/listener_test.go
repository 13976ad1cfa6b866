package tunnel

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog(t *testing.T) logger.Logger {
	t.Helper()
	logger.New("NOOP")
	return logger.Sugar.WithServiceName("tunnel")
}

func TestListenerDispatch(t *testing.T) {
	l := NewListener(testLog(t), 0)

	var handled atomic.Int32
	require.NoError(t, l.Start(func(conn net.Conn) {
		defer conn.Close()
		handled.Add(1)
		_, _ = io.Copy(io.Discard, conn)
	}))
	defer l.Stop()

	require.True(t, l.Running())
	addr := l.Addr()
	require.NotNil(t, addr)

	for range 3 {
		conn, err := net.Dial("tcp", addr.String())
		require.NoError(t, err)
		_, err = conn.Write([]byte("hello"))
		require.NoError(t, err)
		require.NoError(t, conn.Close())
	}

	require.Eventually(t, func() bool {
		return handled.Load() == 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestListenerLifecycle(t *testing.T) {
	l := NewListener(testLog(t), 0)

	assert.ErrorIs(t, l.Stop(), ErrListenerStopped)
	assert.False(t, l.Running())

	require.NoError(t, l.Start(func(conn net.Conn) { conn.Close() }))
	assert.ErrorIs(t, l.Start(func(conn net.Conn) { conn.Close() }), ErrListenerStarted)

	require.NoError(t, l.Stop())
	assert.False(t, l.Running())

	// a stopped listener can be started again
	require.NoError(t, l.Start(func(conn net.Conn) { conn.Close() }))
	require.NoError(t, l.Stop())
}
