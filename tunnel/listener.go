// Package tunnel provides the connection listener boundary. It accepts raw
// network connections on a port and dispatches each accepted connection to a
// caller supplied handler on its own goroutine. It has no bearing on node
// identity, serialization, or storage layout; any handler that consumes one
// accepted connection suffices.
package tunnel

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"
)

var (
	ErrListenerStarted = errors.New("listener already started")
	ErrListenerStopped = errors.New("listener not started")
)

// Handler consumes one accepted connection. The handler owns the connection
// and is responsible for closing it.
type Handler func(net.Conn)

// Listener accepts connections on a port and hands each one to a handler on
// its own goroutine.
type Listener struct {
	log  logger.Logger
	port int

	mu      sync.Mutex
	ln      net.Listener
	accepts sync.WaitGroup
}

func NewListener(log logger.Logger, port int) *Listener {
	return &Listener{log: log, port: port}
}

// Running reports whether the listener is currently accepting.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln != nil
}

// Addr returns the bound address, useful when the listener was started on
// port 0.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Start binds the port and begins accepting. Each accepted connection is
// dispatched to handler on a fresh goroutine. Start fails with
// ErrListenerStarted if the listener is already running.
func (l *Listener) Start(handler Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return ErrListenerStarted
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
	if err != nil {
		return fmt.Errorf("binding port %d: %w", l.port, err)
	}
	l.ln = ln

	l.accepts.Add(1)
	go l.loop(ln, handler)
	l.log.Infof("listening on %s", ln.Addr())
	return nil
}

// loop accepts until the listener is closed by Stop.
func (l *Listener) loop(ln net.Listener, handler Handler) {
	defer l.accepts.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.log.Infof("accept failed: %v", err)
			}
			return
		}
		go handler(conn)
	}
}

// Stop halts acceptance and joins the dispatch goroutine. Connections already
// handed to handlers are unaffected.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return ErrListenerStopped
	}
	err := l.ln.Close()
	l.accepts.Wait()
	l.ln = nil
	return err
}
