package btm

import (
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sh01/liasis/wireframe"
)

// connState is one connection's position in the Open -> Draining -> Closed
// state machine.
type connState int

const (
	StateOpen connState = iota
	StateDraining
	StateClosed
)

func (s connState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// outboundQueueSize is the per-connection outbound buffer depth. A
// connection whose reader can't keep up with this many pending frames is
// treated as unresponsive and closed, rather than letting a slow peer
// block the single manager goroutine.
const outboundQueueSize = 256

// Connection is one frontend's transport plus the state the manager
// tracks about it: its subscription set and the state-machine position.
// subs is touched only by the manager goroutine. fr is used only by the
// reader goroutine and fw only by the writer goroutine; out, closeCh, the
// sync.Once and the atomic state are safe to use from any goroutine.
type Connection struct {
	id uint64
	nc net.Conn
	fr *wireframe.Reader
	fw *wireframe.Writer

	out       chan wireframe.Frame
	closeCh   chan struct{}
	closeOnce sync.Once

	state atomic.Int32
	subs  map[int]bool
}

func newConnection(id uint64, nc net.Conn, maxFrame uint32) *Connection {
	c := &Connection{
		id:      id,
		nc:      nc,
		fr:      wireframe.NewReader(nc, maxFrame),
		fw:      wireframe.NewWriter(nc),
		out:     make(chan wireframe.Frame, outboundQueueSize),
		closeCh: make(chan struct{}),
		subs:    map[int]bool{},
	}
	c.state.Store(int32(StateOpen))
	return c
}

// State returns the connection's current position in the state machine.
// Safe to call from any goroutine.
func (c *Connection) State() connState {
	return connState(c.state.Load())
}

// send enqueues an outbound frame. If the connection's outbound queue is
// full the connection is too slow to keep up with what it asked for; it
// is closed rather than letting a single peer stall the manager loop. A
// connection that has already left Open silently drops the frame — it is
// draining or closed, and c.out may already be closed for writes.
func (c *Connection) send(seq uint32, payload []byte) {
	if c.State() != StateOpen {
		return
	}
	select {
	case c.out <- wireframe.Frame{SeqNum: seq, Payload: payload}:
	default:
		log.Printf("[WARN] btm: connection %d outbound queue full, closing", c.id)
		c.Close()
	}
}

// beginDraining moves the connection from Open to Draining and closes its
// outbound queue. writeLoop keeps delivering whatever was already queued
// — a closed buffered channel still yields its remaining values before
// reporting !ok — then closes the transport once the queue is empty. A
// no-op if the connection isn't Open (already draining or closed).
func (c *Connection) beginDraining() {
	if !c.state.CompareAndSwap(int32(StateOpen), int32(StateDraining)) {
		return
	}
	close(c.out)
}

// Close tears down the transport and both of the connection's goroutines.
// Safe to call more than once and from any goroutine.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.closeCh)
		c.nc.Close()
	})
	return nil
}

// readLoop parses frames off the transport and forwards decoded jobs to
// the manager. It never touches RC state directly — that is the
// manager's job once it dequeues the job.
func (c *Connection) readLoop(jobs chan<- job) {
	for {
		fr, err := c.fr.ReadFrame()
		if err != nil {
			jobs <- job{conn: c, closed: true, err: err}
			return
		}
		if fr.IsNoop() {
			continue
		}
		select {
		case jobs <- job{conn: c, seqNum: fr.SeqNum, payload: fr.Payload}:
		case <-c.closeCh:
			return
		}
	}
}

// writeLoop drains the connection's outbound queue in enqueue order,
// serialising them onto the transport.
func (c *Connection) writeLoop() {
	for {
		select {
		case fr, ok := <-c.out:
			if !ok {
				c.Close()
				return
			}
			if err := c.fw.WriteFrame(fr.SeqNum, fr.Payload); err != nil {
				c.Close()
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// job is one unit of manager work: either a decoded frame from a
// connection, or that connection reporting its transport died.
type job struct {
	conn    *Connection
	seqNum  uint32
	payload []byte
	closed  bool
	err     error
}
