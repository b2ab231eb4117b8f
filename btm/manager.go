// Package btm implements the daemon control plane: the connection state
// machine, the command dispatcher, the RC guard, the subscription and
// invalidation bus, and the snapshot projections that back them — all
// serialized through a single manager goroutine, per spec.md §5's
// single-writer requirement.
package btm

import (
	"errors"
	"log"
	"net"
	"sync/atomic"

	"github.com/sh01/liasis/domain"
	"github.com/sh01/liasis/proto"
	"github.com/sh01/liasis/wireframe"
)

// Manager owns every piece of RC-guarded state and is the sole writer of
// it. Everything it touches — facets, the connection table, subscriptions
// — is reachable only from Run, which processes exactly one job or signal
// at a time.
type Manager struct {
	domain   domain.Domain
	maxFrame uint32
	facets   *facets
	conns    map[uint64]*Connection
	nextConn uint64
	jobs     chan job
	register chan *Connection
	statsReq chan chan ManagerStats
	done     chan struct{}
}

// ManagerStats is a point-in-time read of the state observe/ pushes to its
// debug feed. It is assembled inside the actor loop and copied out, so it
// never races with a facet bump or connection-table edit.
type ManagerStats struct {
	ServerSeq   uint32
	ClientCount uint32
	Connections int
}

// NewManager constructs a Manager over dom. maxFrame bounds accepted
// frame payloads; 0 selects wireframe.DefaultMaxFrame.
func NewManager(dom domain.Domain, maxFrame uint32) *Manager {
	return &Manager{
		domain:   dom,
		maxFrame: maxFrame,
		facets:   newFacets(),
		conns:    map[uint64]*Connection{},
		jobs:     make(chan job, 64),
		register: make(chan *Connection),
		statsReq: make(chan chan ManagerStats),
		done:     make(chan struct{}),
	}
}

// Stats returns a current snapshot of manager state, for observe/'s debug
// feed. Safe to call from any goroutine; it round-trips through the actor
// loop rather than reading Manager's fields directly. Returns the zero
// value once the manager has shut down.
func (m *Manager) Stats() ManagerStats {
	reply := make(chan ManagerStats, 1)
	select {
	case m.statsReq <- reply:
	case <-m.done:
		return ManagerStats{}
	}
	select {
	case s := <-reply:
		return s
	case <-m.done:
		return ManagerStats{}
	}
}

// Accept runs an accept loop against ln until the manager shuts down,
// registering every accepted connection. It returns when ln.Accept fails
// (typically because the listener was closed by Shutdown's caller).
func (m *Manager) Accept(ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			return err
		}
		m.newConn(nc)
	}
}

func (m *Manager) newConn(nc net.Conn) *Connection {
	id := atomic.AddUint64(&m.nextConn, 1)
	c := newConnection(id, nc, m.maxFrame)
	go c.readLoop(m.jobs)
	go c.writeLoop()
	select {
	case m.register <- c:
	case <-m.done:
		c.Close()
	}
	return c
}

// Run is the manager's actor loop: the single serialization point for
// every RC facet bump, command dispatch, and broadcast. It returns when
// the domain's signal channel closes.
func (m *Manager) Run() {
	sig := m.domain.Signals()
	for {
		select {
		case c := <-m.register:
			m.conns[c.id] = c
		case reply := <-m.statsReq:
			reply <- ManagerStats{
				ServerSeq:   m.facets.serverSeq,
				ClientCount: m.facets.clientCount,
				Connections: len(m.conns),
			}
		case j := <-m.jobs:
			m.handleJob(j)
		case s, ok := <-sig:
			if !ok {
				m.shutdown()
				return
			}
			m.handleSignal(s)
		}
	}
}

// Shutdown closes the domain, which in turn closes its signal channel and
// causes Run to drain every connection and return.
func (m *Manager) Shutdown() error {
	return m.domain.Close()
}

// shutdown puts every connection into Draining rather than closing it
// outright, so writeLoop delivers whatever is already queued before the
// socket goes away, per spec.md §5.
func (m *Manager) shutdown() {
	close(m.done)
	for _, c := range m.conns {
		c.beginDraining()
	}
}

func (m *Manager) handleJob(j job) {
	if j.closed {
		if errors.Is(j.err, wireframe.ErrFrameTooLarge) {
			// The frame was rejected before its payload was ever read, so
			// there are no original bytes to echo back; substitute the
			// error text as the closest available account of what failed.
			j.conn.send(m.facets.serverSeq, proto.BencErrorMsg([]byte(j.err.Error())))
			j.conn.beginDraining()
		} else {
			j.conn.Close()
		}
		delete(m.conns, j.conn.id)
		return
	}
	env, err := proto.DecodeEnvelope(j.payload)
	if err != nil {
		j.conn.send(m.facets.serverSeq, proto.BencErrorMsg(j.payload))
		return
	}
	h, ok := dispatchTable[env.Tag]
	if !ok {
		j.conn.send(m.facets.serverSeq, proto.UnknownCmdMsg(env.Raw))
		return
	}
	h(m, j.conn, j.seqNum, env)
}

func (m *Manager) handleSignal(s domain.Signal) {
	switch s.Kind {
	case domain.SignalClientCountChanged:
		seq := m.facets.bumpClientCount()
		m.broadcastAll(seq, proto.InvalidClientCountMsg())
		m.revokeAllSubscriptions(seq)
	case domain.SignalTorrentSetChanged:
		seq := m.facets.bumpBTHSet(s.ClientIdx)
		m.broadcastAll(seq, proto.InvalidClientTorrentsMsg(int64(s.ClientIdx)))
	case domain.SignalThroughputTick:
		seq := m.facets.bump()
		msg := proto.BTHThroughputSliceMsg(int64(s.ClientIdx), bencIntList(s.Down), bencIntList(s.Up))
		for _, c := range m.conns {
			if c.subs[s.ClientIdx] {
				c.send(seq, msg)
			}
		}
	case domain.SignalSubscriptionRevoked:
		seq := m.facets.bump()
		for _, c := range m.conns {
			if c.subs[s.ClientIdx] {
				delete(c.subs, s.ClientIdx)
				c.send(seq, proto.UnsubscribeMsg(int64(s.ClientIdx)))
			}
		}
	default:
		log.Printf("[WARN] btm: unhandled signal kind %d", s.Kind)
	}
}

// broadcastInvalidClientTorrents delivers INVALIDCLIENTTORRENTS to every
// connection, including the one whose command caused the change — the
// same message the async torrent-set-changed signal path would also
// eventually deliver for this edit. The duplicate is harmless: the
// notification is a pure invalidation, not a diff, so receiving it twice
// for one edit costs a redundant re-fetch, never a wrong one.
func (m *Manager) broadcastInvalidClientTorrents(clientIdx int, seq uint32) {
	m.broadcastAll(seq, proto.InvalidClientTorrentsMsg(int64(clientIdx)))
}

func (m *Manager) broadcastAll(seq uint32, msg []byte) {
	for _, c := range m.conns {
		c.send(seq, msg)
	}
}

func (m *Manager) revokeAllSubscriptions(seq uint32) {
	for _, c := range m.conns {
		for idx := range c.subs {
			delete(c.subs, idx)
			c.send(seq, proto.UnsubscribeMsg(int64(idx)))
		}
	}
}
