// Package observe hosts the daemon's strictly read-only HTTP debug
// surface: a live-pushed version vector plus a plain JSON status
// snapshot, entirely separate from the bencode control protocol in btm/.
package observe

import (
	"sync"

	"github.com/jpillora/velox"
)

// Stats mirrors btm.ManagerStats without importing btm, so this package
// can be tested against any producer. cmd/liasisd wires it to the real
// manager.
type Stats struct {
	ServerSeq   uint32 `json:"server_seq"`
	ClientCount uint32 `json:"client_count"`
	Connections int    `json:"connections"`
}

// StatsSource is polled on an interval to keep State current. cmd/liasisd
// satisfies it with a thin adapter over *btm.Manager.
type StatsSource interface {
	Stats() Stats
}

// State is the live version-vector every browser tab open on /sync
// receives pushes of, the same velox.State-embedding shape the teacher
// pushes its torrent list with.
type State struct {
	velox.State
	mu sync.Mutex

	ServerSeq   uint32 `json:"server_seq"`
	ClientCount uint32 `json:"client_count"`
	Connections int    `json:"connections"`
}

func newState() *State {
	return &State{}
}

func (s *State) update(stats Stats) {
	s.mu.Lock()
	changed := s.ServerSeq != stats.ServerSeq ||
		s.ClientCount != stats.ClientCount ||
		s.Connections != stats.Connections
	s.ServerSeq = stats.ServerSeq
	s.ClientCount = stats.ClientCount
	s.Connections = stats.Connections
	s.mu.Unlock()
	if changed {
		s.Push()
	}
}

func (s *State) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{ServerSeq: s.ServerSeq, ClientCount: s.ClientCount, Connections: s.Connections}
}
