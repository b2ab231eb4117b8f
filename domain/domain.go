// Package domain defines the interfaces through which the control plane
// observes and steers the BitTorrent subsystem. Everything in btm/ talks
// to these interfaces only; a concrete BT engine lives behind them in a
// sibling package (see domain/anacrolixbt), and tests substitute fakes.
package domain

import "github.com/sh01/liasis/bencode"

// InfoHash identifies a BTH. It is always exactly 20 bytes.
type InfoHash [20]byte

// BTH is one BitTorrent handle: a single torrent under management by a
// BTClient. Every BTH belongs to exactly one BTClient for its lifetime.
type BTH interface {
	InfoHash() InfoHash
	Active() bool

	// SetActive toggles the active flag. Called only when the dispatcher
	// has already determined a real transition is needed (STARTBTH and
	// STOPBTH turn a no-op toggle into COMMANDNOOP before reaching here).
	SetActive(active bool) error

	// ForceReannounce orders an immediate tracker announce, bypassing any
	// cached interval.
	ForceReannounce()

	// Throughput returns the download and upload sample rings together
	// with their slice-cycle lengths in milliseconds, matching the shape
	// GETBTHTHROUGHPUT and BTHTHROUGHPUTSLICE both draw from.
	Throughput() (down, up *Ring, downCycleMS, upCycleMS int64)

	// Snapshot renders the BTHDATA payload. Its shape is opaque to the
	// dispatcher, which forwards it as-is.
	Snapshot() bencode.Dict
}

// BTClient is one managed BitTorrent client slot, addressed by a stable
// 0-based index for the lifetime of the process.
type BTClient interface {
	Index() int

	// Torrents lists this client's BTHes in a stable order; the order
	// returned here is the order CLIENTTORRENTS and a throughput slice's
	// parallel down/up lists use.
	Torrents() []BTH
	Torrent(ih InfoHash) (BTH, bool)

	// AddFromMetainfo builds a BTH from bencoded metainfo and registers
	// it as active or inactive. existed reports whether a BTH with the
	// same info-hash was already present (BUILDBTHFROMMETAINFO consults
	// this to choose COMMANDNOOP/COMMANDOK/COMMANDFAIL).
	AddFromMetainfo(metainfo []byte, active bool) (bth BTH, existed bool, err error)

	// DropTorrent archives and removes a BTH. Callers must have already
	// confirmed it exists and is inactive.
	DropTorrent(ih InfoHash) error

	// Snapshot renders the CLIENTDATA payload.
	Snapshot() bencode.Dict
}

// SignalKind classifies an unsolicited domain event.
type SignalKind int

const (
	// SignalClientCountChanged means the number of managed BTClients
	// changed; it carries no client index.
	SignalClientCountChanged SignalKind = iota
	// SignalTorrentSetChanged means the BTH set of one client changed.
	SignalTorrentSetChanged
	// SignalThroughputTick means one bandwidth-history cycle elapsed for
	// one client; Down/Up carry that cycle's per-BTH sample, in the same
	// order as that client's Torrents().
	SignalThroughputTick
	// SignalSubscriptionRevoked means the domain, on its own initiative,
	// ended some other subscription-relevant state for a client (e.g. the
	// client itself was removed from under a live throughput listener).
	SignalSubscriptionRevoked
)

// Signal is one domain-originated event fed into the control plane's
// manager loop, which turns it into the corresponding S2C broadcast(s)
// and bumps the matching RC facet.
type Signal struct {
	Kind      SignalKind
	ClientIdx int
	Down      []int64
	Up        []int64
}

// Domain is the root handle the control plane holds on the BT subsystem.
type Domain interface {
	ClientCount() int
	Client(idx int) (BTClient, bool)

	// Signals returns the channel the manager loop drains for unsolicited
	// domain events. The channel is closed when the domain shuts down.
	Signals() <-chan Signal

	Close() error
}
