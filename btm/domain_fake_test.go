package btm

import (
	"fmt"

	"github.com/sh01/liasis/bencode"
	"github.com/sh01/liasis/domain"
)

// fakeBTH is a minimal in-memory domain.BTH for dispatcher tests. It
// mirrors the shape of anacrolixbt's bth without touching the network.
type fakeBTH struct {
	ih         domain.InfoHash
	active     bool
	reannounce int
	down, up   *domain.Ring
}

func newFakeBTH(ih domain.InfoHash, active bool) *fakeBTH {
	return &fakeBTH{
		ih:     ih,
		active: active,
		down:   domain.NewRing(4),
		up:     domain.NewRing(4),
	}
}

func (b *fakeBTH) InfoHash() domain.InfoHash { return b.ih }
func (b *fakeBTH) Active() bool              { return b.active }
func (b *fakeBTH) SetActive(active bool) error {
	b.active = active
	return nil
}
func (b *fakeBTH) ForceReannounce() { b.reannounce++ }
func (b *fakeBTH) Throughput() (down, up *domain.Ring, downCycleMS, upCycleMS int64) {
	return b.down, b.up, 5000, 5000
}
func (b *fakeBTH) Snapshot() bencode.Dict {
	return bencode.Dict{"active": bencode.Int(boolToInt64(b.active))}
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// fakeBTClient is a minimal in-memory domain.BTClient.
type fakeBTClient struct {
	idx    int
	bths   map[domain.InfoHash]*fakeBTH
	order  []domain.InfoHash
	nextOK bool // when false, AddFromMetainfo fails for any info-hash not already present
}

func newFakeBTClient(idx int) *fakeBTClient {
	return &fakeBTClient{idx: idx, bths: map[domain.InfoHash]*fakeBTH{}, nextOK: true}
}

func (c *fakeBTClient) Index() int { return c.idx }

func (c *fakeBTClient) Torrents() []domain.BTH {
	out := make([]domain.BTH, 0, len(c.order))
	for _, ih := range c.order {
		out = append(out, c.bths[ih])
	}
	return out
}

func (c *fakeBTClient) Torrent(ih domain.InfoHash) (domain.BTH, bool) {
	b, ok := c.bths[ih]
	if !ok {
		return nil, false
	}
	return b, true
}

func (c *fakeBTClient) AddFromMetainfo(metainfo []byte, active bool) (domain.BTH, bool, error) {
	var ih domain.InfoHash
	copy(ih[:], metainfo)
	if existing, ok := c.bths[ih]; ok {
		if existing.Active() == active {
			return existing, true, nil
		}
		return existing, true, fmt.Errorf("conflicting active state")
	}
	if !c.nextOK {
		return nil, false, fmt.Errorf("forced failure")
	}
	b := newFakeBTH(ih, active)
	c.bths[ih] = b
	c.order = append(c.order, ih)
	return b, false, nil
}

func (c *fakeBTClient) DropTorrent(ih domain.InfoHash) error {
	if _, ok := c.bths[ih]; !ok {
		return fmt.Errorf("no such BTH")
	}
	delete(c.bths, ih)
	for i, cur := range c.order {
		if cur == ih {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *fakeBTClient) Snapshot() bencode.Dict {
	return bencode.Dict{"client_idx": bencode.Int(c.idx), "num_bths": bencode.Int(len(c.bths))}
}

// fakeDomain is a minimal in-memory domain.Domain for dispatcher tests.
type fakeDomain struct {
	clients []*fakeBTClient
	signals chan domain.Signal
	closed  bool
}

func newFakeDomain(numClients int) *fakeDomain {
	d := &fakeDomain{signals: make(chan domain.Signal, 16)}
	for i := 0; i < numClients; i++ {
		d.clients = append(d.clients, newFakeBTClient(i))
	}
	return d
}

func (d *fakeDomain) ClientCount() int { return len(d.clients) }

func (d *fakeDomain) Client(idx int) (domain.BTClient, bool) {
	if idx < 0 || idx >= len(d.clients) {
		return nil, false
	}
	return d.clients[idx], true
}

func (d *fakeDomain) Signals() <-chan domain.Signal { return d.signals }

func (d *fakeDomain) Close() error {
	if !d.closed {
		d.closed = true
		close(d.signals)
	}
	return nil
}
