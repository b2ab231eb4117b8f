package btm

import "github.com/sh01/liasis/domain"

// seqAfter reports whether a denotes a point in server_seq's space
// strictly after b, comparing modulo 2^32 the way a wrapping monotone
// counter must — the same comparison snum_cmp performs on the reference
// sequence numbers.
func seqAfter(a, b uint32) bool {
	return int32(a-b) > 0
}

type bthKey struct {
	clientIdx int
	ih        domain.InfoHash
}

// facets tracks server_seq and the per-facet last_bumped_seq values the RC
// guard compares a connection's client_echoed_seq against. It is mutated
// only from the manager goroutine; nothing here needs its own lock.
type facets struct {
	serverSeq   uint32
	clientCount uint32
	bthSet      map[int]uint32
	bthActive   map[bthKey]uint32
}

func newFacets() *facets {
	return &facets{
		bthSet:    map[int]uint32{},
		bthActive: map[bthKey]uint32{},
	}
}

// bump advances server_seq alone, for domain events that carry no RC
// facet of their own (a throughput tick, a server-initiated subscription
// revocation) but still need a fresh sequence number on their outbound
// frame.
func (f *facets) bump() uint32 {
	f.serverSeq++
	return f.serverSeq
}

func (f *facets) bumpClientCount() uint32 {
	f.serverSeq++
	f.clientCount = f.serverSeq
	return f.serverSeq
}

func (f *facets) bumpBTHSet(clientIdx int) uint32 {
	f.serverSeq++
	f.bthSet[clientIdx] = f.serverSeq
	return f.serverSeq
}

func (f *facets) bumpBTHActive(clientIdx int, ih domain.InfoHash) uint32 {
	f.serverSeq++
	f.bthActive[bthKey{clientIdx, ih}] = f.serverSeq
	return f.serverSeq
}

func (f *facets) clientCountStale(echoed uint32) bool {
	return seqAfter(f.clientCount, echoed)
}

func (f *facets) bthSetStale(clientIdx int, echoed uint32) bool {
	return seqAfter(f.bthSet[clientIdx], echoed)
}

func (f *facets) bthActiveStale(clientIdx int, ih domain.InfoHash, echoed uint32) bool {
	return seqAfter(f.bthActive[bthKey{clientIdx, ih}], echoed)
}
