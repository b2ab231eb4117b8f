package btm

import (
	"fmt"

	"github.com/sh01/liasis/bencode"
	"github.com/sh01/liasis/domain"
	"github.com/sh01/liasis/proto"
)

type handlerFunc func(m *Manager, c *Connection, echoed uint32, env proto.Envelope)

// dispatchTable maps every recognised wire tag to its handler. Argument
// schema validation happens inside each handler via the matching
// proto.Parse* function; the RC risk set each command declares in
// spec.md §6 is realized by each handler calling resolveClient (and, for
// DROPBTH, its own bth-set and bth-active staleness checks) before
// touching the domain.
var dispatchTable = map[string]handlerFunc{
	proto.TagBuildBTHFromMetainfo:     handleBuildBTHFromMetainfo,
	proto.TagDropBTH:                  handleDropBTH,
	proto.TagForceBTCReannounce:       handleForceBTCReannounce,
	proto.TagGetBTHData:               handleGetBTHData,
	proto.TagGetBTHThroughput:         handleGetBTHThroughput,
	proto.TagGetClientCount:           handleGetClientCount,
	proto.TagGetClientData:            handleGetClientData,
	proto.TagGetClientTorrents:        handleGetClientTorrents,
	proto.TagStartBTH:                 handleStartBTH,
	proto.TagStopBTH:                  handleStopBTH,
	proto.TagSubscribeBTHThroughput:   handleSubscribeBTHThroughput,
	proto.TagUnsubscribeBTHThroughput: handleUnsubscribeBTHThroughput,
}

// resolveClient runs the client-count RC check every command that takes
// client_idx declares. On failure it sends the RCREJ/COMMANDFAIL reply
// itself and returns ok=false; callers must stop.
func (m *Manager) resolveClient(c *Connection, echoed uint32, orig bencode.List, idx int) (domain.BTClient, bool) {
	client, exists := m.domain.Client(idx)
	if exists {
		return client, true
	}
	if m.facets.clientCountStale(echoed) {
		c.send(m.facets.serverSeq, proto.RCRejMsg(orig))
	} else {
		c.send(m.facets.serverSeq, proto.CommandFailMsg(orig, fmt.Sprintf("no such client %d", idx)))
	}
	return nil, false
}

// resolveBTH looks up info_hash on an already-resolved client. None of
// the commands that take an info_hash besides DROPBTH declare bth-set as
// an RC risk, so an absent BTH is unconditionally a semantic failure here
// — never an RC rejection.
func resolveBTH(c *Connection, m *Manager, orig bencode.List, client domain.BTClient, idx int, ih domain.InfoHash) (domain.BTH, bool) {
	b, ok := client.Torrent(ih)
	if !ok {
		c.send(m.facets.serverSeq, proto.CommandFailMsg(orig, fmt.Sprintf("no such BTH %x on client %d", ih[:], idx)))
		return nil, false
	}
	return b, true
}

func argError(m *Manager, c *Connection, orig bencode.List, e error) {
	c.send(m.facets.serverSeq, proto.ArgErrorMsg(orig, e.Error()))
}

func handleBuildBTHFromMetainfo(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	args, e := proto.ParseBuildBTHFromMetainfo(env.Args)
	if e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	idx := int(args.ClientIdx)
	client, ok := m.resolveClient(c, echoed, env.Raw, idx)
	if !ok {
		return
	}
	_, existed, err := client.AddFromMetainfo(args.MetainfoBytes, args.InitialActive)
	if err != nil {
		c.send(m.facets.serverSeq, proto.CommandFailMsg(env.Raw, err.Error()))
		return
	}
	if existed {
		c.send(m.facets.serverSeq, proto.CommandNoopMsg(env.Raw))
		return
	}
	seq := m.facets.bumpBTHSet(idx)
	m.broadcastInvalidClientTorrents(idx, seq)
	c.send(seq, proto.CommandOKMsg(env.Raw))
}

func handleDropBTH(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	args, e := proto.ParseDropBTH(env.Args)
	if e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	idx := int(args.ClientIdx)
	client, ok := m.resolveClient(c, echoed, env.Raw, idx)
	if !ok {
		return
	}
	ih := domain.InfoHash(args.InfoHash)
	bth, exists := client.Torrent(ih)
	if !exists {
		if m.facets.bthSetStale(idx, echoed) {
			c.send(m.facets.serverSeq, proto.RCRejMsg(env.Raw))
		} else {
			c.send(m.facets.serverSeq, proto.CommandFailMsg(env.Raw, fmt.Sprintf("no such BTH %x", ih[:])))
		}
		return
	}
	if bth.Active() {
		if m.facets.bthActiveStale(idx, ih, echoed) {
			c.send(m.facets.serverSeq, proto.RCRejMsg(env.Raw))
		} else {
			c.send(m.facets.serverSeq, proto.CommandFailMsg(env.Raw, "BTH is active"))
		}
		return
	}
	if err := client.DropTorrent(ih); err != nil {
		c.send(m.facets.serverSeq, proto.CommandFailMsg(env.Raw, err.Error()))
		return
	}
	seq := m.facets.bumpBTHSet(idx)
	m.broadcastInvalidClientTorrents(idx, seq)
	c.send(seq, proto.CommandOKMsg(env.Raw))
}

func handleForceBTCReannounce(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	args, e := proto.ParseForceBTCReannounce(env.Args)
	if e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	idx := int(args.ClientIdx)
	client, ok := m.resolveClient(c, echoed, env.Raw, idx)
	if !ok {
		return
	}
	for _, b := range client.Torrents() {
		if b.Active() {
			b.ForceReannounce()
		}
	}
	c.send(m.facets.serverSeq, proto.CommandOKMsg(env.Raw))
}

func handleGetBTHData(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	args, e := proto.ParseGetBTHData(env.Args)
	if e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	idx := int(args.ClientIdx)
	client, ok := m.resolveClient(c, echoed, env.Raw, idx)
	if !ok {
		return
	}
	ih := domain.InfoHash(args.InfoHash)
	bth, ok := resolveBTH(c, m, env.Raw, client, idx, ih)
	if !ok {
		return
	}
	c.send(m.facets.serverSeq, proto.BTHDataMsg(int64(idx), ih[:], bth.Snapshot()))
}

func handleGetBTHThroughput(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	args, e := proto.ParseGetBTHThroughput(env.Args)
	if e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	idx := int(args.ClientIdx)
	client, ok := m.resolveClient(c, echoed, env.Raw, idx)
	if !ok {
		return
	}
	ih := domain.InfoHash(args.InfoHash)
	bth, ok := resolveBTH(c, m, env.Raw, client, idx, ih)
	if !ok {
		return
	}
	down, up, downCycleMS, upCycleMS := bth.Throughput()
	maxHistory := int(args.MaxHistory)
	msg := proto.BTHThroughputMsg(int64(idx), ih[:],
		downCycleMS, bencIntList(down.Recent(maxHistory)),
		upCycleMS, bencIntList(up.Recent(maxHistory)))
	c.send(m.facets.serverSeq, msg)
}

func handleGetClientCount(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	if e := proto.ParseGetClientCount(env.Args); e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	c.send(m.facets.serverSeq, proto.ClientCountMsg(int64(m.domain.ClientCount())))
}

func handleGetClientData(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	args, e := proto.ParseGetClientData(env.Args)
	if e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	idx := int(args.ClientIdx)
	client, ok := m.resolveClient(c, echoed, env.Raw, idx)
	if !ok {
		return
	}
	c.send(m.facets.serverSeq, proto.ClientDataMsg(int64(idx), client.Snapshot()))
}

func handleGetClientTorrents(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	args, e := proto.ParseGetClientTorrents(env.Args)
	if e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	idx := int(args.ClientIdx)
	client, ok := m.resolveClient(c, echoed, env.Raw, idx)
	if !ok {
		return
	}
	c.send(m.facets.serverSeq, proto.ClientTorrentsMsg(int64(idx), infoHashList(client.Torrents())))
}

func handleStartBTH(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	setActive(m, c, echoed, env, true)
}

func handleStopBTH(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	setActive(m, c, echoed, env, false)
}

// setActive backs both STARTBTH and STOPBTH: same argument shape, same
// RC risk set, opposite target state.
func setActive(m *Manager, c *Connection, echoed uint32, env proto.Envelope, active bool) {
	var args proto.ClientAndHashArgs
	var e *proto.ArgError
	if active {
		args, e = proto.ParseStartBTH(env.Args)
	} else {
		args, e = proto.ParseStopBTH(env.Args)
	}
	if e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	idx := int(args.ClientIdx)
	client, ok := m.resolveClient(c, echoed, env.Raw, idx)
	if !ok {
		return
	}
	ih := domain.InfoHash(args.InfoHash)
	bth, ok := resolveBTH(c, m, env.Raw, client, idx, ih)
	if !ok {
		return
	}
	if bth.Active() == active {
		c.send(m.facets.serverSeq, proto.CommandNoopMsg(env.Raw))
		return
	}
	if err := bth.SetActive(active); err != nil {
		c.send(m.facets.serverSeq, proto.CommandFailMsg(env.Raw, err.Error()))
		return
	}
	seq := m.facets.bumpBTHActive(idx, ih)
	c.send(seq, proto.CommandOKMsg(env.Raw))
}

func handleSubscribeBTHThroughput(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	args, e := proto.ParseSubscribeBTHThroughput(env.Args)
	if e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	idx := int(args.ClientIdx)
	if _, ok := m.resolveClient(c, echoed, env.Raw, idx); !ok {
		return
	}
	if c.subs[idx] {
		c.send(m.facets.serverSeq, proto.CommandNoopMsg(env.Raw))
		return
	}
	c.subs[idx] = true
	c.send(m.facets.serverSeq, proto.CommandOKMsg(env.Raw))
}

func handleUnsubscribeBTHThroughput(m *Manager, c *Connection, echoed uint32, env proto.Envelope) {
	args, e := proto.ParseUnsubscribeBTHThroughput(env.Args)
	if e != nil {
		argError(m, c, env.Raw, e)
		return
	}
	idx := int(args.ClientIdx)
	if _, ok := m.resolveClient(c, echoed, env.Raw, idx); !ok {
		return
	}
	if !c.subs[idx] {
		c.send(m.facets.serverSeq, proto.CommandNoopMsg(env.Raw))
		return
	}
	delete(c.subs, idx)
	c.send(m.facets.serverSeq, proto.CommandOKMsg(env.Raw))
}
