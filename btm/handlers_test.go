package btm

import (
	"net"
	"testing"

	"github.com/sh01/liasis/bencode"
	"github.com/sh01/liasis/domain"
	"github.com/sh01/liasis/proto"
	"github.com/sh01/liasis/wireframe"
)

func newTestManager(numClients int) (*Manager, *fakeDomain) {
	d := newFakeDomain(numClients)
	m := NewManager(d, 0)
	return m, d
}

func newTestConn(t *testing.T, m *Manager) (*Connection, *wireframe.Reader) {
	t.Helper()
	server, client := net.Pipe()
	c := newConnection(1, server, 0)
	m.conns[c.id] = c
	go c.writeLoop()
	t.Cleanup(func() {
		c.Close()
		client.Close()
	})
	return c, wireframe.NewReader(client, 0)
}

func envelope(tag string, args ...bencode.Value) proto.Envelope {
	raw := make(bencode.List, 0, len(args)+1)
	raw = append(raw, bencode.Str(tag))
	raw = append(raw, args...)
	return proto.Envelope{Tag: tag, Args: bencode.List(args), Raw: raw}
}

func decodeReply(t *testing.T, r *wireframe.Reader) (uint32, bencode.List) {
	t.Helper()
	fr, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	v, err := bencode.Decode(fr.Payload)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	list, ok := v.(bencode.List)
	if !ok {
		t.Fatalf("reply is not a list: %v", v)
	}
	return fr.SeqNum, list
}

func tagOf(t *testing.T, list bencode.List) string {
	t.Helper()
	s, ok := bencode.AsString(list[0])
	if !ok {
		t.Fatalf("reply head is not a string: %v", list[0])
	}
	return string(s)
}

func TestGetClientCount(t *testing.T) {
	m, _ := newTestManager(3)
	c, r := newTestConn(t, m)
	dispatchTable[proto.TagGetClientCount](m, c, 0, envelope(proto.TagGetClientCount))
	_, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagClientCount {
		t.Fatalf("tag = %v", list[0])
	}
	n, _ := bencode.AsInt(list[1])
	if n != 3 {
		t.Fatalf("count = %d", n)
	}
}

func TestGetClientDataOutOfRangeFreshConnectionIsCommandFail(t *testing.T) {
	m, _ := newTestManager(1)
	c, r := newTestConn(t, m)
	env := envelope(proto.TagGetClientData, bencode.Int(5))
	dispatchTable[proto.TagGetClientData](m, c, 0, env)
	_, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagCommandFail {
		t.Fatalf("tag = %v, want COMMANDFAIL", list[0])
	}
}

func TestGetClientDataStaleClientCountIsRCREJ(t *testing.T) {
	m, _ := newTestManager(1)
	c, r := newTestConn(t, m)
	// Simulate a prior client-count bump the connection hasn't caught up to.
	m.facets.bumpClientCount()
	env := envelope(proto.TagGetClientData, bencode.Int(5))
	dispatchTable[proto.TagGetClientData](m, c, 0, env)
	_, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagRCRej {
		t.Fatalf("tag = %v, want RCREJ", list[0])
	}
}

func TestGetClientDataInRangeIsUnaffectedByStaleClientCount(t *testing.T) {
	m, _ := newTestManager(1)
	c, r := newTestConn(t, m)
	m.facets.bumpClientCount()
	env := envelope(proto.TagGetClientData, bencode.Int(0))
	dispatchTable[proto.TagGetClientData](m, c, 0, env)
	_, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagClientData {
		t.Fatalf("tag = %v, want CLIENTDATA even though client-count advanced", list[0])
	}
}

func makeHash(b byte) domain.InfoHash {
	var ih domain.InfoHash
	ih[0] = b
	return ih
}

func TestBuildBTHFromMetainfoThenNoopOnDuplicate(t *testing.T) {
	m, d := newTestManager(1)
	c, r := newTestConn(t, m)
	metainfo := make([]byte, 20)
	metainfo[0] = 9

	env := envelope(proto.TagBuildBTHFromMetainfo, bencode.Int(0), bencode.String(metainfo), bencode.Int(0))
	dispatchTable[proto.TagBuildBTHFromMetainfo](m, c, 0, env)
	// The bth-set broadcast reaches every connection, this one included,
	// before the command's own reply.
	_, inv := decodeReply(t, r)
	if tagOf(t, inv) != proto.TagInvalidClientTorrents {
		t.Fatalf("tag = %v, want INVALIDCLIENTTORRENTS before the reply", inv[0])
	}
	seq, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagCommandOK {
		t.Fatalf("tag = %v, want COMMANDOK", list[0])
	}
	if seq == 0 {
		t.Error("expected bth-set bump to produce a nonzero seq")
	}
	if len(d.clients[0].bths) != 1 {
		t.Fatalf("expected one BTH registered, got %d", len(d.clients[0].bths))
	}

	dispatchTable[proto.TagBuildBTHFromMetainfo](m, c, seq, env)
	_, list2 := decodeReply(t, r)
	if tagOf(t, list2) != proto.TagCommandNoop {
		t.Fatalf("tag = %v, want COMMANDNOOP on duplicate with same active state", list2[0])
	}
}

func TestDropBTHRejectsActiveThenSucceedsOnceStopped(t *testing.T) {
	m, d := newTestManager(1)
	c, r := newTestConn(t, m)
	ih := makeHash(7)
	d.clients[0].bths[ih] = newFakeBTH(ih, true)
	d.clients[0].order = []domain.InfoHash{ih}

	env := envelope(proto.TagDropBTH, bencode.Int(0), bencode.String(ih[:]))
	dispatchTable[proto.TagDropBTH](m, c, 0, env)
	_, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagCommandFail {
		t.Fatalf("tag = %v, want COMMANDFAIL for an active BTH", list[0])
	}

	d.clients[0].bths[ih].active = false
	dispatchTable[proto.TagDropBTH](m, c, 0, env)
	_, inv := decodeReply(t, r)
	if tagOf(t, inv) != proto.TagInvalidClientTorrents {
		t.Fatalf("tag = %v, want INVALIDCLIENTTORRENTS before the reply", inv[0])
	}
	_, list2 := decodeReply(t, r)
	if tagOf(t, list2) != proto.TagCommandOK {
		t.Fatalf("tag = %v, want COMMANDOK once inactive", list2[0])
	}
	if _, ok := d.clients[0].bths[ih]; ok {
		t.Error("BTH should have been removed")
	}
}

func TestDropBTHAbsentBTHIsRCREJOnlyWhenBTHSetStale(t *testing.T) {
	m, d := newTestManager(1)
	c, r := newTestConn(t, m)
	ih := makeHash(1)
	env := envelope(proto.TagDropBTH, bencode.Int(0), bencode.String(ih[:]))

	dispatchTable[proto.TagDropBTH](m, c, 0, env)
	_, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagCommandFail {
		t.Fatalf("tag = %v, want COMMANDFAIL when bth-set never bumped", list[0])
	}

	m.facets.bumpBTHSet(0)
	dispatchTable[proto.TagDropBTH](m, c, 0, env)
	_, list2 := decodeReply(t, r)
	if tagOf(t, list2) != proto.TagRCRej {
		t.Fatalf("tag = %v, want RCREJ once bth-set advanced past echoed seq", list2[0])
	}
	_ = d
}

func TestStartBTHNoopWhenAlreadyActive(t *testing.T) {
	m, d := newTestManager(1)
	c, r := newTestConn(t, m)
	ih := makeHash(2)
	d.clients[0].bths[ih] = newFakeBTH(ih, true)
	d.clients[0].order = []domain.InfoHash{ih}

	env := envelope(proto.TagStartBTH, bencode.Int(0), bencode.String(ih[:]))
	dispatchTable[proto.TagStartBTH](m, c, 0, env)
	_, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagCommandNoop {
		t.Fatalf("tag = %v, want COMMANDNOOP", list[0])
	}
}

func TestSubscribeThenUnsubscribeRoundTrip(t *testing.T) {
	m, _ := newTestManager(1)
	c, r := newTestConn(t, m)

	env := envelope(proto.TagSubscribeBTHThroughput, bencode.Int(0))
	dispatchTable[proto.TagSubscribeBTHThroughput](m, c, 0, env)
	_, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagCommandOK {
		t.Fatalf("tag = %v, want COMMANDOK", list[0])
	}
	if !c.subs[0] {
		t.Fatal("expected subscription registered")
	}

	dispatchTable[proto.TagSubscribeBTHThroughput](m, c, 0, env)
	_, list2 := decodeReply(t, r)
	if tagOf(t, list2) != proto.TagCommandNoop {
		t.Fatalf("tag = %v, want COMMANDNOOP on re-subscribe", list2[0])
	}

	unsubEnv := envelope(proto.TagUnsubscribeBTHThroughput, bencode.Int(0))
	dispatchTable[proto.TagUnsubscribeBTHThroughput](m, c, 0, unsubEnv)
	_, list3 := decodeReply(t, r)
	if tagOf(t, list3) != proto.TagCommandOK {
		t.Fatalf("tag = %v, want COMMANDOK", list3[0])
	}
	if c.subs[0] {
		t.Fatal("expected subscription removed")
	}
}

func TestUnknownCommandEchoesOriginalList(t *testing.T) {
	m, _ := newTestManager(1)
	c, r := newTestConn(t, m)
	payload := bencode.List{bencode.Str("BOGUSCMD")}.Encode(nil)
	m.handleJob(job{conn: c, seqNum: 0, payload: payload})
	_, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagUnknownCmd {
		t.Fatalf("tag = %v, want UNKNOWNCMD", list[0])
	}
}

func TestMalformedPayloadIsBencError(t *testing.T) {
	m, _ := newTestManager(1)
	c, r := newTestConn(t, m)
	payload := []byte("not bencode")
	m.handleJob(job{conn: c, seqNum: 0, payload: payload})
	_, list := decodeReply(t, r)
	if tagOf(t, list) != proto.TagBencError {
		t.Fatalf("tag = %v, want BENCERROR", list[0])
	}
	echoed, _ := bencode.AsString(list[1])
	if string(echoed) != "not bencode" {
		t.Fatalf("echoed = %q", echoed)
	}
}
