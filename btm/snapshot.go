package btm

import (
	"github.com/sh01/liasis/bencode"
	"github.com/sh01/liasis/domain"
)

// bencIntList renders a slice of per-cycle sample values (or NoSample
// sentinels) as the bencode list shape the wire protocol carries them in.
func bencIntList(vs []int64) bencode.List {
	out := make(bencode.List, len(vs))
	for i, v := range vs {
		out[i] = bencode.Int(v)
	}
	return out
}

// infoHashList renders a client's BTH set as CLIENTTORRENTS' payload:
// info_hash byte strings in the client's own stable order.
func infoHashList(bths []domain.BTH) bencode.List {
	out := make(bencode.List, len(bths))
	for i, b := range bths {
		ih := b.InfoHash()
		out[i] = bencode.String(ih[:])
	}
	return out
}
