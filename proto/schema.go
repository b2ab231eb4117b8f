package proto

import (
	"fmt"

	"github.com/sh01/liasis/bencode"
)

func expectArity(cmd string, args bencode.List, n int) *ArgError {
	if len(args) != n {
		return arityError(cmd, n, len(args))
	}
	return nil
}

func nnint(cmd string, args bencode.List, idx int) (int64, *ArgError) {
	v, ok := bencode.AsInt(args[idx])
	if !ok {
		return 0, &ArgError{Index: idx, Msg: fmt.Sprintf("%s: expected integer", cmd)}
	}
	if v < 0 {
		return 0, &ArgError{Index: idx, Msg: fmt.Sprintf("%s: expected non-negative integer, got %d", cmd, v)}
	}
	return int64(v), nil
}

func anyint(cmd string, args bencode.List, idx int) (int64, *ArgError) {
	v, ok := bencode.AsInt(args[idx])
	if !ok {
		return 0, &ArgError{Index: idx, Msg: fmt.Sprintf("%s: expected integer", cmd)}
	}
	return int64(v), nil
}

func str(cmd string, args bencode.List, idx int) ([]byte, *ArgError) {
	v, ok := bencode.AsString(args[idx])
	if !ok {
		return nil, &ArgError{Index: idx, Msg: fmt.Sprintf("%s: expected byte string", cmd)}
	}
	return []byte(v), nil
}

func boolArg(cmd string, args bencode.List, idx int) (bool, *ArgError) {
	v, ok := bencode.AsBool(args[idx])
	if !ok {
		return false, &ArgError{Index: idx, Msg: fmt.Sprintf("%s: expected 0 or 1", cmd)}
	}
	return v, nil
}

// infoHash validates the byte-string argument at idx as a 20-byte
// info-hash, matching BTH's identity per the spec's data model.
func infoHash(cmd string, args bencode.List, idx int) ([20]byte, *ArgError) {
	var out [20]byte
	raw, err := str(cmd, args, idx)
	if err != nil {
		return out, err
	}
	if len(raw) != 20 {
		return out, &ArgError{Index: idx, Msg: fmt.Sprintf("%s: info_hash must be 20 bytes, got %d", cmd, len(raw))}
	}
	copy(out[:], raw)
	return out, nil
}

// BuildBTHFromMetainfoArgs is the parsed argument set for BUILDBTHFROMMETAINFO.
type BuildBTHFromMetainfoArgs struct {
	ClientIdx     int64
	MetainfoBytes []byte
	InitialActive bool
}

func ParseBuildBTHFromMetainfo(args bencode.List) (BuildBTHFromMetainfoArgs, *ArgError) {
	var out BuildBTHFromMetainfoArgs
	if e := expectArity(TagBuildBTHFromMetainfo, args, 3); e != nil {
		return out, e
	}
	var e *ArgError
	if out.ClientIdx, e = nnint(TagBuildBTHFromMetainfo, args, 0); e != nil {
		return out, e
	}
	if out.MetainfoBytes, e = str(TagBuildBTHFromMetainfo, args, 1); e != nil {
		return out, e
	}
	if out.InitialActive, e = boolArg(TagBuildBTHFromMetainfo, args, 2); e != nil {
		return out, e
	}
	return out, nil
}

// ClientAndHashArgs covers DROPBTH, GETBTHDATA, STARTBTH, STOPBTH: all
// (client_idx, info_hash).
type ClientAndHashArgs struct {
	ClientIdx int64
	InfoHash  [20]byte
}

func parseClientAndHash(cmd string, args bencode.List) (ClientAndHashArgs, *ArgError) {
	var out ClientAndHashArgs
	if e := expectArity(cmd, args, 2); e != nil {
		return out, e
	}
	var e *ArgError
	if out.ClientIdx, e = nnint(cmd, args, 0); e != nil {
		return out, e
	}
	if out.InfoHash, e = infoHash(cmd, args, 1); e != nil {
		return out, e
	}
	return out, nil
}

func ParseDropBTH(args bencode.List) (ClientAndHashArgs, *ArgError) {
	return parseClientAndHash(TagDropBTH, args)
}

func ParseGetBTHData(args bencode.List) (ClientAndHashArgs, *ArgError) {
	return parseClientAndHash(TagGetBTHData, args)
}

func ParseStartBTH(args bencode.List) (ClientAndHashArgs, *ArgError) {
	return parseClientAndHash(TagStartBTH, args)
}

func ParseStopBTH(args bencode.List) (ClientAndHashArgs, *ArgError) {
	return parseClientAndHash(TagStopBTH, args)
}

// ClientIdxArgs covers FORCEBTCREANNOUNCE, GETCLIENTDATA, GETCLIENTTORRENTS,
// SUBSCRIBEBTHTHROUGHPUT, UNSUBSCRIBEBTHTHROUGHPUT: all (client_idx).
type ClientIdxArgs struct {
	ClientIdx int64
}

func parseClientIdx(cmd string, args bencode.List) (ClientIdxArgs, *ArgError) {
	var out ClientIdxArgs
	if e := expectArity(cmd, args, 1); e != nil {
		return out, e
	}
	var e *ArgError
	if out.ClientIdx, e = nnint(cmd, args, 0); e != nil {
		return out, e
	}
	return out, nil
}

func ParseForceBTCReannounce(args bencode.List) (ClientIdxArgs, *ArgError) {
	return parseClientIdx(TagForceBTCReannounce, args)
}

func ParseGetClientData(args bencode.List) (ClientIdxArgs, *ArgError) {
	return parseClientIdx(TagGetClientData, args)
}

func ParseGetClientTorrents(args bencode.List) (ClientIdxArgs, *ArgError) {
	return parseClientIdx(TagGetClientTorrents, args)
}

func ParseSubscribeBTHThroughput(args bencode.List) (ClientIdxArgs, *ArgError) {
	return parseClientIdx(TagSubscribeBTHThroughput, args)
}

func ParseUnsubscribeBTHThroughput(args bencode.List) (ClientIdxArgs, *ArgError) {
	return parseClientIdx(TagUnsubscribeBTHThroughput, args)
}

func ParseGetClientCount(args bencode.List) *ArgError {
	return expectArity(TagGetClientCount, args, 0)
}

// GetBTHThroughputArgs is the parsed argument set for GETBTHTHROUGHPUT.
type GetBTHThroughputArgs struct {
	ClientIdx  int64
	InfoHash   [20]byte
	MaxHistory int64
}

func ParseGetBTHThroughput(args bencode.List) (GetBTHThroughputArgs, *ArgError) {
	var out GetBTHThroughputArgs
	if e := expectArity(TagGetBTHThroughput, args, 3); e != nil {
		return out, e
	}
	var e *ArgError
	if out.ClientIdx, e = nnint(TagGetBTHThroughput, args, 0); e != nil {
		return out, e
	}
	if out.InfoHash, e = infoHash(TagGetBTHThroughput, args, 1); e != nil {
		return out, e
	}
	if out.MaxHistory, e = nnint(TagGetBTHThroughput, args, 2); e != nil {
		return out, e
	}
	return out, nil
}
