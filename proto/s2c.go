package proto

import "github.com/sh01/liasis/bencode"

// ArgErrorMsg builds an ARGERROR reply: the original command list plus a
// human-readable diagnostic, per the wire table's
// ARGERROR(<original_list>, human_msg).
func ArgErrorMsg(original bencode.List, reason string) []byte {
	return EncodeMessage(TagArgError, original, bencode.Str(reason))
}

// BencErrorMsg builds a BENCERROR reply. raw is the untouched payload
// bytes that failed to decode or shape-check; it is echoed verbatim, not
// re-encoded, so the frontend can diff it against what it sent.
func BencErrorMsg(raw []byte) []byte {
	return EncodeMessage(TagBencError, bencode.String(raw))
}

// UnknownCmdMsg builds an UNKNOWNCMD reply, echoing the received list so
// the frontend can identify which message went unrecognised.
func UnknownCmdMsg(original bencode.List) []byte {
	return EncodeMessage(TagUnknownCmd, original)
}

// RCRejMsg builds an RCREJ reply, echoing the original command list so the
// frontend can identify which in-flight command was rejected for staleness.
func RCRejMsg(original bencode.List) []byte {
	return EncodeMessage(TagRCRej, original)
}

// CommandOKMsg builds a COMMANDOK reply, echoing the original command list.
func CommandOKMsg(original bencode.List) []byte {
	return EncodeMessage(TagCommandOK, original)
}

// CommandNoopMsg builds a COMMANDNOOP reply, sent when a command's effect
// was already true (e.g. STARTBTH on an already-active BTH).
func CommandNoopMsg(original bencode.List) []byte {
	return EncodeMessage(TagCommandNoop, original)
}

// CommandFailMsg builds a COMMANDFAIL reply: the original command list
// plus a human-readable reason, sent when a command's preconditions were
// valid but the domain operation itself could not complete (e.g. unknown
// info_hash).
func CommandFailMsg(original bencode.List, reason string) []byte {
	return EncodeMessage(TagCommandFail, original, bencode.Str(reason))
}

// ClientCountMsg builds a CLIENTCOUNT reply/notification.
func ClientCountMsg(count int64) []byte {
	return EncodeMessage(TagClientCount, bencode.Int(count))
}

// ClientDataMsg builds a CLIENTDATA reply: CLIENTDATA(client_idx, data),
// data an already-projected, opaque bencode dict.
func ClientDataMsg(clientIdx int64, data bencode.Dict) []byte {
	return EncodeMessage(TagClientData, bencode.Int(clientIdx), data)
}

// ClientTorrentsMsg builds a CLIENTTORRENTS reply:
// CLIENTTORRENTS(client_idx, [info_hash…]).
func ClientTorrentsMsg(clientIdx int64, hashes bencode.List) []byte {
	return EncodeMessage(TagClientTorrents, bencode.Int(clientIdx), hashes)
}

// BTHDataMsg builds a BTHDATA reply:
// BTHDATA(client_idx, info_hash, data), data an already-projected, opaque
// bencode dict.
func BTHDataMsg(clientIdx int64, infoHash []byte, data bencode.Dict) []byte {
	return EncodeMessage(TagBTHData, bencode.Int(clientIdx), bencode.String(infoHash), data)
}

// BTHThroughputMsg builds a BTHTHROUGHPUT reply:
// BTHTHROUGHPUT(client_idx, info_hash, down_cycle_ms, down_list,
// up_cycle_ms, up_list).
func BTHThroughputMsg(clientIdx int64, infoHash []byte, downCycleMS int64, down bencode.List, upCycleMS int64, up bencode.List) []byte {
	return EncodeMessage(TagBTHThroughput,
		bencode.Int(clientIdx), bencode.String(infoHash),
		bencode.Int(downCycleMS), down,
		bencode.Int(upCycleMS), up)
}

// BTHThroughputSliceMsg builds an unsolicited BTHTHROUGHPUTSLICE
// notification: (client_idx, down_list, up_list), each list holding the
// single most recent sample for every BTH of that client, in the
// same order as GETCLIENTTORRENTS would report them.
func BTHThroughputSliceMsg(clientIdx int64, down, up bencode.List) []byte {
	return EncodeMessage(TagBTHThroughputSlice, bencode.Int(clientIdx), down, up)
}

// InvalidClientCountMsg builds an unsolicited INVALIDCLIENTCOUNT
// notification, telling every subscriber that CLIENTCOUNT changed.
func InvalidClientCountMsg() []byte {
	return EncodeMessage(TagInvalidClientCount)
}

// InvalidClientTorrentsMsg builds an unsolicited INVALIDCLIENTTORRENTS
// notification naming the client whose torrent set changed.
func InvalidClientTorrentsMsg(clientIdx int64) []byte {
	return EncodeMessage(TagInvalidClientTorrents, bencode.Int(clientIdx))
}

// UnsubscribeMsg builds an unsolicited UNSUBSCRIBE notification, sent when
// the server revokes a subscription the client did not ask to end (e.g.
// the client count changed, or the domain revoked the subscribed client
// while a throughput subscription was live).
func UnsubscribeMsg(clientIdx int64) []byte {
	return EncodeMessage(TagUnsubscribe, bencode.Int(clientIdx))
}
