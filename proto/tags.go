package proto

// Client -> server command tags. Names match the wire tags verbatim.
const (
	TagBuildBTHFromMetainfo      = "BUILDBTHFROMMETAINFO"
	TagDropBTH                   = "DROPBTH"
	TagForceBTCReannounce        = "FORCEBTCREANNOUNCE"
	TagGetBTHData                = "GETBTHDATA"
	TagGetBTHThroughput          = "GETBTHTHROUGHPUT"
	TagGetClientCount            = "GETCLIENTCOUNT"
	TagGetClientData             = "GETCLIENTDATA"
	TagGetClientTorrents         = "GETCLIENTTORRENTS"
	TagStartBTH                  = "STARTBTH"
	TagStopBTH                   = "STOPBTH"
	TagSubscribeBTHThroughput    = "SUBSCRIBEBTHTHROUGHPUT"
	TagUnsubscribeBTHThroughput  = "UNSUBSCRIBEBTHTHROUGHPUT"
)

// Server -> client tags.
const (
	TagArgError               = "ARGERROR"
	TagBencError              = "BENCERROR"
	TagUnknownCmd             = "UNKNOWNCMD"
	TagRCRej                  = "RCREJ"
	TagCommandOK              = "COMMANDOK"
	TagCommandNoop            = "COMMANDNOOP"
	TagCommandFail            = "COMMANDFAIL"
	TagClientCount            = "CLIENTCOUNT"
	TagClientData             = "CLIENTDATA"
	TagClientTorrents         = "CLIENTTORRENTS"
	TagBTHData                = "BTHDATA"
	TagBTHThroughput          = "BTHTHROUGHPUT"
	TagBTHThroughputSlice     = "BTHTHROUGHPUTSLICE"
	TagInvalidClientCount     = "INVALIDCLIENTCOUNT"
	TagInvalidClientTorrents  = "INVALIDCLIENTTORRENTS"
	TagUnsubscribe            = "UNSUBSCRIBE"
)

// CommandTags lists every recognised client->server tag. The dispatcher
// in btm answers UNKNOWNCMD from its own dispatch table, not from this set.
var CommandTags = map[string]bool{
	TagBuildBTHFromMetainfo:     true,
	TagDropBTH:                  true,
	TagForceBTCReannounce:       true,
	TagGetBTHData:               true,
	TagGetBTHThroughput:         true,
	TagGetClientCount:           true,
	TagGetClientData:            true,
	TagGetClientTorrents:        true,
	TagStartBTH:                 true,
	TagStopBTH:                  true,
	TagSubscribeBTHThroughput:   true,
	TagUnsubscribeBTHThroughput: true,
}
