package proto

import (
	"fmt"

	"github.com/sh01/liasis/bencode"
)

// Envelope is a decoded, shape-validated client message: a bencoded list
// whose head is the type tag and whose tail is the raw argument list.
type Envelope struct {
	Tag  string
	Args bencode.List // tail elements, not yet schema-checked
	Raw  bencode.List // the full list, tag included; used for echoing
}

// ShapeError means the payload decoded as valid bencode but not as
// "a non-empty list whose first element is a byte string" — per spec this
// gets the same BENCERROR(original_bytes) treatment as a bencode syntax
// error, because the frontend has nothing structured to correlate against.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string { return "proto: " + e.Reason }

// DecodeEnvelope decodes one frame payload into an Envelope. Any error
// returned (bencode syntax error or ShapeError) means the caller must
// reply BENCERROR with the untouched original payload bytes — this
// function never gets far enough to have a canonical list to echo instead.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	v, err := bencode.Decode(payload)
	if err != nil {
		return Envelope{}, err
	}
	list, ok := v.(bencode.List)
	if !ok {
		return Envelope{}, &ShapeError{Reason: "top-level value is not a list"}
	}
	if len(list) == 0 {
		return Envelope{}, &ShapeError{Reason: "message list is empty"}
	}
	tagVal, ok := list[0].(bencode.String)
	if !ok {
		return Envelope{}, &ShapeError{Reason: "first element is not a byte string"}
	}
	return Envelope{
		Tag:  string(tagVal),
		Args: bencode.List(list[1:]),
		Raw:  list,
	}, nil
}

// EncodeMessage bencodes tag followed by args as a list: l<tag><args...>e.
func EncodeMessage(tag string, args ...bencode.Value) []byte {
	list := make(bencode.List, 0, len(args)+1)
	list = append(list, bencode.Str(tag))
	list = append(list, args...)
	return list.Encode(nil)
}

// EncodeList bencodes an already-assembled list (typically Envelope.Raw,
// for verbatim echoing of a received command).
func EncodeList(list bencode.List) []byte {
	return list.Encode(nil)
}

// ArgError describes a single argument schema violation, carrying enough
// detail to build the ARGERROR human-readable message.
type ArgError struct {
	Index int // -1 if the violation is arity, not a specific element
	Msg   string
}

func (e *ArgError) Error() string {
	if e.Index < 0 {
		return e.Msg
	}
	return fmt.Sprintf("argument %d: %s", e.Index, e.Msg)
}

func arityError(cmd string, want, got int) *ArgError {
	return &ArgError{Index: -1, Msg: fmt.Sprintf("%s expects %d argument(s), got %d", cmd, want, got)}
}
