// Package bencode implements the bencoding grammar used by the liasis
// control protocol: integers, byte strings, lists and dictionaries.
package bencode

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// Value is any decoded bencoded entity.
type Value interface {
	// Encode appends the canonical encoding of the value to buf and
	// returns the extended slice.
	Encode(buf []byte) []byte
}

// Int is a bencoded integer.
type Int int64

func (i Int) Encode(buf []byte) []byte {
	buf = append(buf, 'i')
	buf = strconv.AppendInt(buf, int64(i), 10)
	return append(buf, 'e')
}

// String is a bencoded byte string. It may contain arbitrary binary data
// (info-hashes, metainfo blobs, ...), so it is a byte slice rather than a
// Go string.
type String []byte

func (s String) Encode(buf []byte) []byte {
	buf = strconv.AppendInt(buf, int64(len(s)), 10)
	buf = append(buf, ':')
	return append(buf, s...)
}

// List is an ordered bencoded list.
type List []Value

func (l List) Encode(buf []byte) []byte {
	buf = append(buf, 'l')
	for _, v := range l {
		buf = v.Encode(buf)
	}
	return append(buf, 'e')
}

// Dict is a bencoded dictionary. Keys are raw byte strings; on encode they
// are sorted ascending by raw byte value regardless of insertion order, so
// that Encode is always canonical.
type Dict map[string]Value

func (d Dict) Encode(buf []byte) []byte {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf = append(buf, 'd')
	for _, k := range keys {
		buf = String(k).Encode(buf)
		buf = d[k].Encode(buf)
	}
	return append(buf, 'e')
}

// ErrorKind classifies why decoding failed.
type ErrorKind int

const (
	ErrUnexpectedEOF ErrorKind = iota
	ErrBadIntSyntax
	ErrBadStringLength
	ErrTruncatedString
	ErrUnterminatedList
	ErrUnterminatedDict
	ErrNonStringKey
	ErrTrailingGarbage
	ErrUnknownToken
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnexpectedEOF:
		return "unexpected end of input"
	case ErrBadIntSyntax:
		return "malformed integer"
	case ErrBadStringLength:
		return "malformed string length"
	case ErrTruncatedString:
		return "string runs past end of input"
	case ErrUnterminatedList:
		return "unterminated list"
	case ErrUnterminatedDict:
		return "unterminated dictionary"
	case ErrNonStringKey:
		return "dictionary key is not a string"
	case ErrTrailingGarbage:
		return "trailing data after top-level value"
	case ErrUnknownToken:
		return "unrecognised token"
	default:
		return "unknown decode error"
	}
}

// DecodeError reports a structural violation of the bencode grammar. Offset
// is the index of the first offending byte in the input passed to Decode.
type DecodeError struct {
	Kind   ErrorKind
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bencode: %s at offset %d", e.Kind, e.Offset)
}

// Decode parses exactly one bencoded value from data and confirms nothing
// but the value itself is present. It is the entry point callers should use
// for framed payloads, where "the whole frame is one bencoded value" is an
// invariant of the protocol layer above this package.
func Decode(data []byte) (Value, error) {
	d := decoder{data: data}
	v, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, &DecodeError{Kind: ErrTrailingGarbage, Offset: d.pos}
	}
	return v, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) errAt(kind ErrorKind, offset int) error {
	return &DecodeError{Kind: kind, Offset: offset}
}

func (d *decoder) decodeValue() (Value, error) {
	if d.pos >= len(d.data) {
		return nil, d.errAt(ErrUnexpectedEOF, d.pos)
	}
	switch c := d.data[d.pos]; {
	case c == 'i':
		return d.decodeInt()
	case c == 'l':
		return d.decodeList()
	case c == 'd':
		return d.decodeDict()
	case c >= '0' && c <= '9':
		return d.decodeString()
	default:
		return nil, d.errAt(ErrUnknownToken, d.pos)
	}
}

func (d *decoder) decodeInt() (Int, error) {
	start := d.pos
	d.pos++ // consume 'i'
	digitsStart := d.pos
	if d.pos < len(d.data) && d.data[d.pos] == '-' {
		d.pos++
	}
	numStart := d.pos
	for d.pos < len(d.data) && d.data[d.pos] >= '0' && d.data[d.pos] <= '9' {
		d.pos++
	}
	if d.pos == numStart || d.pos >= len(d.data) || d.data[d.pos] != 'e' {
		return 0, d.errAt(ErrBadIntSyntax, d.pos)
	}
	digits := d.data[digitsStart:d.pos]
	if err := validateIntDigits(digits); err != nil {
		return 0, d.errAt(ErrBadIntSyntax, start)
	}
	val, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return 0, d.errAt(ErrBadIntSyntax, start)
	}
	d.pos++ // consume 'e'
	return Int(val), nil
}

// validateIntDigits rejects "-0", leading zeros other than a lone "0", and
// an empty digit string (bare "-").
func validateIntDigits(digits []byte) error {
	if len(digits) == 0 {
		return fmt.Errorf("empty integer")
	}
	neg := digits[0] == '-'
	mag := digits
	if neg {
		mag = digits[1:]
		if len(mag) == 0 {
			return fmt.Errorf("bare sign")
		}
	}
	if mag[0] == '0' && len(mag) != 1 {
		return fmt.Errorf("leading zero")
	}
	if neg && mag[0] == '0' {
		return fmt.Errorf("negative zero")
	}
	return nil
}

func (d *decoder) decodeString() (String, error) {
	start := d.pos
	lenStart := d.pos
	for d.pos < len(d.data) && d.data[d.pos] >= '0' && d.data[d.pos] <= '9' {
		d.pos++
	}
	if d.pos == lenStart || d.pos >= len(d.data) || d.data[d.pos] != ':' {
		return nil, d.errAt(ErrBadStringLength, d.pos)
	}
	lenBytes := d.data[lenStart:d.pos]
	if lenBytes[0] == '0' && len(lenBytes) != 1 {
		return nil, d.errAt(ErrBadStringLength, start)
	}
	length, err := strconv.ParseInt(string(lenBytes), 10, 64)
	if err != nil || length < 0 {
		return nil, d.errAt(ErrBadStringLength, start)
	}
	d.pos++ // consume ':'
	if int64(len(d.data)-d.pos) < length {
		return nil, d.errAt(ErrTruncatedString, start)
	}
	s := d.data[d.pos : d.pos+int(length)]
	d.pos += int(length)
	out := make(String, len(s))
	copy(out, s)
	return out, nil
}

func (d *decoder) decodeList() (List, error) {
	start := d.pos
	d.pos++ // consume 'l'
	list := List{}
	for {
		if d.pos >= len(d.data) {
			return nil, d.errAt(ErrUnterminatedList, start)
		}
		if d.data[d.pos] == 'e' {
			d.pos++
			return list, nil
		}
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
}

func (d *decoder) decodeDict() (Dict, error) {
	start := d.pos
	d.pos++ // consume 'd'
	dict := Dict{}
	for {
		if d.pos >= len(d.data) {
			return nil, d.errAt(ErrUnterminatedDict, start)
		}
		if d.data[d.pos] == 'e' {
			d.pos++
			return dict, nil
		}
		keyStart := d.pos
		keyVal, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		key, ok := keyVal.(String)
		if !ok {
			return nil, d.errAt(ErrNonStringKey, keyStart)
		}
		val, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		dict[string(key)] = val
	}
}

// Equal reports whether two bencode values are structurally and byte-for-
// byte identical. Used by round-trip tests and by the echo-fidelity checks
// in package proto.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && bytes.Equal(av, bv)
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Dict:
		bv, ok := b.(Dict)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, ok := bv[k]
			if !ok || !Equal(v, ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
