// Package wireframe implements the length-prefixed, sequence-numbered
// frame format that carries bencoded control-protocol messages between a
// liasis daemon and its frontends:
//
//	frame = u32_be data_len, u32_be seq_num, byte[data_len] data
//
// A data_len of zero is a liveness NOOP with no payload.
package wireframe

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// HeaderSize is the fixed length of the data_len+seq_num header.
const HeaderSize = 8

// DefaultMaxFrame caps payload size well below the wire format's u32
// ceiling so that a single misbehaving peer can't force an 4GiB
// allocation. Callers that genuinely need larger frames can raise it via
// NewReader's maxFrame argument.
const DefaultMaxFrame = 64 * 1024 * 1024

// ErrFrameTooLarge is returned (wrapped) when a peer announces a data_len
// exceeding the reader's configured maximum. It is always fatal to the
// connection: the reader has no way to skip the oversize payload without
// buffering it.
var ErrFrameTooLarge = errors.New("wireframe: frame exceeds maximum size")

// Frame is one decoded (seq_num, payload) pair. An empty Payload
// represents a NOOP frame.
type Frame struct {
	SeqNum  uint32
	Payload []byte
}

// IsNoop reports whether the frame carries no bencoded payload.
func (f Frame) IsNoop() bool {
	return len(f.Payload) == 0
}

// Reader incrementally decodes frames from a byte stream. It is not safe
// for concurrent use; each connection owns exactly one Reader on its
// read side.
type Reader struct {
	r        *bufio.Reader
	maxFrame uint32
}

// NewReader wraps r. maxFrame bounds the accepted data_len; a value of 0
// selects DefaultMaxFrame.
func NewReader(r io.Reader, maxFrame uint32) *Reader {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrame
	}
	return &Reader{r: bufio.NewReaderSize(r, HeaderSize+4096), maxFrame: maxFrame}
}

// ReadFrame blocks until one full frame has been read, or returns an
// error. io.EOF (or an error wrapping it) is returned when the peer
// closes the connection cleanly between frames. ErrFrameTooLarge is
// returned when the announced data_len exceeds the reader's maximum;
// callers must treat this as fatal and close the connection.
func (r *Reader) ReadFrame() (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return Frame{}, err
	}
	dataLen := binary.BigEndian.Uint32(header[0:4])
	seqNum := binary.BigEndian.Uint32(header[4:8])
	if dataLen == 0 {
		return Frame{SeqNum: seqNum}, nil
	}
	if dataLen > r.maxFrame {
		return Frame{}, fmt.Errorf("%w: data_len=%d max=%d", ErrFrameTooLarge, dataLen, r.maxFrame)
	}
	payload := make([]byte, dataLen)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{SeqNum: seqNum, Payload: payload}, nil
}

// Writer serialises frames onto an underlying io.Writer. WriteFrame is safe
// for concurrent use: writes are serialised with a mutex so that two
// goroutines enqueueing frames on the same connection never interleave
// their bytes, satisfying the "writer serialises atomically" requirement
// of the frame codec.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one frame. A nil or empty payload is written as a
// data_len==0 NOOP.
func (w *Writer) WriteFrame(seqNum uint32, payload []byte) error {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[4:8], seqNum)
	copy(buf[HeaderSize:], payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(buf)
	return err
}
