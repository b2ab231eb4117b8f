package wireframe

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		seqNum  uint32
		payload []byte
	}{
		{"noop", 0, nil},
		{"small", 1, []byte("hello")},
		{"seq wraparound value", 0xFFFFFFFF, []byte("x")},
		{"empty non-nil payload", 5, []byte{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			if err := w.WriteFrame(c.seqNum, c.payload); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}
			r := NewReader(&buf, 0)
			f, err := r.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if f.SeqNum != c.seqNum {
				t.Errorf("SeqNum = %d, want %d", f.SeqNum, c.seqNum)
			}
			if len(c.payload) == 0 {
				if !f.IsNoop() {
					t.Errorf("expected NOOP frame")
				}
			} else if !bytes.Equal(f.Payload, c.payload) {
				t.Errorf("Payload = %q, want %q", f.Payload, c.payload)
			}
		})
	}
}

func TestReadFrameNeedsMoreData(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteFrame(1, []byte("hello world")); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()
	// Feed only the header plus a partial payload; ReadFrame should
	// block on io.ReadFull and return an error (here, io.ErrUnexpectedEOF) rather than
	// a short frame.
	partial := bytes.NewReader(full[:HeaderSize+3])
	r := NewReader(partial, 0)
	if _, err := r.ReadFrame(); err == nil {
		t.Fatal("expected error for truncated frame, got nil")
	}
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var header [HeaderSize]byte
	header[3] = 1 // data_len = 1 (as big-endian low byte)
	// Use a maxFrame of 0 (bytes) to force rejection of any positive length.
	r := NewReader(bytes.NewReader(header[:]), 0)
	r.maxFrame = 0
	_, err := r.ReadFrame()
	if err == nil || !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("got %v, want ErrFrameTooLarge", err)
	}
}

func TestReadFrameEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), 0)
	if _, err := r.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestSequentialFramesPreserveOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for i := uint32(0); i < 5; i++ {
		if err := w.WriteFrame(i, []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	r := NewReader(&buf, 0)
	for i := uint32(0); i < 5; i++ {
		f, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if f.SeqNum != i || f.Payload[0] != byte(i) {
			t.Fatalf("frame %d mismatch: %+v", i, f)
		}
	}
}
