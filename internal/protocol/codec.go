package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameDecoder reassembles frames from arbitrarily split input. It is a pure
// state machine: bytes go in through Feed, complete frames come out in
// order, and nothing is dropped or duplicated across calls.
type FrameDecoder struct {
	buf []byte
	err error
}

// NewFrameDecoder creates an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed appends p to the internal buffer and returns every frame that is now
// complete. Once a framing error has been returned the decoder is poisoned
// and keeps returning it: the byte position of the next frame is unknown.
func (d *FrameDecoder) Feed(p []byte) ([]Frame, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.buf = append(d.buf, p...)

	var frames []Frame
	for {
		f, ok, err := d.next()
		if err != nil {
			d.err = err
			return frames, err
		}
		if !ok {
			return frames, nil
		}
		frames = append(frames, f)
	}
}

// Buffered returns how many bytes are waiting for the rest of their frame.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

// next extracts one frame from the buffer if a complete one is available.
func (d *FrameDecoder) next() (Frame, bool, error) {
	if len(d.buf) < LengthPrefixSize {
		return Frame{}, false, nil
	}

	length := binary.BigEndian.Uint32(d.buf[:LengthPrefixSize])
	if length < 1 || length > MaxFrameSize {
		return Frame{}, false, fmt.Errorf("declared length %d (max %d): %w", length, MaxFrameSize, ErrInvalidFrameLength)
	}

	total := LengthPrefixSize + int(length)
	if len(d.buf) < total {
		return Frame{}, false, nil
	}

	payload := make([]byte, total-HeaderSize)
	copy(payload, d.buf[HeaderSize:total])
	f := Frame{
		Type:    PacketType(d.buf[LengthPrefixSize]),
		Payload: payload,
	}

	// Shift the remainder down so the buffer does not grow without bound.
	n := copy(d.buf, d.buf[total:])
	d.buf = d.buf[:n]

	return f, true, nil
}

// FrameReader pulls frames from a byte stream, one per call to Next.
type FrameReader struct {
	r       io.Reader
	dec     *FrameDecoder
	chunk   []byte
	pending []Frame
	readErr error
}

// NewFrameReader wraps a stream such as a net.Conn.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r:     r,
		dec:   NewFrameDecoder(),
		chunk: make([]byte, 16*1024),
	}
}

// Next blocks until a complete frame is available or the stream fails.
// A stream that ends in the middle of a frame yields io.ErrUnexpectedEOF.
func (fr *FrameReader) Next() (Frame, error) {
	for {
		if len(fr.pending) > 0 {
			f := fr.pending[0]
			fr.pending = fr.pending[1:]
			return f, nil
		}

		if fr.readErr != nil {
			if errors.Is(fr.readErr, io.EOF) && fr.dec.Buffered() > 0 {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, fr.readErr
		}

		n, err := fr.r.Read(fr.chunk)
		if n > 0 {
			frames, ferr := fr.dec.Feed(fr.chunk[:n])
			fr.pending = append(fr.pending, frames...)
			if ferr != nil {
				fr.readErr = ferr
				continue
			}
		}
		if err != nil {
			fr.readErr = err
		}
	}
}

// EncodeFrame serializes a packet into a complete frame.
// Format: [length:4][type:1][payload...], length = 1 + len(payload)
func EncodeFrame(pkt Packet) ([]byte, error) {
	w := NewWriter()
	pkt.Write(w)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", pkt.Type(), err)
	}

	payload := w.Bytes()
	if len(payload)+1 > MaxFrameSize {
		return nil, fmt.Errorf("encode %s: payload of %d bytes: %w", pkt.Type(), len(payload), ErrValueTooLong)
	}

	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(payload)+1))
	frame[LengthPrefixSize] = byte(pkt.Type())
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// WriteFrame encodes a packet and writes it to w in a single call.
func WriteFrame(w io.Writer, pkt Packet) error {
	frame, err := EncodeFrame(pkt)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", pkt.Type(), err)
	}
	return nil
}
