package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Reader decodes primitive values from a packet payload. Like Writer it
// keeps the first error and turns later reads into zero values, so packet
// Read methods can be written as straight field lists.
type Reader struct {
	r   *bytes.Reader
	err error
}

// NewReader creates a Reader over a payload.
func NewReader(payload []byte) *Reader {
	return &Reader{r: bytes.NewReader(payload)}
}

// Err returns the first error encountered while reading.
func (r *Reader) Err() error {
	return r.err
}

// Remaining returns the number of unread payload bytes.
func (r *Reader) Remaining() int {
	return r.r.Len()
}

func (r *Reader) get(v interface{}) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.BigEndian, v); err != nil {
		r.err = fmt.Errorf("read %T: %w", v, ErrShortBuffer)
	}
}

// ReadBool reads a one-byte bool.
func (r *Reader) ReadBool() bool {
	return r.ReadUint8() != 0
}

// ReadInt8 reads a signed byte.
func (r *Reader) ReadInt8() int8 {
	var v int8
	r.get(&v)
	return v
}

// ReadUint8 reads an unsigned byte.
func (r *Reader) ReadUint8() uint8 {
	var v uint8
	r.get(&v)
	return v
}

// ReadInt16 reads a big-endian int16.
func (r *Reader) ReadInt16() int16 {
	var v int16
	r.get(&v)
	return v
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() uint16 {
	var v uint16
	r.get(&v)
	return v
}

// ReadInt32 reads a big-endian int32.
func (r *Reader) ReadInt32() int32 {
	var v int32
	r.get(&v)
	return v
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	var v uint32
	r.get(&v)
	return v
}

// ReadFloat32 reads a big-endian float32.
func (r *Reader) ReadFloat32() float32 {
	var v float32
	r.get(&v)
	return v
}

func (r *Reader) readN(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > r.r.Len() {
		r.err = fmt.Errorf("need %d bytes, have %d: %w", n, r.r.Len(), ErrShortBuffer)
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = fmt.Errorf("read %d bytes: %w", n, ErrShortBuffer)
		return nil
	}
	return buf
}

// ReadString reads a string with a 2-byte length prefix.
func (r *Reader) ReadString() string {
	n := r.ReadUint16()
	return string(r.readN(int(n)))
}

// ReadStringUTF32 reads a string with a 4-byte length prefix.
func (r *Reader) ReadStringUTF32() string {
	n := r.ReadUint32()
	if r.err == nil && int64(n) > int64(r.r.Len()) {
		r.err = fmt.Errorf("string of %d bytes, have %d: %w", n, r.r.Len(), ErrShortBuffer)
		return ""
	}
	return string(r.readN(int(n)))
}

// ReadBytes reads a byte array with a 2-byte length prefix.
func (r *Reader) ReadBytes() []byte {
	n := r.ReadUint16()
	b := r.readN(int(n))
	if b == nil && r.err == nil {
		return []byte{}
	}
	return b
}

// ReadCount reads the 2-byte element count that precedes every list.
func (r *Reader) ReadCount() int {
	return int(r.ReadUint16())
}
