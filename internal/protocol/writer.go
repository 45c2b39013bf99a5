package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Writer serializes packet payloads. The first error is sticky: once a write
// fails every later call is a no-op and Err reports the failure.
type Writer struct {
	buf bytes.Buffer
	err error
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Reset clears the writer for reuse.
func (w *Writer) Reset() {
	w.buf.Reset()
	w.err = nil
}

// Err returns the first error encountered while writing.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) put(v interface{}) *Writer {
	if w.err != nil {
		return w
	}
	if err := binary.Write(&w.buf, binary.BigEndian, v); err != nil {
		w.fail(err)
	}
	return w
}

// WriteBool writes a bool as a single byte.
func (w *Writer) WriteBool(v bool) *Writer {
	if v {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

// WriteInt8 writes a signed byte.
func (w *Writer) WriteInt8(v int8) *Writer { return w.put(v) }

// WriteUint8 writes an unsigned byte.
func (w *Writer) WriteUint8(v uint8) *Writer { return w.put(v) }

// WriteInt16 writes an int16 in big-endian order.
func (w *Writer) WriteInt16(v int16) *Writer { return w.put(v) }

// WriteUint16 writes a uint16 in big-endian order.
func (w *Writer) WriteUint16(v uint16) *Writer { return w.put(v) }

// WriteInt32 writes an int32 in big-endian order.
func (w *Writer) WriteInt32(v int32) *Writer { return w.put(v) }

// WriteUint32 writes a uint32 in big-endian order.
func (w *Writer) WriteUint32(v uint32) *Writer { return w.put(v) }

// WriteFloat32 writes an IEEE-754 float32 in big-endian order.
func (w *Writer) WriteFloat32(v float32) *Writer { return w.put(v) }

// WriteString writes a UTF-8 string.
// Format: [length:2][bytes...]
func (w *Writer) WriteString(s string) *Writer {
	if len(s) > math.MaxUint16 {
		w.fail(fmt.Errorf("string of %d bytes: %w", len(s), ErrValueTooLong))
		return w
	}
	w.WriteUint16(uint16(len(s)))
	if w.err == nil {
		w.buf.WriteString(s)
	}
	return w
}

// WriteStringUTF32 writes a UTF-8 string with a 4-byte length prefix.
// Format: [length:4][bytes...]
func (w *Writer) WriteStringUTF32(s string) *Writer {
	if uint64(len(s)) > math.MaxUint32 {
		w.fail(fmt.Errorf("string of %d bytes: %w", len(s), ErrValueTooLong))
		return w
	}
	w.WriteUint32(uint32(len(s)))
	if w.err == nil {
		w.buf.WriteString(s)
	}
	return w
}

// WriteBytes writes a byte array.
// Format: [length:2][bytes...]
func (w *Writer) WriteBytes(data []byte) *Writer {
	if len(data) > math.MaxUint16 {
		w.fail(fmt.Errorf("byte array of %d bytes: %w", len(data), ErrValueTooLong))
		return w
	}
	w.WriteUint16(uint16(len(data)))
	if w.err == nil {
		w.buf.Write(data)
	}
	return w
}

// WriteCount writes the 2-byte element count that precedes every list.
func (w *Writer) WriteCount(n int) *Writer {
	if n > math.MaxUint16 {
		w.fail(fmt.Errorf("list of %d elements: %w", n, ErrValueTooLong))
		return w
	}
	return w.WriteUint16(uint16(n))
}

// Bytes returns the payload written so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the current payload size.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// String returns a hex dump of the current payload for debugging.
func (w *Writer) String() string {
	data := w.buf.Bytes()
	return fmt.Sprintf("Writer[%d bytes]: %x", len(data), data)
}
