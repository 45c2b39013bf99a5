package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrShortBuffer is returned when a payload ends before a field does.
	ErrShortBuffer = errors.New("payload too short")

	// ErrValueTooLong is returned when a string, byte array or list does not
	// fit its length prefix.
	ErrValueTooLong = errors.New("value too long for length prefix")

	// ErrInvalidFrameLength is returned for a length prefix that cannot
	// describe a valid frame. The stream position is lost after this.
	ErrInvalidFrameLength = errors.New("invalid frame length")

	// ErrTrailingBytes is returned by strict decoding when a packet did not
	// consume its whole payload.
	ErrTrailingBytes = errors.New("unread bytes after packet payload")
)

// UnknownPacketTypeError is returned by a strict Registry for ids it has no
// constructor for.
type UnknownPacketTypeError struct {
	Type PacketType
}

func (e *UnknownPacketTypeError) Error() string {
	return fmt.Sprintf("unknown packet type %d", byte(e.Type))
}
