// Package protocol implements the binary wire format spoken by the game
// server: frame codec, packet registry, primitive encoders and the packet
// catalog. All integers are big-endian and every frame carries a 4-byte
// length prefix followed by a 1-byte packet type.
package protocol

import (
	"fmt"
	"strings"
)

// PacketType is the one-byte discriminant carried by every frame.
type PacketType byte

// Packet type ids. Incoming (server -> client) and outgoing
// (client -> server) ids share one namespace.
const (
	PktFailure       PacketType = 0
	PktHello         PacketType = 1
	PktPing          PacketType = 8
	PktNewTick       PacketType = 9
	PktPlayerText    PacketType = 10
	PktGoto          PacketType = 18
	PktPong          PacketType = 31
	PktMove          PacketType = 42
	PktText          PacketType = 44
	PktLoad          PacketType = 57
	PktCreate        PacketType = 61
	PktUpdate        PacketType = 62
	PktGotoAck       PacketType = 65
	PktUpdateAck     PacketType = 81
	PktMapInfo       PacketType = 92
	PktCreateSuccess PacketType = 101
)

var packetTypeNames = map[PacketType]string{
	PktFailure:       "FAILURE",
	PktHello:         "HELLO",
	PktPing:          "PING",
	PktNewTick:       "NEWTICK",
	PktPlayerText:    "PLAYERTEXT",
	PktGoto:          "GOTO",
	PktPong:          "PONG",
	PktMove:          "MOVE",
	PktText:          "TEXT",
	PktLoad:          "LOAD",
	PktCreate:        "CREATE",
	PktUpdate:        "UPDATE",
	PktGotoAck:       "GOTOACK",
	PktUpdateAck:     "UPDATEACK",
	PktMapInfo:       "MAPINFO",
	PktCreateSuccess: "CREATE_SUCCESS",
}

// String returns the protocol name of the packet type.
func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(t))
}

// ParsePacketType resolves a protocol name such as "TEXT" back to its id.
func ParsePacketType(name string) (PacketType, bool) {
	for t, n := range packetTypeNames {
		if n == strings.ToUpper(name) {
			return t, true
		}
	}
	return 0, false
}

// Packet is implemented by every concrete packet in the catalog. Read and
// Write only touch the payload; framing is handled by the codec.
type Packet interface {
	Type() PacketType
	Read(r *Reader)
	Write(w *Writer)
}

const (
	// LengthPrefixSize is the size of the frame length prefix in bytes.
	LengthPrefixSize = 4

	// HeaderSize is the length prefix plus the type byte.
	HeaderSize = LengthPrefixSize + 1

	// MaxFrameSize bounds the declared length of a single frame. Anything
	// larger is treated as a corrupted stream.
	MaxFrameSize = 1 << 20
)

// Frame is one fully buffered, not yet decoded unit from the wire.
type Frame struct {
	Type    PacketType
	Payload []byte
}
