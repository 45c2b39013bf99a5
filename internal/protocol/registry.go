package protocol

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Constructor builds an empty packet of one type.
type Constructor func() Packet

// Registry maps packet type ids to constructors. Lenient registries drop
// unknown ids so the client keeps working against a protocol it only partly
// understands; strict registries report them.
type Registry struct {
	ctors  map[PacketType]Constructor
	types  map[reflect.Type]PacketType
	strict bool
	logger zerolog.Logger
}

// NewRegistry creates an empty lenient registry.
func NewRegistry() *Registry {
	return &Registry{
		ctors:  make(map[PacketType]Constructor),
		types:  make(map[reflect.Type]PacketType),
		logger: log.With().Str("component", "packet_registry").Logger(),
	}
}

// DefaultRegistry returns a lenient registry holding the whole catalog.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(PktFailure, func() Packet { return &FailurePacket{} })
	r.Register(PktHello, func() Packet { return &HelloPacket{} })
	r.Register(PktPing, func() Packet { return &PingPacket{} })
	r.Register(PktNewTick, func() Packet { return &NewTickPacket{} })
	r.Register(PktPlayerText, func() Packet { return &PlayerTextPacket{} })
	r.Register(PktGoto, func() Packet { return &GotoPacket{} })
	r.Register(PktPong, func() Packet { return &PongPacket{} })
	r.Register(PktMove, func() Packet { return &MovePacket{} })
	r.Register(PktText, func() Packet { return &TextPacket{} })
	r.Register(PktLoad, func() Packet { return &LoadPacket{} })
	r.Register(PktCreate, func() Packet { return &CreatePacket{} })
	r.Register(PktUpdate, func() Packet { return &UpdatePacket{} })
	r.Register(PktGotoAck, func() Packet { return &GotoAckPacket{} })
	r.Register(PktUpdateAck, func() Packet { return &UpdateAckPacket{} })
	r.Register(PktMapInfo, func() Packet { return &MapInfoPacket{} })
	r.Register(PktCreateSuccess, func() Packet { return &CreateSuccessPacket{} })
	return r
}

// SetStrict switches unknown-type handling. Registration is expected to be
// finished before the registry is shared between goroutines.
func (r *Registry) SetStrict(strict bool) *Registry {
	r.strict = strict
	return r
}

// Register adds or replaces the constructor for a type id. It panics if the
// constructor builds a packet reporting a different id.
func (r *Registry) Register(t PacketType, ctor Constructor) {
	sample := ctor()
	if sample.Type() != t {
		panic(fmt.Sprintf("protocol: constructor for %s builds %s", t, sample.Type()))
	}
	r.ctors[t] = ctor
	r.types[reflect.TypeOf(sample)] = t
}

// Types returns every registered id in ascending order.
func (r *Registry) Types() []PacketType {
	out := make([]PacketType, 0, len(r.ctors))
	for t := range r.ctors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create returns an empty packet of the given type.
func (r *Registry) Create(t PacketType) (Packet, error) {
	ctor, ok := r.ctors[t]
	if !ok {
		return nil, &UnknownPacketTypeError{Type: t}
	}
	return ctor(), nil
}

// TypeOf returns the registered id for a packet value's concrete type.
func (r *Registry) TypeOf(pkt Packet) (PacketType, bool) {
	t, ok := r.types[reflect.TypeOf(pkt)]
	return t, ok
}

// Decode materializes a frame payload. For an unknown id a lenient registry
// returns (nil, nil) and logs at debug level; a strict one returns
// *UnknownPacketTypeError. A payload that is too short, or one with bytes
// left over in strict mode, fails the decode.
func (r *Registry) Decode(t PacketType, payload []byte) (Packet, error) {
	ctor, ok := r.ctors[t]
	if !ok {
		if r.strict {
			return nil, &UnknownPacketTypeError{Type: t}
		}
		r.logger.Debug().
			Uint8("type", uint8(t)).
			Int("payload_len", len(payload)).
			Msg("dropping unknown packet type")
		return nil, nil
	}

	pkt := ctor()
	rd := NewReader(payload)
	pkt.Read(rd)
	if err := rd.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	if r.strict && rd.Remaining() > 0 {
		return nil, fmt.Errorf("decode %s: %d bytes: %w", t, rd.Remaining(), ErrTrailingBytes)
	}
	return pkt, nil
}

// DecodeFrame is Decode for a Frame.
func (r *Registry) DecodeFrame(f Frame) (Packet, error) {
	return r.Decode(f.Type, f.Payload)
}
