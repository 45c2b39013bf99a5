package protocol

import (
	"errors"
	"reflect"
	"testing"
)

// samples holds one populated packet per registered type. Lists are kept
// non-empty so decoded values compare equal with reflect.DeepEqual.
func samples() []Packet {
	status := ObjectStatusData{
		ObjectID: 42,
		Pos:      WorldPosData{X: 10.5, Y: -3.25},
		Stats: []StatData{
			{StatType: StatSpeed, Value: 50},
			{StatType: StatName, StringValue: "Tester"},
		},
	}
	return []Packet{
		&FailurePacket{ErrorID: 4, ErrorDescription: "Account in use"},
		&HelloPacket{
			BuildVersion: "X31.2.3", GameID: -2, GUID: "user@example.com", Random1: 123,
			Password: "secret", Random2: 456, Secret: "", KeyTime: -1, Key: []byte{},
			MapJSON: "", EntryTag: "", GameNet: "rotmg", GameNetUserID: "",
			PlayPlatform: "rotmg", PlatformToken: "", UserToken: "",
		},
		&PingPacket{Serial: 99},
		&NewTickPacket{TickID: 3, TickTime: 200, Statuses: []ObjectStatusData{status}},
		&PlayerTextPacket{Text: "/who"},
		&GotoPacket{ObjectID: 42, Position: WorldPosData{X: 1, Y: 2}},
		&PongPacket{Serial: 99, Time: 1234},
		&MovePacket{TickID: 3, Time: 1234, NewPosition: WorldPosData{X: 5, Y: 6},
			Records: []MoveRecord{{Time: 1200, X: 4.5, Y: 5.5}}},
		&TextPacket{Name: "#Oryx", ObjectID: -1, NumStars: 0, BubbleTime: 5,
			Recipient: "", Text: "Lich killed", CleanText: "Lich killed"},
		&LoadPacket{CharID: 7, IsFromArena: false},
		&CreatePacket{ClassType: ClassWizard, SkinType: 0},
		&UpdatePacket{
			Tiles:      []GroundTileData{{X: 1, Y: 2, Type: 0x48}},
			NewObjects: []ObjectData{{ObjectType: ClassWizard, Status: status}},
			Drops:      []int32{11, 12},
		},
		&GotoAckPacket{Time: 77},
		&UpdateAckPacket{},
		&MapInfoPacket{Width: 10, Height: 10, Name: "Nest", DisplayName: "The Nest",
			Fp: 0xdeadbeef, Background: 1, Difficulty: 5, AllowPlayerTeleport: true,
			ShowDisplays: true, ClientXML: []string{"<x/>"}, ExtraXML: []string{"<y/>"}},
		&CreateSuccessPacket{ObjectID: 5, CharID: 1},
	}
}

func TestRoundTripEveryRegisteredType(t *testing.T) {
	reg := DefaultRegistry().SetStrict(true)

	covered := make(map[PacketType]bool)
	for _, pkt := range samples() {
		frame, err := EncodeFrame(pkt)
		if err != nil {
			t.Fatalf("EncodeFrame(%s) error = %v", pkt.Type(), err)
		}
		frames, err := NewFrameDecoder().Feed(frame)
		if err != nil || len(frames) != 1 {
			t.Fatalf("%s: Feed = %d frames, err %v", pkt.Type(), len(frames), err)
		}
		got, err := reg.DecodeFrame(frames[0])
		if err != nil {
			t.Fatalf("DecodeFrame(%s) error = %v", pkt.Type(), err)
		}
		if !reflect.DeepEqual(got, pkt) {
			t.Errorf("%s round trip = %+v, want %+v", pkt.Type(), got, pkt)
		}
		covered[pkt.Type()] = true
	}

	for _, typ := range reg.Types() {
		if !covered[typ] {
			t.Errorf("registered type %s has no round-trip sample", typ)
		}
	}
}

func TestRegistryUnknownType(t *testing.T) {
	lenient := DefaultRegistry()
	pkt, err := lenient.Decode(PacketType(250), []byte{1, 2, 3})
	if pkt != nil || err != nil {
		t.Errorf("lenient Decode = (%v, %v), want (nil, nil)", pkt, err)
	}

	strict := DefaultRegistry().SetStrict(true)
	_, err = strict.Decode(PacketType(250), nil)
	var unknown *UnknownPacketTypeError
	if !errors.As(err, &unknown) || unknown.Type != 250 {
		t.Errorf("strict Decode error = %v, want UnknownPacketTypeError{250}", err)
	}

	if _, err := lenient.Create(PacketType(250)); !errors.As(err, &unknown) {
		t.Errorf("Create error = %v, want UnknownPacketTypeError", err)
	}
}

func TestRegistryShortPayload(t *testing.T) {
	_, err := DefaultRegistry().Decode(PktPong, []byte{0, 0, 0, 1})
	if !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Decode error = %v, want ErrShortBuffer", err)
	}
}

func TestRegistryTrailingBytes(t *testing.T) {
	payload := []byte{0, 0, 0, 1, 0xff}
	if _, err := DefaultRegistry().Decode(PktPing, payload); err != nil {
		t.Errorf("lenient Decode error = %v, want nil", err)
	}
	_, err := DefaultRegistry().SetStrict(true).Decode(PktPing, payload)
	if !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("strict Decode error = %v, want ErrTrailingBytes", err)
	}
}

func TestRegistryTypeOf(t *testing.T) {
	reg := DefaultRegistry()
	for _, pkt := range samples() {
		got, ok := reg.TypeOf(pkt)
		if !ok || got != pkt.Type() {
			t.Errorf("TypeOf(%T) = (%s, %v), want (%s, true)", pkt, got, ok, pkt.Type())
		}
	}
}

func TestPrimitiveEncoding(t *testing.T) {
	w := NewWriter()
	w.WriteString("ab").WriteStringUTF32("c").WriteBytes([]byte{9}).WriteInt16(-2).WriteBool(true)
	want := []byte{
		0x00, 0x02, 'a', 'b',
		0x00, 0x00, 0x00, 0x01, 'c',
		0x00, 0x01, 0x09,
		0xff, 0xfe,
		0x01,
	}
	if got := w.Bytes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Bytes() = % x, want % x", got, want)
	}
}
