package protocol

// Packets sent by the client.

// HelloPacket is the handshake sent once per connection. Every string field
// is mandatory on the wire, even when empty.
type HelloPacket struct {
	BuildVersion  string `json:"build_version"`
	GameID        int32  `json:"game_id"`
	GUID          string `json:"-"`
	Random1       int32  `json:"random1"`
	Password      string `json:"-"`
	Random2       int32  `json:"random2"`
	Secret        string `json:"-"`
	KeyTime       int32  `json:"key_time"`
	Key           []byte `json:"-"`
	MapJSON       string `json:"map_json"`
	EntryTag      string `json:"entry_tag"`
	GameNet       string `json:"game_net"`
	GameNetUserID string `json:"game_net_user_id"`
	PlayPlatform  string `json:"play_platform"`
	PlatformToken string `json:"-"`
	UserToken     string `json:"-"`
}

func (p *HelloPacket) Type() PacketType { return PktHello }

func (p *HelloPacket) Read(r *Reader) {
	p.BuildVersion = r.ReadString()
	p.GameID = r.ReadInt32()
	p.GUID = r.ReadString()
	p.Random1 = r.ReadInt32()
	p.Password = r.ReadString()
	p.Random2 = r.ReadInt32()
	p.Secret = r.ReadString()
	p.KeyTime = r.ReadInt32()
	p.Key = r.ReadBytes()
	p.MapJSON = r.ReadStringUTF32()
	p.EntryTag = r.ReadString()
	p.GameNet = r.ReadString()
	p.GameNetUserID = r.ReadString()
	p.PlayPlatform = r.ReadString()
	p.PlatformToken = r.ReadString()
	p.UserToken = r.ReadString()
}

func (p *HelloPacket) Write(w *Writer) {
	w.WriteString(p.BuildVersion)
	w.WriteInt32(p.GameID)
	w.WriteString(p.GUID)
	w.WriteInt32(p.Random1)
	w.WriteString(p.Password)
	w.WriteInt32(p.Random2)
	w.WriteString(p.Secret)
	w.WriteInt32(p.KeyTime)
	w.WriteBytes(p.Key)
	w.WriteStringUTF32(p.MapJSON)
	w.WriteString(p.EntryTag)
	w.WriteString(p.GameNet)
	w.WriteString(p.GameNetUserID)
	w.WriteString(p.PlayPlatform)
	w.WriteString(p.PlatformToken)
	w.WriteString(p.UserToken)
}

// PongPacket answers a Ping.
type PongPacket struct {
	Serial int32 `json:"serial"`
	Time   int32 `json:"time"`
}

func (p *PongPacket) Type() PacketType { return PktPong }

func (p *PongPacket) Read(r *Reader) {
	p.Serial = r.ReadInt32()
	p.Time = r.ReadInt32()
}

func (p *PongPacket) Write(w *Writer) {
	w.WriteInt32(p.Serial)
	w.WriteInt32(p.Time)
}

// MovePacket reports the client position for a tick.
type MovePacket struct {
	TickID      int32        `json:"tick_id"`
	Time        int32        `json:"time"`
	NewPosition WorldPosData `json:"new_position"`
	Records     []MoveRecord `json:"records"`
}

func (p *MovePacket) Type() PacketType { return PktMove }

func (p *MovePacket) Read(r *Reader) {
	p.TickID = r.ReadInt32()
	p.Time = r.ReadInt32()
	p.NewPosition.Read(r)
	p.Records = readList[MoveRecord](r)
}

func (p *MovePacket) Write(w *Writer) {
	w.WriteInt32(p.TickID)
	w.WriteInt32(p.Time)
	p.NewPosition.Write(w)
	writeList(w, p.Records)
}

// PlayerTextPacket sends a chat line.
type PlayerTextPacket struct {
	Text string `json:"text"`
}

func (p *PlayerTextPacket) Type() PacketType { return PktPlayerText }
func (p *PlayerTextPacket) Read(r *Reader)   { p.Text = r.ReadString() }
func (p *PlayerTextPacket) Write(w *Writer)  { w.WriteString(p.Text) }

// LoadPacket enters the game with an existing character.
type LoadPacket struct {
	CharID      int32 `json:"char_id"`
	IsFromArena bool  `json:"is_from_arena"`
}

func (p *LoadPacket) Type() PacketType { return PktLoad }

func (p *LoadPacket) Read(r *Reader) {
	p.CharID = r.ReadInt32()
	p.IsFromArena = r.ReadBool()
}

func (p *LoadPacket) Write(w *Writer) {
	w.WriteInt32(p.CharID)
	w.WriteBool(p.IsFromArena)
}

// CreatePacket asks the server for a new character.
type CreatePacket struct {
	ClassType uint16 `json:"class_type"`
	SkinType  uint16 `json:"skin_type"`
}

func (p *CreatePacket) Type() PacketType { return PktCreate }

func (p *CreatePacket) Read(r *Reader) {
	p.ClassType = r.ReadUint16()
	p.SkinType = r.ReadUint16()
}

func (p *CreatePacket) Write(w *Writer) {
	w.WriteUint16(p.ClassType)
	w.WriteUint16(p.SkinType)
}

// GotoAckPacket acknowledges a Goto.
type GotoAckPacket struct {
	Time int32 `json:"time"`
}

func (p *GotoAckPacket) Type() PacketType { return PktGotoAck }
func (p *GotoAckPacket) Read(r *Reader)   { p.Time = r.ReadInt32() }
func (p *GotoAckPacket) Write(w *Writer)  { w.WriteInt32(p.Time) }

// UpdateAckPacket acknowledges an Update. It has no payload.
type UpdateAckPacket struct{}

func (p *UpdateAckPacket) Type() PacketType { return PktUpdateAck }
func (p *UpdateAckPacket) Read(r *Reader)   {}
func (p *UpdateAckPacket) Write(w *Writer)  {}

// Character class ids used by Create.
const (
	ClassRogue   uint16 = 768
	ClassArcher  uint16 = 775
	ClassWizard  uint16 = 782
	ClassPriest  uint16 = 784
	ClassWarrior uint16 = 797
	ClassKnight  uint16 = 798
	ClassPaladin uint16 = 799
)
