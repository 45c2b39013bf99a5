package protocol

// Packets sent by the server.

// readList reads a count-prefixed list of fixed-layout records.
func readList[T any, P interface {
	*T
	Read(*Reader)
}](r *Reader) []T {
	n := r.ReadCount()
	out := make([]T, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		var v T
		P(&v).Read(r)
		out = append(out, v)
	}
	return out
}

// writeList writes a count-prefixed list of fixed-layout records.
func writeList[T any, P interface {
	*T
	Write(*Writer)
}](w *Writer, items []T) {
	w.WriteCount(len(items))
	for i := range items {
		P(&items[i]).Write(w)
	}
}

// FailurePacket reports a fatal server-side error for this connection.
type FailurePacket struct {
	ErrorID          int32  `json:"error_id"`
	ErrorDescription string `json:"error_description"`
}

func (p *FailurePacket) Type() PacketType { return PktFailure }

func (p *FailurePacket) Read(r *Reader) {
	p.ErrorID = r.ReadInt32()
	p.ErrorDescription = r.ReadString()
}

func (p *FailurePacket) Write(w *Writer) {
	w.WriteInt32(p.ErrorID)
	w.WriteString(p.ErrorDescription)
}

// PingPacket must be answered with a Pong carrying the same serial.
type PingPacket struct {
	Serial int32 `json:"serial"`
}

func (p *PingPacket) Type() PacketType { return PktPing }
func (p *PingPacket) Read(r *Reader)   { p.Serial = r.ReadInt32() }
func (p *PingPacket) Write(w *Writer)  { w.WriteInt32(p.Serial) }

// NewTickPacket starts a server tick; the client answers with a Move.
type NewTickPacket struct {
	TickID   int32              `json:"tick_id"`
	TickTime int32              `json:"tick_time"`
	Statuses []ObjectStatusData `json:"statuses"`
}

func (p *NewTickPacket) Type() PacketType { return PktNewTick }

func (p *NewTickPacket) Read(r *Reader) {
	p.TickID = r.ReadInt32()
	p.TickTime = r.ReadInt32()
	p.Statuses = readList[ObjectStatusData](r)
}

func (p *NewTickPacket) Write(w *Writer) {
	w.WriteInt32(p.TickID)
	w.WriteInt32(p.TickTime)
	writeList(w, p.Statuses)
}

// GotoPacket teleports an object.
type GotoPacket struct {
	ObjectID int32        `json:"object_id"`
	Position WorldPosData `json:"position"`
}

func (p *GotoPacket) Type() PacketType { return PktGoto }

func (p *GotoPacket) Read(r *Reader) {
	p.ObjectID = r.ReadInt32()
	p.Position.Read(r)
}

func (p *GotoPacket) Write(w *Writer) {
	w.WriteInt32(p.ObjectID)
	p.Position.Write(w)
}

// TextPacket is a chat line or server announcement.
type TextPacket struct {
	Name       string `json:"name"`
	ObjectID   int32  `json:"object_id"`
	NumStars   int32  `json:"num_stars"`
	BubbleTime uint8  `json:"bubble_time"`
	Recipient  string `json:"recipient"`
	Text       string `json:"text"`
	CleanText  string `json:"clean_text"`
}

func (p *TextPacket) Type() PacketType { return PktText }

func (p *TextPacket) Read(r *Reader) {
	p.Name = r.ReadString()
	p.ObjectID = r.ReadInt32()
	p.NumStars = r.ReadInt32()
	p.BubbleTime = r.ReadUint8()
	p.Recipient = r.ReadString()
	p.Text = r.ReadString()
	p.CleanText = r.ReadString()
}

func (p *TextPacket) Write(w *Writer) {
	w.WriteString(p.Name)
	w.WriteInt32(p.ObjectID)
	w.WriteInt32(p.NumStars)
	w.WriteUint8(p.BubbleTime)
	w.WriteString(p.Recipient)
	w.WriteString(p.Text)
	w.WriteString(p.CleanText)
}

// UpdatePacket carries new tiles, new objects and removed object ids.
type UpdatePacket struct {
	Tiles      []GroundTileData `json:"tiles"`
	NewObjects []ObjectData     `json:"new_objects"`
	Drops      []int32          `json:"drops"`
}

func (p *UpdatePacket) Type() PacketType { return PktUpdate }

func (p *UpdatePacket) Read(r *Reader) {
	p.Tiles = readList[GroundTileData](r)
	p.NewObjects = readList[ObjectData](r)
	n := r.ReadCount()
	p.Drops = make([]int32, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		p.Drops = append(p.Drops, r.ReadInt32())
	}
}

func (p *UpdatePacket) Write(w *Writer) {
	writeList(w, p.Tiles)
	writeList(w, p.NewObjects)
	w.WriteCount(len(p.Drops))
	for _, id := range p.Drops {
		w.WriteInt32(id)
	}
}

// MapInfoPacket announces the map the client has entered.
type MapInfoPacket struct {
	Width               int32    `json:"width"`
	Height              int32    `json:"height"`
	Name                string   `json:"name"`
	DisplayName         string   `json:"display_name"`
	Fp                  uint32   `json:"fp"`
	Background          int32    `json:"background"`
	Difficulty          int32    `json:"difficulty"`
	AllowPlayerTeleport bool     `json:"allow_player_teleport"`
	ShowDisplays        bool     `json:"show_displays"`
	ClientXML           []string `json:"client_xml"`
	ExtraXML            []string `json:"extra_xml"`
}

func (p *MapInfoPacket) Type() PacketType { return PktMapInfo }

func (p *MapInfoPacket) Read(r *Reader) {
	p.Width = r.ReadInt32()
	p.Height = r.ReadInt32()
	p.Name = r.ReadString()
	p.DisplayName = r.ReadString()
	p.Fp = r.ReadUint32()
	p.Background = r.ReadInt32()
	p.Difficulty = r.ReadInt32()
	p.AllowPlayerTeleport = r.ReadBool()
	p.ShowDisplays = r.ReadBool()
	p.ClientXML = readStringsUTF32(r)
	p.ExtraXML = readStringsUTF32(r)
}

func (p *MapInfoPacket) Write(w *Writer) {
	w.WriteInt32(p.Width)
	w.WriteInt32(p.Height)
	w.WriteString(p.Name)
	w.WriteString(p.DisplayName)
	w.WriteUint32(p.Fp)
	w.WriteInt32(p.Background)
	w.WriteInt32(p.Difficulty)
	w.WriteBool(p.AllowPlayerTeleport)
	w.WriteBool(p.ShowDisplays)
	writeStringsUTF32(w, p.ClientXML)
	writeStringsUTF32(w, p.ExtraXML)
}

func readStringsUTF32(r *Reader) []string {
	n := r.ReadCount()
	out := make([]string, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		out = append(out, r.ReadStringUTF32())
	}
	return out
}

func writeStringsUTF32(w *Writer, items []string) {
	w.WriteCount(len(items))
	for _, s := range items {
		w.WriteStringUTF32(s)
	}
}

// CreateSuccessPacket confirms a new character.
type CreateSuccessPacket struct {
	ObjectID int32 `json:"object_id"`
	CharID   int32 `json:"char_id"`
}

func (p *CreateSuccessPacket) Type() PacketType { return PktCreateSuccess }

func (p *CreateSuccessPacket) Read(r *Reader) {
	p.ObjectID = r.ReadInt32()
	p.CharID = r.ReadInt32()
}

func (p *CreateSuccessPacket) Write(w *Writer) {
	w.WriteInt32(p.ObjectID)
	w.WriteInt32(p.CharID)
}
