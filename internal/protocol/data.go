package protocol

import "math"

// WorldPosData is a position in tile units.
type WorldPosData struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (p *WorldPosData) Read(r *Reader) {
	p.X = r.ReadFloat32()
	p.Y = r.ReadFloat32()
}

func (p *WorldPosData) Write(w *Writer) {
	w.WriteFloat32(p.X)
	w.WriteFloat32(p.Y)
}

// SquareDistanceTo returns the squared euclidean distance to other.
func (p WorldPosData) SquareDistanceTo(other WorldPosData) float64 {
	dx := float64(other.X) - float64(p.X)
	dy := float64(other.Y) - float64(p.Y)
	return dx*dx + dy*dy
}

// DistanceTo returns the euclidean distance to other.
func (p WorldPosData) DistanceTo(other WorldPosData) float64 {
	return math.Sqrt(p.SquareDistanceTo(other))
}

// GroundTileData describes one map tile.
type GroundTileData struct {
	X    int16  `json:"x"`
	Y    int16  `json:"y"`
	Type uint16 `json:"type"`
}

func (t *GroundTileData) Read(r *Reader) {
	t.X = r.ReadInt16()
	t.Y = r.ReadInt16()
	t.Type = r.ReadUint16()
}

func (t *GroundTileData) Write(w *Writer) {
	w.WriteInt16(t.X)
	w.WriteInt16(t.Y)
	w.WriteUint16(t.Type)
}

// StatData is a single stat entry. String stats carry StringValue, all
// others carry Value; which one is on the wire depends on StatType.
type StatData struct {
	StatType    uint8  `json:"stat_type"`
	Value       int32  `json:"value,omitempty"`
	StringValue string `json:"string_value,omitempty"`
}

func (s *StatData) Read(r *Reader) {
	s.StatType = r.ReadUint8()
	if IsStringStat(s.StatType) {
		s.StringValue = r.ReadString()
	} else {
		s.Value = r.ReadInt32()
	}
}

func (s *StatData) Write(w *Writer) {
	w.WriteUint8(s.StatType)
	if IsStringStat(s.StatType) {
		w.WriteString(s.StringValue)
	} else {
		w.WriteInt32(s.Value)
	}
}

// ObjectStatusData is the state of one object as reported by the server.
type ObjectStatusData struct {
	ObjectID int32        `json:"object_id"`
	Pos      WorldPosData `json:"pos"`
	Stats    []StatData   `json:"stats"`
}

func (o *ObjectStatusData) Read(r *Reader) {
	o.ObjectID = r.ReadInt32()
	o.Pos.Read(r)
	n := r.ReadCount()
	o.Stats = make([]StatData, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		var s StatData
		s.Read(r)
		o.Stats = append(o.Stats, s)
	}
}

func (o *ObjectStatusData) Write(w *Writer) {
	w.WriteInt32(o.ObjectID)
	o.Pos.Write(w)
	w.WriteCount(len(o.Stats))
	for i := range o.Stats {
		o.Stats[i].Write(w)
	}
}

// ObjectData announces a new object: its type plus initial status.
type ObjectData struct {
	ObjectType uint16           `json:"object_type"`
	Status     ObjectStatusData `json:"status"`
}

func (o *ObjectData) Read(r *Reader) {
	o.ObjectType = r.ReadUint16()
	o.Status.Read(r)
}

func (o *ObjectData) Write(w *Writer) {
	w.WriteUint16(o.ObjectType)
	o.Status.Write(w)
}

// MoveRecord is an intermediate position reported in a Move packet.
type MoveRecord struct {
	Time int32   `json:"time"`
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
}

func (m *MoveRecord) Read(r *Reader) {
	m.Time = r.ReadInt32()
	m.X = r.ReadFloat32()
	m.Y = r.ReadFloat32()
}

func (m *MoveRecord) Write(w *Writer) {
	w.WriteInt32(m.Time)
	w.WriteFloat32(m.X)
	w.WriteFloat32(m.Y)
}
