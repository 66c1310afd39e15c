package wire

import (
	"fmt"
	"time"

	"github.com/df07/go-corner-culling/pkg/culling"
	"google.golang.org/protobuf/encoding/protowire"
)

// MessageType tags the payload of an Envelope
type MessageType uint32

const (
	TypeUnknown MessageType = iota
	TypeFrame
	TypeRecord
	TypeMap
)

func (t MessageType) String() string {
	switch t {
	case TypeFrame:
		return "frame"
	case TypeRecord:
		return "record"
	case TypeMap:
		return "map"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Envelope wraps every message sent over a stream
type Envelope struct {
	Type    MessageType
	Payload []byte
}

func (m *Envelope) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Type))
	if len(m.Payload) > 0 {
		b = appendBytes(b, 2, m.Payload)
	}
	return b
}

func (m *Envelope) Unmarshal(data []byte) error {
	*m = Envelope{}
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return err
		}
		switch num {
		case 1:
			if err := expect(num, typ, protowire.VarintType); err != nil {
				return err
			}
			v, err := d.readVarint()
			if err != nil {
				return err
			}
			m.Type = MessageType(v)
		case 2:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			v, err := d.readBytes()
			if err != nil {
				return err
			}
			m.Payload = v
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// Frame is the wire form of one culling result
type Frame struct {
	Number   uint64
	ViewerID uint64
	Visible  []uint64
	Hidden   []uint64
	Stats    culling.FrameStats
}

// NewFrame converts a culling result. Id lists are sorted.
func NewFrame(r *culling.Result) Frame {
	return Frame{
		Number:   r.Frame,
		ViewerID: r.ViewerID,
		Visible:  r.VisibleIDs(),
		Hidden:   r.HiddenIDs(),
		Stats:    r.Stats,
	}
}

// Result converts the frame back into a culling result
func (m *Frame) Result() *culling.Result {
	r := &culling.Result{
		Frame:    m.Number,
		ViewerID: m.ViewerID,
		Visible:  make(map[uint64]bool, len(m.Visible)+len(m.Hidden)),
		Stats:    m.Stats,
	}
	for _, id := range m.Visible {
		r.Visible[id] = true
	}
	for _, id := range m.Hidden {
		r.Visible[id] = false
	}
	return r
}

// Envelope wraps the encoded frame
func (m *Frame) Envelope() *Envelope {
	return &Envelope{Type: TypeFrame, Payload: m.Marshal()}
}

func (m *Frame) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, m.Number)
	b = appendVarint(b, 2, m.ViewerID)
	b = appendPacked(b, 3, m.Visible)
	b = appendPacked(b, 4, m.Hidden)
	b = appendBytes(b, 5, marshalStats(m.Stats))
	return b
}

func (m *Frame) Unmarshal(data []byte) error {
	*m = Frame{}
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return err
		}
		switch num {
		case 1, 2:
			if err := expect(num, typ, protowire.VarintType); err != nil {
				return err
			}
			v, err := d.readVarint()
			if err != nil {
				return err
			}
			if num == 1 {
				m.Number = v
			} else {
				m.ViewerID = v
			}
		case 3:
			if m.Visible, err = d.readUint64s(num, typ, m.Visible); err != nil {
				return err
			}
		case 4:
			if m.Hidden, err = d.readUint64s(num, typ, m.Hidden); err != nil {
				return err
			}
		case 5:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			sub, err := d.readBytes()
			if err != nil {
				return err
			}
			if m.Stats, err = unmarshalStats(sub); err != nil {
				return fmt.Errorf("stats: %w", err)
			}
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

func marshalStats(s culling.FrameStats) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(s.Candidates))
	b = appendVarint(b, 2, uint64(s.Visible))
	b = appendVarint(b, 3, uint64(s.Hidden))
	b = appendVarint(b, 4, uint64(s.FrustumCulled))
	b = appendVarint(b, 5, uint64(s.TimedOut))
	b = appendVarint(b, 6, uint64(s.CacheHits))
	b = appendVarint(b, 7, uint64(s.OccluderTests))
	b = appendVarint(b, 8, uint64(s.SkippedOccluders))
	b = appendVarint(b, 9, uint64(s.Duration))
	return b
}

func unmarshalStats(data []byte) (culling.FrameStats, error) {
	var s culling.FrameStats
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return s, err
		}
		if num < 1 || num > 9 {
			if err := d.skip(num, typ); err != nil {
				return s, err
			}
			continue
		}
		if err := expect(num, typ, protowire.VarintType); err != nil {
			return s, err
		}
		v, err := d.readVarint()
		if err != nil {
			return s, err
		}
		switch num {
		case 1:
			s.Candidates = int(v)
		case 2:
			s.Visible = int(v)
		case 3:
			s.Hidden = int(v)
		case 4:
			s.FrustumCulled = int(v)
		case 5:
			s.TimedOut = int(v)
		case 6:
			s.CacheHits = int(v)
		case 7:
			s.OccluderTests = int(v)
		case 8:
			s.SkippedOccluders = int(v)
		case 9:
			s.Duration = time.Duration(v)
		}
	}
	return s, nil
}
