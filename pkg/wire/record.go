package wire

import (
	"fmt"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/geometry"
	"github.com/df07/go-corner-culling/pkg/registry"
	"google.golang.org/protobuf/encoding/protowire"
)

func marshalVec3(v core.Vec3) []byte {
	var b []byte
	b = appendDouble(b, 1, v.X)
	b = appendDouble(b, 2, v.Y)
	b = appendDouble(b, 3, v.Z)
	return b
}

func unmarshalVec3(data []byte) (core.Vec3, error) {
	var v core.Vec3
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return v, err
		}
		if num < 1 || num > 3 {
			if err := d.skip(num, typ); err != nil {
				return v, err
			}
			continue
		}
		if err := expect(num, typ, protowire.Fixed64Type); err != nil {
			return v, err
		}
		f, err := d.readDouble()
		if err != nil {
			return v, err
		}
		switch num {
		case 1:
			v.X = f
		case 2:
			v.Y = f
		case 3:
			v.Z = f
		}
	}
	return v, nil
}

// readVec3 reads a length-delimited Vec3 submessage
func (d *decoder) readVec3(num protowire.Number, typ protowire.Type) (core.Vec3, error) {
	if err := expect(num, typ, protowire.BytesType); err != nil {
		return core.Vec3{}, err
	}
	sub, err := d.readBytes()
	if err != nil {
		return core.Vec3{}, err
	}
	return unmarshalVec3(sub)
}

// MarshalDescriptor encodes an occluder descriptor.
// Each polyhedron face is a packed list of corner indices.
func MarshalDescriptor(desc geometry.Descriptor) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(desc.Kind))
	for _, c := range desc.Corners {
		b = appendBytes(b, 2, marshalVec3(c))
	}
	for _, face := range desc.Faces {
		var packed []byte
		for _, i := range face {
			packed = protowire.AppendVarint(packed, uint64(i))
		}
		b = appendBytes(b, 3, packed)
	}
	b = appendDouble(b, 4, desc.Radius)
	return b
}

// UnmarshalDescriptor decodes an occluder descriptor. The result is not
// validated; Build does that.
func UnmarshalDescriptor(data []byte) (geometry.Descriptor, error) {
	var desc geometry.Descriptor
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return desc, err
		}
		switch num {
		case 1:
			if err := expect(num, typ, protowire.VarintType); err != nil {
				return desc, err
			}
			v, err := d.readVarint()
			if err != nil {
				return desc, err
			}
			desc.Kind = geometry.Kind(v)
		case 2:
			c, err := d.readVec3(num, typ)
			if err != nil {
				return desc, fmt.Errorf("corner %d: %w", len(desc.Corners), err)
			}
			desc.Corners = append(desc.Corners, c)
		case 3:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return desc, err
			}
			indices, err := d.readUint64s(num, typ, nil)
			if err != nil {
				return desc, fmt.Errorf("face %d: %w", len(desc.Faces), err)
			}
			face := make([]int, len(indices))
			for i, v := range indices {
				face[i] = int(v)
			}
			desc.Faces = append(desc.Faces, face)
		case 4:
			if err := expect(num, typ, protowire.Fixed64Type); err != nil {
				return desc, err
			}
			if desc.Radius, err = d.readDouble(); err != nil {
				return desc, err
			}
		default:
			if err := d.skip(num, typ); err != nil {
				return desc, err
			}
		}
	}
	return desc, nil
}

// MarshalTransform encodes an occluder transform
func MarshalTransform(t geometry.Transform) []byte {
	var b []byte
	b = appendBytes(b, 1, marshalVec3(t.Translation))
	b = appendBytes(b, 2, marshalVec3(t.Rotation))
	b = appendBytes(b, 3, marshalVec3(t.Scale))
	return b
}

// UnmarshalTransform decodes an occluder transform
func UnmarshalTransform(data []byte) (geometry.Transform, error) {
	var t geometry.Transform
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return t, err
		}
		switch num {
		case 1:
			t.Translation, err = d.readVec3(num, typ)
		case 2:
			t.Rotation, err = d.readVec3(num, typ)
		case 3:
			t.Scale, err = d.readVec3(num, typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return t, err
		}
	}
	return t, nil
}

// Record is the wire form of a registry record
type Record struct {
	registry.Record
}

func (m *Record) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.ID))
	b = appendBytes(b, 2, MarshalDescriptor(m.Descriptor))
	b = appendBytes(b, 3, MarshalTransform(m.Transform))
	b = appendBool(b, 4, m.Dynamic)
	return b
}

func (m *Record) Unmarshal(data []byte) error {
	*m = Record{}
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return err
		}
		switch num {
		case 1, 4:
			if err := expect(num, typ, protowire.VarintType); err != nil {
				return err
			}
			v, err := d.readVarint()
			if err != nil {
				return err
			}
			if num == 1 {
				m.ID = registry.ID(v)
			} else {
				m.Dynamic = v != 0
			}
		case 2, 3:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			sub, err := d.readBytes()
			if err != nil {
				return err
			}
			if num == 2 {
				m.Descriptor, err = UnmarshalDescriptor(sub)
			} else {
				m.Transform, err = UnmarshalTransform(sub)
			}
			if err != nil {
				return fmt.Errorf("record %d: %w", m.ID, err)
			}
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// Map is a named set of occluder records
type Map struct {
	Name    string
	Records []registry.Record
}

// Envelope wraps the encoded map
func (m *Map) Envelope() *Envelope {
	return &Envelope{Type: TypeMap, Payload: m.Marshal()}
}

func (m *Map) Marshal() []byte {
	var b []byte
	if m.Name != "" {
		b = appendBytes(b, 1, []byte(m.Name))
	}
	for _, r := range m.Records {
		rec := Record{Record: r}
		b = appendBytes(b, 2, rec.Marshal())
	}
	return b
}

func (m *Map) Unmarshal(data []byte) error {
	*m = Map{}
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return err
		}
		switch num {
		case 1, 2:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			sub, err := d.readBytes()
			if err != nil {
				return err
			}
			if num == 1 {
				m.Name = string(sub)
				continue
			}
			var rec Record
			if err := rec.Unmarshal(sub); err != nil {
				return err
			}
			m.Records = append(m.Records, rec.Record)
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}
