// Package wire encodes culling frames and occluder records in the protobuf
// wire format. Messages are hand-mapped; there is no generated code.
package wire

import (
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrTruncated is returned when a message ends in the middle of a field
	ErrTruncated = errors.New("wire: truncated message")
	// ErrWireType is returned when a known field arrives with the wrong wire type
	ErrWireType = errors.New("wire: unexpected wire type")
)

// decoder walks the fields of one message
type decoder struct {
	buf []byte
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

func (d *decoder) done() bool {
	return len(d.buf) == 0
}

func (d *decoder) fail(n int) error {
	err := protowire.ParseError(n)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return fmt.Errorf("wire: %w", err)
}

func (d *decoder) readTag() (protowire.Number, protowire.Type, error) {
	num, typ, n := protowire.ConsumeTag(d.buf)
	if n < 0 {
		return 0, 0, d.fail(n)
	}
	d.buf = d.buf[n:]
	return num, typ, nil
}

func expect(num protowire.Number, got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("%w: field %d has type %d, want %d", ErrWireType, num, got, want)
	}
	return nil
}

func (d *decoder) readVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(d.buf)
	if n < 0 {
		return 0, d.fail(n)
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *decoder) readDouble() (float64, error) {
	v, n := protowire.ConsumeFixed64(d.buf)
	if n < 0 {
		return 0, d.fail(n)
	}
	d.buf = d.buf[n:]
	return math.Float64frombits(v), nil
}

func (d *decoder) readBytes() ([]byte, error) {
	v, n := protowire.ConsumeBytes(d.buf)
	if n < 0 {
		return nil, d.fail(n)
	}
	d.buf = d.buf[n:]
	return v, nil
}

// readUint64s reads a repeated varint field in either packed or unpacked form
func (d *decoder) readUint64s(num protowire.Number, typ protowire.Type, into []uint64) ([]uint64, error) {
	switch typ {
	case protowire.VarintType:
		v, err := d.readVarint()
		if err != nil {
			return into, err
		}
		return append(into, v), nil
	case protowire.BytesType:
		packed, err := d.readBytes()
		if err != nil {
			return into, err
		}
		for len(packed) > 0 {
			v, n := protowire.ConsumeVarint(packed)
			if n < 0 {
				return into, d.fail(n)
			}
			into = append(into, v)
			packed = packed[n:]
		}
		return into, nil
	default:
		return into, expect(num, typ, protowire.VarintType)
	}
}

func (d *decoder) skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, d.buf)
	if n < 0 {
		return d.fail(n)
	}
	d.buf = d.buf[n:]
	return nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 && !math.Signbit(v) {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendPacked(b []byte, num protowire.Number, values []uint64) []byte {
	if len(values) == 0 {
		return b
	}
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, v)
	}
	return appendBytes(b, num, packed)
}
