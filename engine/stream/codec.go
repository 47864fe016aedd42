package stream

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope is the outer frame of every websocket message:
//
//	1: kind    (varint)
//	2: seq     (varint)
//	3: payload (bytes)
type Envelope struct {
	Kind    Kind
	Seq     uint64
	Payload []byte
}

// Encode wraps a message in an envelope and serializes it.
//
// Parameters:
//   - seq: the sender's sequence number for the message
//   - m: the message
//
// Returns:
//   - []byte: the protobuf wire encoding of the envelope
func Encode(seq uint64, m Message) []byte {
	payload := m.appendTo(nil)

	b := make([]byte, 0, len(payload)+16)
	b = appendUvarint(b, 1, uint64(m.Kind()))
	b = appendUvarint(b, 2, seq)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	return b
}

// Decode parses an envelope and its payload. Unknown fields are skipped.
//
// Parameters:
//   - data: one websocket frame
//
// Returns:
//   - Envelope: the envelope header and raw payload
//   - Message: the decoded payload
//   - error: ErrMalformed or ErrUnknownKind on bad input
func Decode(data []byte) (Envelope, Message, error) {
	var env Envelope
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			env.Kind = Kind(v)
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			env.Seq = v
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			env.Payload = v
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return env, nil, err
	}

	m, err := newMessage(env.Kind)
	if err != nil {
		return env, nil, err
	}
	if err := m.unmarshal(env.Payload); err != nil {
		return env, nil, fmt.Errorf("%s payload: %w", env.Kind, err)
	}
	return env, m, nil
}

// walk calls field for every field in b. field returns the number of value
// bytes it consumed, or -1 to have the value skipped. A truncated value also
// yields -1 and is then reported by ConsumeFieldValue.
func walk(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n == -1 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

// appendUvarint omits zero values, as proto3 does.
func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

// appendVec3 encodes a vector as a submessage of three fixed32 floats.
func appendVec3(b []byte, num protowire.Number, v mgl32.Vec3) []byte {
	var sub []byte
	for i, c := range v {
		sub = protowire.AppendTag(sub, protowire.Number(i+1), protowire.Fixed32Type)
		sub = protowire.AppendFixed32(sub, math.Float32bits(c))
	}
	return appendMessage(b, num, sub)
}

func consumeVec3(b []byte) (mgl32.Vec3, int, error) {
	sub, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return mgl32.Vec3{}, n, nil
	}
	var v mgl32.Vec3
	err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num < 1 || num > 3 || typ != protowire.Fixed32Type {
			return -1, nil
		}
		bits, n := protowire.ConsumeFixed32(b)
		if n >= 0 {
			v[num-1] = math.Float32frombits(bits)
		}
		return n, nil
	})
	return v, n, err
}

func (p *Place) appendTo(b []byte) []byte {
	b = appendString(b, 1, p.Model)
	b = appendUvarint(b, 2, p.ID)
	b = appendVec3(b, 3, p.Position)
	b = appendVec3(b, 4, p.Rotation)
	b = appendVec3(b, 5, p.Scale)
	return b
}

func (p *Place) unmarshal(data []byte) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			p.Model = s
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.ID = v
			return n, nil
		case num >= 3 && num <= 5 && typ == protowire.BytesType:
			v, n, err := consumeVec3(b)
			switch num {
			case 3:
				p.Position = v
			case 4:
				p.Rotation = v
			case 5:
				p.Scale = v
			}
			return n, err
		}
		return -1, nil
	})
}

func (r *Remove) appendTo(b []byte) []byte {
	b = appendString(b, 1, r.Model)
	b = appendUvarint(b, 2, r.ID)
	b = appendUvarint(b, 3, r.Hash)
	return b
}

func (r *Remove) unmarshal(data []byte) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			r.Model = s
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.ID = v
			return n, nil
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Hash = v
			return n, nil
		}
		return -1, nil
	})
}

func (v *ViewChanged) appendTo(b []byte) []byte {
	return appendVec3(b, 1, v.Eye)
}

func (v *ViewChanged) unmarshal(data []byte) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			eye, n, err := consumeVec3(b)
			v.Eye = eye
			return n, err
		}
		return -1, nil
	})
}

func (v *Visible) appendTo(b []byte) []byte {
	for _, r := range v.Refs {
		var sub []byte
		sub = appendString(sub, 1, r.Model)
		sub = appendUvarint(sub, 2, r.ID)
		b = appendMessage(b, 1, sub)
	}
	return b
}

func (v *Visible) unmarshal(data []byte) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return -1, nil
		}
		sub, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		var ref Ref
		err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch {
			case num == 1 && typ == protowire.BytesType:
				s, n := protowire.ConsumeString(b)
				ref.Model = s
				return n, nil
			case num == 2 && typ == protowire.VarintType:
				id, n := protowire.ConsumeVarint(b)
				ref.ID = id
				return n, nil
			}
			return -1, nil
		})
		if err != nil {
			return n, err
		}
		v.Refs = append(v.Refs, ref)
		return n, nil
	})
}
