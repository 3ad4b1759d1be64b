// Package protocol implements the wire formats spoken to the inference backend.
//
// Information Hiding:
// - Tag and varint layout hidden behind Encoder
// - Frame header layout and compression hidden behind EncodeFrame/DecodeFrames
// - Best-effort scanning of payloads whose schema is unknown
package protocol

// Wire types used by the tagged-field encoding.
const (
	WireVarint  = 0
	WireFixed64 = 1
	WireBytes   = 2
	WireFixed32 = 5
)

// Encoder is an append-only buffer of tagged fields.
//
// A sub-message must be fully built before it is embedded with WriteMessage,
// since its length is written ahead of its bytes. Field order is preserved
// and the same field number may be written any number of times.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// WriteVarint writes a varint field.
func (e *Encoder) WriteVarint(field uint32, value uint64) *Encoder {
	e.writeTag(field, WireVarint)
	e.buf = AppendVarint(e.buf, value)
	return e
}

// WriteString writes a length-delimited string field.
func (e *Encoder) WriteString(field uint32, value string) *Encoder {
	e.writeTag(field, WireBytes)
	e.buf = AppendVarint(e.buf, uint64(len(value)))
	e.buf = append(e.buf, value...)
	return e
}

// WriteBytes writes a length-delimited bytes field.
func (e *Encoder) WriteBytes(field uint32, value []byte) *Encoder {
	e.writeTag(field, WireBytes)
	e.buf = AppendVarint(e.buf, uint64(len(value)))
	e.buf = append(e.buf, value...)
	return e
}

// WriteMessage embeds a completed sub-message as a length-delimited field.
func (e *Encoder) WriteMessage(field uint32, sub *Encoder) *Encoder {
	return e.WriteBytes(field, sub.Bytes())
}

// Bytes returns the encoded fields. The slice aliases the encoder's buffer.
func (e *Encoder) Bytes() []byte {
	if e == nil {
		return nil
	}
	return e.buf
}

// Len returns the number of encoded bytes.
func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) writeTag(field uint32, wire uint32) {
	e.buf = AppendVarint(e.buf, uint64(field)<<3|uint64(wire))
}

// AppendVarint appends v as a base-128 little-endian varint.
func AppendVarint(dst []byte, v uint64) []byte {
	for v > 0x7f {
		dst = append(dst, byte(v&0x7f)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// DecodeVarint decodes a varint starting at offset.
// It returns the value and the offset just past it; next == offset means
// there was nothing to decode. At most 10 bytes are consumed.
func DecodeVarint(data []byte, offset int) (value uint64, next int) {
	var shift uint
	next = offset
	for next < len(data) && next-offset < 10 {
		b := data[next]
		next++
		value |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	return value, next
}
