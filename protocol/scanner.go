package protocol

import "unicode/utf8"

// minStringLen is the shortest segment ExtractStrings reports.
const minStringLen = 6

// ExtractStrings walks data tag by tag without knowing its schema and
// returns every length-delimited segment that is valid UTF-8 and longer
// than five bytes, in the order encountered.
//
// Nested messages are not descended into; a nested message that happens to
// be valid UTF-8 is reported as a whole. Scanning stops quietly on an unknown
// wire type or on a length that would run past the end of data.
func ExtractStrings(data []byte) []string {
	var out []string
	i := 0
	for i < len(data) {
		tag, next := DecodeVarint(data, i)
		if next == i {
			break
		}
		i = next

		switch tag & 0x7 {
		case WireVarint:
			_, next = DecodeVarint(data, i)
			if next == i {
				return out
			}
			i = next
		case WireFixed64:
			i += 8
		case WireBytes:
			length, next := DecodeVarint(data, i)
			if next == i {
				return out
			}
			i = next
			if length > uint64(len(data)-i) {
				return out
			}
			end := i + int(length)
			seg := data[i:end]
			if len(seg) >= minStringLen && utf8.Valid(seg) {
				out = append(out, string(seg))
			}
			i = end
		case WireFixed32:
			i += 4
		default:
			return out
		}
	}
	return out
}
