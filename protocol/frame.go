// Connect-RPC envelope framing.
//
// Information Hiding:
// - 5-byte header layout (flags + big-endian length) hidden
// - gzip compression and its failure handling hidden
// - Truncated tails dropped instead of reported as corruption

package protocol

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// FrameHeaderSize is the flag byte plus the 4-byte length.
	FrameHeaderSize = 5

	// FlagCompressed marks a gzip-compressed payload.
	FlagCompressed byte = 0x01
	// FlagEndStream marks the trailing end-of-stream envelope.
	FlagEndStream byte = 0x02
)

// Frame is one decoded envelope. Payload is already decompressed.
type Frame struct {
	Flags   byte
	Payload []byte
}

// Compressed reports whether the frame arrived gzip-compressed.
func (f Frame) Compressed() bool {
	return f.Flags&FlagCompressed != 0
}

// EndStream reports whether the frame is the end-of-stream envelope.
func (f Frame) EndStream() bool {
	return f.Flags&FlagEndStream != 0
}

// EncodeFrame gzip-compresses payload and wraps it in one envelope.
func EncodeFrame(payload []byte) ([]byte, error) {
	compressed, err := gzipBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("compress frame: %w", err)
	}

	out := make([]byte, FrameHeaderSize, FrameHeaderSize+len(compressed))
	out[0] = FlagCompressed
	binary.BigEndian.PutUint32(out[1:FrameHeaderSize], uint32(len(compressed)))
	return append(out, compressed...), nil
}

// DecodeFrames splits a response body into frames.
// A partial trailing frame is dropped.
func DecodeFrames(data []byte) []Frame {
	frames, _ := DecodeFramesDetail(data)
	return frames
}

// DecodeFramesDetail is DecodeFrames that also reports whether trailing
// bytes were dropped because the last frame was incomplete.
func DecodeFramesDetail(data []byte) (frames []Frame, truncated bool) {
	i := 0
	for i+FrameHeaderSize <= len(data) {
		flags := data[i]
		length := binary.BigEndian.Uint32(data[i+1 : i+FrameHeaderSize])
		i += FrameHeaderSize

		if uint64(length) > uint64(len(data)-i) {
			return frames, true
		}
		raw := data[i : i+int(length)]
		i += int(length)

		payload := raw
		if flags&FlagCompressed != 0 {
			if plain, err := gunzipBytes(raw); err == nil {
				payload = plain
			}
		}
		frames = append(frames, Frame{Flags: flags, Payload: bytes.Clone(payload)})
	}
	return frames, i < len(data)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
