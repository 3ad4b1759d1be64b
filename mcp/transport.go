// Dual-mode stdio framing.
//
// Information Hiding:
// - Framing detection (Content-Length headers vs one JSON per line) hidden
// - Header parsing hidden

package mcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Mode is the framing used on the stream.
type Mode int

const (
	ModeUnknown Mode = iota
	// ModeHeader frames each message with Content-Length headers.
	ModeHeader
	// ModeLine carries one JSON message per line.
	ModeLine
)

func (m Mode) String() string {
	switch m {
	case ModeHeader:
		return "header"
	case ModeLine:
		return "line"
	default:
		return "unknown"
	}
}

// ErrMissingContentLength is returned for a header block without a
// Content-Length. Only that message is lost; the stream stays usable.
var ErrMissingContentLength = errors.New("missing Content-Length")

// ErrMessageTooLarge is returned for a Content-Length above MaxMessageBytes.
// The declared body is discarded so the next message can still be read.
var ErrMessageTooLarge = errors.New("message too large")

// MaxMessageBytes bounds a header-framed message body.
const MaxMessageBytes = 64 << 20

// Transport reads and writes framed messages. The framing is detected from
// the first message and then fixed for the life of the transport.
type Transport struct {
	r *bufio.Reader

	wmu sync.Mutex
	w   io.Writer

	mode Mode
}

// NewTransport creates a transport over r and w.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{r: bufio.NewReader(r), w: w}
}

// NewTransportMode creates a transport with a fixed framing.
func NewTransportMode(r io.Reader, w io.Writer, mode Mode) *Transport {
	t := NewTransport(r, w)
	t.mode = mode
	return t
}

// Mode returns the detected framing.
func (t *Transport) Mode() Mode {
	return t.mode
}

// ReadMessage returns the next message body. It returns io.EOF when the
// input is exhausted.
func (t *Transport) ReadMessage() ([]byte, error) {
	switch t.mode {
	case ModeLine:
		return t.readLineMessage()
	case ModeHeader:
		return t.readHeaderMessage("")
	}

	for {
		line, err := t.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}
		if isHeaderLine(line) {
			t.mode = ModeHeader
			return t.readHeaderMessage(line)
		}
		t.mode = ModeLine
		return []byte(line), nil
	}
}

// WriteMessage writes payload using the detected framing, or line framing
// if nothing has been read yet.
func (t *Transport) WriteMessage(payload []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	if t.mode == ModeHeader {
		if _, err := fmt.Fprintf(t.w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
			return err
		}
		_, err := t.w.Write(payload)
		return err
	}

	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, '\n')
	_, err := t.w.Write(buf)
	return err
}

func (t *Transport) readLineMessage() ([]byte, error) {
	for {
		line, err := t.readLine()
		if err != nil {
			return nil, err
		}
		if line != "" {
			return []byte(line), nil
		}
	}
}

// readHeaderMessage reads headers up to a blank line and then the body.
// first is an already consumed header line, if any.
func (t *Transport) readHeaderMessage(first string) ([]byte, error) {
	length := -1
	seen := false
	if first != "" {
		seen = true
		length = contentLength(first, length)
	}

	for {
		line, err := t.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			if seen {
				break
			}
			continue
		}
		seen = true
		length = contentLength(line, length)
	}

	if length < 0 {
		return nil, ErrMissingContentLength
	}
	if length > MaxMessageBytes {
		if _, err := io.CopyN(io.Discard, t.r, int64(length)); err != nil {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(t.r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return body, nil
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned before io.EOF.
func (t *Transport) readLine() (string, error) {
	line, err := t.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isHeaderLine(line string) bool {
	name, _, ok := strings.Cut(line, ":")
	if !ok {
		return false
	}
	name = strings.TrimSpace(name)
	return strings.EqualFold(name, "Content-Length") || strings.EqualFold(name, "Content-Type")
}

func contentLength(line string, current int) int {
	name, value, ok := strings.Cut(line, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
		return current
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return current
	}
	return n
}
