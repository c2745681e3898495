package receiver

import (
	"bytes"
	"fmt"
)

// ISCP envelope markers for the serial protocol.
const (
	startSend = "!1"
	endSend   = "\r"
	startRecv = "!1"
	endRecv   = 0x1A
)

// DefaultFrameLimit caps an unterminated incoming frame.
const DefaultFrameLimit = 256

// Frame wraps a command body in the outgoing envelope.
func Frame(body string) []byte {
	b := make([]byte, 0, len(startSend)+len(body)+len(endSend))
	b = append(b, startSend...)
	b = append(b, body...)
	return append(b, endSend...)
}

// Unframe extracts the status code from one incoming frame. Anything before
// the start marker is ignored; the code ends at the terminator or a line break.
func Unframe(raw []byte) (string, error) {
	i := bytes.Index(raw, []byte(startRecv))
	if i < 0 {
		return "", fmt.Errorf("%w: %q", ErrNoEnvelope, raw)
	}
	code := raw[i+len(startRecv):]
	if j := bytes.IndexAny(code, "\x1a\r\n"); j >= 0 {
		code = code[:j]
	}
	return string(code), nil
}

// FrameReader reassembles incoming frames from arbitrary read chunks.
// A serial read may return half a frame or several frames at once.
type FrameReader struct {
	buf   []byte
	limit int
}

// NewFrameReader creates a FrameReader. A non-positive limit uses DefaultFrameLimit.
func NewFrameReader(limit int) *FrameReader {
	if limit <= 0 {
		limit = DefaultFrameLimit
	}
	return &FrameReader{limit: limit}
}

// Feed appends a chunk and returns every complete frame it closes.
// Frames end at 0x1A or a newline. An unterminated buffer that reaches the
// limit is returned as a frame of its own so that it is decoded (and
// reported) rather than accumulating forever.
func (r *FrameReader) Feed(chunk []byte) [][]byte {
	r.buf = append(r.buf, chunk...)

	var frames [][]byte
	start := 0
	for {
		rest := r.buf[start:]
		i := bytes.IndexAny(rest, "\x1a\n")
		if i < 0 {
			break
		}
		frame := bytes.TrimRight(rest[:i], "\r")
		if len(bytes.TrimSpace(frame)) > 0 {
			frames = append(frames, bytes.Clone(frame))
		}
		start += i + 1
	}

	rest := r.buf[start:]
	if len(rest) >= r.limit {
		frames = append(frames, bytes.Clone(rest))
		rest = nil
	}
	r.buf = append(r.buf[:0], rest...)
	return frames
}

// Buffered returns the number of bytes waiting for a terminator.
func (r *FrameReader) Buffered() int {
	return len(r.buf)
}
