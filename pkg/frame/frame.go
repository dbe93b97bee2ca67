// Package frame splits a raw serial byte stream into line-feed terminated
// frames and parses them as floating-point telemetry values.
//
// Wire format: one base-10 ASCII float per line, terminated by '\n'.
// Surrounding whitespace (including a '\r' before the '\n') is ignored.
package frame

import (
	"bytes"
	"iter"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Terminator ends every frame on the wire.
const Terminator = '\n'

// Framer accumulates bytes and extracts complete frames from them.
//
// The accumulator is not bounded: a sender that never emits a terminator
// grows it without limit. Pending reports its size so callers can watch it.
type Framer struct {
	buf []byte
}

// Write appends p to the accumulator. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

// Frames returns a sequence of the complete frames currently held in the
// accumulator, trimmed of the terminator and surrounding whitespace. Each
// yielded frame is drained from the accumulator; an unterminated tail stays
// for the next Write. Ranging again after more writes continues from there.
func (f *Framer) Frames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			i := bytes.IndexByte(f.buf, Terminator)
			if i < 0 {
				return
			}
			line := string(bytes.TrimSpace(f.buf[:i]))
			// Drain in place so the backing array is reused.
			n := copy(f.buf, f.buf[i+1:])
			f.buf = f.buf[:n]
			if !yield(line) {
				return
			}
		}
	}
}

// Pending returns the number of buffered bytes not yet part of a frame.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset drops any buffered bytes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// Parse parses a frame as a base-10 float64. ok is false for empty,
// non-numeric, hexadecimal or non UTF-8 frames; such frames are line noise
// and callers drop them.
func Parse(line string) (v float64, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || !utf8.ValidString(line) || isHex(line) {
		return 0, false
	}
	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isHex reports whether s has a 0x prefix after an optional sign.
// strconv.ParseFloat accepts hexadecimal floats; the wire format does not.
func isHex(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
