package wsclient

import (
	"encoding/binary"
	"math"
)

// opcode represents a WebSocket opcode.
type opcode byte

// https://tools.ietf.org/html/rfc6455#section-11.8.
const (
	opContinuation opcode = iota
	opText
	opBinary
	// 3 - 7 are reserved for further non-control frames.
	_
	_
	_
	_
	_
	opClose
	opPing
	opPong
	// 11-16 are reserved for further control frames.
)

const (
	// flagFin marks the final fragment of a message. The encoder never
	// sets it itself; it belongs to the caller-supplied first byte.
	flagFin = 0x80

	// maskBit is always set on the length byte: every client-to-server
	// frame is masked per RFC 6455 section 5.3.
	maskBit = 0x80
)

// frameEncoder assembles one outbound frame at a time into an owned scratch
// buffer. The buffer is rebuilt from scratch on every call and the returned
// slice aliases it, so a frame must be handed to the transport before the
// next encode. Not safe for concurrent use.
type frameEncoder struct {
	maskKey [4]byte
	buf     []byte
}

// encode produces the wire bytes of a single masked frame.
// See https://tools.ietf.org/html/rfc6455#section-5.2.
//
// first is emitted verbatim as the first byte; the caller owns the
// FIN/RSV/opcode bits. Inputs are assumed well formed, so there are no
// error conditions.
func (e *frameEncoder) encode(first byte, p []byte) []byte {
	e.buf = append(e.buf[:0], first)

	switch {
	case len(p) <= 125:
		e.buf = append(e.buf, byte(len(p))|maskBit)
	case len(p) <= math.MaxUint16:
		e.buf = append(e.buf, 126|maskBit)
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(len(p)))
	default:
		e.buf = append(e.buf, 127|maskBit)
		e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(len(p)))
	}

	e.buf = append(e.buf, e.maskKey[:]...)

	payload := len(e.buf)
	e.buf = append(e.buf, p...)
	mask(e.maskKey, e.buf[payload:])

	return e.buf
}
