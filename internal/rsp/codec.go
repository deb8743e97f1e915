// Package rsp implements the wire-level framing of the GDB Remote Serial
// Protocol: the "$payload#cc" packet format, its checksum, the escape
// encoding for the four special bytes, and inbound run-length decoding.
//
// This package knows nothing about command semantics; it only turns bytes
// on a stream into payloads and payloads into bytes. See package gdbserver
// for command dispatch and package simcontract for the collaborator
// contracts the rest of the simulator provides.
package rsp

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Special bytes that must be escaped when written to the wire and that
// terminate/delimit framing when read from it.
const (
	packetStart   = '$'
	packetEnd     = '#'
	escapeMarker  = '}'
	rleMarker     = '*'
	escapeXOR     = 0x20
	interruptByte = 0x03
)

// ErrBadChecksum is the cause wrapped into the error DecodeChecksum returns
// for malformed digits and into the error Conn's packet reader produces
// when a packet's trailing checksum does not match its payload.
// Recoverable: the caller acks with '-' and waits for retransmission.
var ErrBadChecksum = errors.New("rsp: checksum mismatch")

// Checksum computes the modulo-256 sum of the given wire bytes, the value
// GDB RSP transmits as two lowercase hex digits after '#'.
func Checksum(wire []byte) byte {
	var sum byte
	for _, b := range wire {
		sum += b
	}
	return sum
}

// needsEscape reports whether b is one of the four bytes that must never
// appear literally inside a packet's payload.
func needsEscape(b byte) bool {
	switch b {
	case packetEnd, packetStart, escapeMarker, rleMarker:
		return true
	default:
		return false
	}
}

// Escape returns payload with every occurrence of '#', '$', '}', '*'
// replaced by the two-byte sequence '}' followed by (byte ^ 0x20). This is
// the wire representation placed between '$' and '#'.
func Escape(payload []byte) []byte {
	out := make([]byte, 0, len(payload))
	for _, b := range payload {
		if needsEscape(b) {
			out = append(out, escapeMarker, b^escapeXOR)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// Unescape reverses Escape and additionally expands the inbound-only
// run-length encoding: a '*' followed by a byte n expands the character
// immediately preceding the '*' by n-28 additional repetitions. RLE is
// never produced by this package's own Escape/EncodePacket, only decoded,
// per spec: "must be decoded but need not be produced."
func Unescape(wire []byte) ([]byte, error) {
	out := make([]byte, 0, len(wire))
	for i := 0; i < len(wire); i++ {
		b := wire[i]
		switch b {
		case escapeMarker:
			i++
			if i >= len(wire) {
				return nil, errors.New("rsp: truncated escape sequence")
			}
			out = append(out, wire[i]^escapeXOR)
		case rleMarker:
			i++
			if i >= len(wire) {
				return nil, errors.New("rsp: truncated run-length sequence")
			}
			if len(out) == 0 {
				return nil, errors.New("rsp: run-length marker with no preceding byte")
			}
			repeatCount := int(wire[i]) - 28
			if repeatCount < 0 {
				return nil, errors.Errorf("rsp: invalid run-length count byte %#x", wire[i])
			}
			last := out[len(out)-1]
			for n := 0; n < repeatCount; n++ {
				out = append(out, last)
			}
		default:
			out = append(out, b)
		}
	}
	return out, nil
}

// EncodePacket frames payload as "$<escaped payload>#<checksum>". The
// checksum is computed over the escaped wire bytes, i.e. exactly what is
// transmitted between '$' and '#', mirroring how a receiver validates it.
func EncodePacket(payload []byte) []byte {
	escaped := Escape(payload)
	sum := Checksum(escaped)
	out := make([]byte, 0, len(escaped)+4)
	out = append(out, packetStart)
	out = append(out, escaped...)
	out = append(out, packetEnd)
	out = append(out, fmt.Sprintf("%02x", sum)...)
	return out
}

// DecodeChecksum parses a two hex digit checksum as sent on the wire.
func DecodeChecksum(hi, lo byte) (byte, error) {
	v, err := strconv.ParseUint(string([]byte{hi, lo}), 16, 8)
	if err != nil {
		return 0, errors.Wrapf(ErrBadChecksum, "malformed checksum digits %q", []byte{hi, lo})
	}
	return byte(v), nil
}
