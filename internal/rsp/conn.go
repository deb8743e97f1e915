package rsp

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// ErrPeerClosed is surfaced when the remote end of the stream closes or
// resets at any point, including mid-packet. Session treats it as a
// transition to Detached rather than a fatal error (spec §7 PeerClosed).
var ErrPeerClosed = errors.New("rsp: peer closed connection")

// ErrInterrupt is returned by Conn.ReadPacket when a raw 0x03 byte arrives
// outside of any packet framing. It is not an error in the usual sense: it
// is the codec's pseudo-packet notification that GDB pressed Ctrl-C (spec
// §4.1 "Interrupt").
var ErrInterrupt = errors.New("rsp: async interrupt (ctrl-c)")

// Conn wraps a byte stream (almost always a net.Conn) with RSP framing and
// the ack/nack retransmission protocol for outgoing packets. It has no
// notion of command semantics.
type Conn struct {
	r *bufio.Reader
	w io.Writer

	// NoAck disables the leading '+'/'-' handshake once GDB has
	// negotiated QStartNoAckMode. Off by default, matching real RSP.
	NoAck bool

	// OnRetransmit, if set, is called once per retransmitted outgoing
	// packet (i.e. once per '-' nack SendPacket receives). nil is a no-op;
	// callers that want to observe retransmits, such as gdbserver.Session's
	// metrics, set this after NewConn.
	OnRetransmit func()
}

// NewConn wraps rw for RSP framing. rw is typically a net.Conn; any
// io.ReadWriter works, which keeps the codec trivially testable with
// in-memory pipes.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		r: bufio.NewReader(rw),
		w: rw,
	}
}

// ReadPacket reads the next complete, checksum-valid packet from the
// stream, handling the nack/retransmit loop internally: a checksum
// mismatch is acked with '-' and the method keeps reading until a valid
// packet (or a peer close) occurs. A raw 0x03 byte observed while
// scanning for '$' is reported as ErrInterrupt before any framing begins.
//
// On success the returned payload has already been run through Unescape,
// i.e. it is the logical command bytes the dispatcher should parse.
func (c *Conn) ReadPacket() ([]byte, error) {
	for {
		payload, err := c.readOnePacket()
		if err == ErrInterrupt {
			return nil, ErrInterrupt
		}
		if err == ErrPeerClosed {
			return nil, ErrPeerClosed
		}
		if err != nil {
			// Framing/checksum failure: nack and retry (spec §4.1, §7 BadClient).
			if ackErr := c.writeByte('-'); ackErr != nil {
				return nil, errors.Wrap(ackErr, "rsp: nack after bad packet")
			}
			continue
		}
		if !c.NoAck {
			if ackErr := c.writeByte('+'); ackErr != nil {
				return nil, errors.Wrap(ackErr, "rsp: ack after good packet")
			}
		}
		return payload, nil
	}
}

// readOnePacket performs a single scan-and-validate pass with no
// retransmit handling; ReadPacket loops around it.
func (c *Conn) readOnePacket() ([]byte, error) {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, wrapReadErr(err)
		}
		if b == interruptByte {
			return nil, ErrInterrupt
		}
		if b == packetStart {
			break
		}
		// Any other stray byte outside framing (notably a leftover '+' or
		// '-' ack from the peer) is simply discarded.
	}

	wire := make([]byte, 0, 64)
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, wrapReadErr(err)
		}
		if b == packetEnd {
			break
		}
		wire = append(wire, b)
	}

	hi, err := c.r.ReadByte()
	if err != nil {
		return nil, wrapReadErr(err)
	}
	lo, err := c.r.ReadByte()
	if err != nil {
		return nil, wrapReadErr(err)
	}

	want, err := DecodeChecksum(hi, lo)
	if err != nil {
		return nil, err
	}
	if got := Checksum(wire); got != want {
		return nil, errors.Wrapf(ErrBadChecksum, "got %#02x want %#02x", got, want)
	}

	return Unescape(wire)
}

// SendPacket frames and transmits payload, then retransmits it every time
// the peer nacks with '-', returning only once '+' has been observed or an
// I/O error (including peer close) makes further retransmission pointless.
// This loop is intentionally unbounded in attempts, per spec §5: bounded
// in practice by peer liveness, not by a retry ceiling.
func (c *Conn) SendPacket(payload []byte) error {
	framed := EncodePacket(payload)
	for {
		if _, err := c.w.Write(framed); err != nil {
			return wrapReadErr(err)
		}
		if c.NoAck {
			return nil
		}
		ack, err := c.r.ReadByte()
		if err != nil {
			return wrapReadErr(err)
		}
		switch ack {
		case '+':
			return nil
		case '-':
			if c.OnRetransmit != nil {
				c.OnRetransmit()
			}
			continue // retransmit the same framed bytes
		default:
			// A stray byte where an ack was expected; treat as a nack and
			// retransmit rather than silently losing the reply.
			if c.OnRetransmit != nil {
				c.OnRetransmit()
			}
			continue
		}
	}
}

func (c *Conn) writeByte(b byte) error {
	_, err := c.w.Write([]byte{b})
	return wrapReadErr(err)
}

// wrapReadErr normalizes any I/O error on the underlying stream to
// ErrPeerClosed. Spec §7 treats socket EOF/EPIPE/reset uniformly as
// PeerClosed; callers compare against the sentinel directly, so the
// original error is not wrapped here and is dropped.
func wrapReadErr(err error) error {
	if err == nil {
		return nil
	}
	return ErrPeerClosed
}
