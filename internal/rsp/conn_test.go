package rsp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnReadPacketRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sc := NewConn(server)
	// net.Pipe is unbuffered and ReadPacket writes its '+' ack before
	// returning, so the ack has to be read concurrently.
	type ackResult struct {
		b   byte
		err error
	}
	ackCh := make(chan ackResult, 1)
	go func() {
		_, _ = client.Write(EncodePacket([]byte("g")))
		ack := make([]byte, 1)
		client.SetReadDeadline(time.Now().Add(time.Second))
		_, err := client.Read(ack)
		ackCh <- ackResult{ack[0], err}
	}()

	payload, err := sc.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "g", string(payload))

	res := <-ackCh
	require.NoError(t, res.err)
	require.Equal(t, byte('+'), res.b)
}

func TestConnReadPacketBadChecksumNacksAndRetries(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sc := NewConn(server)
	go func() {
		_, _ = client.Write([]byte("$g#00")) // wrong checksum
		buf := make([]byte, 1)
		client.SetReadDeadline(time.Now().Add(time.Second))
		client.Read(buf) // consume '-'
		_, _ = client.Write(EncodePacket([]byte("g")))
		client.Read(buf) // consume '+', which ReadPacket writes before returning
	}()

	payload, err := sc.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "g", string(payload))
}

func TestConnReadPacketInterrupt(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sc := NewConn(server)
	go func() {
		_, _ = client.Write([]byte{0x03})
	}()

	_, err := sc.ReadPacket()
	require.Equal(t, ErrInterrupt, err)
}

func TestConnReadPacketPeerClosed(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	sc := NewConn(server)
	client.Close()

	_, err := sc.ReadPacket()
	require.Equal(t, ErrPeerClosed, err)
}

func TestConnSendPacketRetransmitsOnNack(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sc := NewConn(server)
	retransmits := 0
	sc.OnRetransmit = func() { retransmits++ }
	attempts := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			payload, err := readFramedFromClient(t, client)
			require.NoError(t, err)
			require.Equal(t, "OK", payload)
			attempts++
			if attempts < 3 {
				client.Write([]byte{'-'})
				continue
			}
			client.Write([]byte{'+'})
			return
		}
	}()

	err := sc.SendPacket([]byte("OK"))
	require.NoError(t, err)
	<-done
	require.Equal(t, 3, attempts)
	require.Equal(t, 2, retransmits, "OnRetransmit should fire once per nack, not once per attempt")
}

// readFramedFromClient reads one "$payload#cc" frame from conn, as a test
// GDB client would, without validating checksum (the server under test is
// the one being exercised for send behavior here).
func readFramedFromClient(t *testing.T, conn net.Conn) (string, error) {
	t.Helper()
	buf := make([]byte, 0, 64)
	one := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, err := conn.Read(one); err != nil {
			return "", err
		}
		if one[0] == '$' {
			break
		}
	}
	for {
		if _, err := conn.Read(one); err != nil {
			return "", err
		}
		if one[0] == '#' {
			break
		}
		buf = append(buf, one[0])
	}
	// consume 2 checksum bytes
	conn.Read(make([]byte, 2))
	return string(buf), nil
}
