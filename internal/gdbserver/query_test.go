package gdbserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQSupportedNegotiatesPacketSize(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, auto := s.qSupported("Supported:multiprocess+;swbreak+;PacketSize=400")
	require.True(t, auto)
	require.Contains(t, reply, "PacketSize=400")
	require.Contains(t, reply, "swbreak+")
	require.Contains(t, reply, "hwbreak+")
	require.Contains(t, reply, "qXfer:features:read+")
	require.Equal(t, 0x400, s.packetSize)
}

func TestQSupportedNeverRaisesPacketSize(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, _ := s.qSupported("Supported:PacketSize=ffffff")
	require.Contains(t, reply, "PacketSize=1000") // defaultPacketSize (4096) in hex
	require.Equal(t, defaultPacketSize, s.packetSize)
}

func TestQXferFeaturesReadPages(t *testing.T) {
	s, _ := newTestSession(t, 64)
	want, ok := s.arch.GetXferFeaturesRead("target.xml")
	require.True(t, ok)

	var got strings.Builder
	offset := 0
	const chunk = 64
	for {
		data := "Xfer:features:read:target.xml:" + hexInt(offset) + "," + hexInt(chunk)
		reply, auto := s.qXfer(data)
		require.True(t, auto)
		require.NotEmpty(t, reply)
		prefix, body := reply[:1], reply[1:]
		got.WriteString(body)
		offset += len(body)
		if prefix == "l" {
			break
		}
		require.Equal(t, "m", prefix)
	}
	require.Equal(t, string(want), got.String())
}

func TestQXferUnknownAnnex(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, auto := s.qXfer("Xfer:features:read:nonexistent.xml:0,10")
	require.True(t, auto)
	require.Equal(t, "E00", reply)
}

func TestQCAndQAttached(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, _ := s.qC("")
	require.Equal(t, "QC1", reply)

	reply, _ = s.qAttached("")
	require.Equal(t, "1", reply)
}

func TestQfThreadInfoListsRegisteredThreads(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, auto := s.qFThreadInfo("")
	require.True(t, auto)
	require.Equal(t, "l1", reply)

	reply, _ = s.qSThreadInfo("")
	require.Equal(t, "l", reply)
}

func hexInt(n int) string {
	const hexdigits = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{hexdigits[n%16]}, buf...)
		n /= 16
	}
	return string(buf)
}
