package rsp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	require.Equal(t, byte(0), Checksum(nil))
	require.Equal(t, byte('O'+'K'), Checksum([]byte("OK")))
}

func TestEscapeRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("OK"),
		[]byte("deadbeef"),
		[]byte{'#', '$', '}', '*'},
		[]byte{0x03, 'a', 'b', '#'},
		[]byte("g" + string(rune(0))),
	}
	for _, payload := range cases {
		escaped := Escape(payload)
		for _, b := range escaped {
			require.False(t, b == packetStart || b == packetEnd, "escaped output must not contain raw framing bytes: %v", escaped)
		}
		decoded, err := Unescape(escaped)
		require.NoError(t, err)
		require.Equal(t, payload, decoded)
	}
}

func TestEncodePacketFormat(t *testing.T) {
	pkt := EncodePacket([]byte("OK"))
	require.Equal(t, "$OK#9a", string(pkt))
}

func TestUnescapeRunLengthExpansion(t *testing.T) {
	// 'a' followed by '*' and a byte of value 28+3=31 ('\x1f') means 3
	// additional repetitions of 'a', for 4 total.
	wire := []byte{'a', rleMarker, 28 + 3}
	decoded, err := Unescape(wire)
	require.NoError(t, err)
	require.Equal(t, []byte("aaaa"), decoded)
}

func TestUnescapeRunLengthNoPrecedingByte(t *testing.T) {
	_, err := Unescape([]byte{rleMarker, 30})
	require.Error(t, err)
}

func TestUnescapeTruncatedEscape(t *testing.T) {
	_, err := Unescape([]byte{escapeMarker})
	require.Error(t, err)
}

func TestDecodeChecksum(t *testing.T) {
	v, err := DecodeChecksum('9', 'a')
	require.NoError(t, err)
	require.Equal(t, byte(0x9a), v)

	_, err = DecodeChecksum('z', 'z')
	require.Error(t, err)
}
