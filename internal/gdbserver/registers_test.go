package gdbserver

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleReadAllRegistersEvenHex(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, auto := s.handleReadAllRegisters()
	require.True(t, auto)
	require.NotEmpty(t, reply)
	_, err := hex.DecodeString(reply)
	require.NoError(t, err, "g reply must be valid hex")
}

func TestHandleWriteAllRegistersRoundTrip(t *testing.T) {
	s, _ := newTestSession(t, 64)
	initial, _ := s.handleReadAllRegisters()

	flipped := flipFirstByte(t, initial)
	reply, auto := s.handleWriteAllRegisters(flipped)
	require.True(t, auto)
	require.Equal(t, "OK", reply)

	after, _ := s.handleReadAllRegisters()
	require.Equal(t, strings.ToLower(flipped), after)
}

func TestHandleWriteAllRegistersWrongLength(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, auto := s.handleWriteAllRegisters("dead")
	require.True(t, auto)
	require.Equal(t, "E01", reply)
}

func TestHandleReadWriteSingleRegister(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, auto := s.handleWriteRegister("0=efbeadde00000000")
	require.True(t, auto)
	require.Equal(t, "OK", reply)

	reply, auto = s.handleReadRegister("0")
	require.True(t, auto)
	require.Equal(t, "efbeadde00000000", reply)
}

func TestHandleReadRegisterOutOfRange(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, auto := s.handleReadRegister("ff")
	require.True(t, auto)
	require.Equal(t, "E01", reply)
}

func flipFirstByte(t *testing.T, hexStr string) string {
	t.Helper()
	buf, err := hex.DecodeString(hexStr)
	require.NoError(t, err)
	buf[0] ^= 0xff
	return hex.EncodeToString(buf)
}
