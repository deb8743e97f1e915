package gdbserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleInsertAndRemoveBreakpoint(t *testing.T) {
	s, cpu := newTestSession(t, 64)
	require.NoError(t, cpu.WriteMemory(0x10, []byte{0xcc})) // INT3, a real 1-byte instruction

	reply, auto := s.handleInsertBreakpoint("0,10,1")
	require.True(t, auto)
	require.Equal(t, "OK", reply)

	// Installing the same (addr, length) again is a no-op, not an error.
	reply, _ = s.handleInsertBreakpoint("0,10,1")
	require.Equal(t, "OK", reply)

	reply, auto = s.handleRemoveBreakpoint("0,10,1")
	require.True(t, auto)
	require.Equal(t, "OK", reply)

	reply, _ = s.handleRemoveBreakpoint("0,10,1")
	require.Equal(t, "E01", reply, "removing an already-removed breakpoint is an error")
}

func TestHandleInsertBreakpointUnsupportedKind(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, auto := s.handleInsertBreakpoint("2,10,4") // watchpoint, unsupported
	require.True(t, auto)
	require.Equal(t, "", reply)
}

func TestHandleInsertBreakpointBadLength(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, auto := s.handleInsertBreakpoint("0,10,3") // 3 is not a valid x86 bp length
	require.True(t, auto)
	require.Equal(t, "E01", reply)
}

func TestHandleInsertBreakpointMalformed(t *testing.T) {
	s, _ := newTestSession(t, 64)
	reply, auto := s.handleInsertBreakpoint("not-valid")
	require.True(t, auto)
	require.Equal(t, "E01", reply)
}
