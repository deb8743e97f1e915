package gdbserver

import (
	"encoding/hex"
)

// handleReadMemory implements "m addr,length" (spec.md §4.4). All-or-
// nothing: if acc() rejects any byte of the range the whole request fails.
func (s *Session) handleReadMemory(data string) (string, bool) {
	addrStr, lenStr, ok := splitOnce(data, ',')
	if !ok {
		return "E01", true
	}
	addr, err := parseHexUint(addrStr)
	if err != nil {
		return badRequestReply(err)
	}
	length, err := parseHexUint(lenStr)
	if err != nil {
		return badRequestReply(err)
	}

	tc, ok := s.registry.currentContext()
	if !ok {
		s.internalInvariant("m command with no current ThreadContext")
	}
	mem := tc.Memory()
	if !mem.Acc(addr, int(length)) {
		s.log.WithField("addr", addr).WithField("len", length).Debug("memory read denied by access predicate")
		return "E01", true
	}
	buf := make([]byte, length)
	if err := mem.ReadMemory(addr, buf); err != nil {
		s.log.WithError(err).Warn("memory read failed after access check passed")
		return "E01", true
	}
	return hex.EncodeToString(buf), true
}

// handleWriteMemory implements "M addr,length:hexdata" (spec.md §4.4).
func (s *Session) handleWriteMemory(data string) (string, bool) {
	hdr, hexData, ok := splitOnce(data, ':')
	if !ok {
		return "E01", true
	}
	addrStr, lenStr, ok := splitOnce(hdr, ',')
	if !ok {
		return "E01", true
	}
	addr, err := parseHexUint(addrStr)
	if err != nil {
		return badRequestReply(err)
	}
	length, err := parseHexUint(lenStr)
	if err != nil {
		return badRequestReply(err)
	}
	buf, err := hex.DecodeString(hexData)
	if err != nil || uint64(len(buf)) != length {
		return "E01", true
	}
	return s.writeMemoryChecked(addr, buf)
}

// handleBinaryWriteMemory implements "X addr,length:bin" (spec.md §4.4).
// The payload after ':' arrives here already run through package rsp's
// Unescape — Conn.ReadPacket unescapes the whole wire packet, binary tail
// included, before dispatch ever sees it — so bin is already the raw bytes
// to write; decoding it a second time would misinterpret real data bytes
// equal to '#', '$', '*', or '}' as escape/RLE markers.
func (s *Session) handleBinaryWriteMemory(data string) (string, bool) {
	hdr, bin, ok := splitOnce(data, ':')
	if !ok {
		return "E01", true
	}
	addrStr, lenStr, ok := splitOnce(hdr, ',')
	if !ok {
		return "E01", true
	}
	addr, err := parseHexUint(addrStr)
	if err != nil {
		return badRequestReply(err)
	}
	length, err := parseHexUint(lenStr)
	if err != nil {
		return badRequestReply(err)
	}
	buf := []byte(bin)
	if uint64(len(buf)) != length {
		return "E01", true
	}
	return s.writeMemoryChecked(addr, buf)
}

func (s *Session) writeMemoryChecked(addr uint64, buf []byte) (string, bool) {
	tc, ok := s.registry.currentContext()
	if !ok {
		s.internalInvariant("memory write with no current ThreadContext")
	}
	mem := tc.Memory()
	if !mem.Acc(addr, len(buf)) {
		s.log.WithField("addr", addr).WithField("len", len(buf)).Debug("memory write denied by access predicate")
		return "E01", true
	}
	if err := mem.WriteMemory(addr, buf); err != nil {
		s.log.WithError(err).Warn("memory write failed after access check passed")
		return "E01", true
	}
	return "OK", true
}
