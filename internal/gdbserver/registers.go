package gdbserver

import "encoding/hex"

// ensureRegisterCache makes sure s.regCache is usable, creating it lazily
// on first use and rebuilding it whenever the current ThreadContext's
// class has changed since the cache was built (spec.md §3: "re-created
// when the current ThreadContext changes class"). It reports false when
// there is no current ThreadContext.
func (s *Session) ensureRegisterCache() bool {
	tc, ok := s.registry.currentContext()
	if !ok {
		return false
	}
	arch := tc.Arch()
	if s.regCache == nil || s.regCacheArch != arch {
		s.regCache = s.arch.GdbRegs(tc)
		s.regCacheArch = arch
	}
	return true
}

// handleReadAllRegisters implements "g" (spec.md §4.3).
func (s *Session) handleReadAllRegisters() (string, bool) {
	tc, ok := s.registry.currentContext()
	if !ok {
		s.internalInvariant("g command with no current ThreadContext")
	}
	if !s.ensureRegisterCache() {
		return "E01", true
	}
	if err := s.regCache.Load(tc); err != nil {
		s.log.WithError(err).Warn("register cache load failed")
		return "E01", true
	}
	return hex.EncodeToString(s.regCache.Bytes()), true
}

// handleWriteAllRegisters implements "G<hex>" (spec.md §4.3).
func (s *Session) handleWriteAllRegisters(data string) (string, bool) {
	tc, ok := s.registry.currentContext()
	if !ok {
		s.internalInvariant("G command with no current ThreadContext")
	}
	if !s.ensureRegisterCache() {
		return "E01", true
	}
	buf, err := hex.DecodeString(data)
	if err != nil || len(buf) != s.regCache.Size() {
		return "E01", true
	}
	copy(s.regCache.Bytes(), buf)
	if err := s.regCache.Store(tc); err != nil {
		s.log.WithError(err).Warn("register cache store failed")
		return "E01", true
	}
	return "OK", true
}

// handleReadRegister implements "p<hex-index>", replying E01 for an
// out-of-range index (spec.md §4.3).
func (s *Session) handleReadRegister(data string) (string, bool) {
	tc, ok := s.registry.currentContext()
	if !ok {
		return "E01", true
	}
	idx, err := parseHexUint(data)
	if err != nil {
		return badRequestReply(err)
	}
	if !s.ensureRegisterCache() {
		return "E01", true
	}
	if err := s.regCache.Load(tc); err != nil {
		return "E01", true
	}
	off, width, ok := s.regCache.RegisterOffset(int(idx))
	if !ok {
		return "E01", true
	}
	return hex.EncodeToString(s.regCache.Bytes()[off : off+width]), true
}

// handleWriteRegister implements "P<hex-index>=<hex-value>".
func (s *Session) handleWriteRegister(data string) (string, bool) {
	tc, ok := s.registry.currentContext()
	if !ok {
		return "E01", true
	}
	idxStr, valStr, found := splitOnce(data, '=')
	if !found {
		return "E01", true
	}
	idx, err := parseHexUint(idxStr)
	if err != nil {
		return badRequestReply(err)
	}
	if !s.ensureRegisterCache() {
		return "E01", true
	}
	if err := s.regCache.Load(tc); err != nil {
		return "E01", true
	}
	off, width, ok := s.regCache.RegisterOffset(int(idx))
	if !ok {
		return "E01", true
	}
	val, err := hex.DecodeString(valStr)
	if err != nil || len(val) != width {
		return "E01", true
	}
	copy(s.regCache.Bytes()[off:off+width], val)
	if err := s.regCache.Store(tc); err != nil {
		return "E01", true
	}
	return "OK", true
}
