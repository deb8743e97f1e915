package gdbserver

import "strings"

// handler processes one command's payload (everything after the first
// command byte) and returns the reply to send, plus whether the
// dispatcher should send it. autoSend is false for the handful of
// commands that either reply asynchronously later (c, s) or that must
// send their own reply before tearing the session down (D, k) — spec.md
// §4.2: "Handler returns a boolean: true = send a reply now ...; false =
// send no reply now and exit the packet loop."
type handler func(s *Session, data string) (reply string, autoSend bool)

// byteTable is the command-byte-keyed dispatch table of spec.md §3.
var byteTable = map[byte]handler{
	'?': func(s *Session, _ string) (string, bool) { return s.replyLastStop(), true },
	'g': func(s *Session, _ string) (string, bool) { return s.handleReadAllRegisters() },
	'G': func(s *Session, data string) (string, bool) { return s.handleWriteAllRegisters(data) },
	'p': func(s *Session, data string) (string, bool) { return s.handleReadRegister(data) },
	'P': func(s *Session, data string) (string, bool) { return s.handleWriteRegister(data) },
	'm': func(s *Session, data string) (string, bool) { return s.handleReadMemory(data) },
	'M': func(s *Session, data string) (string, bool) { return s.handleWriteMemory(data) },
	'X': func(s *Session, data string) (string, bool) { return s.handleBinaryWriteMemory(data) },
	'H': func(s *Session, data string) (string, bool) { return s.handleSetThread(data) },
	'z': func(s *Session, data string) (string, bool) { return s.handleRemoveBreakpoint(data) },
	'Z': func(s *Session, data string) (string, bool) { return s.handleInsertBreakpoint(data) },
	'c': func(s *Session, data string) (string, bool) { return s.handleContinue(data) },
	's': func(s *Session, data string) (string, bool) { return s.handleStep(data) },
	'D': func(s *Session, _ string) (string, bool) { return s.handleDetach() },
	'k': func(s *Session, _ string) (string, bool) { return s.handleDetach() },
	'v': func(s *Session, data string) (string, bool) { return s.handleVCommand(data) },
	'q': func(s *Session, data string) (string, bool) { return s.dispatchQuery(data) },
	'Q': func(s *Session, data string) (string, bool) { return s.dispatchQuery(data) },
}

// dispatchQuery routes a q/Q payload (data is everything after the 'q' or
// 'Q' byte) by the sub-token preceding the first ':', per spec.md §3's
// second command table.
func (s *Session) dispatchQuery(data string) (string, bool) {
	token := data
	if idx := strings.IndexByte(data, ':'); idx >= 0 {
		token = data[:idx]
	}
	if handler, ok := queryTable[token]; ok {
		return handler(s, data)
	}
	// Unknown q/Q sub-token: empty packet (spec.md §3 "Unknown commands
	// deterministically respond with the empty packet").
	return "", true
}

// dispatch parses the first command byte of a decoded packet and routes
// it. Unknown command bytes reply with the empty packet and never
// terminate the loop themselves (spec.md §4.2).
func (s *Session) dispatch(payload []byte) (reply string, autoSend bool) {
	if len(payload) == 0 {
		return "", true
	}
	cmd := payload[0]
	data := string(payload[1:])
	h, ok := byteTable[cmd]
	if !ok {
		s.log.WithField("cmd", string(cmd)).Debug("unrecognized command byte")
		s.metrics.IncUnknownCommand()
		return "", true
	}
	return h(s, data)
}
