package gdbserver

import "github.com/TurnOffNOD/gem5/internal/simcontract"

// bpKey identifies a breakpoint by (address, length), per spec.md §3:
// "two logical sets keyed by (address, length)". No two software
// breakpoints may share a key; the same key may independently hold a
// hardware breakpoint, since the two tables are disjoint.
type bpKey struct {
	addr   uint64
	length int
}

// breakpoint is the bookkeeping kept per installed address, regardless of
// software/hardware kind: the CPU event handle needed to uninstall it.
type breakpoint struct {
	handle simcontract.EventHandle
	cpu    simcontract.CPU
}

// breakpointManager holds the two logical sets of spec.md §3/§4.5. Both
// variants use the identical PC-event mechanism and the same breakpoint
// record; they live in two separate maps so Z0/z0 and Z1/z1 can never
// collide on the same table. There is no separate hardware-breakpoint
// type, and hardware breakpoints have no different triggering logic.
type breakpointManager struct {
	soft map[bpKey]*breakpoint
	hard map[bpKey]*breakpoint
}

func newBreakpointManager() *breakpointManager {
	return &breakpointManager{
		soft: make(map[bpKey]*breakpoint),
		hard: make(map[bpKey]*breakpoint),
	}
}

func (m *breakpointManager) table(hardware bool) map[bpKey]*breakpoint {
	if hardware {
		return m.hard
	}
	return m.soft
}

// install registers a PC-event for addr on tc's CPU, invoking onHit when
// the simulated PC fetches addr. Idempotent: installing the same
// (addr, length) twice in the same table is silently ok (spec.md §4.5
// "Duplicate install is a no-op").
func (m *breakpointManager) install(hardware bool, tc simcontract.ThreadContext, addr uint64, length int, onHit func()) {
	key := bpKey{addr: addr, length: length}
	table := m.table(hardware)
	if _, exists := table[key]; exists {
		return
	}
	cpu := tc.CPU()
	handle := cpu.InstallPCEvent(addr, onHit)
	table[key] = &breakpoint{handle: handle, cpu: cpu}
}

// remove uninstalls the breakpoint at (addr, length) from the given table.
// Returns false if none was installed there (spec.md §4.5/§7:
// "remove-missing returns E01").
func (m *breakpointManager) remove(hardware bool, addr uint64, length int) bool {
	key := bpKey{addr: addr, length: length}
	table := m.table(hardware)
	bp, exists := table[key]
	if !exists {
		return false
	}
	bp.cpu.RemovePCEvent(bp.handle)
	delete(table, key)
	return true
}

// clear uninstalls every breakpoint in both tables. Called on detach
// (spec.md §3 invariant: "the breakpoint table is cleared on detach").
func (m *breakpointManager) clear() {
	for key, bp := range m.soft {
		bp.cpu.RemovePCEvent(bp.handle)
		delete(m.soft, key)
	}
	for key, bp := range m.hard {
		bp.cpu.RemovePCEvent(bp.handle)
		delete(m.hard, key)
	}
}

// hasAny reports whether the software (hardware=false) or hardware
// (hardware=true) table holds a breakpoint at addr at any length. Nothing
// in this package calls it.
func (m *breakpointManager) hasAny(hardware bool, addr uint64) bool {
	for key := range m.table(hardware) {
		if key.addr == addr {
			return true
		}
	}
	return false
}

// handleInsertBreakpoint implements "Z<type>,<addr>,<length>" (spec.md
// §4.5). type 0 is software, type 1 is hardware; both use the identical
// PC-event mechanism, so the only difference is which table the key lands
// in. Unsupported types (watchpoints, 2-4) reply with the empty packet,
// the documented "not supported" signal.
func (s *Session) handleInsertBreakpoint(data string) (string, bool) {
	kindStr, rest, ok := splitOnce(data, ',')
	if !ok {
		return "E01", true
	}
	addrStr, lenStr, ok := splitOnce(rest, ',')
	if !ok {
		return "E01", true
	}
	kind, err := parseHexUint(kindStr)
	if err != nil {
		return badRequestReply(err)
	}
	if kind != 0 && kind != 1 {
		return "", true
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
		s.internalInvariant("Z command with no current ThreadContext")
	}
	if !s.arch.CheckBpLen(tc, addr, int(length)) {
		return "E01", true
	}
	cid, _ := s.registry.currentID()
	s.bp.install(kind == 1, tc, addr, int(length), func() {
		s.scheduleTrap(cid, simcontract.SIGTRAP)
	})
	s.metrics.IncBreakpointsInstalled()
	return "OK", true
}

// handleRemoveBreakpoint implements "z<type>,<addr>,<length>" (spec.md
// §4.5). Removing a breakpoint that was never installed replies E01
// (spec.md §7).
func (s *Session) handleRemoveBreakpoint(data string) (string, bool) {
	kindStr, rest, ok := splitOnce(data, ',')
	if !ok {
		return "E01", true
	}
	addrStr, lenStr, ok := splitOnce(rest, ',')
	if !ok {
		return "E01", true
	}
	kind, err := parseHexUint(kindStr)
	if err != nil {
		return badRequestReply(err)
	}
	if kind != 0 && kind != 1 {
		return "", true
	}
	addr, err := parseHexUint(addrStr)
	if err != nil {
		return badRequestReply(err)
	}
	length, err := parseHexUint(lenStr)
	if err != nil {
		return badRequestReply(err)
	}
	if !s.bp.remove(kind == 1, addr, int(length)) {
		return "E01", true
	}
	return "OK", true
}
