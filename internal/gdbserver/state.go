package gdbserver

// execState is the execution controller's state, spec.md §4.6. Field
// Session.state always holds exactly one of these five values; transitions
// are driven by dispatch handlers (c/s/D/k/vCont) and by handleTrap and
// handleAsyncInterrupt re-entering from the simulator side.
type execState int

const (
	// stateListening: bound but no GDB client attached yet.
	stateListening execState = iota
	// stateAttachedHalted: client attached, simulator halted, packet loop
	// reading the next command.
	stateAttachedHalted
	// stateAttachedRunning: simulator resumed via c/vCont;c; packet loop
	// keeps reading packets while also waiting for a trap or an async
	// interrupt.
	stateAttachedRunning
	// stateStepping: simulator resumed for exactly one instruction commit
	// via s/vCont;s.
	stateStepping
	// stateDetached: client detached (D, k, or peer close); breakpoints
	// cleared, fd released, simulator free to run un-observed.
	stateDetached
)

func (s execState) String() string {
	switch s {
	case stateListening:
		return "listening"
	case stateAttachedHalted:
		return "attached-halted"
	case stateAttachedRunning:
		return "attached-running"
	case stateStepping:
		return "stepping"
	case stateDetached:
		return "detached"
	default:
		return "unknown"
	}
}
