// Package simcontract defines the interfaces the GDB RSP layer uses to
// reach into the rest of the simulator: the event queue, a simulated
// thread's register file and memory, and instruction-address event hooks.
// These are exactly the "out of scope" collaborators named in spec.md §1 —
// this package only states their contracts; concrete implementations live
// in internal/simharness (an in-memory stand-in used by tests and the demo
// binary) and would, in a real gem5-style build, be satisfied by the
// simulator's actual ThreadContext/CPU/EventQueue types.
package simcontract

// ContextID stably identifies a ThreadContext within a session. Assigned
// sequentially starting at 0 by the thread multiplexer; RSP wire IDs are
// the 1-based form of this value (spec.md GLOSSARY).
type ContextID int

// Signal numbers used in stop replies. Only the two this module ever
// raises itself are named; any other value a breakpoint or the simulator
// provides is passed through verbatim.
const (
	SIGTRAP = 5
	SIGINT  = 2
)

// EventHandle is an opaque token returned by CPU.InstallPCEvent and
// CPU.ScheduleInstCommitEvent, passed back to cancel the event. Comparable,
// so it can be used as a map key by callers that track installed handles.
type EventHandle interface{}

// EventQueue is the simulator's abstract event scheduler. The RSP layer
// uses exactly one primitive from it: schedule a callback to run at the
// current simulation tick, the "TrapEvent" pattern from spec.md §9 used to
// hop from an arbitrary simulator callback (a PC-event firing mid
// instruction-commit) back into the single-threaded RSP layer at a
// well-defined point.
type EventQueue interface {
	// PostNow schedules fn to run at the current tick (post(now+0, fn) in
	// spec.md's terms). Implementations may run fn synchronously or queue
	// it for the next drain of the event loop; the RSP layer does not
	// depend on which, only that fn eventually runs once.
	PostNow(fn func())
}

// CPU exposes the two kinds of event hook the breakpoint manager and
// single-step scheduler need: a fetch-address trigger and a
// one-instruction-later trigger.
type CPU interface {
	// InstallPCEvent registers cb to fire the next (and every subsequent)
	// time the program counter fetches addr. Returns a handle for removal.
	InstallPCEvent(addr uint64, cb func()) EventHandle

	// RemovePCEvent cancels a handle previously returned by
	// InstallPCEvent. Removing an unknown handle is a no-op.
	RemovePCEvent(h EventHandle)

	// ScheduleInstCommitEvent arranges for cb to fire once, after exactly
	// one more instruction has committed on this CPU. Used to implement
	// single-step (spec.md §4.6 "Single-step is implemented by scheduling
	// an event one instruction commit into the future").
	ScheduleInstCommitEvent(cb func()) EventHandle

	// CancelEvent cancels a pending (not yet fired) handle from
	// ScheduleInstCommitEvent. A no-op if the event already fired or the
	// handle is unknown.
	CancelEvent(h EventHandle)
}

// MemAccessor is the per-ThreadContext view of simulated functional
// memory: an access-validity predicate plus the actual read/write calls
// the memory gateway routes through after the predicate passes (spec.md
// §4.4).
type MemAccessor interface {
	// Acc reports whether [addr, addr+length) is a valid, accessible
	// range for this context. A page-table walk in a real simulator;
	// internal/simharness implements it as a simple bounds check.
	Acc(addr uint64, length int) bool

	// ReadMemory copies len(out) bytes starting at addr into out. Only
	// called after Acc has already validated the full range.
	ReadMemory(addr uint64, out []byte) error

	// WriteMemory copies in into simulated memory starting at addr. Only
	// called after Acc has already validated the full range.
	WriteMemory(addr uint64, in []byte) error
}

// Simulator is the whole-machine halt/resume control the session's state
// machine drives on attach, continue, step, and detach (spec.md §4.6,
// §4.9). It is deliberately separate from CPU/EventQueue: those are
// per-ThreadContext or event-scheduling concerns, while halting is a
// global simulator action (spec.md §5: "the session's active flag is the
// interlock: while active, the simulator is not stepping").
type Simulator interface {
	// Halt stops simulated execution. Safe to call when already halted.
	Halt()

	// Resume restarts simulated execution after a prior Halt. The RSP
	// layer calls it from the c/s/vCont handlers just before they return
	// false to the dispatcher, and on detach.
	Resume()
}

// ThreadContext is the simulator-side handle to one architectural thread:
// its register file (reached indirectly, through an ArchPort-supplied
// RegisterCache), its memory, and the CPU it runs on.
type ThreadContext interface {
	// PC returns the current program counter.
	PC() uint64

	// SetPC overwrites the program counter.
	SetPC(addr uint64)

	// Arch names this context's execution mode/class (e.g. "x86-64"). The
	// register cache is rebuilt whenever this changes between reads,
	// modeling gem5's AArch32/AArch64 class-switch case (spec.md §3).
	Arch() string

	// CPU returns the CPU this context currently executes on.
	CPU() CPU

	// Memory returns this context's memory gateway.
	Memory() MemAccessor

	// RegisterValue returns the current value of the architecture-defined
	// logical register n (the same numbering GDB's target description
	// assigns), widened to 64 bits regardless of the register's natural
	// width. A RegisterCache narrows it back down when packing Bytes().
	RegisterValue(n int) uint64

	// SetRegisterValue writes v back into logical register n, narrowed to
	// that register's natural width.
	SetRegisterValue(n int, v uint64)
}

// RegisterCache is the polymorphic adapter spec.md §4.3 describes: it
// knows the flat little-endian byte layout GDB expects for `g`/`G` and how
// to sync that buffer to/from a ThreadContext. A fresh instance is
// produced by ArchPort.GdbRegs whenever the current ThreadContext's class
// changes.
type RegisterCache interface {
	// Bytes returns the live backing buffer; callers hex-encode/decode it
	// directly rather than copying.
	Bytes() []byte

	// Size returns len(Bytes()).
	Size() int

	// Load repopulates Bytes() from tc's current register values ("g").
	Load(tc ThreadContext) error

	// Store writes Bytes() back into tc's registers ("G").
	Store(tc ThreadContext) error

	// RegisterOffset returns the (byte offset, byte width) of logical
	// register index n within Bytes(), for single-register `p`/`P`.
	// ok is false for an out-of-range index (spec.md §4.3: "reply E01").
	RegisterOffset(n int) (offset, width int, ok bool)
}

// ArchPort is the architecture-port subclass contract of spec.md §6: the
// one seam a concrete target (x86-64, ARM, ...) must implement. See
// internal/archx86 for the one concrete port this module ships.
type ArchPort interface {
	// Name identifies the architecture (e.g. "x86-64"). The register cache
	// rebuild check compares ThreadContext.Arch() values, not Name().
	Name() string

	// GdbRegs returns a fresh RegisterCache matching tc's current
	// execution mode.
	GdbRegs(tc ThreadContext) RegisterCache

	// AvailableFeatures lists the feature strings this port advertises in
	// qSupported (spec.md §4.8).
	AvailableFeatures() []string

	// GetXferFeaturesRead returns the full uncompressed XML document for
	// the given qXfer:features:read annex (typically "target.xml"). ok is
	// false for an unknown annex (spec.md §4.8: "Out-of-range annex → E00").
	GetXferFeaturesRead(annex string) (data []byte, ok bool)

	// CheckBpLen reports whether length is an acceptable breakpoint length
	// for the instruction actually sitting at addr in tc's memory (spec.md
	// §4.5's subclass-overridable check). Ports for variable-length
	// instruction sets decode the instruction at addr and compare its real
	// length; ports for fixed-length instruction sets can ignore tc/addr
	// entirely and just check length == sizeof(MachInst).
	CheckBpLen(tc ThreadContext, addr uint64, length int) bool

	// PageTableDump optionally renders a diagnostic dump of tc's access
	// predicate over some architecture-defined probe range, backing the
	// optional `qGem5.PageTable` query (spec.md §6). ok is false if this
	// port does not implement the optional query.
	PageTableDump(tc ThreadContext) (data []byte, ok bool)
}
