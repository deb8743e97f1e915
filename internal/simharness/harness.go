// Package simharness is an in-memory stand-in for "the real simulator":
// it implements every simcontract interface well enough to drive tests and
// the cmd/gem5gdbserver demo binary, without any actual instruction
// execution. A CPU here "executes" by incrementing its program counter by
// a fixed fake instruction width once per tick and firing whatever
// PC-events and pending instruction-commit callbacks are due, modeled on
// the teacher's runChan-gated Halt/Continue handoff between the packet
// goroutine and the machine-driving goroutine.
package simharness

import (
	"sync"
	"time"

	"github.com/TurnOffNOD/gem5/internal/simcontract"
)

// ripIndex is the logical register number this package treats as the
// program counter, matching internal/archx86's amd64-linux.xml register
// order so a CPU built here produces register bytes a real GDB session
// would recognize.
const ripIndex = 16
const registerCount = 24

// tickInterval paces the fake instruction loop; it exists only so a
// runaway test doesn't spin a CPU at full host speed between Resume and
// the next Halt/breakpoint.
const tickInterval = 200 * time.Microsecond

// pcEventEntry is one registered breakpoint callback.
type pcEventEntry struct {
	id int
	cb func()
}

// World is the shared halt/resume/event-queue authority for every CPU
// registered with it, implementing simcontract.Simulator and
// simcontract.EventQueue.
type World struct {
	mu   sync.Mutex
	cpus []*CPU
}

// NewWorld returns an empty World with no CPUs attached yet.
func NewWorld() *World {
	return &World{}
}

// NewCPU creates a CPU backed by mem and registers it with the world.
func (w *World) NewCPU(mem []byte) *CPU {
	c := &CPU{
		world:     w,
		mem:       mem,
		pcEvents:  make(map[uint64][]pcEventEntry),
		commitCBs: make(map[int]func()),
		instLen:   4,
	}
	w.mu.Lock()
	w.cpus = append(w.cpus, c)
	w.mu.Unlock()
	return c
}

// Halt stops every attached CPU's fake fetch loop. Safe to call when
// already halted.
func (w *World) Halt() {
	w.mu.Lock()
	cpus := append([]*CPU(nil), w.cpus...)
	w.mu.Unlock()
	for _, c := range cpus {
		c.halt()
	}
}

// Resume restarts every attached CPU's fake fetch loop.
func (w *World) Resume() {
	w.mu.Lock()
	cpus := append([]*CPU(nil), w.cpus...)
	w.mu.Unlock()
	for _, c := range cpus {
		c.resume()
	}
}

// PostNow runs fn immediately. A real event queue might defer this to the
// next drain of its own loop; simcontract.EventQueue only promises fn runs
// once, which a synchronous call already satisfies.
func (w *World) PostNow(fn func()) {
	fn()
}

// CPU is one simulated core: a register file, a byte-addressed memory
// region, and the PC-event/instruction-commit hooks the breakpoint manager
// and single-step scheduler install.
type CPU struct {
	world *World

	mu   sync.Mutex
	regs [registerCount]uint64
	mem  []byte

	pcEvents  map[uint64][]pcEventEntry
	commitCBs map[int]func()
	nextID    int
	instLen   uint64

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func (c *CPU) InstallPCEvent(addr uint64, cb func()) simcontract.EventHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.pcEvents[addr] = append(c.pcEvents[addr], pcEventEntry{id: id, cb: cb})
	return handle{id: id, addr: addr}
}

func (c *CPU) RemovePCEvent(h simcontract.EventHandle) {
	hd, ok := h.(handle)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.pcEvents[hd.addr]
	for i, e := range entries {
		if e.id == hd.id {
			c.pcEvents[hd.addr] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func (c *CPU) ScheduleInstCommitEvent(cb func()) simcontract.EventHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.commitCBs[id] = cb
	return handle{id: id}
}

func (c *CPU) CancelEvent(h simcontract.EventHandle) {
	hd, ok := h.(handle)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.commitCBs, hd.id)
}

// handle is the concrete simcontract.EventHandle this package hands out.
// addr is unused for instruction-commit handles.
type handle struct {
	id   int
	addr uint64
}

func (c *CPU) Acc(addr uint64, length int) bool {
	if length < 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	end := addr + uint64(length)
	return addr <= end && end <= uint64(len(c.mem))
}

func (c *CPU) ReadMemory(addr uint64, out []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(out, c.mem[addr:addr+uint64(len(out))])
	return nil
}

func (c *CPU) WriteMemory(addr uint64, in []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.mem[addr:addr+uint64(len(in))], in)
	return nil
}

func (c *CPU) PC() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[ripIndex]
}

func (c *CPU) SetPC(addr uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[ripIndex] = addr
}

func (c *CPU) RegisterValue(n int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n >= len(c.regs) {
		return 0
	}
	return c.regs[n]
}

func (c *CPU) SetRegisterValue(n int, v uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n >= len(c.regs) {
		return
	}
	c.regs[n] = v
}

func (c *CPU) halt() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	close(stopCh)
	<-doneCh

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *CPU) resume() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.running = true
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	go c.fetchLoop(stopCh, doneCh)
}

// fetchLoop is the fake execution engine: every tick it advances PC by one
// fake instruction width, fires any PC-event registered at the new address,
// then fires (and clears) every pending instruction-commit callback,
// realizing single-step as "stop after exactly one more instruction".
func (c *CPU) fetchLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		c.regs[ripIndex] += c.instLen
		pc := c.regs[ripIndex]
		var fire []func()
		for _, e := range c.pcEvents[pc] {
			fire = append(fire, e.cb)
		}
		for _, cb := range c.commitCBs {
			fire = append(fire, cb)
		}
		c.commitCBs = make(map[int]func())
		c.mu.Unlock()

		for _, cb := range fire {
			cb()
		}
	}
}

// Context adapts a CPU into a simcontract.ThreadContext. Several Contexts
// could in principle share one CPU (SMT); this harness always pairs them
// one-to-one.
type Context struct {
	cpu  *CPU
	arch string
}

// NewContext wraps cpu as a ThreadContext reporting arch (e.g. "x86-64").
func NewContext(cpu *CPU, arch string) *Context {
	return &Context{cpu: cpu, arch: arch}
}

func (ctx *Context) PC() uint64            { return ctx.cpu.PC() }
func (ctx *Context) SetPC(addr uint64)     { ctx.cpu.SetPC(addr) }
func (ctx *Context) Arch() string          { return ctx.arch }
func (ctx *Context) CPU() simcontract.CPU  { return ctx.cpu }
func (ctx *Context) Memory() simcontract.MemAccessor {
	return ctx.cpu
}
func (ctx *Context) RegisterValue(n int) uint64      { return ctx.cpu.RegisterValue(n) }
func (ctx *Context) SetRegisterValue(n int, v uint64) { ctx.cpu.SetRegisterValue(n, v) }
