// Package archx86 is the one concrete simcontract.ArchPort this module
// ships: an x86-64 target description, GDB register layout, and breakpoint
// length policy. A different simulated architecture would add a sibling
// package implementing the same interface; gdbserver.Session never imports
// this package directly, only through the ArchPort seam.
package archx86

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/TurnOffNOD/gem5/internal/simcontract"
)

// Port implements simcontract.ArchPort for x86-64.
type Port struct{}

// New returns the x86-64 architecture port.
func New() *Port {
	return &Port{}
}

func (p *Port) Name() string { return "x86-64" }

// GdbRegs returns a fresh register cache matching the amd64-linux.xml
// register order GDB expects (spec.md §4.3's per-class cache).
func (p *Port) GdbRegs(tc simcontract.ThreadContext) simcontract.RegisterCache {
	return newRegisterCache()
}

// AvailableFeatures lists the qSupported feature strings this port
// advertises: software and hardware breakpoint support, matching what the
// breakpoint manager actually implements.
func (p *Port) AvailableFeatures() []string {
	return []string{"swbreak+", "hwbreak+"}
}

// GetXferFeaturesRead serves target.xml, the only annex this port knows.
func (p *Port) GetXferFeaturesRead(annex string) ([]byte, bool) {
	if annex != "target.xml" {
		return nil, false
	}
	return []byte(targetXML), true
}

// maxX86InstLen bounds how many bytes CheckBpLen reads to decode the
// instruction at a breakpoint address; no x86 instruction exceeds 15 bytes.
const maxX86InstLen = 15

// CheckBpLen accepts only the widths 1, 2, 4 and 8. Widths 2, 4 and 8 are
// accepted without looking at memory. For width 1 it decodes the
// instruction actually sitting at addr and accepts only if that
// instruction is one byte long — x86 is variable-length, so a one-byte
// breakpoint on a longer instruction would leave part of it armed. The
// check is the same for software and hardware breakpoints. When addr
// isn't readable (not yet mapped, or a test harness with no backing
// memory) or the bytes there don't decode, width 1 is accepted.
func (p *Port) CheckBpLen(tc simcontract.ThreadContext, addr uint64, length int) bool {
	switch length {
	case 2, 4, 8:
		return true
	}
	if length != 1 {
		return false
	}

	mem := tc.Memory()
	if mem == nil || !mem.Acc(addr, maxX86InstLen) {
		return true // can't decode; fall back to accepting the canonical width
	}
	buf := make([]byte, maxX86InstLen)
	if err := mem.ReadMemory(addr, buf); err != nil {
		return true
	}
	inst, err := x86asm.Decode(buf, 64)
	if err != nil {
		return true
	}
	return inst.Len == length
}

// PageTableDump renders a coarse accessibility map of the pages
// surrounding the context's current PC, the best diagnostic this port can
// offer through the Acc predicate alone (there is no page-table walk
// primitive in simcontract.MemAccessor).
func (p *Port) PageTableDump(tc simcontract.ThreadContext) ([]byte, bool) {
	const pageSize = 0x1000
	const probePages = 8
	mem := tc.Memory()
	base := (tc.PC() / pageSize) * pageSize
	start := base - (probePages/2)*pageSize

	out := make([]byte, 0, 256)
	for i := 0; i < probePages; i++ {
		addr := start + uint64(i)*pageSize
		accessible := mem.Acc(addr, 1)
		out = append(out, []byte(fmt.Sprintf("%016x %v\n", addr, accessible))...)
	}
	return out, true
}

// targetXML is a minimal i386:x86-64 target description covering the
// general-purpose registers registers.go's layout packs into Bytes().
const targetXML = `<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target>
  <architecture>i386:x86-64</architecture>
  <feature name="org.gnu.gdb.i386.core">
    <reg name="rax" bitsize="64" type="int64"/>
    <reg name="rbx" bitsize="64" type="int64"/>
    <reg name="rcx" bitsize="64" type="int64"/>
    <reg name="rdx" bitsize="64" type="int64"/>
    <reg name="rsi" bitsize="64" type="int64"/>
    <reg name="rdi" bitsize="64" type="int64"/>
    <reg name="rbp" bitsize="64" type="data_ptr"/>
    <reg name="rsp" bitsize="64" type="data_ptr"/>
    <reg name="r8" bitsize="64" type="int64"/>
    <reg name="r9" bitsize="64" type="int64"/>
    <reg name="r10" bitsize="64" type="int64"/>
    <reg name="r11" bitsize="64" type="int64"/>
    <reg name="r12" bitsize="64" type="int64"/>
    <reg name="r13" bitsize="64" type="int64"/>
    <reg name="r14" bitsize="64" type="int64"/>
    <reg name="r15" bitsize="64" type="int64"/>
    <reg name="rip" bitsize="64" type="code_ptr"/>
    <reg name="eflags" bitsize="32" type="i386_eflags"/>
    <reg name="cs" bitsize="32" type="int32"/>
    <reg name="ss" bitsize="32" type="int32"/>
    <reg name="ds" bitsize="32" type="int32"/>
    <reg name="es" bitsize="32" type="int32"/>
    <reg name="fs" bitsize="32" type="int32"/>
    <reg name="gs" bitsize="32" type="int32"/>
  </feature>
</target>
`
