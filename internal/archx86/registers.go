package archx86

import (
	"encoding/binary"

	"github.com/TurnOffNOD/gem5/internal/simcontract"
)

// regField describes one logical register's placement in the flat g/G
// byte buffer: its width in bytes (8 for the general-purpose/rip slots, 4
// for eflags and the segment registers) at the amd64-linux.xml order GDB
// expects.
type regField struct {
	width int
}

var regLayout = []regField{
	{8}, {8}, {8}, {8}, {8}, {8}, {8}, {8}, // rax..rsp
	{8}, {8}, {8}, {8}, {8}, {8}, {8}, {8}, // r8..r15
	{8},                    // rip
	{4}, {4}, {4}, {4}, {4}, {4}, {4}, // eflags, cs, ss, ds, es, fs, gs
}

func regOffset(n int) (offset, width int, ok bool) {
	if n < 0 || n >= len(regLayout) {
		return 0, 0, false
	}
	off := 0
	for i := 0; i < n; i++ {
		off += regLayout[i].width
	}
	return off, regLayout[n].width, true
}

func totalRegBytes() int {
	off, width, _ := regOffset(len(regLayout) - 1)
	return off + width
}

// registerCache implements simcontract.RegisterCache for the x86-64
// register layout above.
type registerCache struct {
	buf []byte
}

func newRegisterCache() *registerCache {
	return &registerCache{buf: make([]byte, totalRegBytes())}
}

func (c *registerCache) Bytes() []byte { return c.buf }
func (c *registerCache) Size() int     { return len(c.buf) }

func (c *registerCache) Load(tc simcontract.ThreadContext) error {
	for n := range regLayout {
		off, width, _ := regOffset(n)
		v := tc.RegisterValue(n)
		putReg(c.buf[off:off+width], v)
	}
	return nil
}

func (c *registerCache) Store(tc simcontract.ThreadContext) error {
	for n := range regLayout {
		off, width, _ := regOffset(n)
		tc.SetRegisterValue(n, getReg(c.buf[off:off+width]))
	}
	return nil
}

func (c *registerCache) RegisterOffset(n int) (offset, width int, ok bool) {
	return regOffset(n)
}

func putReg(dst []byte, v uint64) {
	switch len(dst) {
	case 8:
		binary.LittleEndian.PutUint64(dst, v)
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	}
}

func getReg(src []byte) uint64 {
	switch len(src) {
	case 8:
		return binary.LittleEndian.Uint64(src)
	case 4:
		return uint64(binary.LittleEndian.Uint32(src))
	}
	return 0
}
