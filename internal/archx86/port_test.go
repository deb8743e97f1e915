package archx86

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TurnOffNOD/gem5/internal/simharness"
)

func newTestContext(memSize int) *simharness.Context {
	world := simharness.NewWorld()
	cpu := world.NewCPU(make([]byte, memSize))
	return simharness.NewContext(cpu, "x86-64")
}

func TestCheckBpLenHardwareWidthsAlwaysAccepted(t *testing.T) {
	p := New()
	ctx := newTestContext(64)
	require.True(t, p.CheckBpLen(ctx, 0, 2))
	require.True(t, p.CheckBpLen(ctx, 0, 4))
	require.True(t, p.CheckBpLen(ctx, 0, 8))
	require.False(t, p.CheckBpLen(ctx, 0, 3))
	require.False(t, p.CheckBpLen(ctx, 0, 16))
}

func TestCheckBpLenDecodesRealInstructionLength(t *testing.T) {
	p := New()
	ctx := newTestContext(64)

	// INT3 (0xCC): a single-byte instruction, length 1 is correct.
	require.NoError(t, ctx.Memory().WriteMemory(0, []byte{0xCC}))
	require.True(t, p.CheckBpLen(ctx, 0, 1))

	// REX.W MOV RBP, RSP (48 89 E5): a three-byte instruction. A length-1
	// software breakpoint here would be wrong.
	require.NoError(t, ctx.Memory().WriteMemory(8, []byte{0x48, 0x89, 0xe5}))
	require.False(t, p.CheckBpLen(ctx, 8, 1))
}

func TestCheckBpLenFallsBackWhenUnreadable(t *testing.T) {
	p := New()
	ctx := newTestContext(4) // too small for the 15-byte decode window
	require.True(t, p.CheckBpLen(ctx, 0, 1))
}

func TestGetXferFeaturesRead(t *testing.T) {
	p := New()
	doc, ok := p.GetXferFeaturesRead("target.xml")
	require.True(t, ok)
	require.Contains(t, string(doc), "i386:x86-64")

	_, ok = p.GetXferFeaturesRead("nope.xml")
	require.False(t, ok)
}

func TestRegisterCacheLayout(t *testing.T) {
	cache := newRegisterCache()
	require.Equal(t, totalRegBytes(), cache.Size())

	off, width, ok := cache.RegisterOffset(0)
	require.True(t, ok)
	require.Equal(t, 0, off)
	require.Equal(t, 8, width)

	_, _, ok = cache.RegisterOffset(len(regLayout))
	require.False(t, ok)
}

func TestAvailableFeatures(t *testing.T) {
	p := New()
	require.ElementsMatch(t, []string{"swbreak+", "hwbreak+"}, p.AvailableFeatures())
}
