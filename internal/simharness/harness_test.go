package simharness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryAccessBounds(t *testing.T) {
	world := NewWorld()
	cpu := world.NewCPU(make([]byte, 16))

	require.True(t, cpu.Acc(0, 16))
	require.False(t, cpu.Acc(0, 17))
	require.False(t, cpu.Acc(10, 10))

	require.NoError(t, cpu.WriteMemory(0, []byte{1, 2, 3, 4}))
	out := make([]byte, 4)
	require.NoError(t, cpu.ReadMemory(0, out))
	require.Equal(t, []byte{1, 2, 3, 4}, out)
}

func TestRegisterValueRoundTrip(t *testing.T) {
	world := NewWorld()
	cpu := world.NewCPU(make([]byte, 16))
	ctx := NewContext(cpu, "x86-64")

	ctx.SetRegisterValue(3, 0xdeadbeef)
	require.Equal(t, uint64(0xdeadbeef), ctx.RegisterValue(3))
	require.Equal(t, "x86-64", ctx.Arch())
}

func TestPCEventFiresOnResume(t *testing.T) {
	world := NewWorld()
	cpu := world.NewCPU(make([]byte, 64))

	hit := make(chan struct{}, 1)
	cpu.InstallPCEvent(4, func() { hit <- struct{}{} })

	world.Resume()
	defer world.Halt()

	select {
	case <-hit:
	case <-time.After(2 * time.Second):
		t.Fatal("pc event never fired")
	}
}

func TestRemovePCEventStopsFiring(t *testing.T) {
	world := NewWorld()
	cpu := world.NewCPU(make([]byte, 64))

	hit := make(chan struct{}, 8)
	h := cpu.InstallPCEvent(4, func() { hit <- struct{}{} })
	cpu.RemovePCEvent(h)

	world.Resume()
	time.Sleep(10 * time.Millisecond)
	world.Halt()

	select {
	case <-hit:
		t.Fatal("removed pc event must not fire")
	default:
	}
}

func TestScheduleInstCommitEventFiresOnce(t *testing.T) {
	world := NewWorld()
	cpu := world.NewCPU(make([]byte, 64))

	count := make(chan struct{}, 8)
	cpu.ScheduleInstCommitEvent(func() { count <- struct{}{} })

	world.Resume()
	time.Sleep(15 * time.Millisecond)
	world.Halt()

	n := 0
	for {
		select {
		case <-count:
			n++
			continue
		default:
		}
		break
	}
	require.Equal(t, 1, n, "instruction-commit callback must fire exactly once")
}
