package gdbserver

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/TurnOffNOD/gem5/internal/archx86"
	"github.com/TurnOffNOD/gem5/internal/simharness"
)

// newTestSession builds a Session wired to a real simharness CPU/Context
// and the real x86-64 ArchPort, so handler tests exercise the same
// collaborator code the demo binary does rather than a bespoke mock set.
func newTestSession(t *testing.T, memSize int) (*Session, *simharness.CPU) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	world := simharness.NewWorld()
	cpu := world.NewCPU(make([]byte, memSize))
	ctx := simharness.NewContext(cpu, "x86-64")

	s := NewSession(0, archx86.New(), world, world, logrus.NewEntry(log), nil)
	id, ok := s.AddThreadContext(ctx)
	require.True(t, ok)
	require.True(t, s.registry.selectThreadContext(id))
	return s, cpu
}
