package gdbserver

import (
	"fmt"
	"strings"

	"github.com/TurnOffNOD/gem5/internal/simcontract"
)

// replyLastStop implements "?" (spec.md §4.1 scenario S1): the plain
// "S<signal>" form, with no thread field, reporting whatever stop reason is
// currently recorded — the initial SIGTRAP from attach until a c/s/vCont
// produces a new one.
func (s *Session) replyLastStop() string {
	return fmt.Sprintf("S%02x", s.lastStopSignal)
}

// composeStopReply builds the richer "T<signal>thread:<id>;" reply sent
// asynchronously after a trap or an interrupt while running/stepping. Real
// RSP wire syntax has no space before "thread:"; spec.md's prose example
// includes one only for human readability.
func (s *Session) composeStopReply() string {
	return fmt.Sprintf("T%02xthread:%d;", s.lastStopSignal, rspID(s.lastStopContext))
}

// handleContinue implements "c[addr]" (spec.md §4.6): optionally retargets
// the current context's PC, resumes the simulator, and exits the packet
// loop without an immediate reply — the eventual stop reply is sent from
// handleTrap or handleAsyncInterrupt once the simulator re-enters this
// layer.
func (s *Session) handleContinue(data string) (string, bool) {
	tc, ok := s.registry.currentContext()
	if !ok {
		s.internalInvariant("c command with no current ThreadContext")
	}
	if data != "" {
		addr, err := parseHexUint(data)
		if err != nil {
			return badRequestReply(err)
		}
		tc.SetPC(addr)
	}
	s.sim.Resume()
	s.setState(stateAttachedRunning)
	return "", false
}

// handleStep implements "s[addr]" (spec.md §4.6): schedules exactly one
// instruction-commit event on the current context's CPU before resuming, so
// the simulator halts itself again after one instruction regardless of any
// breakpoint.
func (s *Session) handleStep(data string) (string, bool) {
	cid, ok := s.registry.currentID()
	if !ok {
		s.internalInvariant("s command with no current ThreadContext")
	}
	tc, _ := s.registry.currentContext()
	if data != "" {
		addr, err := parseHexUint(data)
		if err != nil {
			return badRequestReply(err)
		}
		tc.SetPC(addr)
	}
	tc.CPU().ScheduleInstCommitEvent(func() { s.scheduleTrap(cid, simcontract.SIGTRAP) })
	s.sim.Resume()
	s.setState(stateStepping)
	return "", false
}

// handleDetach implements "D" and "k" (spec.md §4.9): breakpoints are
// cleared, the simulator is resumed free (the halted-on-attach state is
// this session's doing, not something a detached client should leave
// behind), a final "OK" is sent directly (the handler returns false, so the
// dispatcher sends nothing itself), and the session drops to stateDetached.
func (s *Session) handleDetach() (string, bool) {
	s.bp.clear()
	s.sim.Resume()
	if err := s.codec.SendPacket([]byte("OK")); err != nil {
		s.log.WithError(err).Debug("failed to send detach acknowledgement")
	}
	s.setState(stateDetached)
	return "", false
}

// handleVCommand implements the small vCont subset spec.md §4.6 requires:
// capability query and the continue/step actions already exposed under c/s.
// The C and S actions run as c and s; their signal number is ignored.
func (s *Session) handleVCommand(data string) (string, bool) {
	switch {
	case data == "Cont?":
		return "vCont;c;C;s;S", true
	case strings.HasPrefix(data, "Cont;c"), strings.HasPrefix(data, "Cont;C"):
		return s.handleContinue("")
	case strings.HasPrefix(data, "Cont;s"), strings.HasPrefix(data, "Cont;S"):
		return s.handleStep("")
	default:
		return "", true
	}
}

// scheduleTrap posts a stop notification through the event queue so it
// lands at a defined simulation tick before reaching the RSP layer's
// stopCh, per spec.md §9's TrapEvent pattern. Safe to call from whatever
// goroutine the simulator's PC-event or instruction-commit callback runs on.
func (s *Session) scheduleTrap(cid simcontract.ContextID, signal int) {
	s.eq.PostNow(func() {
		select {
		case s.stopCh <- stopMsg{cid: cid, signal: signal}:
		case <-s.done:
		}
	})
}

// handleTrap re-enters the RSP layer after a posted stop, halting the
// simulator, recording the stop reason, and sending the async stop reply.
func (s *Session) handleTrap(tr stopMsg) {
	s.sim.Halt()
	s.lastStopSignal = tr.signal
	s.lastStopContext = tr.cid
	s.setState(stateAttachedHalted)
	s.metrics.ObserveStopReason(signalName(tr.signal))
	if err := s.codec.SendPacket([]byte(s.composeStopReply())); err != nil {
		s.log.WithError(err).Debug("failed to send stop reply, treating as peer closed")
		s.transitionDetached()
	}
}

// handleAsyncInterrupt responds to a raw Ctrl-C byte observed while running
// or stepping (spec.md §4.1 "Interrupt"). It is a no-op while already
// halted, listening, or detached: GDB may send Ctrl-C speculatively, and
// there is nothing to stop.
func (s *Session) handleAsyncInterrupt() {
	if s.state != stateAttachedRunning && s.state != stateStepping {
		return
	}
	s.sim.Halt()
	s.lastStopSignal = simcontract.SIGINT
	if cid, ok := s.registry.currentID(); ok {
		s.lastStopContext = cid
	}
	s.setState(stateAttachedHalted)
	s.metrics.ObserveStopReason(signalName(s.lastStopSignal))
	if err := s.codec.SendPacket([]byte(s.composeStopReply())); err != nil {
		s.log.WithError(err).Debug("failed to send interrupt stop reply, treating as peer closed")
		s.transitionDetached()
	}
}

func signalName(signal int) string {
	switch signal {
	case simcontract.SIGTRAP:
		return "trap"
	case simcontract.SIGINT:
		return "interrupt"
	default:
		return fmt.Sprintf("signal_%d", signal)
	}
}
