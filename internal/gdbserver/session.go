// Package gdbserver implements the target-side half of the GDB Remote
// Serial Protocol: command dispatch, breakpoint and thread bookkeeping, and
// the execution controller state machine that hands control back and forth
// between a blocked GDB client and a running simulator. Package rsp handles
// wire framing below this layer; package simcontract states the contracts
// this layer expects the rest of the simulator to satisfy.
package gdbserver

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/TurnOffNOD/gem5/internal/metrics"
	"github.com/TurnOffNOD/gem5/internal/rsp"
	"github.com/TurnOffNOD/gem5/internal/simcontract"
)

// rxMsg is one event off the wire: either a decoded, checksum-valid packet,
// an async interrupt pseudo-packet, or the peer closing. Checksum failures
// never reach here; package rsp's ReadPacket retries those internally.
type rxMsg struct {
	payload   []byte
	interrupt bool
	closed    bool
}

// stopMsg is a trap notification posted from the simulator side, always by
// way of EventQueue.PostNow so it lands at a defined simulation tick (spec's
// "TrapEvent" pattern).
type stopMsg struct {
	cid    simcontract.ContextID
	signal int
}

// Session owns one GDB connection's worth of protocol state: the listening
// socket, the codec, the current execution controller state, the thread and
// breakpoint tables, and the register cache. One Session serves connections
// one at a time, matching real gdbserver/gem5 remote-gdb behavior: a second
// client cannot attach until the first detaches.
type Session struct {
	port     int
	listener net.Listener

	arch simcontract.ArchPort
	eq   simcontract.EventQueue
	sim  simcontract.Simulator

	registry *threadRegistry
	bp       *breakpointManager

	conn  net.Conn
	codec *rsp.Conn

	state           execState
	lastStopSignal  int
	lastStopContext simcontract.ContextID

	regCache     simcontract.RegisterCache
	regCacheArch string

	packetSize int

	log     *logrus.Entry
	metrics *metrics.Set

	pktCh  chan rxMsg
	stopCh chan stopMsg
	done   chan struct{}
}

// defaultPacketSize is the initial value advertised in qSupported before
// any negotiation narrows it (spec.md §4.8).
const defaultPacketSize = 4096

// NewSession constructs a Session bound to port, using arch as the
// architecture port and eq/sim as the simulator collaborators. mset may be
// nil, in which case metrics are silently dropped.
func NewSession(port int, arch simcontract.ArchPort, eq simcontract.EventQueue, sim simcontract.Simulator, log *logrus.Entry, mset *metrics.Set) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		port:           port,
		arch:           arch,
		eq:             eq,
		sim:            sim,
		registry:       newThreadRegistry(),
		bp:             newBreakpointManager(),
		state:          stateListening,
		lastStopSignal: simcontract.SIGTRAP,
		packetSize:     defaultPacketSize,
		log:            log.WithField("component", "gdbserver"),
		metrics:        mset,
	}
}

// AddThreadContext registers tc with the session's thread multiplexer,
// returning the internal ContextID it was assigned.
func (s *Session) AddThreadContext(tc simcontract.ThreadContext) (simcontract.ContextID, bool) {
	return s.registry.addThreadContext(tc)
}

// Listen binds the session's TCP port and serves connections until the
// listener is closed or a non-recoverable accept error occurs. Matches the
// "Listening for remote gdb connection on port <N>" banner real gem5
// prints, since that exact line is what scripts and users grep for.
func (s *Session) Listen() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return errors.Wrapf(err, "gdbserver: listen on port %d", s.port)
	}
	s.listener = ln
	fmt.Printf("Listening for remote gdb connection on port %d\n", s.port)
	s.log.WithField("port", s.port).Info("listening for remote gdb connection")
	return s.acceptLoop()
}

// acceptLoop serves one connection at a time: after a client detaches the
// session returns to stateListening and waits for the next accept.
func (s *Session) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return errors.Wrap(err, "gdbserver: accept")
		}
		s.handleConnection(conn)
	}
}

// handleConnection drives one client's full attach-to-detach lifecycle.
func (s *Session) handleConnection(conn net.Conn) {
	s.log.WithField("remote", conn.RemoteAddr()).Info("gdb client attached")
	s.conn = conn
	s.codec = rsp.NewConn(conn)
	s.codec.OnRetransmit = s.metrics.IncRetransmits
	s.pktCh = make(chan rxMsg, 1)
	s.stopCh = make(chan stopMsg, 1)
	s.done = make(chan struct{})

	s.sim.Halt()
	if cid, ok := s.registry.currentID(); ok {
		s.lastStopContext = cid
	}
	s.lastStopSignal = simcontract.SIGTRAP
	s.setState(stateAttachedHalted)

	go s.readLoop()
	s.runPacketLoop()

	close(s.done)
	if err := conn.Close(); err != nil {
		s.log.WithError(err).Debug("error closing connection after detach")
	}
	s.conn = nil
	s.codec = nil
	s.setState(stateListening)
}

// readLoop continuously pulls packets off the wire and forwards them to
// pktCh, independent of the main loop's current state; this is what lets
// the main loop select on pktCh/stopCh while a client is attached-running
// instead of blocking a synchronous read (spec.md §5's three suspension
// points: blocking read while halted is the degenerate one-reader case of
// this same channel).
func (s *Session) readLoop() {
	for {
		payload, err := s.codec.ReadPacket()
		var msg rxMsg
		switch err {
		case nil:
			msg = rxMsg{payload: payload}
		case rsp.ErrInterrupt:
			msg = rxMsg{interrupt: true}
		default:
			msg = rxMsg{closed: true}
		}
		select {
		case s.pktCh <- msg:
		case <-s.done:
			return
		}
		if msg.closed {
			return
		}
	}
}

// runPacketLoop is the single-threaded RSP core: while halted it reacts
// only to incoming packets; while running or stepping it also watches for a
// trap posted from the simulator side. It returns once the session
// transitions to stateDetached.
func (s *Session) runPacketLoop() {
	for {
		switch s.state {
		case stateDetached:
			return
		case stateAttachedRunning, stateStepping:
			select {
			case msg := <-s.pktCh:
				if s.handleRx(msg) {
					return
				}
			case tr := <-s.stopCh:
				s.handleTrap(tr)
			}
		default: // stateAttachedHalted
			msg, ok := <-s.pktCh
			if !ok {
				return
			}
			if s.handleRx(msg) {
				return
			}
		}
	}
}

// handleRx processes one rxMsg and reports whether the packet loop should
// exit (the session has detached).
func (s *Session) handleRx(msg rxMsg) bool {
	if msg.closed {
		s.log.Debug("peer closed connection")
		s.transitionDetached()
		return true
	}
	if msg.interrupt {
		s.handleAsyncInterrupt()
		return s.state == stateDetached
	}

	s.metrics.IncPacketsProcessed()
	reply, autoSend := s.dispatch(msg.payload)
	if autoSend {
		if err := s.codec.SendPacket([]byte(reply)); err != nil {
			s.log.WithError(err).Debug("failed to send reply, treating as peer closed")
			s.transitionDetached()
			return true
		}
	}
	return s.state == stateDetached
}

func (s *Session) setState(st execState) {
	s.state = st
	s.metrics.SetSessionState(int(st))
}

// transitionDetached performs the detach side effects (breakpoint teardown,
// simulator resumed free) without sending a reply; used for peer-close and
// internal shutdown paths where no client is left to reply to. Matches
// handleDetach's D/k side effects since spec.md §4.9 documents peer-close
// as "as D minus reply."
func (s *Session) transitionDetached() {
	s.bp.clear()
	s.sim.Resume()
	s.setState(stateDetached)
}

// Detach forces a currently attached client off by closing its connection;
// the packet loop then sees the peer close and detaches as usual, so
// breakpoints are torn down even if no D/k packet ever arrives.
func (s *Session) Detach() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.log.WithError(err).Debug("error closing connection during forced detach")
	}
}

// Close stops accepting new connections. An attached client is not
// disconnected; Listen returns with an accept error once that client's
// connection has ended.
func (s *Session) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
