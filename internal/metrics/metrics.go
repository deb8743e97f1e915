// Package metrics provides optional Prometheus instrumentation for the RSP
// engine. Every method is nil-safe: a *Set obtained as nil (the zero value
// for an unset field) turns every call into a no-op, so internal/gdbserver
// can unconditionally call s.metrics.IncFoo() without a hard Prometheus
// dependency or a nil check at every call site.
//
// Grounded on other_examples/manifests/forfire912-machineServer's go.mod,
// which pulls in github.com/prometheus/client_golang for a sibling
// gdb-server.go-style toy project; wired here as ambient observability
// rather than a core protocol concern, matching spec.md's instruction that
// ambient concerns are carried regardless of feature non-goals.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set bundles the counters/gauges this module's RSP engine updates.
type Set struct {
	PacketsProcessed     prometheus.Counter
	Retransmits          prometheus.Counter
	UnknownCommands      prometheus.Counter
	BreakpointsInstalled prometheus.Counter
	StopReasons          *prometheus.CounterVec
	SessionState         prometheus.Gauge
}

// NewSet constructs a Set and registers it with reg. Passing a fresh
// prometheus.NewRegistry() (rather than the global default registry) keeps
// repeated construction in tests from colliding on duplicate registration.
func NewSet(reg prometheus.Registerer, namespace string) *Set {
	s := &Set{
		PacketsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "packets_processed_total",
			Help: "RSP packets successfully decoded and dispatched.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "retransmits_total",
			Help: "Outgoing packets retransmitted after a nack.",
		}),
		UnknownCommands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "unknown_commands_total",
			Help: "Commands with no registered handler.",
		}),
		BreakpointsInstalled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "breakpoints_installed_total",
			Help: "Software and hardware breakpoints installed over the session's lifetime.",
		}),
		StopReasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stop_reasons_total",
			Help: "Stop replies sent, labeled by reason.",
		}, []string{"reason"}),
		SessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "session_state",
			Help: "Current execution controller state, as an enum ordinal.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.PacketsProcessed, s.Retransmits, s.UnknownCommands,
			s.BreakpointsInstalled, s.StopReasons, s.SessionState)
	}
	return s
}

func (s *Set) IncPacketsProcessed() {
	if s == nil {
		return
	}
	s.PacketsProcessed.Inc()
}

func (s *Set) IncRetransmits() {
	if s == nil {
		return
	}
	s.Retransmits.Inc()
}

func (s *Set) IncUnknownCommand() {
	if s == nil {
		return
	}
	s.UnknownCommands.Inc()
}

func (s *Set) IncBreakpointsInstalled() {
	if s == nil {
		return
	}
	s.BreakpointsInstalled.Inc()
}

func (s *Set) ObserveStopReason(reason string) {
	if s == nil {
		return
	}
	s.StopReasons.WithLabelValues(reason).Inc()
}

func (s *Set) SetSessionState(state int) {
	if s == nil {
		return
	}
	s.SessionState.Set(float64(state))
}
