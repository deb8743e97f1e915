package gdbserver

import (
	"sort"

	"github.com/TurnOffNOD/gem5/internal/simcontract"
)

// threadRegistry is the thread multiplexer of spec.md §4.7: a mapping from
// ContextID to ThreadContext with exactly one designated current context,
// plus the qfThreadInfo/qsThreadInfo paging cursor.
type threadRegistry struct {
	byID    map[simcontract.ContextID]simcontract.ThreadContext
	next    simcontract.ContextID
	current simcontract.ContextID
	hasCur  bool

	// pageCursor is set by qfThreadInfo to the number of IDs its single
	// batch returned; qsThreadInfo does not read it.
	pageCursor int
}

func newThreadRegistry() *threadRegistry {
	return &threadRegistry{byID: make(map[simcontract.ContextID]simcontract.ThreadContext)}
}

// addThreadContext assigns the next unused ContextID starting at 0 and
// registers tc under it. Spec.md §4.7: "duplicates are rejected" — adding
// a ThreadContext already present under another ID is refused.
func (r *threadRegistry) addThreadContext(tc simcontract.ThreadContext) (simcontract.ContextID, bool) {
	for _, existing := range r.byID {
		if existing == tc {
			return 0, false
		}
	}
	id := r.next
	r.next++
	r.byID[id] = tc
	if !r.hasCur {
		r.current = id
		r.hasCur = true
	}
	return id, true
}

// replaceThreadContext substitutes tc in place of whatever ThreadContext
// was registered under id, for CPU-migration (spec.md §4.7). Returns false
// if id was never registered.
func (r *threadRegistry) replaceThreadContext(id simcontract.ContextID, tc simcontract.ThreadContext) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	r.byID[id] = tc
	return true
}

// selectThreadContext sets the current context to id, returning false if
// id is unregistered. The caller (Session) is responsible for invalidating
// the register cache, since the registry has no knowledge of it.
func (r *threadRegistry) selectThreadContext(id simcontract.ContextID) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	r.current = id
	r.hasCur = true
	return true
}

func (r *threadRegistry) currentID() (simcontract.ContextID, bool) {
	if !r.hasCur {
		return 0, false
	}
	return r.current, true
}

func (r *threadRegistry) currentContext() (simcontract.ThreadContext, bool) {
	if !r.hasCur {
		return nil, false
	}
	tc, ok := r.byID[r.current]
	return tc, ok
}

func (r *threadRegistry) get(id simcontract.ContextID) (simcontract.ThreadContext, bool) {
	tc, ok := r.byID[id]
	return tc, ok
}

// sortedIDs returns all registered ContextIDs in ascending order, the
// stable iteration order qfThreadInfo/qsThreadInfo paging relies on.
func (r *threadRegistry) sortedIDs() []simcontract.ContextID {
	ids := make([]simcontract.ContextID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// firstThreadInfo resets the paging cursor and returns the first batch
// (here, all IDs at once — the registry is never large enough in this
// module's target domain to need real batching, but the reset-then-page
// protocol is still honored so a real multi-thousand-thread simulator
// could swap in batching later without changing the wire behavior).
func (r *threadRegistry) firstThreadInfo() (ids []simcontract.ContextID, more bool) {
	all := r.sortedIDs()
	r.pageCursor = len(all)
	return all, false
}

// nextThreadInfo returns the next batch after firstThreadInfo exhausted
// its page; with single-batch paging this is always empty.
func (r *threadRegistry) nextThreadInfo() (ids []simcontract.ContextID, more bool) {
	return nil, false
}

// rspID converts an internal 0-based ContextID to the 1-based wire form
// (spec.md GLOSSARY: "Thread IDs are 1-based on the wire, 0-based
// internally").
func rspID(id simcontract.ContextID) int { return int(id) + 1 }

// fromRspID converts a 1-based wire thread id back to an internal
// ContextID. A wire value of 0 means "any thread" and has no internal
// representation; ok is false for that case so callers can special-case it.
func fromRspID(wire int) (simcontract.ContextID, bool) {
	if wire <= 0 {
		return 0, false
	}
	return simcontract.ContextID(wire - 1), true
}

// handleSetThread implements "Hc<id>" and "Hg<id>" (spec.md §4.7). This
// module makes no distinction between the "c" (step/continue) and "g"
// (everything else) thread per real gdbserver's near-universal practice of
// treating them identically; both select the current context used by every
// other command. Switching invalidates the register cache so the next g/G/p/P
// rebuilds it for the new context's class.
func (s *Session) handleSetThread(data string) (string, bool) {
	if len(data) == 0 {
		return "E01", true
	}
	idStr := data[1:]
	wire, err := parseSignedThreadID(idStr)
	if err != nil {
		return badRequestReply(err)
	}
	if wire == -1 || wire == 0 {
		// -1 means "all threads", 0 means "any thread": both are
		// satisfied trivially by leaving the current selection alone.
		return "OK", true
	}
	cid, ok := fromRspID(wire)
	if !ok {
		return "E01", true
	}
	if !s.registry.selectThreadContext(cid) {
		return "E01", true
	}
	s.regCache = nil
	return "OK", true
}

// parseSignedThreadID parses the hex thread id that follows
// Hc/Hg, which uniquely among RSP arguments may be "-1".
func parseSignedThreadID(s string) (int, error) {
	if s == "-1" {
		return -1, nil
	}
	v, err := parseHexUint(s)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
