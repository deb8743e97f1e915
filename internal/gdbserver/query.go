package gdbserver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/TurnOffNOD/gem5/internal/simcontract"
)

// queryTable is the q/Q sub-token dispatch table of spec.md §3's second
// command table, keyed by the token preceding the first ':' in the payload.
var queryTable = map[string]handler{
	"Supported":      (*Session).qSupported,
	"Xfer":           (*Session).qXfer,
	"C":              (*Session).qC,
	"fThreadInfo":    (*Session).qFThreadInfo,
	"sThreadInfo":    (*Session).qSThreadInfo,
	"Attached":       (*Session).qAttached,
	"Gem5.PageTable": (*Session).qPageTable,
}

// minPacketSize is the floor this session will never negotiate below,
// regardless of what the client offers (spec.md §6).
const minPacketSize = 1024

// qSupported implements "qSupported:<client features>" (spec.md §4.8):
// negotiates the transfer packet size down to whatever the client proposed
// (never up, never below minPacketSize) and advertises the architecture
// port's feature list plus qXfer:features:read support.
func (s *Session) qSupported(data string) (string, bool) {
	_, clientFeatures, _ := splitOnce(data, ':')
	negotiated := s.packetSize
	for _, tok := range strings.Split(clientFeatures, ";") {
		const prefix = "PacketSize="
		if !strings.HasPrefix(tok, prefix) {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(tok, prefix), 16, 64)
		if err == nil && int(v) < negotiated {
			negotiated = int(v)
		}
	}
	if negotiated < minPacketSize {
		negotiated = minPacketSize
	}
	s.packetSize = negotiated

	feats := []string{
		fmt.Sprintf("PacketSize=%x", s.packetSize),
		"qXfer:features:read+",
	}
	feats = append(feats, s.arch.AvailableFeatures()...)
	return strings.Join(feats, ";"), true
}

// qXfer implements "qXfer:features:read:<annex>:<offset>,<length>" paging
// (spec.md §4.8): an 'm' prefix with a chunk means more data remains, 'l'
// means this chunk is the last (or, with an empty body, that offset was
// already past the end).
func (s *Session) qXfer(data string) (string, bool) {
	rest := strings.TrimPrefix(data, "Xfer:")
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 || parts[0] != "features" || parts[1] != "read" {
		return "", true
	}
	annex, offLen, ok := splitOnce(parts[2], ':')
	if !ok {
		return "E00", true
	}
	offStr, lenStr, ok := splitOnce(offLen, ',')
	if !ok {
		return "E00", true
	}
	offset, err := parseHexUint(offStr)
	if err != nil {
		return badRequestReply(err)
	}
	length, err := parseHexUint(lenStr)
	if err != nil {
		return badRequestReply(err)
	}

	doc, ok := s.arch.GetXferFeaturesRead(annex)
	if !ok {
		return "E00", true
	}
	if offset >= uint64(len(doc)) {
		return "l", true
	}
	end := offset + length
	more := true
	if end >= uint64(len(doc)) {
		end = uint64(len(doc))
		more = false
	}
	prefix := "l"
	if more {
		prefix = "m"
	}
	return prefix + string(doc[offset:end]), true
}

// qC implements "qC" (spec.md §4.7): the current thread's wire id, in hex.
func (s *Session) qC(_ string) (string, bool) {
	cid, ok := s.registry.currentID()
	if !ok {
		return "QC0", true
	}
	return fmt.Sprintf("QC%x", rspID(cid)), true
}

// qFThreadInfo and qSThreadInfo together implement the qfThreadInfo /
// qsThreadInfo paging pair (spec.md §4.7). The registry answers the whole
// set in one batch, so the "s" call always reports no more threads.
func (s *Session) qFThreadInfo(_ string) (string, bool) {
	ids, more := s.registry.firstThreadInfo()
	return formatThreadInfo(ids, more), true
}

func (s *Session) qSThreadInfo(_ string) (string, bool) {
	ids, more := s.registry.nextThreadInfo()
	return formatThreadInfo(ids, more), true
}

func formatThreadInfo(ids []simcontract.ContextID, more bool) string {
	if len(ids) == 0 {
		return "l"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%x", rspID(id))
	}
	prefix := "l"
	if more {
		prefix = "m"
	}
	return prefix + strings.Join(parts, ",")
}

// qAttached implements "qAttached": this module only ever attaches to an
// already-running simulated process, never spawns one, so the answer is
// unconditionally "1" (spec.md §4.9).
func (s *Session) qAttached(_ string) (string, bool) {
	return "1", true
}

// qPageTable implements the optional "qGem5.PageTable" diagnostic query
// (spec.md §6). Ports that don't implement PageTableDump cause this to
// reply with the empty packet, same as any other unsupported query.
func (s *Session) qPageTable(_ string) (string, bool) {
	tc, ok := s.registry.currentContext()
	if !ok {
		return "", true
	}
	dump, ok := s.arch.PageTableDump(tc)
	if !ok {
		return "", true
	}
	return string(dump), true
}
