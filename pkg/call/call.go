// Package call implements the Persister's call state machine: per-call
// lifecycle tracking (Absent → Active → Absent), dual voice-buffer
// assembly for duplex calls, and the WAV packaging the Persister attaches
// to a closed call's voice row.
package call

import (
	"sync"
	"time"

	"github.com/lmig/csserver/pkg/event"
)

// Family identifies which call-family table a Call belongs to.
type Family string

const (
	FamilyDuplex  Family = "duplex"
	FamilySimplex Family = "simplex"
	FamilyGroup   Family = "group"
)

// State is a Call's lifecycle state.
type State uint8

const (
	Absent State = iota
	Active
)

// Call is one call's accumulated lifecycle and voice state, kept entirely
// in memory until it closes.
type Call struct {
	CallID  uint32
	Family  Family
	State   State
	DbID    uint64 // set by the Persister once the opening row is inserted
	Timeout uint32

	CallBegin time.Time
	LastSeen  time.Time

	SeqNo uint16 // incremented on every status-change/ptt record seen

	AParty     event.PartyIdentity
	BParty     event.PartyIdentity
	GroupParty event.PartyIdentity

	bufA []byte // stream A (or the only stream, for simplex/group)
	bufB []byte // stream B, duplex only
}

// nextSeqNo increments and returns the call's sequence counter.
func (c *Call) nextSeqNo() uint16 {
	c.SeqNo++
	return c.SeqNo
}

// AppendVoice appends one voice frame's payload to the correct stream
// buffer for the call's family and the frame's originator.
func (c *Call) AppendVoice(originator event.StreamOriginator, payload []byte) {
	switch {
	case c.Family == FamilyDuplex && originator == event.OriginatorB:
		c.bufB = append(c.bufB, payload...)
	default:
		c.bufA = append(c.bufA, payload...)
	}
}

// Voice returns the call's assembled WAV blob (header plus sample data).
func (c *Call) Voice() []byte {
	return BuildVoiceBlob(c.Family == FamilyDuplex, c.bufA, c.bufB)
}

// VoiceDataLen returns the total interleaved/mono sample byte count,
// before the WAV header is prepended.
func (c *Call) VoiceDataLen() int {
	if c.Family == FamilyDuplex {
		n := len(c.bufA)
		if len(c.bufB) < n {
			n = len(c.bufB)
		}
		return n * 2
	}
	return len(c.bufA)
}

// Manager tracks every Active call by call id, following the teacher's
// TransmissionLogger pattern: a mutex-guarded map plus terminal-event and
// periodic-sweep paths that both produce closed calls for the caller to
// persist.
type Manager struct {
	mu    sync.Mutex
	calls map[uint32]*Call
}

// NewManager creates an empty call Manager.
func NewManager() *Manager {
	return &Manager{calls: make(map[uint32]*Call)}
}

// ActiveCount returns the number of calls currently Active.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Get returns the Active call for a call id, if any.
func (m *Manager) Get(callID uint32) (*Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	return c, ok
}

// Snapshot returns every Active call.
func (m *Manager) Snapshot() []*Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Call, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c)
	}
	return out
}

// StartOrUpdate handles a *CallChange record: creates a new Active call
// when none exists for callID, whatever the record's action, or refreshes
// an existing one's timeout/parties/LastSeen otherwise. It always returns
// the current call and its per-event sequence number.
func (m *Manager) StartOrUpdate(family Family, callID uint32, timeout uint32, now time.Time, aParty, bParty, groupParty event.PartyIdentity) (*Call, uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calls[callID]
	if !ok {
		c = &Call{
			CallID:     callID,
			Family:     family,
			State:      Active,
			CallBegin:  now,
			AParty:     aParty,
			BParty:     bParty,
			GroupParty: groupParty,
		}
		m.calls[callID] = c
	}
	c.Timeout = timeout
	c.LastSeen = now
	if aParty != (event.PartyIdentity{}) {
		c.AParty = aParty
	}
	if bParty != (event.PartyIdentity{}) {
		c.BParty = bParty
	}
	if groupParty != (event.PartyIdentity{}) {
		c.GroupParty = groupParty
	}
	return c, c.nextSeqNo()
}

// Ptt records PTT floor-change activity against an Active call's LastSeen
// and sequence counter without altering its lifecycle state. It is a
// no-op (returns ok=false) if the call isn't Active — a PTT record for an
// unknown call is a ProtocolError the caller should count and drop.
func (m *Manager) Ptt(callID uint32, now time.Time) (seqNo uint16, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, found := m.calls[callID]
	if !found {
		return 0, false
	}
	c.LastSeen = now
	return c.nextSeqNo(), true
}

// Voice appends a voice frame to an Active call's stream buffer. Voice
// for an unknown call id is a ProtocolError the caller should count and
// drop (returns ok=false).
func (m *Manager) Voice(callID uint32, originator event.StreamOriginator, payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return false
	}
	c.AppendVoice(originator, payload)
	return true
}

// SetDbID records the primary key of a call's just-inserted storage row,
// so Release can hand it back to the caller for the close/voice-insert
// statements. Returns false if the call id isn't tracked.
func (m *Manager) SetDbID(callID uint32, dbID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return false
	}
	c.DbID = dbID
	return true
}

// Release removes a call from the Active set and returns it for
// persistence. The second return value is false if the call id wasn't
// tracked (a release for a call the Persister never saw opened).
func (m *Manager) Release(callID uint32) (*Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return nil, false
	}
	delete(m.calls, callID)
	return c, true
}

// SweepInactive removes and returns every Active call whose LastSeen is
// older than maxAge, for the Persister's maintenance_frequency timer —
// calls whose release record was lost still need to be flushed to
// storage eventually.
func (m *Manager) SweepInactive(now time.Time, maxAge time.Duration) []*Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var closed []*Call
	for id, c := range m.calls {
		if now.Sub(c.LastSeen) > maxAge {
			closed = append(closed, c)
			delete(m.calls, id)
		}
	}
	return closed
}
