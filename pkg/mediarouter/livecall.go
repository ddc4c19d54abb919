package mediarouter

import (
	"sync"
	"time"

	"github.com/lmig/csserver/pkg/bus"
)

// Kind mirrors pkg/call.Family for the Media Router's own live-call
// tracking, which is deliberately independent of the Persister's Call
// state — the two components never share mutable state.
type Kind string

const (
	KindDuplex  Kind = "duplex"
	KindSimplex Kind = "simplex"
	KindGroup   Kind = "group"
)

// LiveCall is one actively-signaled call the Media Router knows about.
// Its per-frame A/B pairing cache belongs exclusively to the forwarding
// goroutine started by StartCallInterception and is never touched by the
// Manager or any other goroutine, so it needs no lock of its own.
type LiveCall struct {
	CallID uint32
	Kind   Kind
	Feeder *Feeder

	voiceSub *bus.Subscription
	stop     chan struct{}

	LastSeen time.Time
}

// Manager tracks every LiveCall by call id.
type Manager struct {
	mu    sync.Mutex
	calls map[uint32]*LiveCall
}

// NewManager creates an empty LiveCall Manager.
func NewManager() *Manager {
	return &Manager{calls: make(map[uint32]*LiveCall)}
}

// StartOrTouch creates a LiveCall on first sight of a call id, or
// refreshes an existing one's LastSeen.
func (m *Manager) StartOrTouch(kind Kind, callID uint32, now time.Time) *LiveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	lc, ok := m.calls[callID]
	if !ok {
		lc = &LiveCall{CallID: callID, Kind: kind, LastSeen: now}
		m.calls[callID] = lc
	}
	lc.LastSeen = now
	return lc
}

// Get returns the LiveCall for a call id, if tracked.
func (m *Manager) Get(callID uint32) (*LiveCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lc, ok := m.calls[callID]
	return lc, ok
}

// Attach records an interception's Feeder, voice subscription, and stop
// channel against a tracked LiveCall.
func (m *Manager) Attach(callID uint32, feeder *Feeder, sub *bus.Subscription, stop chan struct{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	lc, ok := m.calls[callID]
	if !ok {
		return false
	}
	lc.Feeder = feeder
	lc.voiceSub = sub
	lc.stop = stop
	return true
}

// Detach clears an interception's Feeder/subscription state and returns
// what was attached, so the caller can release the Feeder and stop the
// forwarding goroutine outside the lock.
func (m *Manager) Detach(callID uint32) (*bus.Subscription, chan struct{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lc, ok := m.calls[callID]
	if !ok || lc.Feeder == nil {
		return nil, nil, false
	}
	sub, stop := lc.voiceSub, lc.stop
	lc.Feeder = nil
	lc.voiceSub = nil
	lc.stop = nil
	return sub, stop, true
}

// Remove removes a call from tracking (on Release) and returns it so the
// caller can tear down any attached interception.
func (m *Manager) Remove(callID uint32) (*LiveCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lc, ok := m.calls[callID]
	if !ok {
		return nil, false
	}
	delete(m.calls, callID)
	return lc, true
}

// SweepInactive removes and returns every LiveCall idle beyond maxAge.
func (m *Manager) SweepInactive(now time.Time, maxAge time.Duration) []*LiveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []*LiveCall
	for id, lc := range m.calls {
		if now.Sub(lc.LastSeen) > maxAge {
			stale = append(stale, lc)
			delete(m.calls, id)
		}
	}
	return stale
}

// ActiveCallIDs returns every tracked call id, for GET_ACTIVE_CALLS.
func (m *Manager) ActiveCallIDs() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint32, 0, len(m.calls))
	for id := range m.calls {
		out = append(out, id)
	}
	return out
}
