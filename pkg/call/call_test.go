package call

import (
	"testing"
	"time"

	"github.com/lmig/csserver/pkg/event"
)

func TestManager_StartOrUpdate_CreatesActiveCall(t *testing.T) {
	m := NewManager()
	now := time.Now()
	aParty := event.PartyIdentity{MCC: 1, MNC: 2, SSI: 100}
	bParty := event.PartyIdentity{MCC: 1, MNC: 2, SSI: 200}

	c, seq := m.StartOrUpdate(FamilyDuplex, 42, 30, now, aParty, bParty, event.PartyIdentity{})
	if seq != 1 {
		t.Errorf("expected first sequence number 1, got %d", seq)
	}
	if c.State != Active {
		t.Errorf("expected new call to be Active")
	}
	if c.AParty != aParty || c.BParty != bParty {
		t.Errorf("expected parties to be recorded")
	}
	if m.ActiveCount() != 1 {
		t.Errorf("expected 1 active call, got %d", m.ActiveCount())
	}
}

func TestManager_StartOrUpdate_RefreshesExistingCall(t *testing.T) {
	m := NewManager()
	now := time.Now()
	aParty := event.PartyIdentity{SSI: 100}

	m.StartOrUpdate(FamilyGroup, 7, 30, now, aParty, event.PartyIdentity{}, event.PartyIdentity{})

	later := now.Add(5 * time.Second)
	c, seq := m.StartOrUpdate(FamilyGroup, 7, 45, later, event.PartyIdentity{}, event.PartyIdentity{}, event.PartyIdentity{})
	if seq != 2 {
		t.Errorf("expected second sequence number 2, got %d", seq)
	}
	if c.Timeout != 45 {
		t.Errorf("expected timeout to be refreshed to 45, got %d", c.Timeout)
	}
	if !c.LastSeen.Equal(later) {
		t.Errorf("expected LastSeen to be refreshed")
	}
	if c.AParty != aParty {
		t.Errorf("expected AParty to be preserved across the refresh, got %+v", c.AParty)
	}
	if m.ActiveCount() != 1 {
		t.Errorf("expected still 1 active call, got %d", m.ActiveCount())
	}
}

func TestManager_Ptt_UnknownCallIsNotOK(t *testing.T) {
	m := NewManager()
	if _, ok := m.Ptt(999, time.Now()); ok {
		t.Errorf("expected Ptt on unknown call id to report ok=false")
	}
}

func TestManager_Ptt_KnownCallIncrementsSeq(t *testing.T) {
	m := NewManager()
	now := time.Now()
	m.StartOrUpdate(FamilySimplex, 5, 30, now, event.PartyIdentity{}, event.PartyIdentity{}, event.PartyIdentity{})

	seq, ok := m.Ptt(5, now.Add(time.Second))
	if !ok {
		t.Fatalf("expected Ptt on known call to succeed")
	}
	if seq != 2 {
		t.Errorf("expected sequence number 2 after one Ptt, got %d", seq)
	}
}

func TestManager_Voice_AccumulatesIntoCorrectBuffer(t *testing.T) {
	m := NewManager()
	now := time.Now()
	m.StartOrUpdate(FamilyDuplex, 1, 30, now, event.PartyIdentity{}, event.PartyIdentity{}, event.PartyIdentity{})

	if !m.Voice(1, event.OriginatorA, []byte{1, 2, 3}) {
		t.Fatalf("expected voice frame for known call to be accepted")
	}
	if !m.Voice(1, event.OriginatorB, []byte{9, 8}) {
		t.Fatalf("expected voice frame for known call to be accepted")
	}

	c, ok := m.Get(1)
	if !ok {
		t.Fatalf("expected call 1 to still be active")
	}
	if string(c.bufA) != string([]byte{1, 2, 3}) {
		t.Errorf("expected bufA to hold stream A bytes, got %v", c.bufA)
	}
	if string(c.bufB) != string([]byte{9, 8}) {
		t.Errorf("expected bufB to hold stream B bytes, got %v", c.bufB)
	}
}

func TestManager_Voice_SimplexAlwaysUsesBufA(t *testing.T) {
	m := NewManager()
	m.StartOrUpdate(FamilySimplex, 2, 30, time.Now(), event.PartyIdentity{}, event.PartyIdentity{}, event.PartyIdentity{})
	m.Voice(2, event.OriginatorB, []byte{5, 5})

	c, _ := m.Get(2)
	if len(c.bufB) != 0 {
		t.Errorf("expected simplex voice to collapse into bufA regardless of originator")
	}
	if string(c.bufA) != string([]byte{5, 5}) {
		t.Errorf("expected simplex voice in bufA, got %v", c.bufA)
	}
}

func TestManager_Voice_UnknownCallIsNotOK(t *testing.T) {
	m := NewManager()
	if m.Voice(404, event.OriginatorA, []byte{1}) {
		t.Errorf("expected voice for unknown call id to report ok=false")
	}
}

func TestManager_Release_RemovesFromActiveSet(t *testing.T) {
	m := NewManager()
	m.StartOrUpdate(FamilyGroup, 3, 30, time.Now(), event.PartyIdentity{}, event.PartyIdentity{}, event.PartyIdentity{})

	c, ok := m.Release(3)
	if !ok {
		t.Fatalf("expected release of known call to succeed")
	}
	if c.CallID != 3 {
		t.Errorf("expected released call to be call 3, got %d", c.CallID)
	}
	if m.ActiveCount() != 0 {
		t.Errorf("expected 0 active calls after release, got %d", m.ActiveCount())
	}
	if _, ok := m.Release(3); ok {
		t.Errorf("expected second release of the same call to fail")
	}
}

func TestManager_SweepInactive_ClosesStaleCalls(t *testing.T) {
	m := NewManager()
	base := time.Now()
	m.StartOrUpdate(FamilyGroup, 10, 30, base, event.PartyIdentity{}, event.PartyIdentity{}, event.PartyIdentity{})
	m.StartOrUpdate(FamilyGroup, 11, 30, base.Add(90*time.Second), event.PartyIdentity{}, event.PartyIdentity{}, event.PartyIdentity{})

	closed := m.SweepInactive(base.Add(100*time.Second), 60*time.Second)
	if len(closed) != 1 || closed[0].CallID != 10 {
		t.Fatalf("expected only call 10 to be swept, got %+v", closed)
	}
	if m.ActiveCount() != 1 {
		t.Errorf("expected call 11 to remain active, got %d active", m.ActiveCount())
	}
}

func TestCall_VoiceDataLen_Mono(t *testing.T) {
	c := &Call{Family: FamilySimplex, bufA: []byte{1, 2, 3, 4}}
	if c.VoiceDataLen() != 4 {
		t.Errorf("expected mono data length 4, got %d", c.VoiceDataLen())
	}
}

func TestCall_VoiceDataLen_Duplex(t *testing.T) {
	c := &Call{Family: FamilyDuplex, bufA: []byte{1, 2, 3}, bufB: []byte{9, 8, 7}}
	if c.VoiceDataLen() != 6 {
		t.Errorf("expected interleaved data length 6, got %d", c.VoiceDataLen())
	}
}

func TestCall_Voice_ProducesWellFormedHeader(t *testing.T) {
	c := &Call{Family: FamilySimplex, bufA: []byte{1, 2, 3, 4, 5}}
	blob := c.Voice()
	if len(blob) != wavHeaderSize+5 {
		t.Fatalf("expected blob length %d, got %d", wavHeaderSize+5, len(blob))
	}
	if string(blob[0:4]) != "RIFF" {
		t.Errorf("expected RIFF tag, got %q", blob[0:4])
	}
}
