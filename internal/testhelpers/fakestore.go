// Package testhelpers provides fixtures shared by the module's integration
// tests: an in-memory storage fake satisfying both the Persister's and the
// Media Router's Store interfaces, and a UDP sender for driving
// wire-encoded datagrams at a running Ingestor.
package testhelpers

import (
	"errors"
	"sync"
	"time"

	"github.com/lmig/csserver/pkg/database"
)

// closeCall records the arguments a CloseIndiCall/CloseGroupCall call was
// made with, for assertions that need the close-time fields without a
// live database round trip.
type closeCall struct {
	DbID     uint64
	CallEnd  time.Time
	SeqNoEnd uint16
	Cause    uint8
}

// FakeStore is an in-memory Store implementing both pkg/persister's Store
// and pkg/mediarouter's Store, so a single fixture can back an end-to-end
// test that exercises ingestion, persistence, and playback together.
type FakeStore struct {
	mu sync.Mutex

	keepAlives      []database.KeepAlive
	indiCalls       []database.IndiCall
	indiCloses      []closeCall
	indiStatusRows  []database.IndiCallStatusChange
	indiPttRows     []database.IndiCallPtt
	groupCalls      []database.GroupCall
	groupCloses     []closeCall
	groupStatusRows []database.GroupCallStatusChange
	groupPttRows    []database.GroupCallPtt
	voiceIndiCalls  []database.VoiceIndiCall
	voiceGroupCalls []database.VoiceGroupCall
	sdsStatusRows   []database.SDSStatus
	sdsDataRows     []database.SDSData

	nextDbID uint64
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore { return &FakeStore{} }

func (f *FakeStore) UpsertKeepAlive(ka *database.KeepAlive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.keepAlives {
		if existing.LogServerNo == ka.LogServerNo {
			f.keepAlives[i] = *ka
			return nil
		}
	}
	f.keepAlives = append(f.keepAlives, *ka)
	return nil
}

func (f *FakeStore) CreateIndiCall(c *database.IndiCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextDbID++
	c.DbID = f.nextDbID
	f.indiCalls = append(f.indiCalls, *c)
	return nil
}

func (f *FakeStore) CloseIndiCall(dbID uint64, callEnd time.Time, seqNoEnd uint16, cause uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indiCloses = append(f.indiCloses, closeCall{dbID, callEnd, seqNoEnd, cause})
	for i, c := range f.indiCalls {
		if c.DbID == dbID {
			f.indiCalls[i].CallEnd = callEnd
			f.indiCalls[i].SeqNoEnd = seqNoEnd
			f.indiCalls[i].DisconnectCause = cause
		}
	}
	return nil
}

func (f *FakeStore) InsertIndiCallStatusChange(row *database.IndiCallStatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indiStatusRows = append(f.indiStatusRows, *row)
	return nil
}

func (f *FakeStore) InsertIndiCallPtt(row *database.IndiCallPtt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indiPttRows = append(f.indiPttRows, *row)
	return nil
}

func (f *FakeStore) CreateGroupCall(c *database.GroupCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextDbID++
	c.DbID = f.nextDbID
	f.groupCalls = append(f.groupCalls, *c)
	return nil
}

func (f *FakeStore) CloseGroupCall(dbID uint64, callEnd time.Time, seqNoEnd uint16, cause uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupCloses = append(f.groupCloses, closeCall{dbID, callEnd, seqNoEnd, cause})
	for i, c := range f.groupCalls {
		if c.DbID == dbID {
			f.groupCalls[i].CallEnd = callEnd
			f.groupCalls[i].SeqNoEnd = seqNoEnd
			f.groupCalls[i].DisconnectCause = cause
		}
	}
	return nil
}

func (f *FakeStore) InsertGroupCallStatusChange(row *database.GroupCallStatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupStatusRows = append(f.groupStatusRows, *row)
	return nil
}

func (f *FakeStore) InsertGroupCallPtt(row *database.GroupCallPtt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupPttRows = append(f.groupPttRows, *row)
	return nil
}

func (f *FakeStore) CreateVoiceIndiCall(v *database.VoiceIndiCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voiceIndiCalls = append(f.voiceIndiCalls, *v)
	return nil
}

func (f *FakeStore) CreateVoiceGroupCall(v *database.VoiceGroupCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voiceGroupCalls = append(f.voiceGroupCalls, *v)
	return nil
}

func (f *FakeStore) InsertSDSStatus(row *database.SDSStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sdsStatusRows = append(f.sdsStatusRows, *row)
	return nil
}

func (f *FakeStore) InsertSDSData(row *database.SDSData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sdsDataRows = append(f.sdsDataRows, *row)
	return nil
}

// GetVoiceIndiCall implements pkg/mediarouter's Store, searching the rows
// CreateVoiceIndiCall recorded by their DbID.
func (f *FakeStore) GetVoiceIndiCall(dbID uint64) (*database.VoiceIndiCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.voiceIndiCalls {
		if f.voiceIndiCalls[i].DbID == dbID {
			v := f.voiceIndiCalls[i]
			return &v, nil
		}
	}
	return nil, errors.New("testhelpers: no voice indi call for that db id")
}

// GetVoiceGroupCall implements pkg/mediarouter's Store, mirroring
// GetVoiceIndiCall for group calls.
func (f *FakeStore) GetVoiceGroupCall(dbID uint64) (*database.VoiceGroupCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.voiceGroupCalls {
		if f.voiceGroupCalls[i].DbID == dbID {
			v := f.voiceGroupCalls[i]
			return &v, nil
		}
	}
	return nil, errors.New("testhelpers: no voice group call for that db id")
}

// RecentIndiCalls returns up to limit IndiCall rows, most recently created
// first.
func (f *FakeStore) RecentIndiCalls(limit int) ([]database.IndiCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return recentCopy(f.indiCalls, limit), nil
}

// RecentGroupCalls mirrors RecentIndiCalls for group calls.
func (f *FakeStore) RecentGroupCalls(limit int) ([]database.GroupCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return recentCopy(f.groupCalls, limit), nil
}

func recentCopy[T any](rows []T, limit int) []T {
	n := len(rows)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = rows[len(rows)-1-i]
	}
	return out
}

// KeepAlives returns a snapshot of every upserted keep-alive row.
func (f *FakeStore) KeepAlives() []database.KeepAlive {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.KeepAlive(nil), f.keepAlives...)
}

// IndiCalls returns a snapshot of every created IndiCall row (closed rows
// included, with their close-time fields applied).
func (f *FakeStore) IndiCalls() []database.IndiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.IndiCall(nil), f.indiCalls...)
}

// GroupCalls returns a snapshot of every created GroupCall row.
func (f *FakeStore) GroupCalls() []database.GroupCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.GroupCall(nil), f.groupCalls...)
}

// VoiceIndiCalls returns a snapshot of every persisted individual-call
// voice recording row.
func (f *FakeStore) VoiceIndiCalls() []database.VoiceIndiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.VoiceIndiCall(nil), f.voiceIndiCalls...)
}

// VoiceGroupCalls returns a snapshot of every persisted group-call voice
// recording row.
func (f *FakeStore) VoiceGroupCalls() []database.VoiceGroupCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.VoiceGroupCall(nil), f.voiceGroupCalls...)
}
