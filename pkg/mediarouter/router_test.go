package mediarouter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lmig/csserver/pkg/bus"
	"github.com/lmig/csserver/pkg/config"
	"github.com/lmig/csserver/pkg/database"
	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/logger"
)

type fakeStore struct {
	indi      map[uint64]*database.VoiceIndiCall
	group     map[uint64]*database.VoiceGroupCall
	recentI   []database.IndiCall
	recentG   []database.GroupCall
}

func (f *fakeStore) GetVoiceIndiCall(dbID uint64) (*database.VoiceIndiCall, error) {
	v, ok := f.indi[dbID]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

func (f *fakeStore) GetVoiceGroupCall(dbID uint64) (*database.VoiceGroupCall, error) {
	v, ok := f.group[dbID]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

func (f *fakeStore) RecentIndiCalls(limit int) ([]database.IndiCall, error)   { return f.recentI, nil }
func (f *fakeStore) RecentGroupCalls(limit int) ([]database.GroupCall, error) { return f.recentG, nil }

func newTestRouter(t *testing.T, cfg Config, store Store) (*Router, *bus.Bus) {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	b := bus.New(log)

	pool, err := NewPool(map[string]config.FeederConfig{
		"feeder_1": {Stream: "feed1", IP: "127.0.0.1", Port: 9101, Type: "M"},
		"feeder_2": {Stream: "feed2", IP: "127.0.0.1", Port: 9102, Type: "S"},
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	players := NewPlayerPool(nil)

	if cfg.MaintenanceFrequency == 0 {
		cfg.MaintenanceFrequency = time.Hour
	}
	if cfg.CallInactivityPeriod == 0 {
		cfg.CallInactivityPeriod = time.Hour
	}

	return New(cfg, b, store, pool, players, nil, nil, nil, log), b
}

func TestRouter_HandleSignalingTracksAndReleasesDuplexCall(t *testing.T) {
	r, _ := newTestRouter(t, Config{}, &fakeStore{})

	r.handleSignaling(bus.Message{
		ReceivedAt: time.Now(),
		Event: event.Event{
			Kind:    event.KindDuplexCallChange,
			Payload: event.DuplexCallChange{CallID: 1, Action: event.ActionNewCallSetup},
		},
	})

	ids := r.ActiveCallIDs()
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected call 1 to be tracked, got %v", ids)
	}

	r.handleSignaling(bus.Message{
		Event: event.Event{
			Kind:    event.KindDuplexCallRelease,
			Payload: event.DuplexCallRelease{CallID: 1},
		},
	})

	if ids := r.ActiveCallIDs(); len(ids) != 0 {
		t.Fatalf("expected call to be released, still tracked: %v", ids)
	}
}

func TestRouter_StartCallInterceptionRejectsUnknownCall(t *testing.T) {
	r, _ := newTestRouter(t, Config{}, &fakeStore{})

	_, ok, reason := r.StartCallInterception(123, "wav")
	if ok {
		t.Fatal("expected interception of an unknown call to fail")
	}
	if reason == "" {
		t.Fatal("expected a reason string on failure")
	}
}

func TestRouter_StartCallInterceptionReservesTypeCompatibleFeeder(t *testing.T) {
	r, b := newTestRouter(t, Config{MediaServerEndpoint: "http://media.local"}, &fakeStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	r.handleSignaling(bus.Message{
		ReceivedAt: time.Now(),
		Event: event.Event{
			Kind:    event.KindDuplexCallChange,
			Payload: event.DuplexCallChange{CallID: 5, Action: event.ActionNewCallSetup},
		},
	})

	url, ok, reason := r.StartCallInterception(5, "wav")
	if !ok {
		t.Fatalf("expected interception to succeed, got reason %q", reason)
	}
	if url != "http://media.local/feed2.wav" {
		t.Fatalf("expected the stereo feeder's stream URL, got %q", url)
	}

	url2, ok2, _ := r.StartCallInterception(5, "wav")
	if !ok2 || url2 != url {
		t.Fatal("expected a repeat start to return the already-reserved feeder's URL")
	}

	ok3, _ := r.StopCallInterception(5)
	if !ok3 {
		t.Fatal("expected stop to succeed for an active interception")
	}
	if ok, _ := r.StopCallInterception(5); ok {
		t.Fatal("expected a second stop to report no active interception")
	}
}

func TestRouter_TeardownReleasesInterceptionFeeder(t *testing.T) {
	r, b := newTestRouter(t, Config{MediaServerEndpoint: "http://media.local"}, &fakeStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	r.handleSignaling(bus.Message{
		ReceivedAt: time.Now(),
		Event: event.Event{
			Kind:    event.KindSimplexCallStartChange,
			Payload: event.SimplexCallStartChange{CallID: 9, Action: event.ActionNewCallSetup},
		},
	})
	if _, ok, reason := r.StartCallInterception(9, "wav"); !ok {
		t.Fatalf("expected interception to succeed: %s", reason)
	}

	r.handleSignaling(bus.Message{
		Event: event.Event{
			Kind:    event.KindSimplexCallRelease,
			Payload: event.SimplexCallRelease{CallID: 9},
		},
	})

	if len(r.ActiveCallIDs()) != 0 {
		t.Fatal("expected call to be fully released on teardown")
	}

	// A fresh call should now be able to reserve a mono feeder again —
	// only one mono feeder is configured, so this proves release happened.
	r.handleSignaling(bus.Message{
		Event: event.Event{
			Kind:    event.KindSimplexCallStartChange,
			Payload: event.SimplexCallStartChange{CallID: 10, Action: event.ActionNewCallSetup},
		},
	})
	if _, ok, reason := r.StartCallInterception(10, "wav"); !ok {
		t.Fatalf("expected feeder to have been released by teardown: %s", reason)
	}
}

func TestRouter_RunMaintenanceSweepsInactiveCallsAndReleasesFeeders(t *testing.T) {
	r, b := newTestRouter(t, Config{
		MediaServerEndpoint:  "http://media.local",
		CallInactivityPeriod: 5 * time.Second,
	}, &fakeStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	base := time.Now()
	r.handleSignaling(bus.Message{
		ReceivedAt: base,
		Event: event.Event{
			Kind:    event.KindSimplexCallStartChange,
			Payload: event.SimplexCallStartChange{CallID: 1, Action: event.ActionNewCallSetup},
		},
	})
	r.StartCallInterception(1, "wav")

	r.runMaintenance(base.Add(10 * time.Second))

	if len(r.ActiveCallIDs()) != 0 {
		t.Fatal("expected the inactive call to be swept")
	}
	if _, ok := r.feeders.ReservedFor(1); ok {
		t.Fatal("expected the swept call's feeder to be released")
	}
}

func TestInterleave_DuplexPairYieldsDoubleLengthFrame(t *testing.T) {
	// Exercises the same interleave helper forwardVoice relies on for
	// duplex pairing. The lifecycle tests above start and stop the
	// forwarding goroutine but send it no voice frames.
	a := make([]byte, 480)
	b := make([]byte, 480)
	for i := range a {
		a[i] = byte(i)
		b[i] = byte(255 - i)
	}
	out := interleave(a, b)
	if len(out) != 960 {
		t.Fatalf("expected a 960-byte stereo frame, got %d", len(out))
	}
}

func TestRouter_StartAndStopPlayCallRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{indi: map[uint64]*database.VoiceIndiCall{
		1: {DbID: 1, VoiceData: []byte("wav-bytes")},
	}}
	r, _ := newTestRouter(t, Config{VoicerecRepo: dir, VoicerecURL: "/rec"}, store)

	url, ok, reason := r.StartPlayCall(1, 100, "I", "wav", "sess-1")
	if !ok {
		t.Fatalf("expected play call to succeed: %s", reason)
	}
	if url == "" {
		t.Fatal("expected a non-empty playback URL")
	}

	ok2, reason2 := r.StopPlayCall(1, 100, "wav", "sess-1")
	if !ok2 {
		t.Fatalf("expected stop play call to succeed: %s", reason2)
	}

	if ok3, _ := r.StopPlayCall(1, 100, "wav", "sess-1"); ok3 {
		t.Fatal("expected a second stop to report no materialized recording")
	}
}

func TestRouter_StartPlayCallFailsForUnknownRecording(t *testing.T) {
	r, _ := newTestRouter(t, Config{VoicerecRepo: t.TempDir()}, &fakeStore{indi: map[uint64]*database.VoiceIndiCall{}})

	_, ok, reason := r.StartPlayCall(999, 1, "I", "wav", "s")
	if ok {
		t.Fatal("expected play call to fail for an unrecorded call")
	}
	if reason == "" {
		t.Fatal("expected a failure reason")
	}
}

func TestRouter_CallHistoryComposesBothStoreQueries(t *testing.T) {
	store := &fakeStore{
		recentI: []database.IndiCall{{}, {}},
		recentG: []database.GroupCall{{}},
	}
	r, _ := newTestRouter(t, Config{}, store)

	indi, group, err := r.CallHistory(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(indi) != 2 || len(group) != 1 {
		t.Fatalf("expected 2 indi and 1 group call, got %d/%d", len(indi), len(group))
	}
}

func TestRouter_RunStopsOnContextCancel(t *testing.T) {
	r, b := newTestRouter(t, Config{MaintenanceFrequency: 10 * time.Millisecond}, &fakeStore{})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); b.Run(ctx) }()

	var runErr error
	go func() {
		defer wg.Done()
		runErr = r.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	if runErr == nil {
		t.Fatal("expected Run to return ctx.Err() once canceled")
	}
}
