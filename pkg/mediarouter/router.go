// Package mediarouter implements the Media Router: it tracks live calls
// from signaling, forwards intercepted calls' voice to reserved UDP
// feeder sinks (interleaving duplex pairs), and serves playback of
// persisted recordings — either by materializing a file for an external
// static server (v2) or by driving a feeder-bound player child process
// (v1, legacy).
package mediarouter

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lmig/csserver/pkg/alarm"
	"github.com/lmig/csserver/pkg/bus"
	"github.com/lmig/csserver/pkg/database"
	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/logger"
	"github.com/lmig/csserver/pkg/metrics"
)

// Store is the narrow storage surface the Media Router needs to serve a
// playback request.
type Store interface {
	GetVoiceIndiCall(dbID uint64) (*database.VoiceIndiCall, error)
	GetVoiceGroupCall(dbID uint64) (*database.VoiceGroupCall, error)
	RecentIndiCalls(limit int) ([]database.IndiCall, error)
	RecentGroupCalls(limit int) ([]database.GroupCall, error)
}

// Config configures the Media Router worker.
type Config struct {
	MediaServerEndpoint string // base URL prepended to a feeder's stream for interception replies

	CommandTemplate      string // v1 legacy player launch template, two %s slots: file path, feeder stream
	VoicerecRepo         string // directory playback files are materialized into
	VoicerecURL          string // URL namespace prefix for materialized playback files

	CallInactivityPeriod time.Duration
	MaintenanceFrequency time.Duration

	Subscriptions map[string]string
}

func (c Config) prefixes() []string {
	if len(c.Subscriptions) == 0 {
		return []string{"S"}
	}
	out := make([]string, 0, len(c.Subscriptions))
	for _, v := range c.Subscriptions {
		out = append(out, v)
	}
	return out
}

// Router is the Media Router worker.
type Router struct {
	cfg Config

	bus     *bus.Bus
	store   Store
	metrics *metrics.Collector
	alarm   *alarm.Collaborator
	log     *logger.Logger

	feeders   *Pool
	players   *PlayerPool
	calls     *Manager
	dashboard *DashboardHub

	egress *net.UDPConn
}

// New creates a Router. dashboard may be nil, in which case interception
// lifecycle events are simply never broadcast.
func New(cfg Config, b *bus.Bus, store Store, feeders *Pool, players *PlayerPool, dashboard *DashboardHub, m *metrics.Collector, al *alarm.Collaborator, log *logger.Logger) *Router {
	return &Router{
		cfg:       cfg,
		bus:       b,
		store:     store,
		metrics:   m,
		alarm:     al,
		log:       log.WithComponent("mediarouter"),
		feeders:   feeders,
		players:   players,
		calls:     NewManager(),
		dashboard: dashboard,
	}
}

// Run subscribes to signaling and drives the maintenance tick until ctx
// is canceled. Voice forwarding for intercepted calls happens in
// per-call goroutines started by StartCallInterception, independent of
// this loop.
func (r *Router) Run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return fmt.Errorf("mediarouter: failed to open egress socket: %w", err)
	}
	r.egress = conn
	defer func() { _ = conn.Close() }()

	var subs []*bus.Subscription
	merged := make(chan bus.Message, 1024)
	var wg sync.WaitGroup
	for _, prefix := range r.cfg.prefixes() {
		sub := r.bus.Subscribe(prefix, 1024)
		subs = append(subs, sub)
		wg.Add(1)
		go func(s *bus.Subscription) {
			defer wg.Done()
			for msg := range s.Messages() {
				select {
				case merged <- msg:
				case <-ctx.Done():
					return
				}
			}
		}(sub)
	}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
		wg.Wait()
	}()

	ticker := time.NewTicker(r.cfg.MaintenanceFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-merged:
			r.handleSignaling(msg)
		case now := <-ticker.C:
			r.runMaintenance(now)
		}
	}
}

func (r *Router) handleSignaling(msg bus.Message) {
	switch p := msg.Event.Payload.(type) {
	case event.DuplexCallChange:
		r.calls.StartOrTouch(KindDuplex, p.CallID, msg.ReceivedAt)
	case event.DuplexCallRelease:
		r.teardown(p.CallID)
	case event.SimplexCallStartChange:
		r.calls.StartOrTouch(KindSimplex, p.CallID, msg.ReceivedAt)
	case event.SimplexCallPttChange:
		if lc, ok := r.calls.Get(p.CallID); ok {
			lc.LastSeen = msg.ReceivedAt
		}
	case event.SimplexCallRelease:
		r.teardown(p.CallID)
	case event.GroupCallStartChange:
		r.calls.StartOrTouch(KindGroup, p.CallID, msg.ReceivedAt)
	case event.GroupCallPttActive:
		if lc, ok := r.calls.Get(p.CallID); ok {
			lc.LastSeen = msg.ReceivedAt
		}
	case event.GroupCallPttIdle:
		if lc, ok := r.calls.Get(p.CallID); ok {
			lc.LastSeen = msg.ReceivedAt
		}
	case event.GroupCallRelease:
		r.teardown(p.CallID)
	}
}

// teardown removes a LiveCall and, if it held an interception, stops the
// forwarding goroutine and releases its Feeder.
func (r *Router) teardown(callID uint32) {
	if lc, ok := r.calls.Remove(callID); ok {
		r.releaseInterception(lc)
	}
}

func (r *Router) runMaintenance(now time.Time) {
	for _, lc := range r.calls.SweepInactive(now, r.cfg.CallInactivityPeriod) {
		r.releaseInterception(lc)
	}
}

// releaseInterception tears down an already-removed LiveCall's
// interception, if any. Called only on LiveCalls no longer reachable
// through the Manager, so it operates on the struct directly rather than
// through a callID lookup.
func (r *Router) releaseInterception(lc *LiveCall) {
	if lc.Feeder == nil {
		return
	}
	close(lc.stop)
	lc.voiceSub.Close()
	r.feeders.Release(lc.CallID)
}

// ActiveCallIDs implements GET_ACTIVE_CALLS.
func (r *Router) ActiveCallIDs() []uint32 {
	return r.calls.ActiveCallIDs()
}

// StartCallInterception implements START_CALL_INTERCEPTION: it reserves
// a type-compatible Feeder, starts a per-call voice forwarding goroutine,
// and returns the feeder's stream URL.
func (r *Router) StartCallInterception(callID uint32, format string) (string, bool, string) {
	lc, ok := r.calls.Get(callID)
	if !ok {
		return "", false, "unknown call"
	}

	if f, ok := r.feeders.ReservedFor(callID); ok {
		return r.streamURL(f, format), true, ""
	}

	feederType := TypeMono
	if lc.Kind == KindDuplex {
		feederType = TypeStereo
	}

	feeder, ok := r.feeders.Reserve(callID, feederType)
	if !ok {
		if r.metrics != nil {
			r.metrics.ResourceExhausted("feeder")
		}
		return "", false, "Feeder not available"
	}

	sub := r.bus.Subscribe(bus.VoiceTopic(callID), 256)
	stop := make(chan struct{})
	r.calls.Attach(callID, feeder, sub, stop)

	go r.forwardVoice(lc.Kind, feeder, sub, stop)

	if r.dashboard != nil {
		r.dashboard.BroadcastInterceptionStarted(callID, feeder.Stream)
	}

	return r.streamURL(feeder, format), true, ""
}

func (r *Router) streamURL(f *Feeder, format string) string {
	return fmt.Sprintf("%s/%s.%s", r.cfg.MediaServerEndpoint, f.Stream, format)
}

// StopCallInterception implements STOP_CALL_INTERCEPTION: the LiveCall
// itself stays tracked, only its interception is torn down.
func (r *Router) StopCallInterception(callID uint32) (bool, string) {
	sub, stop, ok := r.calls.Detach(callID)
	if !ok {
		return false, "no active interception for that call"
	}
	close(stop)
	sub.Close()
	r.feeders.Release(callID)
	if r.dashboard != nil {
		r.dashboard.BroadcastInterceptionStopped(callID)
	}
	return true, ""
}

// forwardVoice drains a call's voice subscription, interleaving duplex
// pairs as they complete, and writes each resulting A-law payload to the
// reserved Feeder's destination. It owns cacheA/cacheB exclusively; no
// other goroutine ever reads or writes them.
func (r *Router) forwardVoice(kind Kind, feeder *Feeder, sub *bus.Subscription, stop chan struct{}) {
	var cacheA, cacheB []byte
	for {
		select {
		case <-stop:
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			vf, ok := msg.Event.Payload.(event.VoiceFrame)
			if !ok || len(msg.Voice) != 480 {
				continue
			}

			if kind != KindDuplex {
				r.writeUDP(feeder.Addr, msg.Voice)
				continue
			}

			switch vf.Originator {
			case event.OriginatorA:
				if cacheB != nil {
					r.writeUDP(feeder.Addr, interleave(msg.Voice, cacheB))
					cacheA, cacheB = nil, nil
				} else {
					cacheA = msg.Voice
				}
			case event.OriginatorB:
				if cacheA != nil {
					r.writeUDP(feeder.Addr, interleave(cacheA, msg.Voice))
					cacheA, cacheB = nil, nil
				}
				// A B-frame with no cached A-frame is dropped; alignment
				// re-establishes on the next A-frame.
			}
		}
	}
}

func (r *Router) writeUDP(addr *net.UDPAddr, payload []byte) {
	if _, err := r.egress.WriteToUDP(payload, addr); err != nil {
		r.log.Warn("feeder write failed", logger.Error(err), logger.String("addr", addr.String()))
	}
}

// interleave produces the sample-by-sample stereo buffer A[0],B[0],
// A[1],B[1],... for two equal-length A-law buffers.
func interleave(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		out[2*i] = a[i]
		out[2*i+1] = b[i]
	}
	return out
}

// playbackFilename is the deterministic 32-hex-character MD5 of the
// (call_db_id, call_id, session) triple, per the Media Router's filename
// hashing contract.
func playbackFilename(callDbID uint64, callID uint32, session string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("voice_%d_%d_%s", callDbID, callID, session)))
	return hex.EncodeToString(sum[:])
}

// StartPlayCall implements START_PLAY_CALL (v2: materialize a file next
// to an external static server). kind selects the table family: "I" for
// IndiCall, "G" for GroupCall.
func (r *Router) StartPlayCall(callDbID uint64, callID uint32, kind, format, session string) (string, bool, string) {
	var blob []byte
	switch kind {
	case "I":
		v, err := r.store.GetVoiceIndiCall(callDbID)
		if err != nil {
			return "", false, "no recording for that call"
		}
		blob = v.VoiceData
	case "G":
		v, err := r.store.GetVoiceGroupCall(callDbID)
		if err != nil {
			return "", false, "no recording for that call"
		}
		blob = v.VoiceData
	default:
		return "", false, "unknown call kind"
	}

	name := playbackFilename(callDbID, callID, session) + "." + format
	path := filepath.Join(r.cfg.VoicerecRepo, name)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		if r.alarm != nil {
			r.alarm.Raise("critical", fmt.Sprintf("failed to materialize playback file for call %d: %v", callID, err))
		}
		return "", false, "failed to materialize recording"
	}

	return fmt.Sprintf("%s/%s", r.cfg.VoicerecURL, name), true, ""
}

// StopPlayCall implements STOP_PLAY_CALL (v2: delete the materialized
// file).
func (r *Router) StopPlayCall(callDbID uint64, callID uint32, format, session string) (bool, string) {
	name := playbackFilename(callDbID, callID, session) + "." + format
	path := filepath.Join(r.cfg.VoicerecRepo, name)
	if err := os.Remove(path); err != nil {
		return false, "no materialized recording for that session"
	}
	return true, ""
}

// StartPlayCallV1 is the legacy playback path: it acquires a free
// Player, materializes the recording to a temp file, and launches the
// configured player child process bound to the Player's feeder.
func (r *Router) StartPlayCallV1(ctx context.Context, callDbID uint64, callID uint32, kind string) (bool, string) {
	player, ok := r.players.Acquire(callID, callDbID)
	if !ok {
		if r.metrics != nil {
			r.metrics.ResourceExhausted("player")
		}
		return false, "Player not available"
	}

	var blob []byte
	switch kind {
	case "I":
		v, err := r.store.GetVoiceIndiCall(callDbID)
		if err != nil {
			r.players.ReleaseByCall(callID)
			return false, "no recording for that call"
		}
		blob = v.VoiceData
	case "G":
		v, err := r.store.GetVoiceGroupCall(callDbID)
		if err != nil {
			r.players.ReleaseByCall(callID)
			return false, "no recording for that call"
		}
		blob = v.VoiceData
	default:
		r.players.ReleaseByCall(callID)
		return false, "unknown call kind"
	}

	tmpPath := filepath.Join(r.cfg.VoicerecRepo, playbackFilename(callDbID, callID, player.Name)+".wav")
	if err := os.WriteFile(tmpPath, blob, 0o644); err != nil {
		r.players.ReleaseByCall(callID)
		return false, "failed to materialize recording"
	}

	if err := player.Start(ctx, r.cfg.CommandTemplate, tmpPath); err != nil {
		if r.metrics != nil {
			r.metrics.ChildProcessError()
		}
		if r.alarm != nil {
			r.alarm.Raise("warning", fmt.Sprintf("player launch failed for call %d: %v", callID, err))
		}
		r.players.ReleaseByCall(callID)
		return false, "failed to launch player"
	}
	return true, ""
}

// StopPlayCallV1 signals the playing child to quit and frees its Player.
func (r *Router) StopPlayCallV1(callID uint32) (bool, string) {
	if !r.players.ReleaseByCall(callID) {
		return false, "no active playback for that call"
	}
	return true, ""
}

// CallHistory implements the supplemental GET_CALL_HISTORY operation.
func (r *Router) CallHistory(limit int) ([]database.IndiCall, []database.GroupCall, error) {
	indi, err := r.store.RecentIndiCalls(limit)
	if err != nil {
		return nil, nil, err
	}
	group, err := r.store.RecentGroupCalls(limit)
	if err != nil {
		return nil, nil, err
	}
	return indi, group, nil
}
