// Package persister implements the Persister: the worker that assembles
// complete voice calls from signaling and voice events taken off the
// Internal Bus and writes the resulting call and recording rows to
// storage.
package persister

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lmig/csserver/pkg/alarm"
	"github.com/lmig/csserver/pkg/bus"
	"github.com/lmig/csserver/pkg/call"
	"github.com/lmig/csserver/pkg/childproc"
	"github.com/lmig/csserver/pkg/database"
	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/logger"
	"github.com/lmig/csserver/pkg/metrics"
)

const (
	sampleRate    = 8000
	bitsPerSample = 8
)

// Store is the subset of pkg/database's Repository the Persister writes
// through. Narrowing to an interface here, rather than depending on
// *database.Repository directly, lets tests exercise the call-lifecycle
// and finalization logic against an in-memory fake instead of a live
// Postgres connection.
type Store interface {
	UpsertKeepAlive(ka *database.KeepAlive) error
	CreateIndiCall(c *database.IndiCall) error
	CloseIndiCall(dbID uint64, callEnd time.Time, seqNoEnd uint16, cause uint8) error
	InsertIndiCallStatusChange(row *database.IndiCallStatusChange) error
	InsertIndiCallPtt(row *database.IndiCallPtt) error
	CreateGroupCall(c *database.GroupCall) error
	CloseGroupCall(dbID uint64, callEnd time.Time, seqNoEnd uint16, cause uint8) error
	InsertGroupCallStatusChange(row *database.GroupCallStatusChange) error
	InsertGroupCallPtt(row *database.GroupCallPtt) error
	CreateVoiceIndiCall(v *database.VoiceIndiCall) error
	CreateVoiceGroupCall(v *database.VoiceGroupCall) error
	InsertSDSStatus(row *database.SDSStatus) error
	InsertSDSData(row *database.SDSData) error
}

// Config configures the Persister worker.
type Config struct {
	CallInactivityPeriod        time.Duration
	MaintenanceFrequency        time.Duration
	Mp3Mode                     bool
	Mp3ConverterCommandTemplate string
	GenerateWavFiles            bool
	WorkPath                    string
}

// Persister subscribes to every signaling topic and to voice for any
// in-progress call, tracks call lifecycle via pkg/call, and writes call
// and recording rows via pkg/database.
type Persister struct {
	cfg     Config
	bus     *bus.Bus
	repo    Store
	calls   *call.Manager
	metrics *metrics.Collector
	alarm   *alarm.Collaborator
	log     *logger.Logger
}

// New creates a Persister.
func New(cfg Config, b *bus.Bus, repo Store, m *metrics.Collector, al *alarm.Collaborator, log *logger.Logger) *Persister {
	return &Persister{
		cfg:     cfg,
		bus:     b,
		repo:    repo,
		calls:   call.NewManager(),
		metrics: m,
		alarm:   al,
		log:     log.WithComponent("persister"),
	}
}

// Run drives the Persister's event loop until ctx is canceled: signaling
// events, voice frames, and a periodic maintenance tick that finalizes
// calls that have gone quiet without a release record.
func (p *Persister) Run(ctx context.Context) error {
	sigSub := p.bus.Subscribe("S", 256)
	defer sigSub.Close()
	voiceSub := p.bus.Subscribe("V", 1024)
	defer voiceSub.Close()

	ticker := time.NewTicker(p.cfg.MaintenanceFrequency)
	defer ticker.Stop()

	p.log.Info("persister started",
		logger.String("call_inactivity_period", p.cfg.CallInactivityPeriod.String()),
		logger.String("maintenance_frequency", p.cfg.MaintenanceFrequency.String()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sigSub.Messages():
			if !ok {
				return fmt.Errorf("persister: signaling subscription closed")
			}
			p.handleSignaling(ctx, msg)
		case msg, ok := <-voiceSub.Messages():
			if !ok {
				return fmt.Errorf("persister: voice subscription closed")
			}
			p.handleVoice(msg)
		case now := <-ticker.C:
			p.runMaintenance(ctx, now)
		}
	}
}

func (p *Persister) handleVoice(msg bus.Message) {
	vf, ok := msg.Event.Payload.(event.VoiceFrame)
	if !ok {
		return
	}
	if !p.calls.Voice(vf.CallID, vf.Originator, msg.Voice) {
		p.metrics.ProtocolError()
		p.log.Debug("voice frame for unknown call id, dropped", logger.Uint32("call_id", vf.CallID))
	}
}

func (p *Persister) handleSignaling(ctx context.Context, msg bus.Message) {
	switch ev := msg.Event.Payload.(type) {
	case event.KeepAlive:
		p.onKeepAlive(ev)
	case event.DuplexCallChange:
		p.onIndiCallChange(call.FamilyDuplex, 0, ev.CallID, ev.Action, ev.Timeout, msg.ReceivedAt, ev.AParty, ev.BParty)
	case event.DuplexCallRelease:
		p.onIndiCallRelease(ctx, ev.CallID, ev.ReleaseCause, msg.ReceivedAt)
	case event.SimplexCallStartChange:
		p.onIndiCallChange(call.FamilySimplex, 1, ev.CallID, ev.Action, ev.Timeout, msg.ReceivedAt, ev.AParty, ev.BParty)
	case event.SimplexCallPttChange:
		p.onIndiCallPtt(ev.CallID, uint8(ev.TalkingParty), msg.ReceivedAt)
	case event.SimplexCallRelease:
		p.onIndiCallRelease(ctx, ev.CallID, ev.ReleaseCause, msg.ReceivedAt)
	case event.GroupCallStartChange:
		p.onGroupCallChange(ev.CallID, ev.Action, ev.Timeout, msg.ReceivedAt, ev.GroupParty)
	case event.GroupCallPttActive:
		p.onGroupCallPtt(ev.CallID, ev.TalkingParty.SSI, msg.ReceivedAt)
	case event.GroupCallPttIdle:
		p.onGroupCallPtt(ev.CallID, 0, msg.ReceivedAt)
	case event.GroupCallRelease:
		p.onGroupCallRelease(ctx, ev.CallID, ev.ReleaseCause, msg.ReceivedAt)
	case event.StatusSDS:
		p.onStatusSDS(ev, msg.ReceivedAt)
	case event.TextSDS:
		p.onTextSDS(ev, msg.ReceivedAt)
	}
}

func (p *Persister) onKeepAlive(ev event.KeepAlive) {
	row := &database.KeepAlive{
		LogServerNo:    ev.ServerID,
		LastHeartbeat:  time.Now(),
		Timeout:        ev.Timeout,
		SwVer:          ev.SwVersion,
		SwVerString:    ev.SwVersionStr,
		LogServerDescr: ev.ServerDescr,
	}
	if err := p.repo.UpsertKeepAlive(row); err != nil {
		p.onStorageError("UpsertKeepAlive", err)
	}
}

// onIndiCallChange handles both Duplex and Simplex call-start-change
// events — they carry identical fields and land in the same table,
// distinguished only by simplexDuplex.
func (p *Persister) onIndiCallChange(family call.Family, simplexDuplex uint8, callID uint32, action event.Action, timeout uint32, now time.Time, aParty, bParty event.PartyIdentity) {
	_, seq := p.calls.StartOrUpdate(family, callID, timeout, now, aParty, bParty, event.PartyIdentity{})

	if action == event.ActionNewCallSetup && seq == 1 {
		row := &database.IndiCall{
			CallID:        callID,
			Timeout:       timeout,
			CallBegin:     now,
			SeqNoBegin:    seq,
			CallingSSI:    aParty.SSI,
			CallingMNC:    aParty.MNC,
			CallingMCC:    aParty.MCC,
			CallingESN:    aParty.Number,
			CallingDescr:  aParty.Description,
			CalledSSI:     bParty.SSI,
			CalledMNC:     bParty.MNC,
			CalledMCC:     bParty.MCC,
			CalledESN:     bParty.Number,
			CalledDescr:   bParty.Description,
			SimplexDuplex: simplexDuplex,
		}
		if err := p.repo.CreateIndiCall(row); err != nil {
			p.onStorageError("CreateIndiCall", err)
			return
		}
		p.calls.SetDbID(callID, row.DbID)
		p.metrics.CallStarted(string(family))
		return
	}

	row := &database.IndiCallStatusChange{
		CallID:     callID,
		SeqNo:      seq,
		ReceivedAt: now,
		ActionID:   uint8(action),
		Timeout:    timeout,
	}
	if err := p.repo.InsertIndiCallStatusChange(row); err != nil {
		p.onStorageError("InsertIndiCallStatusChange", err)
	}
}

func (p *Persister) onIndiCallPtt(callID uint32, talkingParty uint8, now time.Time) {
	seq, ok := p.calls.Ptt(callID, now)
	if !ok {
		p.metrics.ProtocolError()
		p.log.Debug("PTT for unknown individual call, dropped", logger.Uint32("call_id", callID))
		return
	}
	row := &database.IndiCallPtt{CallID: callID, SeqNo: seq, ReceivedAt: now, TalkingParty: talkingParty}
	if err := p.repo.InsertIndiCallPtt(row); err != nil {
		p.onStorageError("InsertIndiCallPtt", err)
	}
}

func (p *Persister) onIndiCallRelease(ctx context.Context, callID uint32, cause event.ReleaseCause, now time.Time) {
	c, ok := p.calls.Release(callID)
	if !ok {
		p.metrics.ProtocolError()
		p.log.Debug("release for unknown individual call, dropped", logger.Uint32("call_id", callID))
		return
	}
	p.metrics.CallEnded(string(c.Family))

	if err := p.repo.CloseIndiCall(c.DbID, now, c.SeqNo, uint8(cause)); err != nil {
		p.onStorageError("CloseIndiCall", err)
	}
	p.finalizeIndiVoice(ctx, c, now)
}

func (p *Persister) onGroupCallChange(callID uint32, action event.Action, timeout uint32, now time.Time, groupParty event.PartyIdentity) {
	_, seq := p.calls.StartOrUpdate(call.FamilyGroup, callID, timeout, now, event.PartyIdentity{}, event.PartyIdentity{}, groupParty)

	if action == event.ActionNewCallSetup && seq == 1 {
		row := &database.GroupCall{
			CallID:     callID,
			Timeout:    timeout,
			CallBegin:  now,
			SeqNoBegin: seq,
			GroupSSI:   groupParty.SSI,
			GroupMNC:   groupParty.MNC,
			GroupMCC:   groupParty.MCC,
			GroupESN:   groupParty.Number,
			GroupDescr: groupParty.Description,
		}
		if err := p.repo.CreateGroupCall(row); err != nil {
			p.onStorageError("CreateGroupCall", err)
			return
		}
		p.calls.SetDbID(callID, row.DbID)
		p.metrics.CallStarted(string(call.FamilyGroup))
		return
	}

	row := &database.GroupCallStatusChange{CallID: callID, SeqNo: seq, ReceivedAt: now, ActionID: uint8(action), Timeout: timeout}
	if err := p.repo.InsertGroupCallStatusChange(row); err != nil {
		p.onStorageError("InsertGroupCallStatusChange", err)
	}
}

func (p *Persister) onGroupCallPtt(callID uint32, talkingSSI uint32, now time.Time) {
	seq, ok := p.calls.Ptt(callID, now)
	if !ok {
		p.metrics.ProtocolError()
		p.log.Debug("PTT for unknown group call, dropped", logger.Uint32("call_id", callID))
		return
	}
	row := &database.GroupCallPtt{CallID: callID, SeqNo: seq, ReceivedAt: now, TalkingParty: talkingSSI}
	if err := p.repo.InsertGroupCallPtt(row); err != nil {
		p.onStorageError("InsertGroupCallPtt", err)
	}
}

func (p *Persister) onGroupCallRelease(ctx context.Context, callID uint32, cause event.ReleaseCause, now time.Time) {
	c, ok := p.calls.Release(callID)
	if !ok {
		p.metrics.ProtocolError()
		p.log.Debug("release for unknown group call, dropped", logger.Uint32("call_id", callID))
		return
	}
	p.metrics.CallEnded(string(c.Family))

	if err := p.repo.CloseGroupCall(c.DbID, now, c.SeqNo, uint8(cause)); err != nil {
		p.onStorageError("CloseGroupCall", err)
	}
	p.finalizeGroupVoice(ctx, c, now)
}

func (p *Persister) onStatusSDS(ev event.StatusSDS, now time.Time) {
	row := &database.SDSStatus{
		ReceivedAt:          now,
		CallingSSI:          ev.AParty.SSI,
		CallingMNC:          ev.AParty.MNC,
		CallingMCC:          ev.AParty.MCC,
		CalledSSI:           ev.BParty.SSI,
		CalledMNC:           ev.BParty.MNC,
		CalledMCC:           ev.BParty.MCC,
		PrecodedStatusValue: ev.PrecodedStatusValue,
	}
	if err := p.repo.InsertSDSStatus(row); err != nil {
		p.onStorageError("InsertSDSStatus", err)
	}
}

func (p *Persister) onTextSDS(ev event.TextSDS, now time.Time) {
	row := &database.SDSData{
		ReceivedAt:     now,
		CallingSSI:     ev.AParty.SSI,
		CallingMNC:     ev.AParty.MNC,
		CallingMCC:     ev.AParty.MCC,
		CalledSSI:      ev.BParty.SSI,
		CalledMNC:      ev.BParty.MNC,
		CalledMCC:      ev.BParty.MCC,
		UserDataLength: uint32(len(ev.Payload)),
		UserData:       ev.Payload,
	}
	if err := p.repo.InsertSDSData(row); err != nil {
		p.onStorageError("InsertSDSData", err)
	}
}

// runMaintenance finalizes calls that have gone quiet for longer than
// CallInactivityPeriod, treating them as an implicit release with an
// Unknown cause.
func (p *Persister) runMaintenance(ctx context.Context, now time.Time) {
	for _, c := range p.calls.SweepInactive(now, p.cfg.CallInactivityPeriod) {
		p.metrics.CallEnded(string(c.Family))
		p.log.Warn("call finalized by inactivity", logger.Uint32("call_id", c.CallID), logger.String("family", string(c.Family)))

		switch c.Family {
		case call.FamilyGroup:
			if err := p.repo.CloseGroupCall(c.DbID, now, c.SeqNo, uint8(event.CauseUnknown)); err != nil {
				p.onStorageError("CloseGroupCall", err)
			}
			p.finalizeGroupVoice(ctx, c, now)
		default:
			if err := p.repo.CloseIndiCall(c.DbID, now, c.SeqNo, uint8(event.CauseUnknown)); err != nil {
				p.onStorageError("CloseIndiCall", err)
			}
			p.finalizeIndiVoice(ctx, c, now)
		}
	}
}

func (p *Persister) finalizeIndiVoice(ctx context.Context, c *call.Call, callEnd time.Time) {
	blob, dataLen, duration, ok := p.materializeVoice(ctx, c, callEnd)
	if !ok {
		return
	}
	row := &database.VoiceIndiCall{
		DbID:         c.DbID,
		CallBegin:    c.CallBegin,
		CallEnd:      callEnd,
		VoiceDataLen: dataLen,
		VoiceData:    blob,
		Duration:     database.Interval(duration),
	}
	if err := p.repo.CreateVoiceIndiCall(row); err != nil {
		p.onStorageError("CreateVoiceIndiCall", err)
	}
}

func (p *Persister) finalizeGroupVoice(ctx context.Context, c *call.Call, callEnd time.Time) {
	blob, dataLen, duration, ok := p.materializeVoice(ctx, c, callEnd)
	if !ok {
		return
	}
	row := &database.VoiceGroupCall{
		DbID:         c.DbID,
		CallBegin:    c.CallBegin,
		CallEnd:      callEnd,
		VoiceDataLen: dataLen,
		VoiceData:    blob,
		Duration:     database.Interval(duration),
	}
	if err := p.repo.CreateVoiceGroupCall(row); err != nil {
		p.onStorageError("CreateVoiceGroupCall", err)
	}
}

// materializeVoice assembles the WAV blob for a closed call, optionally
// encodes it to MP3 via the configured child process, and optionally
// writes a copy to the working directory. ok is false if MP3 encoding
// failed — per the error design, the recording is then left unsaved.
func (p *Persister) materializeVoice(ctx context.Context, c *call.Call, callEnd time.Time) (blob []byte, dataLen int64, duration time.Duration, ok bool) {
	channels := 1
	if c.Family == call.FamilyDuplex {
		channels = 2
	}
	wav := c.Voice()
	dataLen = int64(c.VoiceDataLen())
	duration = time.Duration(float64(dataLen)/float64(sampleRate*channels)*float64(time.Second))

	if p.cfg.GenerateWavFiles {
		p.writeWorkFile(fmt.Sprintf("voice_%d_%d.wav", c.DbID, c.CallID), wav)
	}

	if !p.cfg.Mp3Mode {
		return wav, dataLen, duration, true
	}

	mp3, err := p.encodeMP3(ctx, c, wav)
	if err != nil {
		p.metrics.ChildProcessError()
		p.alarm.Raise("warning", fmt.Sprintf("mp3 encode failed for call %d: %v", c.CallID, err))
		p.log.Error("mp3 encode failed, voice recording left unsaved", logger.Error(err), logger.Uint32("call_id", c.CallID))
		return nil, 0, 0, false
	}
	return mp3, dataLen, duration, true
}

// encodeMP3 writes wav to a temporary file, runs the configured encoder
// command template against it, and slurps the resulting MP3 file.
func (p *Persister) encodeMP3(ctx context.Context, c *call.Call, wav []byte) ([]byte, error) {
	inPath := filepath.Join(p.cfg.WorkPath, fmt.Sprintf("voice_%d_%d.mp3enc.wav.tmp", c.DbID, c.CallID))
	outPath := filepath.Join(p.cfg.WorkPath, fmt.Sprintf("voice_%d_%d.mp3", c.DbID, c.CallID))
	label := fmt.Sprintf("call_%d", c.CallID)

	if err := os.WriteFile(inPath, wav, 0o644); err != nil {
		return nil, fmt.Errorf("persister: failed to write encoder input: %w", err)
	}
	defer os.Remove(inPath)

	command := fmt.Sprintf(p.cfg.Mp3ConverterCommandTemplate, inPath, outPath, label)
	sup, err := childproc.Start(ctx, "sh", "-c", command)
	if err != nil {
		return nil, fmt.Errorf("persister: failed to start mp3 encoder: %w", err)
	}

	select {
	case <-sup.Done():
	case <-ctx.Done():
		sup.Stop()
		return nil, ctx.Err()
	}
	if err := sup.Err(); err != nil {
		return nil, fmt.Errorf("persister: mp3 encoder exited with error: %w", err)
	}
	defer os.Remove(outPath)

	mp3, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("persister: failed to read encoder output: %w", err)
	}
	return mp3, nil
}

func (p *Persister) writeWorkFile(name string, data []byte) {
	path := filepath.Join(p.cfg.WorkPath, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		p.log.Warn("failed to write generated wav file", logger.Error(err), logger.String("path", path))
	}
}

func (p *Persister) onStorageError(op string, err error) {
	p.metrics.StorageError()
	p.alarm.Raise("critical", fmt.Sprintf("storage error in %s: %v", op, err))
	p.log.Error("storage error", logger.String("op", op), logger.Error(err))
}
