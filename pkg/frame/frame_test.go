package frame

import (
	"testing"
	"time"

	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/wire"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestParse_SingleKeepAliveRecord(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := wire.KeepAliveRecord{
		Header:      wire.CommonHeader{Signature: wire.SignatureSignaling, Sequence: 1, APIVersion: 1, MessageID: wire.MsgKeepAlive},
		LogServerNo: 7,
		Timeout:     30,
	}
	buf := rec.Encode()

	events, consumed := Parse(buf, fixedNow(now))
	if consumed != len(buf) {
		t.Fatalf("expected to consume %d bytes, got %d", len(buf), consumed)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != event.KindKeepAlive {
		t.Errorf("expected KindKeepAlive, got %s", ev.Kind)
	}
	if !ev.ReceivedAt.Equal(now) {
		t.Errorf("expected receivedAt %v, got %v", now, ev.ReceivedAt)
	}
	ka := ev.Payload.(event.KeepAlive)
	if ka.ServerID != 7 || ka.Timeout != 30 {
		t.Errorf("unexpected payload: %+v", ka)
	}
}

func TestParse_JunkBytesResynchronize(t *testing.T) {
	rec := wire.GroupCallPttIdleRecord{
		Header: wire.CommonHeader{Signature: wire.SignatureSignaling, MessageID: wire.MsgGroupCallPttIdle},
		CallID: 5,
	}
	junk := []byte{0xFF, 0xFE, 0xFD}
	buf := append(junk, rec.Encode()...)

	events, consumed := Parse(buf, fixedNow(time.Now()))
	if consumed != len(buf) {
		t.Fatalf("expected to consume all %d bytes, got %d", len(buf), consumed)
	}
	if len(events) != 1 || events[0].Kind != event.KindGroupCallPttIdle {
		t.Fatalf("expected one GroupCallPttIdle event, got %+v", events)
	}
}

func TestParse_UnknownMessageIDResynchronizesOneByteAtATime(t *testing.T) {
	header := wire.CommonHeader{Signature: wire.SignatureSignaling, MessageID: 200}
	buf := header.Encode()
	buf = append(buf, make([]byte, 40)...) // plenty of trailing junk

	events, consumed := Parse(buf, fixedNow(time.Now()))
	if len(events) != 0 {
		t.Fatalf("expected no events for an unknown message id, got %+v", events)
	}
	// Every byte of the unknown-sized record is junk from the parser's
	// point of view, so it is consumed one byte at a time until fewer than
	// 4 bytes remain; those last 3 bytes stay buffered for the next call.
	if consumed != len(buf)-3 {
		t.Fatalf("expected to consume %d junk bytes, got %d", len(buf)-3, consumed)
	}
}

func TestParse_IncompleteRecordLeavesBytesUnconsumed(t *testing.T) {
	rec := wire.KeepAliveRecord{Header: wire.CommonHeader{Signature: wire.SignatureSignaling, MessageID: wire.MsgKeepAlive}}
	full := rec.Encode()
	partial := full[:len(full)-5]

	events, consumed := Parse(partial, fixedNow(time.Now()))
	if len(events) != 0 {
		t.Fatalf("expected no events from a truncated record, got %+v", events)
	}
	if consumed != 0 {
		t.Fatalf("expected 0 bytes consumed while awaiting more data, got %d", consumed)
	}
}

func TestParse_VoiceFrameOnlyEmittedForG711Alaw(t *testing.T) {
	g711 := wire.VoiceRecord{Signature: wire.SignatureVoice, CallID: 42, Payload1Kind: wire.KindG711Alaw}
	other := wire.VoiceRecord{Signature: wire.SignatureVoice, CallID: 43, Payload1Kind: wire.KindShortA}

	buf := append(g711.Encode(), other.Encode()...)

	events, consumed := Parse(buf, fixedNow(time.Now()))
	if consumed != len(buf) {
		t.Fatalf("expected both fixed-size voice records consumed (%d), got %d", len(buf), consumed)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 VoiceFrame event (kind 7 only), got %d", len(events))
	}
	vf := events[0].Payload.(event.VoiceFrame)
	if vf.CallID != 42 {
		t.Errorf("expected the G711 record's call id 42, got %d", vf.CallID)
	}
}

func TestParse_RecordSplitAcrossCallsIsNotDropped(t *testing.T) {
	rec := wire.GroupCallReleaseRecord{Header: wire.CommonHeader{Signature: wire.SignatureSignaling, MessageID: wire.MsgGroupCallRelease}, CallID: 99}
	full := rec.Encode()
	firstHalf := full[:len(full)-3]

	events, consumed := Parse(firstHalf, fixedNow(time.Now()))
	if len(events) != 0 || consumed != 0 {
		t.Fatalf("expected the fragment to be held back entirely, got events=%+v consumed=%d", events, consumed)
	}

	// simulate compacting the unconsumed tail and appending the rest of
	// the datagram
	rest := firstHalf[consumed:]
	rest = append(rest, full[len(full)-3:]...)

	events, consumed = Parse(rest, fixedNow(time.Now()))
	if consumed != len(full) {
		t.Fatalf("expected to consume the now-complete record (%d bytes), got %d", len(full), consumed)
	}
	if len(events) != 1 || events[0].Kind != event.KindGroupCallRelease {
		t.Fatalf("expected one GroupCallRelease event, got %+v", events)
	}
}

func TestParse_MultipleRecordsInOneBuffer(t *testing.T) {
	ka := wire.KeepAliveRecord{Header: wire.CommonHeader{Signature: wire.SignatureSignaling, MessageID: wire.MsgKeepAlive}, LogServerNo: 1}
	v := wire.VoiceRecord{Signature: wire.SignatureVoice, CallID: 1, Payload1Kind: wire.KindG711Alaw}
	rel := wire.GroupCallReleaseRecord{Header: wire.CommonHeader{Signature: wire.SignatureSignaling, MessageID: wire.MsgGroupCallRelease}, CallID: 1}

	buf := append(ka.Encode(), v.Encode()...)
	buf = append(buf, rel.Encode()...)

	events, consumed := Parse(buf, fixedNow(time.Now()))
	if consumed != len(buf) {
		t.Fatalf("expected to consume all %d bytes, got %d", len(buf), consumed)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != event.KindKeepAlive || events[1].Kind != event.KindVoiceFrame || events[2].Kind != event.KindGroupCallRelease {
		t.Fatalf("unexpected event order: %+v", events)
	}
}
