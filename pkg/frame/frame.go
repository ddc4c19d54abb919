// Package frame implements the Frame Parser: a pure function that turns a
// rolling byte buffer of concatenated UDP payloads into typed events plus a
// byte-consumed count, tolerating junk bytes and datagram fragmentation.
package frame

import (
	"encoding/binary"
	"time"

	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/wire"
)

// Parse scans buf from the start and returns every event it can fully
// decode, along with the number of leading bytes consumed. The caller is
// responsible for compacting the unconsumed tail to the head of its
// buffer before the next call. now is injected so tests can control the
// reception timestamp; production callers pass time.Now.
func Parse(buf []byte, now func() time.Time) ([]event.Event, int) {
	var events []event.Event
	pos := 0

	for {
		remaining := buf[pos:]
		if len(remaining) < 4 {
			break
		}

		sig := binary.LittleEndian.Uint32(remaining[0:4])

		switch sig {
		case wire.SignatureSignaling:
			consumed, ev, ok := parseSignaling(remaining, now)
			if !ok {
				// not enough bytes yet for the full record; wait for more
				break
			}
			pos += consumed
			if ev != nil {
				events = append(events, *ev)
			}
			continue

		case wire.SignatureVoice:
			if len(remaining) < wire.VoiceRecordSize {
				break
			}
			rec, err := wire.ParseVoiceRecord(remaining[:wire.VoiceRecordSize])
			pos += wire.VoiceRecordSize
			if err == nil && rec.Payload1Kind == wire.KindG711Alaw {
				events = append(events, voiceFrameEvent(rec, now()))
			}
			continue

		default:
			pos++
			continue
		}

		// the two record-family cases above each either "continue" or fall
		// through here when they don't yet have enough buffered bytes.
		break
	}

	return events, pos
}

// parseSignaling attempts to decode one signaling record starting at the
// front of remaining. ok is false when the header or full record isn't
// buffered yet, in which case consumed and ev are meaningless. When the
// message id is unrecognized, it resynchronizes by exactly one byte
// (consumed=1, ev=nil, ok=true) per spec: unknown ids cannot be sized, so
// guessing a length is never attempted.
func parseSignaling(remaining []byte, now func() time.Time) (consumed int, ev *event.Event, ok bool) {
	if len(remaining) < wire.CommonHeaderSize {
		return 0, nil, false
	}
	header, err := wire.ParseCommonHeader(remaining)
	if err != nil {
		return 1, nil, true
	}

	size, known := wire.SignalingRecordSize[header.MessageID]
	if !known {
		return 1, nil, true
	}
	if len(remaining) < size {
		return 0, nil, false
	}

	decoded, derr := decodeSignalingRecord(header.MessageID, remaining[:size], now())
	if derr != nil {
		// malformed record of a known size: still consume it, emit nothing
		return size, nil, true
	}
	return size, decoded, true
}
