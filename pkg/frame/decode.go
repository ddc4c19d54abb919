package frame

import (
	"fmt"
	"strings"
	"time"

	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/wire"
)

func toPartyIdentity(p wire.PartyIdentity) event.PartyIdentity {
	return event.PartyIdentity{
		MCC:         p.MCC,
		MNC:         p.MNC,
		SSI:         p.SSI,
		Number:      p.Num.String(),
		Description: p.Description(),
	}
}

// decodeSignalingRecord dispatches on message id to the matching wire
// record parser and converts it into its event.Event variant.
func decodeSignalingRecord(msgID uint8, data []byte, receivedAt time.Time) (*event.Event, error) {
	switch msgID {
	case wire.MsgKeepAlive:
		r, err := wire.ParseKeepAliveRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindKeepAlive,
			ReceivedAt: receivedAt,
			Payload: event.KeepAlive{
				ServerID:     r.LogServerNo,
				Timeout:      r.Timeout,
				SwVersion:    r.SwVer,
				SwVersionStr: trimNUL(r.SwVerString[:]),
				ServerDescr:  trimNUL(r.LogServerDescr[:]),
			},
		}, nil

	case wire.MsgDuplexCallChange:
		r, err := wire.ParseDuplexCallChangeRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindDuplexCallChange,
			ReceivedAt: receivedAt,
			Payload: event.DuplexCallChange{
				CallID:  r.CallID,
				Action:  event.Action(r.Action),
				Timeout: r.Timeout,
				AParty:  toPartyIdentity(r.AParty),
				BParty:  toPartyIdentity(r.BParty),
			},
		}, nil

	case wire.MsgDuplexCallRelease:
		r, err := wire.ParseDuplexCallReleaseRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindDuplexCallRelease,
			ReceivedAt: receivedAt,
			Payload: event.DuplexCallRelease{
				CallID:       r.CallID,
				ReleaseCause: event.ReleaseCause(r.ReleaseCause),
			},
		}, nil

	case wire.MsgSimplexCallStartChange:
		r, err := wire.ParseSimplexCallStartChangeRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindSimplexCallStartChange,
			ReceivedAt: receivedAt,
			Payload: event.SimplexCallStartChange{
				CallID:  r.CallID,
				Action:  event.Action(r.Action),
				Timeout: r.Timeout,
				AParty:  toPartyIdentity(r.AParty),
				BParty:  toPartyIdentity(r.BParty),
			},
		}, nil

	case wire.MsgSimplexCallPttChange:
		r, err := wire.ParseSimplexCallPttChangeRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindSimplexCallPttChange,
			ReceivedAt: receivedAt,
			Payload: event.SimplexCallPttChange{
				CallID:       r.CallID,
				TalkingParty: event.TalkingParty(r.TalkingParty),
			},
		}, nil

	case wire.MsgSimplexCallRelease:
		r, err := wire.ParseSimplexCallReleaseRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindSimplexCallRelease,
			ReceivedAt: receivedAt,
			Payload: event.SimplexCallRelease{
				CallID:       r.CallID,
				ReleaseCause: event.ReleaseCause(r.ReleaseCause),
			},
		}, nil

	case wire.MsgGroupCallStartChange:
		r, err := wire.ParseGroupCallStartChangeRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindGroupCallStartChange,
			ReceivedAt: receivedAt,
			Payload: event.GroupCallStartChange{
				CallID:     r.CallID,
				Action:     event.Action(r.Action),
				Timeout:    r.Timeout,
				GroupParty: toPartyIdentity(r.GroupParty),
			},
		}, nil

	case wire.MsgGroupCallPttActive:
		r, err := wire.ParseGroupCallPttActiveRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindGroupCallPttActive,
			ReceivedAt: receivedAt,
			Payload: event.GroupCallPttActive{
				CallID:       r.CallID,
				TalkingParty: toPartyIdentity(r.TalkingParty),
			},
		}, nil

	case wire.MsgGroupCallPttIdle:
		r, err := wire.ParseGroupCallPttIdleRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindGroupCallPttIdle,
			ReceivedAt: receivedAt,
			Payload:    event.GroupCallPttIdle{CallID: r.CallID},
		}, nil

	case wire.MsgGroupCallRelease:
		r, err := wire.ParseGroupCallReleaseRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindGroupCallRelease,
			ReceivedAt: receivedAt,
			Payload: event.GroupCallRelease{
				CallID:       r.CallID,
				ReleaseCause: event.ReleaseCause(r.ReleaseCause),
			},
		}, nil

	case wire.MsgStatusSDS:
		r, err := wire.ParseStatusSDSRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindStatusSDS,
			ReceivedAt: receivedAt,
			Payload: event.StatusSDS{
				AParty:              toPartyIdentity(r.AParty),
				BParty:              toPartyIdentity(r.BParty),
				PrecodedStatusValue: r.PrecodedStatusValue,
			},
		}, nil

	case wire.MsgTextSDS:
		r, err := wire.ParseTextSDSRecord(data)
		if err != nil {
			return nil, err
		}
		return &event.Event{
			Kind:       event.KindTextSDS,
			ReceivedAt: receivedAt,
			Payload: event.TextSDS{
				AParty:  toPartyIdentity(r.AParty),
				BParty:  toPartyIdentity(r.BParty),
				Payload: r.Text(),
			},
		}, nil

	default:
		return nil, fmt.Errorf("frame: unhandled message id %d", msgID)
	}
}

func voiceFrameEvent(rec wire.VoiceRecord, receivedAt time.Time) event.Event {
	payload1 := make([]byte, len(rec.Payload1))
	copy(payload1, rec.Payload1[:])

	return event.Event{
		Kind:       event.KindVoiceFrame,
		ReceivedAt: receivedAt,
		Payload: event.VoiceFrame{
			CallID:         rec.CallID,
			Originator:     event.StreamOriginator(rec.StreamOriginator),
			PacketSequence: rec.PacketSequence,
			Payload1Kind:   event.PayloadKind(rec.Payload1Kind),
			Payload1:       payload1,
		},
	}
}

func trimNUL(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
