// Package wire implements the ingress byte-level wire format: the common
// signaling header, party identity encoding, the per-message-id signaling
// records, and the voice record. Record sizes are fixed per message id and
// are looked up from SignalingRecordSize, never discovered by scanning.
package wire

// Record-family signatures (little-endian uint32 at record start).
const (
	SignatureSignaling uint32 = 0x31474F4C // "S" family
	SignatureVoice     uint32 = 0x32474F4C // "V" family
)

// CommonHeaderSize is the size in bytes of the 8-byte signaling header:
// signature(4) + sequence(2) + api version(1) + message id(1).
const CommonHeaderSize = 8

// Signaling message ids, matching the on-wire LogApiMsgType enum.
const (
	MsgKeepAlive              uint8 = 0x01
	MsgDuplexCallChange       uint8 = 0x10
	MsgDuplexCallRelease      uint8 = 0x19
	MsgSimplexCallStartChange uint8 = 0x20
	MsgSimplexCallPttChange   uint8 = 0x21
	MsgSimplexCallRelease     uint8 = 0x29
	MsgGroupCallStartChange   uint8 = 0x30
	MsgGroupCallPttActive     uint8 = 0x31
	MsgGroupCallPttIdle       uint8 = 0x32
	MsgGroupCallRelease       uint8 = 0x39
	MsgStatusSDS              uint8 = 0x40
	MsgTextSDS                uint8 = 0x41
)

// PartyIdentitySize is the fixed width of one TSI+number+description party
// identity block: TSI(8) + Number(8) + Descr(20).
const PartyIdentitySize = 36

// TextSDSUserDataMaxLen bounds the fixed-width user-data buffer inside a
// TextSDS record.
const TextSDSUserDataMaxLen = 140

// SignalingRecordSize maps a message id to its total on-wire record size
// including the 8-byte common header. The Frame Parser derives a record's
// length from this table; an id absent from the table is unknown and the
// parser resynchronizes by one byte rather than guess.
var SignalingRecordSize = map[uint8]int{
	MsgKeepAlive:              CommonHeaderSize + 4 + 4 + 4 + 32 + 32,
	MsgDuplexCallChange:       CommonHeaderSize + 4 + 1 + 4 + PartyIdentitySize*2,
	MsgDuplexCallRelease:      CommonHeaderSize + 4 + 1,
	MsgSimplexCallStartChange: CommonHeaderSize + 4 + 1 + 4 + PartyIdentitySize*2,
	MsgSimplexCallPttChange:   CommonHeaderSize + 4 + 1,
	MsgSimplexCallRelease:     CommonHeaderSize + 4 + 1,
	MsgGroupCallStartChange:   CommonHeaderSize + 4 + 1 + 4 + PartyIdentitySize,
	MsgGroupCallPttActive:     CommonHeaderSize + 4 + PartyIdentitySize,
	MsgGroupCallPttIdle:       CommonHeaderSize + 4,
	MsgGroupCallRelease:       CommonHeaderSize + 4 + 1,
	MsgStatusSDS:              CommonHeaderSize + PartyIdentitySize*2 + 4,
	MsgTextSDS:                CommonHeaderSize + PartyIdentitySize*2 + 2 + TextSDSUserDataMaxLen,
}

// VoicePrefixSize is the fixed 20-byte prefix preceding voice payloads.
const VoicePrefixSize = 20

// VoicePayload1Kind values. Only KindG711Alaw (7) is processed; the rest
// are declared for documentation and are dropped from routing/persistence.
const (
	KindNone       uint8 = 0
	KindShortA     uint8 = 1
	KindShortB     uint8 = 2
	KindMedium     uint8 = 3
	KindShortC     uint8 = 4
	KindTiny       uint8 = 5
	KindG711Alaw   uint8 = 7
	G711AlawLength       = 480
)

// payload1KindLength documents the declared length per payload-1 kind from
// the on-wire contract. Framing does not consult this table: a voice record
// always occupies VoicePrefixSize+G711AlawLength bytes regardless of the
// declared kind, per the ingress wire format contract.
var payload1KindLength = map[uint8]int{
	KindNone:     0,
	KindShortA:   16,
	KindShortB:   18,
	KindMedium:   27,
	KindShortC:   18,
	KindTiny:     9,
	KindG711Alaw: G711AlawLength,
}

// Payload1KindLength returns the declared length for a payload-1 kind, and
// whether the kind is recognized.
func Payload1KindLength(kind uint8) (int, bool) {
	n, ok := payload1KindLength[kind]
	return n, ok
}

// VoiceRecordSize is the total size of a voice record as actually framed:
// the 20-byte prefix plus the fixed 480-byte A-law payload slot. Non-G711
// kinds still occupy this many bytes on the wire; they are skipped rather
// than emitted.
const VoiceRecordSize = VoicePrefixSize + G711AlawLength

// Stream originators for a voice record and simplex talking-party state.
const (
	OriginatorGroup uint8 = 0
	OriginatorA     uint8 = 1
	OriginatorB     uint8 = 2
)

// Call-change actions shared by duplex/simplex/group signaling.
const (
	ActionKeepAliveOnly       uint8 = 0
	ActionNewCallSetup        uint8 = 1
	ActionCallThroughConnect  uint8 = 2
	ActionChangeOfAOrBUser    uint8 = 3
)

// Release causes.
const (
	CauseUnknown  uint8 = 0
	CauseARelease uint8 = 1
	CauseBRelease uint8 = 2
)

// Simplex talking-party states.
const (
	TalkingNone uint8 = 0
	TalkingA    uint8 = 1
	TalkingB    uint8 = 2
)
