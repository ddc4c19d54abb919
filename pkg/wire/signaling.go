package wire

import (
	"encoding/binary"
	"fmt"
)

// KeepAliveRecord reports a log server's liveness.
type KeepAliveRecord struct {
	Header         CommonHeader
	LogServerNo    uint32
	Timeout        uint32
	SwVer          uint32
	SwVerString    [32]byte
	LogServerDescr [32]byte
}

// ParseKeepAliveRecord parses a record of SignalingRecordSize[MsgKeepAlive] bytes.
func ParseKeepAliveRecord(data []byte) (KeepAliveRecord, error) {
	want := SignalingRecordSize[MsgKeepAlive]
	if len(data) < want {
		return KeepAliveRecord{}, fmt.Errorf("wire: short KeepAlive record: %d < %d", len(data), want)
	}
	h, err := ParseCommonHeader(data)
	if err != nil {
		return KeepAliveRecord{}, err
	}
	var r KeepAliveRecord
	r.Header = h
	off := CommonHeaderSize
	r.LogServerNo = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	r.Timeout = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	r.SwVer = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	copy(r.SwVerString[:], data[off:off+32])
	off += 32
	copy(r.LogServerDescr[:], data[off:off+32])
	return r, nil
}

// Encode writes the record back to SignalingRecordSize[MsgKeepAlive] bytes.
func (r KeepAliveRecord) Encode() []byte {
	data := make([]byte, SignalingRecordSize[MsgKeepAlive])
	copy(data[0:CommonHeaderSize], r.Header.Encode())
	off := CommonHeaderSize
	binary.LittleEndian.PutUint32(data[off:off+4], r.LogServerNo)
	off += 4
	binary.LittleEndian.PutUint32(data[off:off+4], r.Timeout)
	off += 4
	binary.LittleEndian.PutUint32(data[off:off+4], r.SwVer)
	off += 4
	copy(data[off:off+32], r.SwVerString[:])
	off += 32
	copy(data[off:off+32], r.LogServerDescr[:])
	return data
}

// DuplexCallChangeRecord reports a duplex call setup/keepalive/change event.
type DuplexCallChangeRecord struct {
	Header  CommonHeader
	CallID  uint32
	Action  uint8
	Timeout uint32
	AParty  PartyIdentity
	BParty  PartyIdentity
}

func ParseDuplexCallChangeRecord(data []byte) (DuplexCallChangeRecord, error) {
	want := SignalingRecordSize[MsgDuplexCallChange]
	if len(data) < want {
		return DuplexCallChangeRecord{}, fmt.Errorf("wire: short DuplexCallChange record: %d < %d", len(data), want)
	}
	h, err := ParseCommonHeader(data)
	if err != nil {
		return DuplexCallChangeRecord{}, err
	}
	var r DuplexCallChangeRecord
	r.Header = h
	off := CommonHeaderSize
	r.CallID = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	r.Action = data[off]
	off++
	r.Timeout = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	aParty, err := ParsePartyIdentity(data[off : off+PartyIdentitySize])
	if err != nil {
		return DuplexCallChangeRecord{}, err
	}
	r.AParty = aParty
	off += PartyIdentitySize
	bParty, err := ParsePartyIdentity(data[off : off+PartyIdentitySize])
	if err != nil {
		return DuplexCallChangeRecord{}, err
	}
	r.BParty = bParty
	return r, nil
}

func (r DuplexCallChangeRecord) Encode() []byte {
	data := make([]byte, SignalingRecordSize[MsgDuplexCallChange])
	copy(data[0:CommonHeaderSize], r.Header.Encode())
	off := CommonHeaderSize
	binary.LittleEndian.PutUint32(data[off:off+4], r.CallID)
	off += 4
	data[off] = r.Action
	off++
	binary.LittleEndian.PutUint32(data[off:off+4], r.Timeout)
	off += 4
	copy(data[off:off+PartyIdentitySize], r.AParty.Encode())
	off += PartyIdentitySize
	copy(data[off:off+PartyIdentitySize], r.BParty.Encode())
	return data
}

// callReleaseRecord is the shared shape of DuplexCallRelease,
// SimplexCallRelease, and GroupCallRelease: header + call id + cause.
type callReleaseRecord struct {
	Header       CommonHeader
	CallID       uint32
	ReleaseCause uint8
}

func parseCallReleaseRecord(data []byte, msgID uint8) (callReleaseRecord, error) {
	want := SignalingRecordSize[msgID]
	if len(data) < want {
		return callReleaseRecord{}, fmt.Errorf("wire: short call release record: %d < %d", len(data), want)
	}
	h, err := ParseCommonHeader(data)
	if err != nil {
		return callReleaseRecord{}, err
	}
	off := CommonHeaderSize
	callID := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	cause := data[off]
	return callReleaseRecord{Header: h, CallID: callID, ReleaseCause: cause}, nil
}

func (r callReleaseRecord) encode(msgID uint8) []byte {
	data := make([]byte, SignalingRecordSize[msgID])
	copy(data[0:CommonHeaderSize], r.Header.Encode())
	off := CommonHeaderSize
	binary.LittleEndian.PutUint32(data[off:off+4], r.CallID)
	off += 4
	data[off] = r.ReleaseCause
	return data
}

// DuplexCallReleaseRecord reports the end of a duplex call.
type DuplexCallReleaseRecord callReleaseRecord

func ParseDuplexCallReleaseRecord(data []byte) (DuplexCallReleaseRecord, error) {
	r, err := parseCallReleaseRecord(data, MsgDuplexCallRelease)
	return DuplexCallReleaseRecord(r), err
}
func (r DuplexCallReleaseRecord) Encode() []byte { return callReleaseRecord(r).encode(MsgDuplexCallRelease) }

// SimplexCallStartChangeRecord mirrors DuplexCallChangeRecord for simplex calls.
type SimplexCallStartChangeRecord DuplexCallChangeRecord

func ParseSimplexCallStartChangeRecord(data []byte) (SimplexCallStartChangeRecord, error) {
	want := SignalingRecordSize[MsgSimplexCallStartChange]
	if len(data) < want {
		return SimplexCallStartChangeRecord{}, fmt.Errorf("wire: short SimplexCallStartChange record: %d < %d", len(data), want)
	}
	h, err := ParseCommonHeader(data)
	if err != nil {
		return SimplexCallStartChangeRecord{}, err
	}
	var r SimplexCallStartChangeRecord
	r.Header = h
	off := CommonHeaderSize
	r.CallID = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	r.Action = data[off]
	off++
	r.Timeout = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	aParty, err := ParsePartyIdentity(data[off : off+PartyIdentitySize])
	if err != nil {
		return SimplexCallStartChangeRecord{}, err
	}
	r.AParty = aParty
	off += PartyIdentitySize
	bParty, err := ParsePartyIdentity(data[off : off+PartyIdentitySize])
	if err != nil {
		return SimplexCallStartChangeRecord{}, err
	}
	r.BParty = bParty
	return r, nil
}

func (r SimplexCallStartChangeRecord) Encode() []byte {
	return DuplexCallChangeRecord(r).Encode()
}

// SimplexCallPttChangeRecord reports which party is currently transmitting.
type SimplexCallPttChangeRecord struct {
	Header       CommonHeader
	CallID       uint32
	TalkingParty uint8
}

func ParseSimplexCallPttChangeRecord(data []byte) (SimplexCallPttChangeRecord, error) {
	want := SignalingRecordSize[MsgSimplexCallPttChange]
	if len(data) < want {
		return SimplexCallPttChangeRecord{}, fmt.Errorf("wire: short SimplexCallPttChange record: %d < %d", len(data), want)
	}
	h, err := ParseCommonHeader(data)
	if err != nil {
		return SimplexCallPttChangeRecord{}, err
	}
	off := CommonHeaderSize
	callID := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	return SimplexCallPttChangeRecord{Header: h, CallID: callID, TalkingParty: data[off]}, nil
}

func (r SimplexCallPttChangeRecord) Encode() []byte {
	data := make([]byte, SignalingRecordSize[MsgSimplexCallPttChange])
	copy(data[0:CommonHeaderSize], r.Header.Encode())
	off := CommonHeaderSize
	binary.LittleEndian.PutUint32(data[off:off+4], r.CallID)
	off += 4
	data[off] = r.TalkingParty
	return data
}

// SimplexCallReleaseRecord reports the end of a simplex call.
type SimplexCallReleaseRecord callReleaseRecord

func ParseSimplexCallReleaseRecord(data []byte) (SimplexCallReleaseRecord, error) {
	r, err := parseCallReleaseRecord(data, MsgSimplexCallRelease)
	return SimplexCallReleaseRecord(r), err
}
func (r SimplexCallReleaseRecord) Encode() []byte { return callReleaseRecord(r).encode(MsgSimplexCallRelease) }

// GroupCallStartChangeRecord reports a group call setup or keepalive event.
type GroupCallStartChangeRecord struct {
	Header      CommonHeader
	CallID      uint32
	Action      uint8
	Timeout     uint32
	GroupParty  PartyIdentity
}

func ParseGroupCallStartChangeRecord(data []byte) (GroupCallStartChangeRecord, error) {
	want := SignalingRecordSize[MsgGroupCallStartChange]
	if len(data) < want {
		return GroupCallStartChangeRecord{}, fmt.Errorf("wire: short GroupCallStartChange record: %d < %d", len(data), want)
	}
	h, err := ParseCommonHeader(data)
	if err != nil {
		return GroupCallStartChangeRecord{}, err
	}
	var r GroupCallStartChangeRecord
	r.Header = h
	off := CommonHeaderSize
	r.CallID = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	r.Action = data[off]
	off++
	r.Timeout = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	gp, err := ParsePartyIdentity(data[off : off+PartyIdentitySize])
	if err != nil {
		return GroupCallStartChangeRecord{}, err
	}
	r.GroupParty = gp
	return r, nil
}

func (r GroupCallStartChangeRecord) Encode() []byte {
	data := make([]byte, SignalingRecordSize[MsgGroupCallStartChange])
	copy(data[0:CommonHeaderSize], r.Header.Encode())
	off := CommonHeaderSize
	binary.LittleEndian.PutUint32(data[off:off+4], r.CallID)
	off += 4
	data[off] = r.Action
	off++
	binary.LittleEndian.PutUint32(data[off:off+4], r.Timeout)
	off += 4
	copy(data[off:off+PartyIdentitySize], r.GroupParty.Encode())
	return data
}

// GroupCallPttActiveRecord reports which party has the floor in a group call.
type GroupCallPttActiveRecord struct {
	Header       CommonHeader
	CallID       uint32
	TalkingParty PartyIdentity
}

func ParseGroupCallPttActiveRecord(data []byte) (GroupCallPttActiveRecord, error) {
	want := SignalingRecordSize[MsgGroupCallPttActive]
	if len(data) < want {
		return GroupCallPttActiveRecord{}, fmt.Errorf("wire: short GroupCallPttActive record: %d < %d", len(data), want)
	}
	h, err := ParseCommonHeader(data)
	if err != nil {
		return GroupCallPttActiveRecord{}, err
	}
	off := CommonHeaderSize
	callID := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	tp, err := ParsePartyIdentity(data[off : off+PartyIdentitySize])
	if err != nil {
		return GroupCallPttActiveRecord{}, err
	}
	return GroupCallPttActiveRecord{Header: h, CallID: callID, TalkingParty: tp}, nil
}

func (r GroupCallPttActiveRecord) Encode() []byte {
	data := make([]byte, SignalingRecordSize[MsgGroupCallPttActive])
	copy(data[0:CommonHeaderSize], r.Header.Encode())
	off := CommonHeaderSize
	binary.LittleEndian.PutUint32(data[off:off+4], r.CallID)
	off += 4
	copy(data[off:off+PartyIdentitySize], r.TalkingParty.Encode())
	return data
}

// GroupCallPttIdleRecord reports that the floor in a group call has gone idle.
type GroupCallPttIdleRecord struct {
	Header CommonHeader
	CallID uint32
}

func ParseGroupCallPttIdleRecord(data []byte) (GroupCallPttIdleRecord, error) {
	want := SignalingRecordSize[MsgGroupCallPttIdle]
	if len(data) < want {
		return GroupCallPttIdleRecord{}, fmt.Errorf("wire: short GroupCallPttIdle record: %d < %d", len(data), want)
	}
	h, err := ParseCommonHeader(data)
	if err != nil {
		return GroupCallPttIdleRecord{}, err
	}
	callID := binary.LittleEndian.Uint32(data[CommonHeaderSize : CommonHeaderSize+4])
	return GroupCallPttIdleRecord{Header: h, CallID: callID}, nil
}

func (r GroupCallPttIdleRecord) Encode() []byte {
	data := make([]byte, SignalingRecordSize[MsgGroupCallPttIdle])
	copy(data[0:CommonHeaderSize], r.Header.Encode())
	binary.LittleEndian.PutUint32(data[CommonHeaderSize:CommonHeaderSize+4], r.CallID)
	return data
}

// GroupCallReleaseRecord reports the end of a group call.
type GroupCallReleaseRecord callReleaseRecord

func ParseGroupCallReleaseRecord(data []byte) (GroupCallReleaseRecord, error) {
	r, err := parseCallReleaseRecord(data, MsgGroupCallRelease)
	return GroupCallReleaseRecord(r), err
}
func (r GroupCallReleaseRecord) Encode() []byte { return callReleaseRecord(r).encode(MsgGroupCallRelease) }

// StatusSDSRecord reports a precoded status SDS between two parties.
type StatusSDSRecord struct {
	Header              CommonHeader
	AParty              PartyIdentity
	BParty              PartyIdentity
	PrecodedStatusValue uint32
}

func ParseStatusSDSRecord(data []byte) (StatusSDSRecord, error) {
	want := SignalingRecordSize[MsgStatusSDS]
	if len(data) < want {
		return StatusSDSRecord{}, fmt.Errorf("wire: short StatusSDS record: %d < %d", len(data), want)
	}
	h, err := ParseCommonHeader(data)
	if err != nil {
		return StatusSDSRecord{}, err
	}
	var r StatusSDSRecord
	r.Header = h
	off := CommonHeaderSize
	aParty, err := ParsePartyIdentity(data[off : off+PartyIdentitySize])
	if err != nil {
		return StatusSDSRecord{}, err
	}
	r.AParty = aParty
	off += PartyIdentitySize
	bParty, err := ParsePartyIdentity(data[off : off+PartyIdentitySize])
	if err != nil {
		return StatusSDSRecord{}, err
	}
	r.BParty = bParty
	off += PartyIdentitySize
	r.PrecodedStatusValue = binary.LittleEndian.Uint32(data[off : off+4])
	return r, nil
}

func (r StatusSDSRecord) Encode() []byte {
	data := make([]byte, SignalingRecordSize[MsgStatusSDS])
	copy(data[0:CommonHeaderSize], r.Header.Encode())
	off := CommonHeaderSize
	copy(data[off:off+PartyIdentitySize], r.AParty.Encode())
	off += PartyIdentitySize
	copy(data[off:off+PartyIdentitySize], r.BParty.Encode())
	off += PartyIdentitySize
	binary.LittleEndian.PutUint32(data[off:off+4], r.PrecodedStatusValue)
	return data
}

// TextSDSRecord reports a free-text SDS between two parties.
type TextSDSRecord struct {
	Header         CommonHeader
	AParty         PartyIdentity
	BParty         PartyIdentity
	UserDataLength uint16
	UserData       [TextSDSUserDataMaxLen]byte
}

func ParseTextSDSRecord(data []byte) (TextSDSRecord, error) {
	want := SignalingRecordSize[MsgTextSDS]
	if len(data) < want {
		return TextSDSRecord{}, fmt.Errorf("wire: short TextSDS record: %d < %d", len(data), want)
	}
	h, err := ParseCommonHeader(data)
	if err != nil {
		return TextSDSRecord{}, err
	}
	var r TextSDSRecord
	r.Header = h
	off := CommonHeaderSize
	aParty, err := ParsePartyIdentity(data[off : off+PartyIdentitySize])
	if err != nil {
		return TextSDSRecord{}, err
	}
	r.AParty = aParty
	off += PartyIdentitySize
	bParty, err := ParsePartyIdentity(data[off : off+PartyIdentitySize])
	if err != nil {
		return TextSDSRecord{}, err
	}
	r.BParty = bParty
	off += PartyIdentitySize
	r.UserDataLength = binary.LittleEndian.Uint16(data[off : off+2])
	off += 2
	copy(r.UserData[:], data[off:off+TextSDSUserDataMaxLen])
	return r, nil
}

func (r TextSDSRecord) Encode() []byte {
	data := make([]byte, SignalingRecordSize[MsgTextSDS])
	copy(data[0:CommonHeaderSize], r.Header.Encode())
	off := CommonHeaderSize
	copy(data[off:off+PartyIdentitySize], r.AParty.Encode())
	off += PartyIdentitySize
	copy(data[off:off+PartyIdentitySize], r.BParty.Encode())
	off += PartyIdentitySize
	binary.LittleEndian.PutUint16(data[off:off+2], r.UserDataLength)
	off += 2
	copy(data[off:off+TextSDSUserDataMaxLen], r.UserData[:])
	return data
}

// Text returns the UserData buffer trimmed to UserDataLength bytes.
func (r TextSDSRecord) Text() string {
	n := int(r.UserDataLength)
	if n > TextSDSUserDataMaxLen {
		n = TextSDSUserDataMaxLen
	}
	return string(r.UserData[:n])
}
