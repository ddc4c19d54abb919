package wire

import (
	"encoding/binary"
	"fmt"
)

// VoiceRecord is the 20-byte prefix plus the fixed 480-byte payload-1 slot.
// Payload 2 is declared by the wire contract but never populated by the
// subset this parser implements (only payload-1 kind G711Alaw is handled).
type VoiceRecord struct {
	Signature        uint32
	Version          uint8
	StreamOriginator uint8
	OriginatingNode  uint16
	CallID           uint32
	SourceAndIndex   uint8
	StreamRandomID   uint16
	PacketSequence   uint16
	Payload1Kind     uint8
	Payload2Kind     uint8
	Payload1         [G711AlawLength]byte
}

// ParseVoiceRecord reads a VoiceRecordSize-byte voice record. Callers should
// only trust Payload1 when Payload1Kind == KindG711Alaw.
func ParseVoiceRecord(data []byte) (VoiceRecord, error) {
	if len(data) < VoiceRecordSize {
		return VoiceRecord{}, fmt.Errorf("wire: short voice record: %d < %d", len(data), VoiceRecordSize)
	}
	var r VoiceRecord
	r.Signature = binary.LittleEndian.Uint32(data[0:4])
	r.Version = data[4]
	r.StreamOriginator = data[5]
	r.OriginatingNode = binary.LittleEndian.Uint16(data[6:8])
	r.CallID = binary.LittleEndian.Uint32(data[8:12])
	r.SourceAndIndex = data[12]
	r.StreamRandomID = binary.LittleEndian.Uint16(data[13:15])
	r.PacketSequence = binary.LittleEndian.Uint16(data[15:17])
	// byte 17 is spare
	r.Payload1Kind = data[18]
	r.Payload2Kind = data[19]
	copy(r.Payload1[:], data[VoicePrefixSize:VoicePrefixSize+G711AlawLength])
	return r, nil
}

// Encode writes the voice record to a VoiceRecordSize-byte slice.
func (r VoiceRecord) Encode() []byte {
	data := make([]byte, VoiceRecordSize)
	binary.LittleEndian.PutUint32(data[0:4], r.Signature)
	data[4] = r.Version
	data[5] = r.StreamOriginator
	binary.LittleEndian.PutUint16(data[6:8], r.OriginatingNode)
	binary.LittleEndian.PutUint32(data[8:12], r.CallID)
	data[12] = r.SourceAndIndex
	binary.LittleEndian.PutUint16(data[13:15], r.StreamRandomID)
	binary.LittleEndian.PutUint16(data[15:17], r.PacketSequence)
	data[18] = r.Payload1Kind
	data[19] = r.Payload2Kind
	copy(data[VoicePrefixSize:VoicePrefixSize+G711AlawLength], r.Payload1[:])
	return data
}
