package wire

import (
	"encoding/binary"
	"fmt"
)

// CommonHeader is the 8-byte header shared by every signaling record.
type CommonHeader struct {
	Signature  uint32
	Sequence   uint16
	APIVersion uint8
	MessageID  uint8
}

// ParseCommonHeader reads the 8-byte header from the front of data.
func ParseCommonHeader(data []byte) (CommonHeader, error) {
	if len(data) < CommonHeaderSize {
		return CommonHeader{}, fmt.Errorf("wire: short header: %d bytes", len(data))
	}
	h := CommonHeader{
		Signature:  binary.LittleEndian.Uint32(data[0:4]),
		Sequence:   binary.LittleEndian.Uint16(data[4:6]),
		APIVersion: data[6],
		MessageID:  data[7],
	}
	return h, nil
}

// Encode writes the header to an 8-byte slice.
func (h CommonHeader) Encode() []byte {
	data := make([]byte, CommonHeaderSize)
	binary.LittleEndian.PutUint32(data[0:4], h.Signature)
	binary.LittleEndian.PutUint16(data[4:6], h.Sequence)
	data[6] = h.APIVersion
	data[7] = h.MessageID
	return data
}
