package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// numberAlphabet is the extended BCD alphabet used to pack a subscriber
// number's digits: 16 symbols, one per nibble value 0x0-0xF.
const numberAlphabet = "0123456789*#+DEF"

// numberDigitsLen is the fixed width, in bytes, of the BCD-packed digit
// field inside a Number block.
const numberDigitsLen = 7

// Number is a BCD-packed variable-length digit string: a nibble count plus
// a fixed 7-byte packed buffer, encoded/decoded with the extended alphabet
// "0123456789*#+DEF".
type Number struct {
	Length uint8
	Digits [numberDigitsLen]byte
}

// String decodes the packed nibbles into their alphabet characters. The
// iteration covers floor(length/2)+1 packed bytes, matching the wire
// contract's terminating-NUL convention; only the first Length characters
// are returned.
func (n Number) String() string {
	if n.Length == 0 {
		return ""
	}
	bytesToRead := int(n.Length)/2 + 1
	if bytesToRead > numberDigitsLen {
		bytesToRead = numberDigitsLen
	}
	var sb strings.Builder
	for i := 0; i < bytesToRead && sb.Len() < int(n.Length); i++ {
		b := n.Digits[i]
		hi := b >> 4
		lo := b & 0x0F
		if sb.Len() < int(n.Length) {
			sb.WriteByte(numberAlphabet[hi])
		}
		if sb.Len() < int(n.Length) {
			sb.WriteByte(numberAlphabet[lo])
		}
	}
	return sb.String()
}

// EncodeNumber packs a digit string drawn from the extended alphabet into
// a Number block.
func EncodeNumber(s string) (Number, error) {
	var n Number
	if len(s) > int(numberDigitsLen)*2 {
		return n, fmt.Errorf("wire: number %q exceeds %d digits", s, numberDigitsLen*2)
	}
	nibbles := make([]byte, len(s))
	for i, c := range s {
		idx := strings.IndexByte(numberAlphabet, byte(c))
		if idx < 0 {
			return n, fmt.Errorf("wire: invalid number digit %q", c)
		}
		nibbles[i] = byte(idx)
	}
	n.Length = uint8(len(nibbles))
	for i := 0; i < len(nibbles); i += 2 {
		hi := nibbles[i]
		var lo byte
		if i+1 < len(nibbles) {
			lo = nibbles[i+1]
		}
		n.Digits[i/2] = hi<<4 | lo
	}
	return n, nil
}

// PartyIdentity is an (MCC, MNC, SSI) triple, an optional packed number,
// and a fixed-width display description.
type PartyIdentity struct {
	SSI   uint32
	MNC   uint16
	MCC   uint16
	Num   Number
	Descr [20]byte
}

// Description returns the display description with trailing NUL padding
// trimmed.
func (p PartyIdentity) Description() string {
	return strings.TrimRight(string(p.Descr[:]), "\x00")
}

// ParsePartyIdentity reads a PartyIdentitySize-byte block.
func ParsePartyIdentity(data []byte) (PartyIdentity, error) {
	if len(data) < PartyIdentitySize {
		return PartyIdentity{}, fmt.Errorf("wire: short party identity: %d bytes", len(data))
	}
	var p PartyIdentity
	p.SSI = binary.LittleEndian.Uint32(data[0:4])
	p.MNC = binary.LittleEndian.Uint16(data[4:6])
	p.MCC = binary.LittleEndian.Uint16(data[6:8])
	p.Num.Length = data[8]
	copy(p.Num.Digits[:], data[9:16])
	copy(p.Descr[:], data[16:36])
	return p, nil
}

// Encode writes the party identity to a PartyIdentitySize-byte slice.
func (p PartyIdentity) Encode() []byte {
	data := make([]byte, PartyIdentitySize)
	binary.LittleEndian.PutUint32(data[0:4], p.SSI)
	binary.LittleEndian.PutUint16(data[4:6], p.MNC)
	binary.LittleEndian.PutUint16(data[6:8], p.MCC)
	data[8] = p.Num.Length
	copy(data[9:16], p.Num.Digits[:])
	copy(data[16:36], p.Descr[:])
	return data
}
