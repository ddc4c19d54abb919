package testhelpers

import (
	"net"
	"testing"

	"github.com/lmig/csserver/pkg/wire"
)

// UDPSender drives hand-built wire-encoded datagrams at a running
// Ingestor's ingress socket, exercising the real ingestion path end to end
// rather than calling pkg/frame directly.
type UDPSender struct {
	t    *testing.T
	conn *net.UDPConn
}

// DialIngestor opens a UDP socket connected to addr, the Ingestor's own
// discovered local address.
func DialIngestor(t *testing.T, addr *net.UDPAddr) *UDPSender {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		t.Fatalf("testhelpers: failed to dial ingestor at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &UDPSender{t: t, conn: conn}
}

// Send writes one datagram verbatim.
func (s *UDPSender) Send(b []byte) {
	s.t.Helper()
	if _, err := s.conn.Write(b); err != nil {
		s.t.Fatalf("testhelpers: udp write failed: %v", err)
	}
}

// Party builds a PartyIdentity for test fixtures: number is packed through
// wire.EncodeNumber, descr is truncated to the 20-byte description field.
func Party(t *testing.T, ssi uint32, mcc, mnc uint16, number, descr string) wire.PartyIdentity {
	t.Helper()
	num, err := wire.EncodeNumber(number)
	if err != nil {
		t.Fatalf("testhelpers: invalid party number %q: %v", number, err)
	}
	var d [20]byte
	copy(d[:], descr)
	return wire.PartyIdentity{SSI: ssi, MNC: mnc, MCC: mcc, Num: num, Descr: d}
}

// KeepAliveDatagram encodes a KeepAlive signaling record.
func KeepAliveDatagram(seq uint16, serverID, timeout uint32) []byte {
	return wire.KeepAliveRecord{
		Header:      header(seq, wire.MsgKeepAlive),
		LogServerNo: serverID,
		Timeout:     timeout,
	}.Encode()
}

// SimplexCallStartDatagram encodes a SimplexCallStartChange record.
func SimplexCallStartDatagram(seq uint16, callID uint32, action uint8, timeout uint32, aParty, bParty wire.PartyIdentity) []byte {
	return wire.SimplexCallStartChangeRecord{
		Header:  header(seq, wire.MsgSimplexCallStartChange),
		CallID:  callID,
		Action:  action,
		Timeout: timeout,
		AParty:  aParty,
		BParty:  bParty,
	}.Encode()
}

// SimplexCallReleaseDatagram encodes a SimplexCallRelease record.
func SimplexCallReleaseDatagram(seq uint16, callID uint32, cause uint8) []byte {
	return wire.SimplexCallReleaseRecord{
		Header:       header(seq, wire.MsgSimplexCallRelease),
		CallID:       callID,
		ReleaseCause: cause,
	}.Encode()
}

// DuplexCallChangeDatagram encodes a DuplexCallChange record.
func DuplexCallChangeDatagram(seq uint16, callID uint32, action uint8, timeout uint32, aParty, bParty wire.PartyIdentity) []byte {
	return wire.DuplexCallChangeRecord{
		Header:  header(seq, wire.MsgDuplexCallChange),
		CallID:  callID,
		Action:  action,
		Timeout: timeout,
		AParty:  aParty,
		BParty:  bParty,
	}.Encode()
}

// DuplexCallReleaseDatagram encodes a DuplexCallRelease record.
func DuplexCallReleaseDatagram(seq uint16, callID uint32, cause uint8) []byte {
	return wire.DuplexCallReleaseRecord{
		Header:       header(seq, wire.MsgDuplexCallRelease),
		CallID:       callID,
		ReleaseCause: cause,
	}.Encode()
}

// VoiceDatagram encodes one G.711 A-law voice record. payload is padded or
// truncated to the fixed 480-byte slot.
func VoiceDatagram(seq uint16, callID uint32, originator uint8, payload []byte) []byte {
	var p [wire.G711AlawLength]byte
	copy(p[:], payload)
	return wire.VoiceRecord{
		Signature:        wire.SignatureVoice,
		Version:          1,
		StreamOriginator: originator,
		CallID:           callID,
		PacketSequence:   seq,
		Payload1Kind:     wire.KindG711Alaw,
		Payload1:         p,
	}.Encode()
}

func header(seq uint16, msgID uint8) wire.CommonHeader {
	return wire.CommonHeader{
		Signature:  wire.SignatureSignaling,
		Sequence:   seq,
		APIVersion: 1,
		MessageID:  msgID,
	}
}
