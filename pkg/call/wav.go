package call

import "encoding/binary"

// wavHeaderSize is the fixed size of the A-law WAV header this package
// writes. The WAV container format itself is a given, external detail;
// what matters here is that RIFF/data chunk sizes are internally
// consistent with the 46-byte total and the recorded sample data.
const wavHeaderSize = 46

// buildWAVHeader writes the 46-byte A-law WAV header for dataLen bytes of
// interleaved (or mono) 8-bit A-law sample data. Format tag 6 is the
// standard WAVE_FORMAT_ALAW code; sample rate is fixed at 8000 Hz and bits
// per sample at 8, matching the TETRA voice record's payload.
//
// Each A-law sample is exactly one byte, so the fact chunk's sample count
// and the data chunk's byte count are always equal — this header folds
// them into a single trailing data-size field rather than carrying a
// redundant fact subchunk, which keeps the header exactly 46 bytes.
func buildWAVHeader(channels uint16, dataLen uint32) []byte {
	const sampleRate = 8000
	const bitsPerSample = 8
	const formatTag = 6 // WAVE_FORMAT_ALAW

	blockAlign := channels * (bitsPerSample / 8)
	byteRate := sampleRate * uint32(blockAlign)

	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], dataLen+wavHeaderSize-8)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 18)
	binary.LittleEndian.PutUint16(h[20:22], formatTag)
	binary.LittleEndian.PutUint16(h[22:24], channels)
	binary.LittleEndian.PutUint32(h[24:28], sampleRate)
	binary.LittleEndian.PutUint32(h[28:32], byteRate)
	binary.LittleEndian.PutUint16(h[32:34], blockAlign)
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)
	binary.LittleEndian.PutUint16(h[36:38], 0) // cbSize
	copy(h[38:42], "data")
	binary.LittleEndian.PutUint32(h[42:46], dataLen)
	return h
}

// interleave combines two equal-length mono A-law streams sample-by-sample
// into one duplex stream (A, B, A, B, …). Streams of unequal length are
// interleaved only up to the shorter one's length; the caller decides how
// to treat a truncated tail.
func interleave(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		out[i*2] = a[i]
		out[i*2+1] = b[i]
	}
	return out
}

// BuildVoiceBlob assembles the persisted voice blob for a call: a 46-byte
// WAV header followed by the sample data. For duplex calls, bufA and bufB
// are interleaved into a stereo stream; otherwise bufA alone is mono.
func BuildVoiceBlob(duplex bool, bufA, bufB []byte) []byte {
	var data []byte
	var channels uint16 = 1
	if duplex {
		data = interleave(bufA, bufB)
		channels = 2
	} else {
		data = bufA
	}
	header := buildWAVHeader(channels, uint32(len(data)))
	blob := make([]byte, 0, len(header)+len(data))
	blob = append(blob, header...)
	blob = append(blob, data...)
	return blob
}
