package speech

import (
	"encoding/binary"
)

const (
	// WAVHeaderSize is the size of the canonical RIFF/WAVE header.
	WAVHeaderSize = 44

	wavChannels      = 1
	wavBitsPerSample = 16
	wavFormatPCM     = 1
)

// EncodeWAV wraps 16-bit little-endian mono PCM in a canonical 44-byte
// RIFF/WAVE header. Chunks are concatenated in order without inspection.
// The output depends only on the inputs.
func EncodeWAV(chunks [][]byte, sampleRate int) []byte {
	dataLen := 0
	for _, c := range chunks {
		dataLen += len(c)
	}

	blockAlign := wavChannels * wavBitsPerSample / 8
	byteRate := sampleRate * blockAlign

	out := make([]byte, WAVHeaderSize, WAVHeaderSize+dataLen)
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	// fmt 子块
	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], wavFormatPCM)
	le.PutUint16(out[22:24], wavChannels)
	le.PutUint32(out[24:28], uint32(sampleRate))
	le.PutUint32(out[28:32], uint32(byteRate))
	le.PutUint16(out[32:34], uint16(blockAlign))
	le.PutUint16(out[34:36], wavBitsPerSample)

	// data 子块
	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(dataLen))

	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
