package audio

import (
	"encoding/binary"
	"math"

	"github.com/harunnryd/navvoice/pkg/frames"
)

// RMS returns the root-mean-square of 16-bit little-endian PCM samples,
// truncated to an integer. A trailing odd byte is ignored.
func RMS(pcm []byte) int {
	n := len(pcm) / frames.SampleWidth
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return int(math.Sqrt(sum / float64(n)))
}

// Split cuts pcm into protocol-sized frames. The final chunk may be short.
func Split(pcm []byte) [][]byte {
	if len(pcm) == 0 {
		return nil
	}
	out := make([][]byte, 0, (len(pcm)+frames.FrameBytes-1)/frames.FrameBytes)
	for start := 0; start < len(pcm); start += frames.FrameBytes {
		end := start + frames.FrameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		out = append(out, pcm[start:end])
	}
	return out
}

// Int16ToBytes encodes samples as 16-bit little-endian PCM.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*frames.SampleWidth)
	PutInt16s(out, samples)
	return out
}

// PutInt16s encodes samples into dst, which must hold len(samples)*2 bytes.
func PutInt16s(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
}
