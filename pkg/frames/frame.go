package frames

import (
	"sync"
	"time"
)

const (
	// SampleRate is the capture rate the recognizer expects.
	SampleRate = 16000
	// Channels is the capture channel count (mono).
	Channels = 1
	// SampleWidth is the size of one 16-bit PCM sample in bytes.
	SampleWidth = 2
	// FrameBytes is the payload size of one protocol frame (40 ms of audio).
	FrameBytes = 1280
	// FrameSamples is the sample count of one protocol frame.
	FrameSamples = FrameBytes / SampleWidth
	// FrameDuration is the audio duration of one frame.
	FrameDuration = 40 * time.Millisecond
)

// AudioFrame is one fixed-size chunk of 16 kHz mono PCM with its RMS volume.
type AudioFrame struct {
	seq    int
	pts    int64
	data   []byte
	volume int
	pooled bool
}

// NewAudioFrame creates a frame that owns data.
func NewAudioFrame(seq int, pts int64, data []byte, volume int) AudioFrame {
	return AudioFrame{
		seq:    seq,
		pts:    pts,
		data:   data,
		volume: volume,
	}
}

// NewAudioFrameFromPool copies data into a pooled buffer.
// The consumer releases it with ReleaseAudioFrame once sent.
func NewAudioFrameFromPool(seq int, pts int64, data []byte, volume int) AudioFrame {
	buf := AcquireAudioBuf(len(data))
	copy(buf, data)
	return AudioFrame{
		seq:    seq,
		pts:    pts,
		data:   buf,
		volume: volume,
		pooled: true,
	}
}

func (a AudioFrame) Seq() int           { return a.seq }
func (a AudioFrame) PTS() int64         { return a.pts }
func (a AudioFrame) Volume() int        { return a.volume }
func (a AudioFrame) Data() []byte       { return append([]byte(nil), a.data...) }
func (a AudioFrame) RawPayload() []byte { return a.data }

// Duration returns the audio duration carried by the frame.
func (a AudioFrame) Duration() time.Duration {
	samples := len(a.data) / SampleWidth
	return time.Duration(samples) * time.Second / SampleRate
}

// ReleaseAudioFrame returns a pooled buffer to the pool.
func ReleaseAudioFrame(f AudioFrame) bool {
	if f.pooled {
		ReleaseAudioBuf(f.data)
		return true
	}
	return false
}

// PTSGen hands out presentation timestamps spaced by one frame duration.
type PTSGen struct {
	mu    sync.Mutex
	value int64
}

func NewPTSGen() *PTSGen {
	return &PTSGen{}
}

func (g *PTSGen) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.value
	g.value += FrameDuration.Nanoseconds()
	return v
}

var audioBufPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

func AcquireAudioBuf(size int) []byte {
	b := audioBufPool.Get().([]byte)
	if cap(b) < size {
		return make([]byte, size)
	}
	return b[:size]
}

func ReleaseAudioBuf(b []byte) {
	audioBufPool.Put(b[:0])
}
