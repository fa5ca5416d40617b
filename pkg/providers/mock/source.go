package mock

import (
	"context"
	"time"

	"github.com/harunnryd/navvoice/pkg/adapters/capture"
	"github.com/harunnryd/navvoice/pkg/audio"
	"github.com/harunnryd/navvoice/pkg/frames"
)

type SourceConfig struct {
	PCM []byte
	// Pace is the delay between frames; zero streams as fast as the consumer reads.
	Pace time.Duration
	// Hold keeps the stream open after the buffer is exhausted until ctx is done,
	// emitting silence frames like an idle microphone.
	Hold bool
}

// Source emits frames from an in-memory PCM buffer.
type Source struct {
	cfg SourceConfig
}

func NewSource(cfg SourceConfig) *Source {
	return &Source{cfg: cfg}
}

func (s *Source) Name() string { return "mock_source" }

func (s *Source) Stream(ctx context.Context, out chan<- frames.AudioFrame) error {
	defer close(out)

	var tick <-chan time.Time
	if s.cfg.Pace > 0 {
		ticker := time.NewTicker(s.cfg.Pace)
		defer ticker.Stop()
		tick = ticker.C
	}

	pts := frames.NewPTSGen()
	chunks := audio.Split(s.cfg.PCM)
	silence := make([]byte, frames.FrameBytes)
	for seq := 0; ; seq++ {
		var chunk []byte
		switch {
		case seq < len(chunks):
			chunk = chunks[seq]
		case s.cfg.Hold:
			chunk = silence
		default:
			return nil
		}
		if tick != nil && seq > 0 {
			select {
			case <-tick:
			case <-ctx.Done():
				return nil
			}
		}
		f := frames.NewAudioFrame(seq, pts.Next(), chunk, audio.RMS(chunk))
		select {
		case out <- f:
		case <-ctx.Done():
			return nil
		}
	}
}

// Tone returns n frames of a square wave with the given amplitude; its RMS
// equals the amplitude.
func Tone(n int, amplitude int16) []byte {
	samples := make([]int16, n*frames.FrameSamples)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	return audio.Int16ToBytes(samples)
}

// Silence returns n frames of digital silence.
func Silence(n int) []byte {
	return make([]byte, n*frames.FrameBytes)
}

var _ capture.Source = (*Source)(nil)
