package wavfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/harunnryd/navvoice/pkg/adapters/capture"
	pcm "github.com/harunnryd/navvoice/pkg/audio"
	"github.com/harunnryd/navvoice/pkg/errorsx"
	"github.com/harunnryd/navvoice/pkg/frames"
	"github.com/harunnryd/navvoice/pkg/logging"
)

type Config struct {
	Path string
	// Pace is the delay between frames; zero streams as fast as the consumer reads.
	Pace time.Duration
}

// Source replays a 16 kHz mono 16-bit WAV file as capture frames.
type Source struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Source {
	return &Source{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "wav_source"),
	}
}

func (s *Source) Name() string { return "wav" }

func (s *Source) Stream(ctx context.Context, out chan<- frames.AudioFrame) error {
	defer close(out)

	data, err := Load(s.cfg.Path)
	if err != nil {
		return err
	}
	chunks := pcm.Split(data)
	s.logger.Info("wav_opened",
		slog.String("path", s.cfg.Path),
		slog.Int("frames", len(chunks)))

	var tick <-chan time.Time
	if s.cfg.Pace > 0 {
		ticker := time.NewTicker(s.cfg.Pace)
		defer ticker.Stop()
		tick = ticker.C
	}

	pts := frames.NewPTSGen()
	for seq, chunk := range chunks {
		if tick != nil && seq > 0 {
			select {
			case <-tick:
			case <-ctx.Done():
				return nil
			}
		}
		f := frames.NewAudioFrame(seq, pts.Next(), chunk, pcm.RMS(chunk))
		select {
		case out <- f:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// Load decodes a WAV file into 16-bit little-endian PCM, checking it matches
// the capture format.
func Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("open wav: %w", err), errorsx.ReasonAudioDevice)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errorsx.Wrap(fmt.Errorf("%s is not a valid wav file", path), errorsx.ReasonAudioRead)
	}
	if int(dec.SampleRate) != frames.SampleRate || int(dec.NumChans) != frames.Channels || dec.BitDepth != 16 {
		return nil, errorsx.Wrap(fmt.Errorf("%s: expected %d Hz mono 16-bit, got %d Hz %d channel(s) %d-bit",
			path, frames.SampleRate, dec.SampleRate, dec.NumChans, dec.BitDepth), errorsx.ReasonAudioRead)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("decode wav: %w", err), errorsx.ReasonAudioRead)
	}
	return intBufferToPCM(buf), nil
}

func intBufferToPCM(buf *audio.IntBuffer) []byte {
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return pcm.Int16ToBytes(samples)
}

// Write encodes PCM into a 16 kHz mono 16-bit WAV file.
func Write(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	enc := wav.NewEncoder(f, frames.SampleRate, 16, frames.Channels, 1)
	ints := make([]int, len(data)/frames.SampleWidth)
	for i := range ints {
		ints[i] = int(int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: frames.Channels, SampleRate: frames.SampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}

var _ capture.Source = (*Source)(nil)
