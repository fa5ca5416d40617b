package mic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
	"github.com/harunnryd/navvoice/pkg/adapters/capture"
	"github.com/harunnryd/navvoice/pkg/audio"
	"github.com/harunnryd/navvoice/pkg/errorsx"
	"github.com/harunnryd/navvoice/pkg/frames"
	"github.com/harunnryd/navvoice/pkg/logging"
)

type Config struct {
	// DeviceIndex selects an input device from portaudio.Devices; -1 uses the default.
	DeviceIndex int
}

// MicSource captures 40 ms frames from a microphone. The blocking read
// paces the stream, so no extra sleep is needed between frames.
type MicSource struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *MicSource {
	return &MicSource{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "portaudio_mic"),
	}
}

func (m *MicSource) Name() string { return "portaudio" }

func (m *MicSource) Stream(ctx context.Context, out chan<- frames.AudioFrame) error {
	defer close(out)

	if err := portaudio.Initialize(); err != nil {
		return errorsx.Wrap(fmt.Errorf("initialize portaudio: %w", err), errorsx.ReasonAudioDevice)
	}
	defer portaudio.Terminate()

	device, err := m.device()
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonAudioDevice)
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = frames.Channels
	params.SampleRate = frames.SampleRate
	params.FramesPerBuffer = frames.FrameSamples

	buf := make([]int16, frames.FrameSamples)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("open stream: %w", err), errorsx.ReasonAudioDevice)
	}
	defer func() {
		_ = stream.Stop()
		_ = stream.Close()
	}()
	if err := stream.Start(); err != nil {
		return errorsx.Wrap(fmt.Errorf("start stream: %w", err), errorsx.ReasonAudioDevice)
	}

	m.logger.Info("microphone_opened",
		slog.String("device", device.Name),
		slog.Int("sample_rate", frames.SampleRate),
		slog.Int("frame_bytes", frames.FrameBytes))

	pts := frames.NewPTSGen()
	scratch := make([]byte, len(buf)*frames.SampleWidth)
	for seq := 0; ; seq++ {
		if ctx.Err() != nil {
			m.logger.Debug("microphone_stopped", slog.Int("frames", seq))
			return nil
		}
		if err := stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return errorsx.Wrap(fmt.Errorf("read microphone: %w", err), errorsx.ReasonAudioRead)
		}
		audio.PutInt16s(scratch, buf)
		f := frames.NewAudioFrameFromPool(seq, pts.Next(), scratch, audio.RMS(scratch))
		select {
		case out <- f:
		case <-ctx.Done():
			frames.ReleaseAudioFrame(f)
			return nil
		}
	}
}

func (m *MicSource) device() (*portaudio.DeviceInfo, error) {
	if m.cfg.DeviceIndex < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if m.cfg.DeviceIndex >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range", m.cfg.DeviceIndex)
	}
	device := devices[m.cfg.DeviceIndex]
	if device.MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %q has no input channels", device.Name)
	}
	return device, nil
}

// InputDevice describes a capture-capable device.
type InputDevice struct {
	Index int
	Name  string
}

// ListInputDevices enumerates devices that can be used as DeviceIndex.
func ListInputDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	var out []InputDevice
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			out = append(out, InputDevice{Index: i, Name: d.Name})
		}
	}
	return out, nil
}

var _ capture.Source = (*MicSource)(nil)
