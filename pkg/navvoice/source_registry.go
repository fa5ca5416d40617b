package navvoice

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harunnryd/navvoice/pkg/adapters/capture"
	"github.com/harunnryd/navvoice/pkg/configutil"
	"github.com/harunnryd/navvoice/pkg/errorsx"
	"github.com/harunnryd/navvoice/pkg/providers/mic"
	"github.com/harunnryd/navvoice/pkg/providers/wavfile"
)

type SourceFactory func(settings map[string]any) (capture.Source, error)

// SourceRegistry maps audio.provider names to capture factories.
type SourceRegistry struct {
	sources map[string]SourceFactory
}

func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{sources: make(map[string]SourceFactory)}
}

// DefaultSourceRegistry knows the microphone and WAV replay providers.
func DefaultSourceRegistry() *SourceRegistry {
	r := NewSourceRegistry()
	r.Register("portaudio", buildMicSource)
	r.Register("wav", buildWAVSource)
	return r
}

func (r *SourceRegistry) Register(name string, factory SourceFactory) {
	r.sources[normalizeProvider(name)] = factory
}

// Names lists the registered providers in order.
func (r *SourceRegistry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *SourceRegistry) Build(cfg AudioConfig) (capture.Source, error) {
	fn := r.sources[normalizeProvider(cfg.Provider)]
	if fn == nil {
		return nil, errorsx.New(errorsx.ReasonConfig, fmt.Sprintf("audio provider not registered: %s", cfg.Provider))
	}
	return fn(cfg.Settings)
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func buildMicSource(settings map[string]any) (capture.Source, error) {
	var parsed struct {
		DeviceIndex *int `mapstructure:"device_index"`
	}
	if err := configutil.Decode("audio.settings", settings, configutil.Schema{
		Optional: []string{"device_index"},
	}, &parsed); err != nil {
		return nil, err
	}
	return mic.New(mic.Config{DeviceIndex: configutil.IntValue(parsed.DeviceIndex, -1)}), nil
}

func buildWAVSource(settings map[string]any) (capture.Source, error) {
	var parsed struct {
		Path string        `mapstructure:"path"`
		Pace time.Duration `mapstructure:"pace"`
	}
	if err := configutil.Decode("audio.settings", settings, configutil.Schema{
		Required: []string{"path"},
		Optional: []string{"pace"},
	}, &parsed); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(parsed.Path, "audio.settings.path"); err != nil {
		return nil, err
	}
	return wavfile.New(wavfile.Config{Path: parsed.Path, Pace: parsed.Pace}), nil
}
