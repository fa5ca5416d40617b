package metrics

import "time"

// Event names emitted by the recognition client.
const (
	EventFrameSent   = "asr.frame_sent"
	EventState       = "asr.state"
	EventTranscript  = "asr.transcript"
	EventSession     = "asr.session"
	EventAudioVolume = "audio.volume"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Fanout forwards every event to each observer in order.
type Fanout []Observer

func (f Fanout) RecordEvent(ev MetricsEvent) {
	for _, o := range f {
		if o != nil {
			o.RecordEvent(ev)
		}
	}
}
