package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/navvoice/pkg/metrics"
)

// LatencyObserver logs per-session latencies once the session event arrives:
// first frame to first partial, and last frame to session end.
type LatencyObserver struct {
	mu       sync.Mutex
	sessions map[string]*trace
	log      *slog.Logger
}

type trace struct {
	firstFrame   time.Time
	firstPartial time.Time
	lastFrame    time.Time
	partials     int
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		sessions: make(map[string]*trace),
		log:      log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.Tags["session_id"]
	if id == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.sessions[id]
	if t == nil {
		t = &trace{}
		o.sessions[id] = t
	}
	switch ev.Name {
	case metrics.EventFrameSent:
		switch ev.Tags["kind"] {
		case "first":
			if t.firstFrame.IsZero() {
				t.firstFrame = ev.Time
			}
		case "last":
			t.lastFrame = ev.Time
		}
	case metrics.EventTranscript:
		t.partials++
		if t.firstPartial.IsZero() {
			t.firstPartial = ev.Time
		}
	case metrics.EventSession:
		o.log.Info("asr_latency",
			slog.String("session_id", id),
			slog.String("reason", ev.Tags["reason"]),
			slog.Int64("first_partial_ms", durationMs(t.firstFrame, t.firstPartial)),
			slog.Int64("tail_ms", durationMs(t.lastFrame, ev.Time)),
			slog.Int("partials", t.partials),
		)
		delete(o.sessions, id)
	}
}

// Pending reports sessions seen without a closing session event.
func (o *LatencyObserver) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}

var _ metrics.Observer = (*LatencyObserver)(nil)
