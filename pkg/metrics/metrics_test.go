package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type flushCounter struct {
	*MemoryObserver
	flushes int
}

func (f *flushCounter) Flush() error {
	f.flushes++
	return nil
}

func TestAsyncObserverDrainsOnClose(t *testing.T) {
	mem := &flushCounter{MemoryObserver: NewMemoryObserver()}
	async := NewAsyncObserver(mem, 4)
	async.RecordEvent(MetricsEvent{Name: EventFrameSent, Value: 1})
	async.RecordEvent(MetricsEvent{Name: EventSession, Value: 2})
	if err := async.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}
	if got := len(mem.Snapshot()); got != 2 {
		t.Fatalf("expected 2 events after close, got %d", got)
	}
	if mem.flushes != 1 {
		t.Fatalf("expected inner observer flushed once, got %d", mem.flushes)
	}
	// Recording and closing again are no-ops.
	async.RecordEvent(MetricsEvent{Name: EventFrameSent})
	_ = async.Close()
	if got := len(mem.Snapshot()); got != 2 {
		t.Fatalf("expected no events after close, got %d", got)
	}
}

func TestSamplingObserverThinsNamedEvents(t *testing.T) {
	mem := NewMemoryObserver()
	s := NewSamplingObserver(mem, 4, EventAudioVolume)
	for i := 0; i < 8; i++ {
		s.RecordEvent(MetricsEvent{Name: EventAudioVolume})
	}
	s.RecordEvent(MetricsEvent{Name: EventSession})
	if got := len(mem.Named(EventAudioVolume)); got != 2 {
		t.Fatalf("expected 2 sampled volume events, got %d", got)
	}
	if got := len(mem.Named(EventSession)); got != 1 {
		t.Fatalf("expected session event to pass through, got %d", got)
	}

	NewSamplingObserver(mem, 0, EventAudioVolume).RecordEvent(MetricsEvent{Name: EventAudioVolume})
	if got := len(mem.Named(EventAudioVolume)); got != 2 {
		t.Fatalf("expected zero rate to drop events, got %d", got)
	}
}

func TestJSONLObserverWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	o := NewJSONLObserver(&buf)
	o.RecordEvent(MetricsEvent{
		Name:  EventSession,
		Time:  time.Unix(0, 0).UTC(),
		Value: 1.5,
		Tags:  map[string]string{"reason": "keyword"},
	})
	o.RecordEvent(MetricsEvent{Name: EventState})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var rec struct {
		Name  string            `json:"name"`
		Value float64           `json:"value"`
		Tags  map[string]string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if rec.Name != EventSession || rec.Value != 1.5 || rec.Tags["reason"] != "keyword" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestOpenJSONLFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	for i := 0; i < 2; i++ {
		o, err := OpenJSONLFile(path)
		if err != nil {
			t.Fatalf("open error: %v", err)
		}
		o.RecordEvent(MetricsEvent{Name: EventSession})
		if err := o.Close(); err != nil {
			t.Fatalf("close error: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Fatalf("expected 2 appended lines, got %d", got)
	}
}

func TestFanout(t *testing.T) {
	a, b := NewMemoryObserver(), NewMemoryObserver()
	Fanout{a, nil, b}.RecordEvent(MetricsEvent{Name: EventState})
	if len(a.Snapshot()) != 1 || len(b.Snapshot()) != 1 {
		t.Fatalf("expected both observers to receive the event")
	}
}
