package observers

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/navvoice/pkg/metrics"
)

func TestTimelineObserverWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)

	obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventFrameSent,
		Time: time.Now(),
		Tags: map[string]string{"session_id": "sess/1", "kind": "first", "seq": "0"},
	})
	obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventState,
		Time: time.Now(),
		Tags: map[string]string{"session_id": "sess/1", "from": "SENDING_LAST", "to": "AWAITING_FINAL"},
	})
	obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventSession,
		Time: time.Now(),
		Tags: map[string]string{"session_id": "sess/1", "reason": "keyword"},
	})
	if len(obs.files) != 0 {
		t.Fatalf("expected file closed after session event, got %d open", len(obs.files))
	}
	_ = obs.Close()

	b, err := os.ReadFile(filepath.Join(dir, "sess_1.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, want := range []string{"frame_first", "state_awaiting_final", metrics.EventSession} {
		if !strings.Contains(lines[i], `"event":"`+want+`"`) {
			t.Fatalf("line %d: expected %s, got %s", i, want, lines[i])
		}
	}
}

func TestTimelineObserverIgnoresUntagged(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventAudioVolume, Time: time.Now()})
	_ = obs.Close()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files, got %d", len(entries))
	}
}

func TestLatencyObserverLogsOnSession(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLatencyObserver(slog.New(slog.NewTextHandler(&buf, nil)))
	start := time.Now()
	tags := func(kv ...string) map[string]string {
		m := map[string]string{"session_id": "s1"}
		for i := 0; i+1 < len(kv); i += 2 {
			m[kv[i]] = kv[i+1]
		}
		return m
	}

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventFrameSent, Time: start, Tags: tags("kind", "first")})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTranscript, Time: start.Add(300 * time.Millisecond), Tags: tags()})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventFrameSent, Time: start.Add(time.Second), Tags: tags("kind", "last")})
	if obs.Pending() != 1 {
		t.Fatalf("expected 1 pending session, got %d", obs.Pending())
	}
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSession, Time: start.Add(1500 * time.Millisecond), Tags: tags("reason", "silence_end")})

	out := buf.String()
	if !strings.Contains(out, "first_partial_ms=300") || !strings.Contains(out, "tail_ms=500") {
		t.Fatalf("unexpected log line: %s", out)
	}
	if obs.Pending() != 0 {
		t.Fatalf("expected session cleared, got %d", obs.Pending())
	}
}

func TestLoggerObserverDebugOnly(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSession, Time: time.Now()})
	if buf.Len() != 0 {
		t.Fatalf("expected nothing at info level, got %s", buf.String())
	}

	buf.Reset()
	obs = NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	obs.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventTranscript,
		Time:   time.Now(),
		Tags:   map[string]string{"session_id": "s1"},
		Fields: map[string]any{"text": "导航"},
	})
	if !strings.Contains(buf.String(), "name=asr.transcript") || !strings.Contains(buf.String(), "session_id=s1") {
		t.Fatalf("unexpected log line: %s", buf.String())
	}
}

func TestPurgeArtifacts(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	for _, name := range []string{"a.wav", "b.jsonl", "keep.txt"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "fresh.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	n, err := PurgeArtifacts(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	for _, name := range []string{"keep.txt", "fresh.wav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s kept: %v", name, err)
		}
	}
	if n, err := PurgeArtifacts(filepath.Join(dir, "missing"), time.Hour); err != nil || n != 0 {
		t.Fatalf("expected missing dir to be a no-op, got %d %v", n, err)
	}
}
