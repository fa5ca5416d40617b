package wavfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	pcm "github.com/harunnryd/navvoice/pkg/audio"
	"github.com/harunnryd/navvoice/pkg/frames"
)

func tone(n int, amp int16) []byte {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = amp
		} else {
			samples[i] = -amp
		}
	}
	return pcm.Int16ToBytes(samples)
}

func TestWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.wav")
	data := tone(frames.FrameSamples*3, 1200)
	if err := Write(path, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(data) {
		t.Fatalf("expected %d bytes, got %d", len(data), len(got))
	}
	if pcm.RMS(got) != 1200 {
		t.Fatalf("expected rms 1200, got %d", pcm.RMS(got))
	}
}

func TestStreamEmitsFramesAndCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := Write(path, tone(frames.FrameSamples*2+10, 900)); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := make(chan frames.AudioFrame, 8)
	if err := New(Config{Path: path}).Stream(context.Background(), out); err != nil {
		t.Fatalf("stream: %v", err)
	}
	var got []frames.AudioFrame
	for f := range out {
		got = append(got, f)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(got))
	}
	if len(got[0].RawPayload()) != frames.FrameBytes {
		t.Fatalf("expected full first frame, got %d bytes", len(got[0].RawPayload()))
	}
	for i, f := range got {
		if f.Seq() != i {
			t.Fatalf("expected seq %d, got %d", i, f.Seq())
		}
		if f.Volume() != 900 {
			t.Fatalf("expected volume 900, got %d", f.Volume())
		}
	}
}

func TestLoadRejectsWrongFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("not a wav file"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid wav")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
