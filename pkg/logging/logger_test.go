package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; expected %v", in, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestComponentLoggerAddsComponent(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	base := InitLogger(LogConfig{Level: "info", Format: "json", Output: &buf})
	NewComponentLogger(base, "xfyun_asr").Info("asr_connected")

	out := buf.String()
	if !strings.Contains(out, `"component":"xfyun_asr"`) {
		t.Fatalf("expected component attr, got %q", out)
	}
	if !strings.Contains(out, `"msg":"asr_connected"`) {
		t.Fatalf("expected message, got %q", out)
	}
}
