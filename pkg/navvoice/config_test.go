package navvoice

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/navvoice/pkg/errorsx"
	"github.com/harunnryd/navvoice/pkg/trigger"
	"github.com/harunnryd/navvoice/pkg/xfyun"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.XFYun.Host != xfyun.DefaultHost || cfg.Audio.Provider != "portaudio" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Trigger.HardDeadline != trigger.DefaultHardDeadline || cfg.Trigger.MaxSilenceFrames != 75 {
		t.Fatalf("unexpected trigger defaults %+v", cfg.Trigger)
	}
	if len(cfg.Trigger.Keywords) != len(trigger.DefaultKeywords) {
		t.Fatalf("expected default keywords, got %v", cfg.Trigger.Keywords)
	}
	if cfg.XFYun.Business != xfyun.DefaultBusinessParams() {
		t.Fatalf("expected default business params, got %+v", cfg.XFYun.Business)
	}
	if cfg.Session.FinalWait != xfyun.DefaultFinalWait || !cfg.Privacy.RedactPII {
		t.Fatalf("unexpected session/privacy defaults %+v %+v", cfg.Session, cfg.Privacy)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	t.Setenv("XFYUN_APP_ID", "env-app")
	t.Setenv("NAVVOICE_XFYUN_API_KEY", "env-key")
	t.Setenv("NAVVOICE_LOG_LEVEL", "debug")
	t.Setenv("WAV_PATH", "/tmp/sample.wav")
	path := writeFile(t, "navvoice.yaml", `
xfyun:
  api_secret: file-secret
  business:
    vad_eos: 3000
trigger:
  hard_deadline: 8s
  keywords: ["出发"]
audio:
  provider: wav
  settings:
    path: ${WAV_PATH}
    pace: 40ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	creds := cfg.XFYun.Credentials()
	if creds.AppID != "env-app" || creds.APIKey != "env-key" || creds.APISecret != "file-secret" {
		t.Fatalf("unexpected credentials %+v", creds)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.LogLevel)
	}
	if cfg.Trigger.HardDeadline != 8*time.Second || len(cfg.Trigger.Keywords) != 1 {
		t.Fatalf("unexpected trigger %+v", cfg.Trigger)
	}
	if cfg.XFYun.Business.VADEOS != 3000 || cfg.XFYun.Business.Language != "zh_cn" {
		t.Fatalf("expected merged business params, got %+v", cfg.XFYun.Business)
	}
	if cfg.Audio.Settings["path"] != "/tmp/sample.wav" {
		t.Fatalf("expected expanded wav path, got %v", cfg.Audio.Settings["path"])
	}
}

func TestLoadConfigRejectsInvalidTrigger(t *testing.T) {
	path := writeFile(t, "bad.yaml", `
trigger:
  low_threshold: 900
  high_threshold: 800
`)
	_, err := LoadConfig(path)
	if !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config_error, got %v", err)
	}
}

func TestLoadConfigRecordAudioNeedsDir(t *testing.T) {
	path := writeFile(t, "rec.yaml", `
observability:
  record_audio: true
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error without artifacts_dir")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config_error, got %v", err)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	const key = "NAVVOICE_TEST_ENVFILE_VALUE"
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	path := writeFile(t, ".env", key+"=from-file\n")

	if err := LoadEnvFiles("", filepath.Join(t.TempDir(), "absent.env"), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Fatalf("expected value from env file, got %q", got)
	}
}
