package configutil

import (
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/navvoice/pkg/errorsx"
)

func TestValidateSettingsReportsMissingAndUnknown(t *testing.T) {
	err := ValidateSettings(map[string]any{"Device-Index": 1, "path": " ", "bogus": true}, Schema{
		Required: []string{"path"},
		Optional: []string{"device_index"},
	})
	var serr *SchemaError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(serr.Missing) != 1 || serr.Missing[0] != "path" {
		t.Fatalf("expected missing path, got %v", serr.Missing)
	}
	if len(serr.Unknown) != 1 || serr.Unknown[0] != "bogus" {
		t.Fatalf("expected unknown bogus, got %v", serr.Unknown)
	}
	if err.Error() != "missing: path; unknown: bogus" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestValidateSettingsAllowUnknown(t *testing.T) {
	err := ValidateSettings(map[string]any{"extra": 1}, Schema{AllowUnknown: true})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestDecodeSettingsDurationsAndKeys(t *testing.T) {
	var out struct {
		Path        string        `mapstructure:"path"`
		Pace        time.Duration `mapstructure:"pace"`
		DeviceIndex *int          `mapstructure:"device_index"`
	}
	err := DecodeSettings(map[string]any{"PATH": "a.wav", "pace": "40ms", "device-index": "3"}, &out)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.Path != "a.wav" || out.Pace != 40*time.Millisecond {
		t.Fatalf("unexpected decode result %+v", out)
	}
	if IntValue(out.DeviceIndex, -1) != 3 {
		t.Fatalf("expected device index 3, got %v", out.DeviceIndex)
	}
}

func TestDecodeWrapsConfigReason(t *testing.T) {
	var out struct {
		Path string `mapstructure:"path"`
	}
	err := Decode("audio.settings", map[string]any{}, Schema{Required: []string{"path"}}, &out)
	if !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config_error, got %v", err)
	}
	if err.Error() != "audio.settings: missing: path" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRequireStringAndIntValue(t *testing.T) {
	if err := RequireString(" ", "xfyun.app_id"); !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config_error, got %v", err)
	}
	if err := RequireString("x", "xfyun.app_id"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if IntValue(nil, -1) != -1 {
		t.Fatalf("expected fallback")
	}
}
