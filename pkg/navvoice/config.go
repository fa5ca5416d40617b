package navvoice

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/harunnryd/navvoice/pkg/errorsx"
	"github.com/harunnryd/navvoice/pkg/trigger"
	"github.com/harunnryd/navvoice/pkg/xfyun"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. NAVVOICE_LOG_LEVEL.
const EnvPrefix = "NAVVOICE"

type Config struct {
	XFYun         XFYunConfig         `mapstructure:"xfyun"`
	Trigger       trigger.Config      `mapstructure:"trigger"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Session       SessionConfig       `mapstructure:"session"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type XFYunConfig struct {
	AppID     string               `mapstructure:"app_id"`
	APIKey    string               `mapstructure:"api_key"`
	APISecret string               `mapstructure:"api_secret"`
	Host      string               `mapstructure:"host"`
	Business  xfyun.BusinessParams `mapstructure:"business"`
}

// Credentials returns the signing credentials.
func (c XFYunConfig) Credentials() xfyun.Credentials {
	return xfyun.Credentials{AppID: c.AppID, APIKey: c.APIKey, APISecret: c.APISecret}
}

// AudioConfig selects a capture provider. Settings are provider specific.
type AudioConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type SessionConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	FinalWait        time.Duration `mapstructure:"final_wait"`
	OnceDeadline     time.Duration `mapstructure:"once_deadline"`
}

type RetryConfig struct {
	MaxRetries       int           `mapstructure:"max_retries"`
	Backoff          time.Duration `mapstructure:"backoff"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

type ObservabilityConfig struct {
	// MetricsPath, when set, receives JSON lines of recognition events.
	MetricsPath string `mapstructure:"metrics_path"`
	// VolumeSampleRate keeps one audio.volume event in N.
	VolumeSampleRate int    `mapstructure:"volume_sample_rate"`
	ArtifactsDir     string `mapstructure:"artifacts_dir"`
	RecordAudio      bool   `mapstructure:"record_audio"`
	// Timeline writes one JSONL trace per session into ArtifactsDir.
	Timeline  bool `mapstructure:"timeline"`
	LogEvents bool `mapstructure:"log_events"`
	// Retention purges artifacts older than this at startup; zero keeps all.
	Retention time.Duration `mapstructure:"retention"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return errorsx.Wrap(fmt.Errorf("load env file %s: %w", p, err), errorsx.ReasonConfig)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	def := trigger.DefaultConfig()
	business := xfyun.DefaultBusinessParams()

	v.SetDefault("xfyun.app_id", "")
	v.SetDefault("xfyun.api_key", "")
	v.SetDefault("xfyun.api_secret", "")
	v.SetDefault("xfyun.host", xfyun.DefaultHost)
	v.SetDefault("xfyun.business.language", business.Language)
	v.SetDefault("xfyun.business.domain", business.Domain)
	v.SetDefault("xfyun.business.accent", business.Accent)
	v.SetDefault("xfyun.business.vinfo", business.VInfo)
	v.SetDefault("xfyun.business.vad_eos", business.VADEOS)
	v.SetDefault("xfyun.business.dwa", business.DWA)
	v.SetDefault("xfyun.business.ptt", business.PTT)
	v.SetDefault("xfyun.business.rlang", business.RLang)
	v.SetDefault("xfyun.business.nunum", business.NuNum)
	v.SetDefault("trigger.keywords", def.Keywords)
	v.SetDefault("trigger.hard_deadline", def.HardDeadline)
	v.SetDefault("trigger.min_speech_duration", def.MinSpeechDuration)
	v.SetDefault("trigger.max_silence_frames", def.MaxSilenceFrames)
	v.SetDefault("trigger.high_threshold", def.HighThreshold)
	v.SetDefault("trigger.low_threshold", def.LowThreshold)
	v.SetDefault("audio.provider", "portaudio")
	v.SetDefault("session.handshake_timeout", xfyun.DefaultHandshakeTimeout)
	v.SetDefault("session.write_timeout", xfyun.DefaultWriteTimeout)
	v.SetDefault("session.final_wait", xfyun.DefaultFinalWait)
	v.SetDefault("session.once_deadline", xfyun.DefaultOnceDeadline)
	v.SetDefault("retry.max_retries", 1)
	v.SetDefault("retry.backoff", 500*time.Millisecond)
	v.SetDefault("retry.breaker_threshold", 3)
	v.SetDefault("retry.breaker_cooldown", 30*time.Second)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("observability.metrics_path", "")
	v.SetDefault("observability.volume_sample_rate", 25)
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.record_audio", false)
	v.SetDefault("observability.timeline", false)
	v.SetDefault("observability.log_events", false)
	v.SetDefault("observability.retention", "0s")
	v.SetDefault("privacy.redact_pii", true)
}

// LoadConfig reads defaults, the optional YAML file at path and environment
// overrides. The credential variables used by the iFlytek console
// (XFYUN_APP_ID, XFYUN_API_KEY, XFYUN_API_SECRET) are honored as well.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("xfyun.app_id", EnvPrefix+"_XFYUN_APP_ID", "XFYUN_APP_ID")
	_ = v.BindEnv("xfyun.api_key", EnvPrefix+"_XFYUN_API_KEY", "XFYUN_API_KEY")
	_ = v.BindEnv("xfyun.api_secret", EnvPrefix+"_XFYUN_API_SECRET", "XFYUN_API_SECRET")

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errorsx.Wrap(fmt.Errorf("read config: %w", err), errorsx.ReasonConfig)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("unmarshal: %w", err), errorsx.ReasonConfig)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("validate config: %w", err), errorsx.ReasonConfig)
	}
	return cfg, nil
}

// Validate checks structure only. Credentials are checked when a session
// starts so commands that never dial still work without them.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Audio.Provider) == "" {
		return fmt.Errorf("audio.provider is required")
	}
	if strings.TrimSpace(c.XFYun.Host) == "" {
		return fmt.Errorf("xfyun.host is required")
	}
	if err := c.Trigger.Validate(); err != nil {
		return err
	}
	if c.Session.FinalWait < 0 || c.Session.WriteTimeout < 0 || c.Session.HandshakeTimeout < 0 || c.Session.OnceDeadline < 0 {
		return fmt.Errorf("session timeouts must not be negative")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if (c.Observability.RecordAudio || c.Observability.Timeline) && strings.TrimSpace(c.Observability.ArtifactsDir) == "" {
		return fmt.Errorf("observability.artifacts_dir is required when record_audio or timeline is enabled")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Audio.Settings = expandSettings(cfg.Audio.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
