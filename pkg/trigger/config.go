package trigger

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultHardDeadline      = 12 * time.Second
	DefaultMinSpeechDuration = time.Second
	// DefaultMaxSilenceFrames is roughly three seconds of 40 ms frames.
	DefaultMaxSilenceFrames = 75
	DefaultHighThreshold    = 800
	DefaultLowThreshold     = 300

	ConfirmationDeadline = 6 * time.Second
)

// DefaultKeywords end a navigation request as soon as they are heard.
var DefaultKeywords = []string{"开始导航", "导航", "开始", "走吧", "出发"}

// ConfirmationKeywords cover both accepting and declining a proposed route.
var ConfirmationKeywords = []string{
	"确认", "好的", "开始导航", "开始", "导航", "走吧", "出发",
	"取消", "不要", "不用", "算了",
}

// Config controls when a recognition session has heard enough.
type Config struct {
	Keywords          []string      `mapstructure:"keywords"`
	HardDeadline      time.Duration `mapstructure:"hard_deadline"`
	MinSpeechDuration time.Duration `mapstructure:"min_speech_duration"`
	MaxSilenceFrames  int           `mapstructure:"max_silence_frames"`
	HighThreshold     int           `mapstructure:"high_threshold"`
	LowThreshold      int           `mapstructure:"low_threshold"`
}

// DefaultConfig returns the smart-trigger settings used for navigation requests.
func DefaultConfig() Config {
	return Config{
		Keywords:          append([]string(nil), DefaultKeywords...),
		HardDeadline:      DefaultHardDeadline,
		MinSpeechDuration: DefaultMinSpeechDuration,
		MaxSilenceFrames:  DefaultMaxSilenceFrames,
		HighThreshold:     DefaultHighThreshold,
		LowThreshold:      DefaultLowThreshold,
	}
}

// ConfirmationConfig returns settings for a short yes/no confirmation.
func ConfirmationConfig() Config {
	cfg := DefaultConfig()
	cfg.Keywords = append([]string(nil), ConfirmationKeywords...)
	cfg.HardDeadline = ConfirmationDeadline
	return cfg
}

// WithDefaults fills zero-valued timing and threshold fields.
// Keywords are left untouched so a caller may disable keyword spotting.
func (c Config) WithDefaults() Config {
	if c.HardDeadline <= 0 {
		c.HardDeadline = DefaultHardDeadline
	}
	if c.MinSpeechDuration < 0 {
		c.MinSpeechDuration = DefaultMinSpeechDuration
	}
	if c.MaxSilenceFrames <= 0 {
		c.MaxSilenceFrames = DefaultMaxSilenceFrames
	}
	if c.HighThreshold <= 0 {
		c.HighThreshold = DefaultHighThreshold
	}
	if c.LowThreshold <= 0 {
		c.LowThreshold = DefaultLowThreshold
	}
	return c
}

func (c Config) Validate() error {
	if c.HardDeadline <= 0 {
		return fmt.Errorf("trigger.hard_deadline must be positive, got %s", c.HardDeadline)
	}
	if c.MinSpeechDuration < 0 {
		return fmt.Errorf("trigger.min_speech_duration must not be negative, got %s", c.MinSpeechDuration)
	}
	if c.MaxSilenceFrames <= 0 {
		return fmt.Errorf("trigger.max_silence_frames must be positive, got %d", c.MaxSilenceFrames)
	}
	if c.LowThreshold > c.HighThreshold {
		return fmt.Errorf("trigger.low_threshold (%d) must not exceed trigger.high_threshold (%d)", c.LowThreshold, c.HighThreshold)
	}
	for i, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("trigger.keywords[%d] is empty", i)
		}
	}
	return nil
}
