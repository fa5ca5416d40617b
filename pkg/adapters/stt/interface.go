package stt

import (
	"context"
	"time"

	"github.com/harunnryd/navvoice/pkg/trigger"
)

// Reason explains why a recognition session ended.
type Reason string

const (
	ReasonKeyword        Reason = "keyword"
	ReasonSilenceEnd     Reason = "silence_end"
	ReasonHardTimeout    Reason = "hard_timeout"
	ReasonNoSpeech       Reason = "no_speech"
	ReasonRemoteError    Reason = "remote_error"
	ReasonTransportError Reason = "transport_error"
	ReasonConfigError    Reason = "config_error"
	ReasonCanceled       Reason = "canceled"
)

// IsError reports whether the caller should fall back to another input path.
func (r Reason) IsError() bool {
	switch r {
	case ReasonRemoteError, ReasonTransportError, ReasonConfigError:
		return true
	}
	return false
}

// Outcome is the single result of one recognition call.
type Outcome struct {
	SessionID  string
	Text       string
	Reason     Reason
	Keyword    string
	Err        error
	Elapsed    time.Duration
	FramesSent int
}

// Recognizer defines the contract for a streaming recognition vendor.
type Recognizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Recognize runs one session bounded by deadline and never returns a bare error:
	// every terminal condition is described by the Outcome.
	Recognize(ctx context.Context, cfg trigger.Config, deadline time.Duration) Outcome
}
