package navvoice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/harunnryd/navvoice/pkg/adapters/capture"
	"github.com/harunnryd/navvoice/pkg/adapters/stt"
	"github.com/harunnryd/navvoice/pkg/errorsx"
	"github.com/harunnryd/navvoice/pkg/logging"
	"github.com/harunnryd/navvoice/pkg/metrics"
	"github.com/harunnryd/navvoice/pkg/observers"
	"github.com/harunnryd/navvoice/pkg/redact"
	"github.com/harunnryd/navvoice/pkg/resilience"
	"github.com/harunnryd/navvoice/pkg/xfyun"
)

// Mode selects which recognition call a Service makes.
type Mode string

const (
	ModeListen  Mode = "listen"
	ModeConfirm Mode = "confirm"
	ModeOnce    Mode = "once"
)

// Options override the pieces a Service would otherwise build from Config.
type Options struct {
	Registry *SourceRegistry
	// Source replaces the audio.provider lookup.
	Source   capture.Source
	Observer metrics.Observer
	Logger   *slog.Logger
	// Signer replaces the endpoint derived from xfyun.host.
	Signer *xfyun.Signer
}

// Service runs recognition sessions with retry on transport failures and a
// breaker that stops dialing after repeated service errors.
type Service struct {
	client  *xfyun.Client
	retry   resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	closers []func() error
}

func NewService(cfg Config, opts Options) (*Service, error) {
	logger := logging.NewComponentLogger(opts.Logger, "navvoice")
	redact.SetEnabled(cfg.Privacy.RedactPII)

	src := opts.Source
	if src == nil {
		registry := opts.Registry
		if registry == nil {
			registry = DefaultSourceRegistry()
		}
		built, err := registry.Build(cfg.Audio)
		if err != nil {
			return nil, err
		}
		src = built
	}

	s := &Service{
		retry:   resilience.NewRetryPolicy(cfg.Retry.MaxRetries, cfg.Retry.Backoff),
		breaker: resilience.NewCircuitBreaker(cfg.Retry.BreakerThreshold, cfg.Retry.BreakerCooldown),
		logger:  logger,
	}

	observer, err := s.buildObserver(cfg.Observability, opts.Observer, logger)
	if err != nil {
		return nil, err
	}

	signer := xfyun.NewSigner()
	signer.Host = cfg.XFYun.Host
	if opts.Signer != nil {
		signer = *opts.Signer
	}

	recordDir := ""
	if cfg.Observability.RecordAudio {
		recordDir = cfg.Observability.ArtifactsDir
		if err := os.MkdirAll(recordDir, 0o755); err != nil {
			_ = s.Close()
			return nil, errorsx.Wrap(fmt.Errorf("create artifacts dir: %w", err), errorsx.ReasonConfig)
		}
	}
	if removed, err := observers.PurgeArtifacts(cfg.Observability.ArtifactsDir, cfg.Observability.Retention); err != nil {
		logger.Warn("artifact_purge_failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		logger.Info("artifacts_purged", slog.Int("count", removed))
	}

	s.client = xfyun.New(xfyun.Config{
		Credentials:      cfg.XFYun.Credentials(),
		Signer:           signer,
		Business:         cfg.XFYun.Business,
		Trigger:          cfg.Trigger,
		HandshakeTimeout: cfg.Session.HandshakeTimeout,
		WriteTimeout:     cfg.Session.WriteTimeout,
		FinalWait:        cfg.Session.FinalWait,
		OnceDeadline:     cfg.Session.OnceDeadline,
		Source:           src,
		Observer:         observer,
		Logger:           opts.Logger,
		RecordDir:        recordDir,
	})
	logger.Debug("service_ready",
		slog.String("source", src.Name()),
		slog.String("host", signer.Host),
		slog.String("app_id", redact.Secret(cfg.XFYun.AppID)))
	return s, nil
}

// buildObserver chains the optional JSONL file behind an async writer,
// attaches the per-session timeline and latency log, and thins audio.volume
// events.
func (s *Service) buildObserver(cfg ObservabilityConfig, extra metrics.Observer, logger *slog.Logger) (metrics.Observer, error) {
	fan := metrics.Fanout{observers.NewLatencyObserver(logger)}
	if extra != nil {
		fan = append(fan, extra)
	}
	if cfg.LogEvents {
		fan = append(fan, observers.NewLoggerObserver(logger))
	}
	if cfg.Timeline {
		timeline := observers.NewTimelineObserver(cfg.ArtifactsDir)
		s.closers = append(s.closers, timeline.Close)
		fan = append(fan, timeline)
	}
	if path := strings.TrimSpace(cfg.MetricsPath); path != "" {
		file, err := metrics.OpenJSONLFile(path)
		if err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonConfig)
		}
		async := metrics.NewAsyncObserver(file, 1024)
		s.closers = append(s.closers, async.Close, file.Close)
		fan = append(fan, async)
	}
	return metrics.NewSamplingObserver(fan, cfg.VolumeSampleRate, metrics.EventAudioVolume), nil
}

// Client exposes the underlying recognizer.
func (s *Service) Client() *xfyun.Client { return s.client }

// Recognize runs one call in the given mode. Transport failures are retried
// with a fresh session; remote and config errors are returned as is.
func (s *Service) Recognize(ctx context.Context, mode Mode) stt.Outcome {
	if !s.breaker.Allow() {
		s.logger.Warn("recognition_skipped", slog.String("reason", "circuit_open"))
		return stt.Outcome{Reason: stt.ReasonTransportError, Err: resilience.ErrCircuitOpen}
	}

	var out stt.Outcome
	_ = s.retry.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			s.logger.Info("recognition_retry", slog.Int("attempt", attempt), slog.String("mode", string(mode)))
		}
		out = s.run(ctx, mode)
		if out.Reason == stt.ReasonTransportError {
			return out.Err
		}
		return nil
	})

	switch {
	case out.Reason == stt.ReasonTransportError || out.Reason == stt.ReasonRemoteError:
		s.breaker.OnError(out.Err)
	case out.Reason != stt.ReasonConfigError:
		s.breaker.OnSuccess()
	}
	return out
}

func (s *Service) run(ctx context.Context, mode Mode) stt.Outcome {
	switch mode {
	case ModeConfirm:
		return s.client.Confirm(ctx)
	case ModeOnce:
		return s.client.RecognizeOnce(ctx)
	default:
		return s.client.Listen(ctx)
	}
}

// Check verifies credentials and reachability without recognizing.
func (s *Service) Check(ctx context.Context) error {
	return s.client.Check(ctx)
}

// Close flushes and releases metrics sinks.
func (s *Service) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
