package xfyun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harunnryd/navvoice/pkg/adapters/capture"
	"github.com/harunnryd/navvoice/pkg/adapters/stt"
	"github.com/harunnryd/navvoice/pkg/errorsx"
	"github.com/harunnryd/navvoice/pkg/frames"
	"github.com/harunnryd/navvoice/pkg/logging"
	"github.com/harunnryd/navvoice/pkg/metrics"
	"github.com/harunnryd/navvoice/pkg/providers/wavfile"
	"github.com/harunnryd/navvoice/pkg/redact"
	"github.com/harunnryd/navvoice/pkg/trigger"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultFinalWait        = 3 * time.Second
	DefaultOnceDeadline     = 10 * time.Second
	DefaultCheckTimeout     = 5 * time.Second

	// captureQueue bounds the frames buffered between capture and sender.
	captureQueue = 8
)

// Config wires a Client.
type Config struct {
	Credentials Credentials
	Signer      Signer
	Business    BusinessParams
	// Trigger is used by Listen.
	Trigger trigger.Config

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// FinalWait bounds how long a session waits for server finality after Last.
	FinalWait time.Duration
	// OnceDeadline caps a RecognizeOnce capture.
	OnceDeadline time.Duration

	Source   capture.Source
	Observer metrics.Observer
	Logger   *slog.Logger
	// RecordDir, when set, receives one WAV file per session with the audio sent.
	RecordDir string

	// Now and Dialer are overridable for tests.
	Now    func() time.Time
	Dialer *websocket.Dialer
}

// Client runs single-shot recognition sessions against the IAT service.
// It holds no per-session state and is safe for concurrent use as long as
// its Source is.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.Signer == (Signer{}) {
		cfg.Signer = NewSigner()
	}
	if cfg.Business == (BusinessParams{}) {
		cfg.Business = DefaultBusinessParams()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.FinalWait <= 0 {
		cfg.FinalWait = DefaultFinalWait
	}
	if cfg.OnceDeadline <= 0 {
		cfg.OnceDeadline = DefaultOnceDeadline
	}
	if cfg.Trigger.HardDeadline <= 0 && len(cfg.Trigger.Keywords) == 0 {
		cfg.Trigger = trigger.DefaultConfig()
	}
	if cfg.Observer == nil {
		cfg.Observer = metrics.NoopObserver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		cfg:    cfg,
		logger: logging.NewComponentLogger(cfg.Logger, "xfyun"),
	}
}

func (c *Client) Name() string { return "xfyun_iat" }

// Listen runs a smart-trigger session with the configured keywords. The
// wall-clock bound leaves room for the server's final result.
func (c *Client) Listen(ctx context.Context) stt.Outcome {
	cfg := c.cfg.Trigger.WithDefaults()
	return c.Recognize(ctx, cfg, cfg.HardDeadline+c.cfg.FinalWait)
}

// Confirm listens for a short accept/decline answer. Keywords and deadline
// come from the confirmation preset; VAD tuning follows the configured trigger.
func (c *Client) Confirm(ctx context.Context) stt.Outcome {
	base := c.cfg.Trigger.WithDefaults()
	cfg := trigger.ConfirmationConfig()
	cfg.HighThreshold = base.HighThreshold
	cfg.LowThreshold = base.LowThreshold
	cfg.MinSpeechDuration = base.MinSpeechDuration
	cfg.MaxSilenceFrames = base.MaxSilenceFrames
	return c.Recognize(ctx, cfg, trigger.ConfirmationDeadline)
}

// RecognizeOnce captures without keyword spotting for at most OnceDeadline.
func (c *Client) RecognizeOnce(ctx context.Context) stt.Outcome {
	cfg := c.cfg.Trigger.WithDefaults()
	cfg.Keywords = nil
	cfg.HardDeadline = c.cfg.OnceDeadline
	return c.Recognize(ctx, cfg, c.cfg.OnceDeadline+c.cfg.FinalWait)
}

// Recognize streams audio from the configured source until the trigger policy,
// the server, or deadline ends the session. It never returns a bare error;
// every terminal condition is described by the Outcome.
func (c *Client) Recognize(ctx context.Context, tcfg trigger.Config, deadline time.Duration) stt.Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	id := uuid.NewString()
	logger := c.logger.With(slog.String("session_id", id))
	out := stt.Outcome{SessionID: id}

	tcfg = tcfg.WithDefaults()
	if err := tcfg.Validate(); err != nil {
		return c.done(logger, out, stt.ReasonConfigError, errorsx.Wrap(err, errorsx.ReasonConfig), started)
	}
	if deadline <= 0 {
		deadline = tcfg.HardDeadline
	}
	if c.cfg.Source == nil {
		return c.done(logger, out, stt.ReasonConfigError, errorsx.New(errorsx.ReasonConfig, "audio source is not configured"), started)
	}
	rawURL, err := c.cfg.Signer.BuildURL(c.cfg.Credentials, c.cfg.Now())
	if err != nil {
		return c.done(logger, out, stt.ReasonConfigError, err, started)
	}

	sm := newStateMachine(StateListenerFunc(func(ev StateChange) {
		c.cfg.Observer.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventState,
			Time: ev.Timestamp,
			Tags: map[string]string{
				"session_id": id,
				"from":       ev.From.String(),
				"to":         ev.To.String(),
				"reason":     ev.Reason,
			},
		})
	}))

	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	_ = sm.Transition(StateConnecting, "dial")
	conn, err := c.dial(runCtx, rawURL, logger)
	if err != nil {
		_ = sm.Transition(StateDone, "dial_failed")
		if ctx.Err() != nil {
			return c.done(logger, out, stt.ReasonCanceled, ctx.Err(), started)
		}
		return c.done(logger, out, stt.ReasonTransportError, err, started)
	}
	_ = sm.Transition(StateSendingFirst, "connected")

	s := newSession(sessionConfig{
		id:           id,
		appID:        c.cfg.Credentials.AppID,
		business:     c.cfg.Business,
		writeTimeout: c.cfg.WriteTimeout,
		finalWait:    c.cfg.FinalWait,
		record:       c.cfg.RecordDir != "",
	}, conn, trigger.New(tcfg), sm, c.cfg.Observer, logger)

	g, gctx := errgroup.WithContext(runCtx)
	captureCtx, stopCapture := context.WithCancel(gctx)
	defer stopCapture()
	audioCh := make(chan frames.AudioFrame, captureQueue)

	g.Go(func() error {
		if err := c.cfg.Source.Stream(captureCtx, audioCh); err != nil && captureCtx.Err() == nil {
			if errorsx.Reason(err) == errorsx.ReasonUnknown {
				err = errorsx.Wrap(err, errorsx.ReasonAudioRead)
			}
			s.setCause(err)
			logger.Error("asr_capture_failed",
				slog.String("source", c.cfg.Source.Name()),
				slog.String("error", err.Error()))
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.sendLoop(gctx, ctx, audioCh, stopCapture)
	})
	g.Go(s.readLoop)
	g.Go(func() error {
		<-s.Finished()
		s.closeConn()
		return nil
	})

	_ = g.Wait()

	out.Text = s.Text()
	out.FramesSent = s.FramesSent()
	reason, keyword := classify(s, tcfg, out.Text)
	out.Keyword = keyword
	if c.cfg.RecordDir != "" {
		c.record(logger, id, s.recorded)
	}
	var cause error
	if reason.IsError() {
		cause = s.Cause()
	} else if reason == stt.ReasonCanceled {
		cause = ctx.Err()
	}
	return c.done(logger, out, reason, cause, started)
}

// classify derives the outcome reason from what the session observed. A
// keyword anywhere in the transcript wins over every other ending.
func classify(s *session, tcfg trigger.Config, text string) (stt.Reason, string) {
	d := s.decision
	if d.Verdict != trigger.Keyword {
		if hit := trigger.New(tcfg).ObserveTranscript(text); hit.Verdict == trigger.Keyword {
			d = hit
		}
	}
	if d.Verdict == trigger.Keyword {
		return stt.ReasonKeyword, d.Keyword
	}
	if cause := s.Cause(); cause != nil {
		var remote *RemoteError
		if errors.As(cause, &remote) {
			return stt.ReasonRemoteError, ""
		}
		return stt.ReasonTransportError, ""
	}
	switch d.Verdict {
	case trigger.SilenceEnd:
		return stt.ReasonSilenceEnd, ""
	case trigger.HardTimeout:
		return stt.ReasonHardTimeout, ""
	}
	switch s.ended {
	case endDeadline:
		return stt.ReasonHardTimeout, ""
	case endCanceled:
		return stt.ReasonCanceled, ""
	}
	if text == "" {
		return stt.ReasonNoSpeech, ""
	}
	return stt.ReasonSilenceEnd, ""
}

func (c *Client) dial(ctx context.Context, rawURL string, logger *slog.Logger) (*websocket.Conn, error) {
	dialer := c.cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: c.cfg.HandshakeTimeout,
		}
	}
	logger.Debug("asr_connecting", slog.String("url", redact.URL(rawURL)))
	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		attrs := []any{slog.String("error", err.Error())}
		if resp != nil {
			attrs = append(attrs, slog.Int("status", resp.StatusCode))
			err = fmt.Errorf("dial iat: %w (status %s)", err, resp.Status)
		} else {
			err = fmt.Errorf("dial iat: %w", err)
		}
		logger.Error("asr_connect_failed", attrs...)
		return nil, errorsx.Wrap(err, errorsx.ReasonTransportDial)
	}
	logger.Info("asr_connected", slog.String("host", c.cfg.Signer.withDefaults().Host))
	return conn, nil
}

func (c *Client) record(logger *slog.Logger, id string, pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	path := filepath.Join(c.cfg.RecordDir, id+".wav")
	if err := wavfile.Write(path, pcm); err != nil {
		logger.Warn("asr_record_failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	logger.Debug("asr_recorded", slog.String("path", path), slog.Int("size_bytes", len(pcm)))
}

func (c *Client) done(logger *slog.Logger, out stt.Outcome, reason stt.Reason, err error, started time.Time) stt.Outcome {
	out.Reason = reason
	out.Err = err
	out.Elapsed = time.Since(started)
	c.cfg.Observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventSession,
		Time:  time.Now(),
		Value: float64(out.Elapsed.Milliseconds()),
		Tags: map[string]string{
			"session_id": out.SessionID,
			"reason":     string(reason),
		},
		Fields: map[string]any{
			"frames_sent": out.FramesSent,
			"text_len":    len(out.Text),
		},
	})
	attrs := []any{
		slog.String("reason", string(reason)),
		slog.Int("frames_sent", out.FramesSent),
		slog.Duration("elapsed", out.Elapsed),
		slog.String("text", redact.Text(out.Text)),
	}
	if out.Keyword != "" {
		attrs = append(attrs, slog.String("keyword", out.Keyword))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		logger.Warn("asr_session_done", attrs...)
	} else {
		logger.Info("asr_session_done", attrs...)
	}
	return out
}

// Check validates credentials, signs a URL and confirms the service host
// accepts TCP connections. It does not open a recognition session.
func (c *Client) Check(ctx context.Context) error {
	rawURL, err := c.cfg.Signer.BuildURL(c.cfg.Credentials, c.cfg.Now())
	if err != nil {
		return err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("parse signed url: %w", err), errorsx.ReasonConfig)
	}
	host := c.cfg.Signer.withDefaults().Host
	if u.Host != host || u.Query().Get("authorization") == "" {
		return errorsx.New(errorsx.ReasonConfig, "signed url does not target "+host)
	}
	addr := host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "ws" {
			port = "80"
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}
	dialer := net.Dialer{Timeout: DefaultCheckTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.logger.Warn("asr_check_failed", slog.String("addr", addr), slog.String("error", err.Error()))
		return errorsx.Wrap(fmt.Errorf("connect %s: %w", addr, err), errorsx.ReasonTransportDial)
	}
	_ = conn.Close()
	c.logger.Info("asr_check_ok", slog.String("addr", addr))
	return nil
}

var _ stt.Recognizer = (*Client)(nil)
