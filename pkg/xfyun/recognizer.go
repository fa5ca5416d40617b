package xfyun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/navvoice/pkg/errorsx"
	"github.com/harunnryd/navvoice/pkg/frames"
	"github.com/harunnryd/navvoice/pkg/metrics"
	"github.com/harunnryd/navvoice/pkg/trigger"
)

var errSessionClosed = errors.New("session closed")

// endCause records why the sender stopped when no trigger decision was made.
type endCause int

const (
	endNone endCause = iota
	endExhausted
	endDeadline
	endCanceled
	endAborted
)

type sessionConfig struct {
	id           string
	appID        string
	business     BusinessParams
	writeTimeout time.Duration
	finalWait    time.Duration
	record       bool
}

// session is one recognition exchange over a dialed socket. The sender owns
// the trigger policy and frame sequencing; the receiver is the only writer
// of the transcript.
type session struct {
	cfg      sessionConfig
	conn     *websocket.Conn
	policy   *trigger.Policy
	sm       *stateMachine
	observer metrics.Observer
	logger   *slog.Logger

	// sendMu serializes socket writes with the transition to Done.
	sendMu    sync.Mutex
	framesOut int
	firstSent bool

	lastSent  atomic.Bool
	finalSeen atomic.Bool
	closing   atomic.Bool

	finished   chan struct{}
	finishOnce sync.Once
	closeOnce  sync.Once

	// snapshots is a single-slot latest-wins handoff from receiver to sender.
	snapshots chan string
	final     atomic.Pointer[string]
	// transcript is touched only by the receiver.
	transcript strings.Builder

	causeMu sync.Mutex
	cause   error

	// Written by the sender, read after the group is joined.
	decision trigger.Decision
	ended    endCause
	recorded []byte
}

func newSession(cfg sessionConfig, conn *websocket.Conn, policy *trigger.Policy, sm *stateMachine, observer metrics.Observer, logger *slog.Logger) *session {
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	return &session{
		cfg:       cfg,
		conn:      conn,
		policy:    policy,
		sm:        sm,
		observer:  observer,
		logger:    logger,
		finished:  make(chan struct{}),
		snapshots: make(chan string, 1),
	}
}

// Text returns the latest transcript published by the receiver.
func (s *session) Text() string {
	if p := s.final.Load(); p != nil {
		return *p
	}
	return ""
}

// Finished is closed once the session reaches Done.
func (s *session) Finished() <-chan struct{} { return s.finished }

func (s *session) setCause(err error) {
	if err == nil {
		return
	}
	s.causeMu.Lock()
	defer s.causeMu.Unlock()
	if s.cause == nil {
		s.cause = err
	}
}

func (s *session) Cause() error {
	s.causeMu.Lock()
	defer s.causeMu.Unlock()
	return s.cause
}

// benign reports whether a send failure is an expected consequence of the
// session winding down rather than a transport fault.
func (s *session) benign() bool {
	return s.lastSent.Load() || s.finalSeen.Load() || s.closing.Load()
}

// readBenign reports whether a read failure ends the session cleanly: the
// final result arrived, the socket was closed on our side, or the server
// closed normally after Last. A drop before the final result is a fault.
func (s *session) readBenign(err error) bool {
	if s.finalSeen.Load() || s.closing.Load() {
		return true
	}
	return s.lastSent.Load() && websocket.IsCloseError(err, websocket.CloseNormalClosure)
}

// finish moves the session to Done. It holds the send lock so no frame can be
// written once Done is observed.
func (s *session) finish(reason string) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.finishOnce.Do(func() {
		if err := s.sm.Transition(StateDone, reason); err != nil {
			s.logger.Debug("asr_state_error", slog.String("error", err.Error()))
		}
		close(s.finished)
	})
}

// closeConn sends a normal close frame and releases the socket. Only called
// after Done, so it never races a data frame.
func (s *session) closeConn() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		deadline := time.Now().Add(s.cfg.writeTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
}

// writeFrame must be called with sendMu held.
func (s *session) writeFrame(kind FrameKind, payload []byte) error {
	if s.sm.Done() || s.lastSent.Load() {
		return errSessionClosed
	}
	msg, err := EncodeFrame(Frame{Kind: kind, Payload: payload, Seq: s.framesOut}, s.cfg.appID, s.cfg.business)
	if err != nil {
		return err
	}
	if s.cfg.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return err
	}
	seq := s.framesOut
	s.framesOut++
	if s.cfg.record && len(payload) > 0 {
		s.recorded = append(s.recorded, payload...)
	}
	s.observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventFrameSent,
		Time:  time.Now(),
		Value: float64(len(payload)),
		Tags: map[string]string{
			"session_id": s.cfg.id,
			"kind":       kind.String(),
			"seq":        strconv.Itoa(seq),
		},
	})
	s.logger.Debug("asr_frame_sent",
		slog.String("kind", kind.String()),
		slog.Int("seq", seq),
		slog.Int("size_bytes", len(payload)))
	return nil
}

// sendAudio writes one captured frame as First or Continue.
func (s *session) sendAudio(payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.firstSent {
		if err := s.writeFrame(FrameFirst, payload); err != nil {
			return err
		}
		s.firstSent = true
		return s.sm.Transition(StateSendingContinue, "first_frame_sent")
	}
	return s.writeFrame(FrameContinue, payload)
}

// sendLast closes the upload. A session that ends before any audio went out
// still sends First so the server sees a well-formed stream.
func (s *session) sendLast(payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sm.Done() || s.lastSent.Load() {
		return errSessionClosed
	}
	if !s.firstSent {
		if err := s.writeFrame(FrameFirst, payload); err != nil {
			return err
		}
		s.firstSent = true
		payload = nil
	}
	if err := s.sm.Transition(StateSendingLast, "last_frame"); err != nil {
		return err
	}
	if err := s.writeFrame(FrameLast, payload); err != nil {
		return err
	}
	s.lastSent.Store(true)
	return s.sm.Transition(StateAwaitingFinal, "last_frame_sent")
}

// FramesSent returns the number of frames written to the socket.
func (s *session) FramesSent() int {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.framesOut
}

func (s *session) sendFailed(err error) error {
	if errors.Is(err, errSessionClosed) || s.benign() {
		return nil
	}
	err = errorsx.Wrap(fmt.Errorf("send frame: %w", err), errorsx.ReasonTransportSend)
	s.setCause(err)
	s.logger.Warn("asr_send_failed", slog.String("error", err.Error()))
	return err
}

// sendLoop drains captured audio, feeds the trigger policy and streams frames
// until a decision is made, the source ends, or ctx is done. parent is the
// caller's context and tells cancellation apart from the deadline.
func (s *session) sendLoop(ctx, parent context.Context, in <-chan frames.AudioFrame, stopCapture context.CancelFunc) error {
	defer s.finish("sender_exit")
	defer stopCapture()

	transcript := ""
	observed := 0
	for {
		select {
		case <-s.finished:
			return nil
		case <-ctx.Done():
			return s.interrupt(parent, stopCapture)
		case text := <-s.snapshots:
			transcript = text
			if d := s.policy.ObserveTranscript(transcript); d.Done() {
				return s.conclude(ctx, d, nil, stopCapture)
			}
		case f, ok := <-in:
			if !ok {
				if ctx.Err() != nil {
					return s.interrupt(parent, stopCapture)
				}
				s.ended = endExhausted
				return s.conclude(ctx, trigger.Decision{}, nil, stopCapture)
			}
			select {
			case text := <-s.snapshots:
				transcript = text
			default:
			}
			elapsed := time.Duration(observed) * frames.FrameDuration
			observed++
			volume := f.Volume()
			s.observer.RecordEvent(metrics.MetricsEvent{
				Name:  metrics.EventAudioVolume,
				Time:  time.Now(),
				Value: float64(volume),
				Tags:  map[string]string{"session_id": s.cfg.id},
			})
			payload := f.Data()
			frames.ReleaseAudioFrame(f)
			if d := s.policy.Observe(volume, elapsed, transcript); d.Done() {
				return s.conclude(ctx, d, payload, stopCapture)
			}
			if err := s.sendAudio(payload); err != nil {
				return s.sendFailed(err)
			}
		}
	}
}

// interrupt ends the upload after the deadline, a cancel, or a sibling
// failure. Last still goes out when the socket allows it.
func (s *session) interrupt(parent context.Context, stopCapture context.CancelFunc) error {
	switch {
	case s.Cause() != nil:
		s.ended = endAborted
	case parent.Err() != nil:
		s.ended = endCanceled
	default:
		s.ended = endDeadline
	}
	stopCapture()
	if err := s.sendLast(nil); err != nil {
		return s.sendFailed(err)
	}
	return nil
}

// conclude sends Last and, unless a keyword ended the session, waits up to
// finalWait for the server to deliver its final result.
func (s *session) conclude(ctx context.Context, d trigger.Decision, payload []byte, stopCapture context.CancelFunc) error {
	s.decision = d
	stopCapture()
	if d.Done() {
		s.logger.Info("asr_trigger",
			slog.String("verdict", d.Verdict.String()),
			slog.String("keyword", d.Keyword))
	}
	if err := s.sendLast(payload); err != nil {
		return s.sendFailed(err)
	}
	if d.Verdict == trigger.Keyword {
		return nil
	}

	timer := time.NewTimer(s.cfg.finalWait)
	defer timer.Stop()
	select {
	case <-s.finished:
	case <-timer.C:
		s.logger.Debug("asr_final_wait_expired", slog.Duration("final_wait", s.cfg.finalWait))
	case <-ctx.Done():
	}
	return nil
}

// readLoop parses inbound messages until the server signals finality, returns
// an error, or the socket is closed.
func (s *session) readLoop() error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.readBenign(err) {
				s.finish("socket_closed")
				return nil
			}
			err = errorsx.Wrap(fmt.Errorf("read message: %w", err), errorsx.ReasonTransportRecv)
			s.setCause(err)
			s.logger.Warn("asr_read_failed", slog.String("error", err.Error()))
			s.finish("transport_error")
			return err
		}
		if stop := s.handleMessage(data); stop {
			return nil
		}
	}
}

// handleMessage applies one inbound message and reports whether the session
// is finished. Malformed payloads are logged and ignored.
func (s *session) handleMessage(data []byte) bool {
	resp, err := DecodeResponse(data)
	if err != nil {
		s.logger.Warn("asr_message_malformed", slog.String("error", err.Error()))
		return false
	}
	if resp.Code != 0 {
		remote := &RemoteError{Code: resp.Code, Message: resp.Message, SID: resp.SID}
		s.setCause(errorsx.Wrap(remote, errorsx.ReasonRemote))
		s.logger.Error("asr_remote_error",
			slog.Int("code", resp.Code),
			slog.String("message", resp.Message),
			slog.String("sid", resp.SID))
		s.finish("remote_error")
		return true
	}
	if resp.Data == nil || resp.Data.Result == nil {
		s.logger.Debug("asr_message_without_result", slog.String("sid", resp.SID))
	} else if text := resp.Text(); text != "" {
		s.transcript.WriteString(text)
		s.publish(s.transcript.String())
	}
	if resp.Final() {
		s.finalSeen.Store(true)
		s.logger.Debug("asr_server_final", slog.String("sid", resp.SID))
		s.finish("server_final")
		return true
	}
	return false
}

// publish stores the transcript and offers it to the sender, replacing any
// snapshot the sender has not consumed yet.
func (s *session) publish(text string) {
	s.final.Store(&text)
	s.observer.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventTranscript,
		Time:   time.Now(),
		Value:  float64(len(text)),
		Tags:   map[string]string{"session_id": s.cfg.id},
		Fields: map[string]any{"text": text},
	})
	for {
		select {
		case s.snapshots <- text:
			return
		default:
		}
		select {
		case <-s.snapshots:
		default:
		}
	}
}
