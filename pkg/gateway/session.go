package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/kookworks/kgate/internal/errors"
	"github.com/kookworks/kgate/pkg/protocol"
	"github.com/kookworks/kgate/pkg/telemetry"
)

// EventHandler receives the payload of every Event envelope, in
// arrival order, on the session goroutine.
type EventHandler func(ctx context.Context, payload json.RawMessage)

// Session timing defaults.
const (
	defaultHelloTimeout      = 5 * time.Second
	defaultHeartbeatInterval = 25 * time.Second
	defaultHeartbeatJitter   = 10 * time.Second
	defaultHeartbeatTimeout  = 6 * time.Second
	defaultReconnectBase     = 1 * time.Second
	defaultMaxReconnects     = 10
)

// SessionConfig wires a Session. URL, Transport and Handler are
// required; zero timing fields take the defaults above.
type SessionConfig struct {
	URL       GatewayURLFunc
	Transport Transport
	Handler   EventHandler

	// Compress asks the gateway for zlib-deflated frames.
	Compress bool

	// EncryptKey enables AES frame decryption when non-empty.
	EncryptKey string

	HelloTimeout      time.Duration
	HeartbeatInterval time.Duration
	HeartbeatJitter   time.Duration
	HeartbeatTimeout  time.Duration
	ReconnectBase     time.Duration
	MaxReconnects     int

	Logger *slog.Logger
}

// Session drives one logical gateway connection through its whole
// lifecycle: URL pull, dial, hello handshake, heartbeats, reconnect
// with backoff, and resume. Run owns all mutable state; the only
// concurrent entry points are State and Disconnect.
type Session struct {
	cfg    SessionConfig
	frames *protocol.FrameReader
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc

	// Owned by the Run goroutine.
	sequence     int64
	haveSequence bool
	sessionID    string
	attempt      int
	lastPing     time.Time
	awaitingPong bool
}

// NewSession creates a session. It does not connect until Run.
func NewSession(cfg SessionConfig) *Session {
	if cfg.HelloTimeout == 0 {
		cfg.HelloTimeout = defaultHelloTimeout
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.HeartbeatJitter == 0 {
		cfg.HeartbeatJitter = defaultHeartbeatJitter
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if cfg.ReconnectBase == 0 {
		cfg.ReconnectBase = defaultReconnectBase
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = defaultMaxReconnects
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:    cfg,
		frames: protocol.NewFrameReader(cfg.EncryptKey, cfg.Compress),
		logger: logger.With("component", "gateway"),
		state:  StateInitial,
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Disconnect stops the session from any goroutine: it cancels timers,
// backoff waits and the live connection, and Run returns nil. Safe to
// call at any point of the lifecycle, including mid-handshake.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		telemetry.RecordState(int(next))
		s.logger.Debug("state change", "from", prev, "to", next)
	}
}

type cycleResult int

const (
	cycleShutdown cycleResult = iota
	// cycleRetryFresh repeats the connect without touching the
	// backoff counter. Used when hello times out or is refused.
	cycleRetryFresh
	cycleReconnect
)

// Run connects and serves until the context is cancelled, Disconnect
// is called, or the reconnect attempt cap is exhausted. Only the cap
// produces a non-nil error.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()
	defer s.setState(StateClosed)

	for {
		if ctx.Err() != nil {
			return nil
		}
		sctx, span := telemetry.StartSessionSpan(ctx, s.attempt)
		res := s.cycle(sctx)
		span.End()

		switch res {
		case cycleShutdown:
			return nil
		case cycleRetryFresh:
			// Pace fresh retries so a persistently refusing server
			// does not cause a tight loop.
			if !sleepCtx(ctx, s.cfg.ReconnectBase) {
				return nil
			}
		case cycleReconnect:
			if err := s.backoff(ctx); err != nil {
				return err
			}
		}
	}
}

// cycle performs one connection attempt: URL pull, dial, handshake,
// and if the handshake succeeds, the open-state serve loop.
func (s *Session) cycle(ctx context.Context) cycleResult {
	s.setState(StatePullingGateway)
	base, err := s.cfg.URL(ctx, s.cfg.Compress)
	if err != nil {
		if ctx.Err() != nil {
			return cycleShutdown
		}
		s.logger.Error("pull gateway url", "error", err)
		return cycleReconnect
	}

	target, err := resumeURL(base, s.sequence, s.haveSequence, s.sessionID)
	if err != nil {
		s.logger.Error("bad gateway url", "error", err)
		return cycleReconnect
	}

	s.setState(StateConnecting)
	conn, err := s.cfg.Transport.Open(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return cycleShutdown
		}
		s.logger.Error("dial gateway", "error", err)
		return cycleReconnect
	}
	defer conn.Close()

	hello, err := s.awaitHello(ctx, conn)
	if err != nil {
		if ctx.Err() != nil {
			return cycleShutdown
		}
		if errors.IsCategory(err, errors.CategoryTransport) {
			s.logger.Error("connection lost during handshake", "error", err)
			return cycleReconnect
		}
		s.logger.Warn("handshake discarded", "error", err)
		return cycleRetryFresh
	}
	if !hello.OK() {
		s.logger.Warn("hello refused", "error", errors.FromCode(hello.Code))
		return cycleRetryFresh
	}

	s.sessionID = hello.SessionID
	s.attempt = 0
	s.awaitingPong = false
	s.setState(StateOpen)
	s.logger.Info("session open", "session_id", hello.SessionID)

	reason, resetIdentity := s.serve(ctx, conn)
	if resetIdentity {
		s.resetResume()
	}
	if reason == reasonShutdown {
		return cycleShutdown
	}
	return cycleReconnect
}

// awaitHello reads frames until a hello arrives or the timeout fires.
// Non-hello frames before the handshake are dropped.
func (s *Session) awaitHello(ctx context.Context, conn Conn) (*protocol.HelloPayload, error) {
	timer := time.NewTimer(s.cfg.HelloTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, errors.Newf(errors.CategoryGateway, "no hello within %s", s.cfg.HelloTimeout)
		case data, ok := <-conn.Messages():
			if !ok {
				if err := conn.Err(); err != nil {
					return nil, err
				}
				return nil, errors.Newf(errors.CategoryTransport, "connection closed before hello")
			}
			env, ok := s.decodeFrame(data)
			if !ok || env.Op != protocol.OpHello {
				continue
			}
			return protocol.DecodeHello(env.Payload)
		}
	}
}

type closeReason int

const (
	reasonShutdown closeReason = iota
	reasonTransport
	reasonHeartbeat
	reasonReconnect
)

// serve pumps frames and heartbeats while the session is open. It
// returns why the connection ended and whether the resume identity
// must be dropped before the next attempt.
func (s *Session) serve(ctx context.Context, conn Conn) (closeReason, bool) {
	heartbeat := time.NewTimer(s.nextHeartbeat())
	defer heartbeat.Stop()
	timeout := time.NewTimer(s.cfg.HeartbeatTimeout)
	stopTimer(timeout)
	defer timeout.Stop()

	// Opening ping: reports our sequence immediately, which completes
	// a resume and starts the liveness exchange.
	if err := s.sendPing(conn); err != nil {
		s.logger.Error("send ping", "error", err)
		return reasonTransport, false
	}
	timeout.Reset(s.cfg.HeartbeatTimeout)

	for {
		select {
		case <-ctx.Done():
			return reasonShutdown, false

		case <-heartbeat.C:
			if err := s.sendPing(conn); err != nil {
				s.logger.Error("send ping", "error", err)
				return reasonTransport, false
			}
			heartbeat.Reset(s.nextHeartbeat())
			stopTimer(timeout)
			timeout.Reset(s.cfg.HeartbeatTimeout)

		case <-timeout.C:
			s.logger.Warn("heartbeat timeout", "after", s.cfg.HeartbeatTimeout)
			return reasonHeartbeat, false

		case data, ok := <-conn.Messages():
			if !ok {
				if err := conn.Err(); err != nil {
					s.logger.Error("connection lost", "error", err)
					return reasonTransport, false
				}
				// A clean peer closure asks us to stop, not retry.
				s.logger.Info("gateway closed the connection")
				return reasonShutdown, false
			}
			env, decoded := s.decodeFrame(data)
			if !decoded {
				continue
			}
			switch env.Op {
			case protocol.OpEvent:
				if s.cfg.Handler != nil {
					s.cfg.Handler(ctx, env.Payload)
				}
			case protocol.OpPong, protocol.OpResumeAck:
				if s.awaitingPong {
					telemetry.RecordHeartbeatRTT(time.Since(s.lastPing).Seconds())
					s.awaitingPong = false
				}
				stopTimer(timeout)
				if env.Op == protocol.OpResumeAck {
					s.logger.Info("resume acknowledged", "sn", s.sequence)
				}
			case protocol.OpReconnect:
				return reasonReconnect, s.handleReconnect(env.Payload)
			case protocol.OpHello, protocol.OpPing:
				// Neither is meaningful after the handshake.
			}
		}
	}
}

// decodeFrame unwraps and parses one inbound frame, tracking the
// sequence. A bad frame is dropped, never fatal.
func (s *Session) decodeFrame(data []byte) (*protocol.Envelope, bool) {
	plain, err := s.frames.Unwrap(data)
	if err != nil {
		telemetry.RecordDecodeError()
		s.logger.Warn("drop unreadable frame", "error", err)
		return nil, false
	}
	env, err := protocol.DecodeEnvelope(plain)
	if err != nil {
		telemetry.RecordDecodeError()
		s.logger.Warn("drop malformed envelope", "error", err)
		return nil, false
	}
	telemetry.RecordFrame(env.Op.String())
	if env.HasSequence() {
		s.sequence = *env.Sequence
		s.haveSequence = true
	}
	return env, true
}

// handleReconnect inspects the server's reconnect payload and reports
// whether the resume identity is no longer valid.
func (s *Session) handleReconnect(payload json.RawMessage) bool {
	p := protocol.DecodeReconnect(payload)
	switch p.Code {
	case protocol.ResumeMissingParams, protocol.ResumeSessionExpired, protocol.ResumeInvalidSN:
		telemetry.RecordResumeFailure()
		s.logger.Warn("resume rejected", "error", errors.FromCode(p.Code))
		return true
	}
	s.logger.Info("server requested reconnect", "code", p.Code)
	return false
}

func (s *Session) sendPing(conn Conn) error {
	s.lastPing = time.Now()
	s.awaitingPong = true
	return conn.Send(protocol.EncodePing(s.sequence))
}

// resetResume forgets the prior session so the next dial starts clean.
func (s *Session) resetResume() {
	s.sequence = 0
	s.haveSequence = false
	s.sessionID = ""
}

// backoff waits out the reconnect delay for the next attempt. It
// returns an error only when the attempt cap is exhausted.
func (s *Session) backoff(ctx context.Context) error {
	s.attempt++
	if s.attempt > s.cfg.MaxReconnects {
		return errors.Newf(errors.CategoryGateway, "gave up after %d reconnect attempts", s.cfg.MaxReconnects)
	}
	delay := backoffDelay(s.cfg.ReconnectBase, s.attempt)
	s.setState(StateReconnecting)
	telemetry.RecordReconnect()
	s.logger.Info("reconnecting", "attempt", s.attempt, "delay", delay)
	sleepCtx(ctx, delay)
	return nil
}

// backoffDelay doubles the base delay for every attempt past the first.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}

// nextHeartbeat jitters the ping interval so reconnecting clients do
// not synchronize against the server.
func (s *Session) nextHeartbeat() time.Duration {
	j := s.cfg.HeartbeatJitter
	if j <= 0 {
		return s.cfg.HeartbeatInterval
	}
	d := s.cfg.HeartbeatInterval + time.Duration(rand.Int63n(int64(2*j))) - j
	if d < time.Second {
		d = time.Second
	}
	return d
}

// sleepCtx waits for d and reports false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
