// Package session runs one avatar conversation over a WebSocket connection.
//
// A Session reads client frames strictly in order on the connection
// goroutine, runs at most one generation turn at a time on its own
// goroutine, and queues every outbound event on a FIFO drained by a single
// writer goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/avatar-live/pkg/character"
	"github.com/vango-go/avatar-live/pkg/core/audio"
	"github.com/vango-go/avatar-live/pkg/engines"
	"github.com/vango-go/avatar-live/pkg/gateway/live/protocol"
	"github.com/vango-go/avatar-live/pkg/gateway/metrics"
)

type Config struct {
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	MaxMessageBytes int64

	// OutboundQueueSize sizes the outbox created when Dependencies.Out is nil.
	OutboundQueueSize int

	TurnTimeout       time.Duration
	SynthTimeout      time.Duration
	TranscribeTimeout time.Duration
	CloseTimeout      time.Duration
	SampleRate        int

	MaxAudioChunksPerSecond int
	MaxAudioBytesPerSecond  int64
	AudioBurstSeconds       int
}

// Binder resolves the engines for a character.
type Binder interface {
	Bind(characterID string) (engines.Set, error)
}

type Dependencies struct {
	// Conn is required by Run. Tests that drive Handle directly leave it nil
	// and supply Out.
	Conn       *websocket.Conn
	Out        Emitter
	Logger     *slog.Logger
	Characters *character.Registry
	Engines    Binder
	Processor  audio.Processor
	Metrics    *metrics.Metrics
	ClientID   string
	SessionID  string
	Config     Config
	Now        func() time.Time
}

type Session struct {
	conn      *websocket.Conn
	outbox    *Outbox
	out       Emitter
	logger    *slog.Logger
	chars     *character.Registry
	binder    Binder
	processor audio.Processor
	metrics   *metrics.Metrics
	clientID  string
	id        string
	cfg       Config
	now       func() time.Time
	limiter   *audioLimiter

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	character  *character.Character
	engines    engines.Set
	history    *historyManager
	gen        generation
	last       *turn
	turnSeq    int
	transcript string
	closed     bool

	interrupted bargeIn
}

func New(parent context.Context, deps Dependencies) (*Session, error) {
	if deps.Conn == nil && deps.Out == nil {
		return nil, fmt.Errorf("connection or emitter is required")
	}
	if deps.Characters == nil {
		return nil, fmt.Errorf("character registry is required")
	}
	if deps.Engines == nil {
		return nil, fmt.Errorf("engine registry is required")
	}
	if strings.TrimSpace(deps.SessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.SampleRate <= 0 {
		deps.Config.SampleRate = audio.DefaultSampleRate
	}
	if deps.Config.CloseTimeout <= 0 {
		deps.Config.CloseTimeout = 2 * time.Second
	}
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		conn:      deps.Conn,
		out:       deps.Out,
		chars:     deps.Characters,
		binder:    deps.Engines,
		processor: deps.Processor,
		metrics:   deps.Metrics,
		clientID:  deps.ClientID,
		id:        deps.SessionID,
		cfg:       deps.Config,
		now:       deps.Now,
		ctx:       ctx,
		cancel:    cancel,
		history:   newHistoryManager(),
		logger:    deps.Logger.With("session_id", deps.SessionID, "client_id", deps.ClientID),
	}
	s.limiter = newAudioLimiter(deps.Now, deps.Config.MaxAudioChunksPerSecond, deps.Config.MaxAudioBytesPerSecond, deps.Config.AudioBurstSeconds)
	if s.out == nil {
		s.outbox = NewOutbox(deps.Config.OutboundQueueSize)
		s.out = s.outbox
	}
	return s, nil
}

func (s *Session) ID() string       { return s.id }
func (s *Session) ClientID() string { return s.clientID }

// Initialized reports whether a session:start succeeded.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.character != nil
}

// Run reads frames until the connection fails or the session is cancelled.
func (s *Session) Run() error {
	if s.conn == nil || s.outbox == nil {
		return fmt.Errorf("session has no connection")
	}

	if s.cfg.MaxMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		w := outboundWriter{ws: s.conn, ctx: s.ctx, cfg: s.cfg, frames: s.outbox.Frames()}
		if err := w.Run(); err != nil {
			s.logger.Debug("live writer stopped", "error", err)
			s.cancel()
			_ = s.conn.Close()
		}
	}()
	defer func() {
		s.Close()
		timer := time.NewTimer(s.cfg.CloseTimeout)
		defer timer.Stop()
		select {
		case <-writerDone:
		case <-timer.C:
		}
	}()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
		if s.cfg.ReadTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		if messageType != websocket.TextMessage {
			s.logger.Warn("ignoring non-text frame", "message_type", messageType)
			continue
		}
		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			var decErr *protocol.DecodeError
			if errors.As(err, &decErr) {
				s.logger.Warn("invalid client message", "code", decErr.Code, "param", decErr.Param, "error", decErr.Message)
			} else {
				s.logger.Warn("invalid client message", "error", err)
			}
			continue
		}
		s.Handle(msg)
	}
}

// Cancel stops the session without waiting. Safe from any goroutine.
func (s *Session) Cancel() {
	s.cancel()
}

// Close cancels the active turn, waits briefly for its cleanup, and drops
// every later outbound event. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	last := s.last
	if t := s.gen.current(); t != nil {
		t.cancel()
	}
	s.mu.Unlock()

	s.cancel()
	if last == nil {
		return
	}
	timer := time.NewTimer(s.cfg.CloseTimeout)
	defer timer.Stop()
	select {
	case <-last.done:
	case <-timer.C:
		s.logger.Warn("turn did not finish before close", "turn_id", last.id)
	}
}

func (s *Session) emit(typ string, payload any) {
	if err := s.out.Send(s.ctx, typ, payload); err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Warn("failed to queue event", "type", typ, "error", err)
	}
}

// Warn queues a session:error from outside the session, e.g. on shutdown.
func (s *Session) Warn(code, message string) error {
	return s.out.Send(s.ctx, protocol.TypeSessionError, protocol.ServerSessionError{Code: code, Message: message})
}

func (s *Session) sendError(code, message string) {
	s.emit(protocol.TypeSessionError, protocol.ServerSessionError{Code: code, Message: message})
}

func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(parent, d)
	}
	return context.WithCancel(parent)
}
