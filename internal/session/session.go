// Package session implements the per-connection telemetry protocol: the
// greeting, the heartbeat watchdog, and the push loop with a client-adjustable
// cadence.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hostpulse/server/internal/sysinfo"
	"github.com/hostpulse/server/internal/telemetry"
)

// Conn is the transport a Session writes to. Send must not block; it returns
// false when the frame could not be queued.
type Conn interface {
	Send(data []byte) bool
	Close(code int, reason string)
}

// StaticSource produces the one-shot host summary sent after hello.
type StaticSource interface {
	Summary(ctx context.Context, scheme string) (sysinfo.Summary, error)
}

type Options struct {
	HeartbeatInterval time.Duration
	HeartbeatGrace    time.Duration
	PushInterval      time.Duration
	MinPushInterval   time.Duration
	Scheme            string

	Store  *telemetry.Store
	Static StaticSource
}

type Session struct {
	id   string
	conn Conn
	opts Options

	watchdog *watchdog
	pusher   *pusher

	mu          sync.Mutex
	state       State
	ctx         context.Context
	cancel      context.CancelFunc
	closeCode   int
	closeReason string
}

func New(id string, conn Conn, opts Options) *Session {
	if opts.MinPushInterval > 0 && opts.PushInterval < opts.MinPushInterval {
		opts.PushInterval = opts.MinPushInterval
	}
	s := &Session{
		id:    id,
		conn:  conn,
		opts:  opts,
		state: Handshaking,
	}
	s.watchdog = newWatchdog(id, opts.HeartbeatInterval, opts.HeartbeatGrace, func() {
		log.Printf("session %s: heartbeat timeout", id)
		s.Close(CloseProtocolViolation, ReasonHeartbeatTimeout)
	})
	s.pusher = newPusher(id, opts.Store, opts.PushInterval, s.send)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CloseStatus returns the code and reason of the first Close call.
func (s *Session) CloseStatus() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCode, s.closeReason
}

func (s *Session) PushInterval() time.Duration {
	return s.pusher.task.Interval()
}

// Start greets the client with hello and the static summary, in that order,
// then starts the heartbeat watchdog and the push loop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Handshaking {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	sctx := s.ctx
	s.mu.Unlock()

	hello, err := encode(WSMessage{Type: MsgHello, Data: s.opts.HeartbeatInterval.Milliseconds()})
	if err != nil {
		s.fail("hello", err)
		return err
	}
	if !s.send(hello) {
		return errors.New("session closed during greeting")
	}

	summary, err := s.opts.Static.Summary(sctx, s.opts.Scheme)
	if err != nil {
		s.fail("static summary", err)
		return fmt.Errorf("static summary: %w", err)
	}
	static, err := encode(WSMessage{Type: MsgStatic, Data: summary})
	if err != nil {
		s.fail("static summary", err)
		return err
	}
	if !s.send(static) {
		return errors.New("session closed during greeting")
	}

	s.mu.Lock()
	if s.state != Handshaking {
		s.mu.Unlock()
		return nil
	}
	s.state = Active
	s.mu.Unlock()

	if err := s.watchdog.task.Start(sctx); err != nil && !errors.Is(err, context.Canceled) {
		s.fail("watchdog", err)
		return err
	}
	if err := s.pusher.task.Start(sctx); err != nil && !errors.Is(err, context.Canceled) {
		s.fail("push loop", err)
		return err
	}
	return nil
}

// Handle processes one inbound frame. Callers deliver frames one at a time
// in arrival order. Frames arriving after closing began are ignored.
func (s *Session) Handle(binary bool, data []byte) {
	if s.State().IsTerminal() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.fail("message handler", fmt.Errorf("panic: %v", r))
		}
	}()

	if binary {
		s.Close(CloseUnsupportedData, ReasonUnsupportedData)
		return
	}

	msg, err := parseInbound(data)
	if err != nil {
		log.Printf("session %s: %v", s.id, err)
		s.Close(CloseUnsupportedData, ReasonUnsupportedData)
		return
	}

	switch msg.Type {
	case MsgHeartbeat:
		if !s.watchdog.beat() {
			log.Printf("session %s: heartbeat flood", s.id)
			s.Close(CloseProtocolViolation, ReasonTooManyHeartbeats)
			return
		}
		s.send(heartbeatAck)
	case MsgInterval:
		if err := s.setPushInterval(time.Duration(*msg.Interval) * time.Millisecond); err != nil {
			s.fail("interval", err)
		}
	default:
		s.Close(CloseProtocolViolation, ReasonUnsupportedOperation)
	}
}

func (s *Session) setPushInterval(d time.Duration) error {
	if d < s.opts.MinPushInterval {
		d = s.opts.MinPushInterval
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	err := s.pusher.retime(ctx, d)
	if err != nil && ctx.Err() != nil {
		// Closed while restarting; nothing left to push to.
		return nil
	}
	return err
}

// Close begins closing the session with the given code. Only the first call
// has any effect. It cancels the session's tasks without waiting for them;
// Stop does the waiting.
func (s *Session) Close(code int, reason string) {
	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return
	}
	s.state = Closing
	s.closeCode = code
	s.closeReason = reason
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.conn.Close(code, reason)
}

// Stop cancels and waits for the watchdog and push loop. It is called once
// the transport is gone; no close frame is sent from here.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	if !s.state.IsTerminal() {
		s.state = Closing
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.watchdog.task.Stop()
	s.pusher.task.Stop()

	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()
}

// send queues data unless closing has begun. A full transport buffer closes
// the session.
func (s *Session) send(data []byte) bool {
	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	ok := s.conn.Send(data)
	s.mu.Unlock()

	if !ok {
		log.Printf("session %s: client too slow, closing", s.id)
		s.Close(CloseInternalError, ReasonSendBufferFull)
	}
	return ok
}

func (s *Session) fail(category string, err error) {
	log.Printf("session %s: %s: %v", s.id, category, err)
	s.Close(CloseInternalError, "internal error: "+category)
}
