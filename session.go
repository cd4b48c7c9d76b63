package pamixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/jfreymuth/pamixer/proto"
)

// ErrClosed is returned when starting a session that has been closed.
var ErrClosed = errors.New("pamixer: session closed")

// A Session keeps a Cache in sync with a sound server.
//
// All server traffic is handled on the session's main loop. Callbacks registered
// with options run there too, and must not call Close.
type Session struct {
	opts    options
	log     *slog.Logger
	loop    *Mainloop
	cache   *Cache
	notify  notifier
	metrics *Metrics

	mu        sync.Mutex
	state     State
	err       error
	started   bool
	cancel    context.CancelFunc
	dialing   sync.WaitGroup
	closeOnce sync.Once

	// Only accessed on the main loop.
	conn     Conn
	events   *dispatcher
	shutdown bool
}

// NewSession creates an unconnected session.
func NewSession(opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = discardLogger()
	}
	if o.dial == nil {
		o.dial = Dialer(o.server)
	}

	s := &Session{
		opts:    o,
		log:     o.log.With("module", "session"),
		metrics: o.metrics,
	}
	s.notify.set(o.onUpdate)
	s.loop = NewMainloop(o.queue, o.log.With("module", "mainloop"))
	s.cache = newCache(cacheConfig{
		log:        o.log.With("module", "cache"),
		metrics:    o.metrics,
		notifier:   &s.notify,
		ignoreApps: append(append([]string{o.appID}, DefaultIgnoredApps...), o.ignoreApps...),
		peaks:      o.peaks,
		peakRate:   o.peakRate,
		post:       s.post,
	})
	return s
}

// Cache returns the session's cache. It is empty until the session is ready.
func (s *Session) Cache() *Cache { return s.cache }

// Snapshot is shorthand for s.Cache().Snapshot().
func (s *Session) Snapshot() Snapshot { return s.cache.Snapshot() }

// OnUpdate replaces the cache-changed callback.
func (s *Session) OnUpdate(fn func()) { s.notify.set(fn) }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start connects in the background and returns immediately.
// ctx bounds connecting only; use Close to end the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("pamixer: session already started")
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.loop.Start(); err != nil {
		return err
	}
	s.post(func() { s.setState(StateConnecting, nil) })

	s.dialing.Add(1)
	go func() {
		defer s.dialing.Done()
		conn, err := s.opts.dial(ctx, s.onMessage, s.onClosed)
		ok := s.loop.Post(func() { s.connected(conn, err) })
		if !ok && conn != nil {
			conn.Close()
		}
	}()
	return nil
}

// Close releases every metering stream, disconnects and stops the main loop.
// It is safe in any state and may be called more than once.
// No callback runs after Close returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		started := s.started
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()

		if !started {
			s.loop.Stop()
			s.mu.Lock()
			s.state = StateTerminated
			s.mu.Unlock()
			s.metrics.setState(StateTerminated)
			return
		}

		s.dialing.Wait()
		done := make(chan struct{})
		if s.loop.Post(func() {
			defer close(done)
			s.teardown()
		}) {
			<-done
		}
		s.loop.Stop()
	})
}

func (s *Session) teardown() {
	s.shutdown = true
	s.events = nil
	s.cache.Clear()
	if s.conn != nil {
		s.conn.Close()
	}
	if !s.State().Terminal() {
		s.setState(StateTerminated, nil)
	}
}

// post runs fn on the main loop unless the session has been torn down.
func (s *Session) post(fn func()) bool {
	return s.loop.Post(func() {
		if !s.shutdown {
			fn()
		}
	})
}

func (s *Session) setState(state State, err error) {
	s.mu.Lock()
	s.state = state
	if err != nil {
		s.err = err
	}
	s.mu.Unlock()

	s.metrics.setState(state)
	if err != nil {
		s.log.Warn("session state changed", "state", state.String(), "error", err)
	} else {
		s.log.Info("session state changed", "state", state.String())
	}
	if s.opts.onState != nil {
		s.opts.onState(state)
	}
}

// fail ends the session after an error.
func (s *Session) fail(err error) {
	if s.State().Terminal() {
		return
	}
	next := StateFailed
	if s.State() == StateReady {
		next = StateTerminated
	}
	s.events = nil
	s.cache.Clear()
	if s.conn != nil {
		s.conn.Close()
	}
	s.setState(next, err)
}

func (s *Session) onMessage(msg interface{}) {
	s.post(func() {
		if s.events != nil {
			s.events.message(msg)
		}
	})
}

func (s *Session) onClosed(err error) {
	s.post(func() { s.fail(fmt.Errorf("connection lost: %w", err)) })
}

func (s *Session) connected(conn Conn, err error) {
	if s.shutdown {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.fail(fmt.Errorf("connecting: %w", err))
		return
	}
	s.conn = conn
	s.cache.setConn(conn)
	s.setState(StateAuthorizing, nil)

	cookie, err := loadCookie()
	if err != nil {
		s.fail(err)
		return
	}
	reply := &proto.AuthReply{}
	conn.RequestAsync(&proto.Auth{Version: conn.Version(), Cookie: cookie}, reply, func(err error) {
		s.post(func() { s.authorized(reply, err) })
	})
}

func (s *Session) authorized(reply *proto.AuthReply, err error) {
	if s.State().Terminal() {
		return
	}
	if err != nil {
		s.fail(fmt.Errorf("authorizing: %w", err))
		return
	}
	s.conn.SetVersion(reply.Version)
	s.log.Debug("authorized", "version", s.conn.Version().Version())
	s.setState(StateSettingName, nil)

	nameReply := &proto.SetClientNameReply{}
	s.conn.RequestAsync(&proto.SetClientName{Props: s.clientProps()}, nameReply, func(err error) {
		s.post(func() { s.named(nameReply, err) })
	})
}

func (s *Session) named(reply *proto.SetClientNameReply, err error) {
	if s.State().Terminal() {
		return
	}
	if err != nil {
		s.fail(fmt.Errorf("setting client name: %w", err))
		return
	}
	s.log.Debug("client registered", "client", reply.ClientIndex)
	s.ready()
}

// ready is the only transition with side effects: it starts routing server
// messages, subscribes and requests the full lists.
func (s *Session) ready() {
	s.events = &dispatcher{
		cache:   s.cache,
		conn:    s.conn,
		post:    s.post,
		log:     s.opts.log.With("module", "dispatch"),
		metrics: s.metrics,
	}
	s.setState(StateReady, nil)

	s.conn.RequestAsync(&proto.Subscribe{Mask: subscriptionMask}, nil, func(err error) {
		if err != nil {
			s.post(func() { s.fail(fmt.Errorf("subscribing: %w", err)) })
		}
	})
	s.events.enumerate()
}

func (s *Session) clientProps() proto.PropList {
	props := proto.PropList{}
	props.Set(proto.PropApplicationName, s.opts.appName)
	props.Set(proto.PropApplicationID, s.opts.appID)
	props.Set(proto.PropApplicationPID, fmt.Sprint(os.Getpid()))
	props.Set(proto.PropApplicationBinary, os.Args[0])
	if display := os.Getenv("DISPLAY"); display != "" {
		props.Set(proto.PropWindowX11Display, display)
	}
	return props
}
