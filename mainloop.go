package pamixer

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrLoopStopped is returned by Sync when the loop is not running work.
var ErrLoopStopped = errors.New("pamixer: main loop stopped")

// A Mainloop runs posted functions one at a time on a single goroutine.
// Everything that touches session state runs there.
type Mainloop struct {
	log *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	pending []func()
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

// NewMainloop creates a stopped loop. queue is the initial capacity of its queue.
func NewMainloop(queue int, log *slog.Logger) *Mainloop {
	if log == nil {
		log = discardLogger()
	}
	return &Mainloop{
		log:     log,
		pending: make([]func(), 0, max(queue, 0)),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins running posted functions.
func (m *Mainloop) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("main loop is already running")
	}
	if m.stopped {
		return ErrLoopStopped
	}
	m.running = true
	go m.loop()
	return nil
}

// Stop waits for the function in progress, then discards everything still queued.
// It must not be called from the loop itself.
func (m *Mainloop) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	wasRunning := m.running
	m.running = false
	m.pending = nil
	close(m.quit)
	m.mu.Unlock()

	if wasRunning {
		<-m.done
	}
}

// Post queues fn and returns false once the loop has been stopped.
// It never blocks, so functions running on the loop may post more work.
func (m *Mainloop) Post(fn func()) bool {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return false
	}
	m.pending = append(m.pending, fn)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync waits until every function posted before it has run.
// It returns ErrLoopStopped if the loop is not running.
func (m *Mainloop) Sync() error {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return ErrLoopStopped
	}

	ran := make(chan struct{})
	if !m.Post(func() { close(ran) }) {
		return ErrLoopStopped
	}
	select {
	case <-ran:
		return nil
	case <-m.done:
		return ErrLoopStopped
	}
}

func (m *Mainloop) loop() {
	defer close(m.done)
	for {
		select {
		case <-m.quit:
			return
		case <-m.wake:
		}
		for {
			fn, ok := m.next()
			if !ok {
				break
			}
			m.run(fn)
		}
	}
}

// next pops the oldest queued function. It reports false when the queue is
// empty or the loop has been stopped.
func (m *Mainloop) next() (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || len(m.pending) == 0 {
		return nil, false
	}
	fn := m.pending[0]
	m.pending[0] = nil
	m.pending = m.pending[1:]
	return fn, true
}

func (m *Mainloop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("recovered panic in main loop",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}
