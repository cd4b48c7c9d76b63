package pamixer

import (
	"log/slog"
	"sync/atomic"
)

// notifier holds the single cache-changed callback.
// The callback gets no arguments; it should re-read the cache.
type notifier struct {
	fn atomic.Pointer[func()]
}

func (n *notifier) set(fn func()) {
	if fn == nil {
		n.fn.Store(nil)
		return
	}
	n.fn.Store(&fn)
}

func (n *notifier) notify() {
	if fn := n.fn.Load(); fn != nil {
		(*fn)()
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
