// Package ui is a read-only terminal view of a pamixer cache.
package ui

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// UI runs the terminal view.
type UI struct {
	src     Source
	refresh time.Duration
	dirty   atomic.Bool
}

// New creates a view of src that redraws at most once per refresh.
func New(src Source, refresh time.Duration) *UI {
	u := &UI{src: src, refresh: refresh}
	u.dirty.Store(true)
	return u
}

// MarkDirty records that the cache changed. It never blocks, so it can be
// used as the session's update callback.
func (u *UI) MarkDirty() {
	u.dirty.Store(true)
}

// Run shows the view until the user quits or ctx is done.
func (u *UI) Run(ctx context.Context) error {
	p := tea.NewProgram(newModel(u.src, &u.dirty, u.refresh),
		tea.WithAltScreen(),
		tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
