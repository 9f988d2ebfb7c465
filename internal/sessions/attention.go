package sessions

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ClearFunc clears the grab-attention flag of a session, but only while it
// still holds trigger. It reports whether a row changed.
type ClearFunc func(ctx context.Context, sessionID int64, trigger string) (bool, error)

type pendingReset struct {
	trigger string
	timer   *time.Timer
}

// Attention schedules the reset of grab-attention triggers. Every trigger
// gets its own reset; the conditional clear only succeeds for the value the
// session still holds, so an older reset never wipes a newer trigger.
type Attention struct {
	mu      sync.Mutex
	pending map[int64]map[*pendingReset]struct{}
	delay   time.Duration
	clear   ClearFunc
	onClear func(sessionID int64)
	logger  *zap.Logger
}

// NewAttention creates a scheduler that clears triggers after delay.
// onClear, if set, runs after a trigger was actually cleared.
func NewAttention(delay time.Duration, clear ClearFunc, onClear func(sessionID int64), logger *zap.Logger) *Attention {
	return &Attention{
		pending: make(map[int64]map[*pendingReset]struct{}),
		delay:   delay,
		clear:   clear,
		onClear: onClear,
		logger:  logger,
	}
}

// Schedule arranges for trigger to be cleared after the configured delay.
func (a *Attention) Schedule(sessionID int64, trigger string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.pending[sessionID]
	if !ok {
		set = make(map[*pendingReset]struct{})
		a.pending[sessionID] = set
	}
	p := &pendingReset{trigger: trigger}
	p.timer = time.AfterFunc(a.delay, func() { a.fire(sessionID, p) })
	set[p] = struct{}{}
}

func (a *Attention) fire(sessionID int64, p *pendingReset) {
	a.mu.Lock()
	set := a.pending[sessionID]
	if _, ok := set[p]; !ok {
		a.mu.Unlock()
		return
	}
	delete(set, p)
	if len(set) == 0 {
		delete(a.pending, sessionID)
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cleared, err := a.clear(ctx, sessionID, p.trigger)
	if err != nil {
		a.logger.Error("reset grab attention", zap.Error(err), zap.Int64("session_id", sessionID))
		return
	}
	if cleared && a.onClear != nil {
		a.onClear(sessionID)
	}
}

// Cancel drops the pending resets of a session, e.g. when it ends.
func (a *Attention) Cancel(sessionID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for p := range a.pending[sessionID] {
		p.timer.Stop()
	}
	delete(a.pending, sessionID)
}

// Pending returns the number of scheduled resets.
func (a *Attention) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, set := range a.pending {
		n += len(set)
	}
	return n
}

// Stop cancels every pending reset. Called on shutdown.
func (a *Attention) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, set := range a.pending {
		for p := range set {
			p.timer.Stop()
		}
		delete(a.pending, id)
	}
}
