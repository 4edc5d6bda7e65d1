package services

import (
	"log"
	"sync"
	"time"
)

const PresenceGrace = 30 * time.Second

// Presence tracks whether the owner has written anything recently. Activity
// is stored as a timestamp; Active compares against it, so a stale reset
// timer can never clear a flag that was refreshed after it was armed.
type Presence struct {
	mu        sync.Mutex
	grace     time.Duration
	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer

	lastActive time.Time
	active     bool
	timer      *time.Timer
	onChange   func(active bool)
}

func NewPresence(grace time.Duration, now func() time.Time) *Presence {
	if now == nil {
		now = time.Now
	}
	return &Presence{
		grace:     grace,
		now:       now,
		afterFunc: time.AfterFunc,
	}
}

// OnChange registers a callback invoked outside the lock whenever the flag
// flips.
func (p *Presence) OnChange(fn func(active bool)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *Presence) MarkActive() {
	p.mu.Lock()
	p.lastActive = p.now()
	changed := !p.active
	p.active = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = p.afterFunc(p.grace, p.expire)
	cb := p.onChange
	p.mu.Unlock()

	if changed {
		log.Printf("[PRESENCE] Owner is active, auto-replies paused for %s", p.grace)
		if cb != nil {
			cb(true)
		}
	}
}

// Active reports whether the owner wrote within the grace window.
func (p *Presence) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeLocked(p.now())
}

func (p *Presence) activeLocked(now time.Time) bool {
	return p.active && now.Sub(p.lastActive) < p.grace
}

func (p *Presence) expire() {
	p.mu.Lock()
	if !p.active || p.activeLocked(p.now()) {
		p.mu.Unlock()
		return
	}
	p.active = false
	p.timer = nil
	cb := p.onChange
	p.mu.Unlock()

	log.Printf("[PRESENCE] Owner is away, auto-replies resumed")
	if cb != nil {
		cb(false)
	}
}

func (p *Presence) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
