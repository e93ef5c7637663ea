// Package poller refreshes a remote value on an interval within a fixed
// number of checks.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"gemmy/internal/budget"
)

// ErrLimitReached is returned once the check budget is spent, locally or as
// reported by the server.
var ErrLimitReached = budget.ErrExhausted

// Update is delivered after every check. On failure Value holds the last good
// value and Stale is set when there is one.
type Update[T any] struct {
	Value     T
	Err       error
	Stale     bool
	Used      int
	Max       int
	Exhausted bool
}

type Poller[T any] struct {
	fetch    func(ctx context.Context) (T, error)
	interval time.Duration
	max      int
	onUpdate func(Update[T])

	pollMu sync.Mutex

	mu        sync.Mutex
	used      int
	exhausted bool
	last      T
	hasLast   bool
}

func New[T any](fetch func(ctx context.Context) (T, error), interval time.Duration, maxChecks int, onUpdate func(Update[T])) *Poller[T] {
	if onUpdate == nil {
		onUpdate = func(Update[T]) {}
	}
	return &Poller[T]{fetch: fetch, interval: interval, max: maxChecks, onUpdate: onUpdate}
}

// Run checks once right away and then on every tick until ctx is done or the
// budget runs out, in which case it returns ErrLimitReached.
func (p *Poller[T]) Run(ctx context.Context) error {
	if err := p.Refresh(ctx); errors.Is(err, ErrLimitReached) {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Refresh(ctx); errors.Is(err, ErrLimitReached) {
				return err
			}
		}
	}
}

// Refresh performs one check now. With the budget spent it does nothing and
// returns ErrLimitReached.
func (p *Poller[T]) Refresh(ctx context.Context) error {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	p.mu.Lock()
	if p.exhausted {
		p.mu.Unlock()
		return ErrLimitReached
	}
	p.used++
	p.mu.Unlock()

	value, err := p.fetch(ctx)

	p.mu.Lock()
	u := Update[T]{Err: err, Used: p.used, Max: p.max}
	if err != nil {
		if errors.Is(err, ErrLimitReached) {
			// The server refused the check, so it did not count it either.
			p.used--
			u.Used = p.used
			p.exhausted = true
		}
		u.Value = p.last
		u.Stale = p.hasLast
	} else {
		p.last = value
		p.hasLast = true
		u.Value = value
	}
	if p.max > 0 && p.used >= p.max {
		p.exhausted = true
	}
	u.Exhausted = p.exhausted
	p.mu.Unlock()

	p.onUpdate(u)
	if err != nil {
		return err
	}
	if u.Exhausted {
		return ErrLimitReached
	}
	return nil
}

// Used reports how many checks were spent.
func (p *Poller[T]) Used() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

func (p *Poller[T]) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}
