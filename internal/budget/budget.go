// Package budget caps how many tracking refreshes one session may make.
package budget

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrExhausted = errors.New("refresh limit reached")

// Limit is the per-session allowance for one role.
type Limit struct {
	MaxChecks int
	Interval  time.Duration
}

var (
	DefaultCustomerLimit = Limit{MaxChecks: 240, Interval: 15 * time.Second}
	DefaultVendorLimit   = Limit{MaxChecks: 720, Interval: 5 * time.Second}
)

// Status is reported to clients alongside every tracking read.
type Status struct {
	Used            int  `json:"used"`
	Max             int  `json:"max"`
	IntervalSeconds int  `json:"intervalSeconds"`
	Exhausted       bool `json:"exhausted"`
}

// Counter increments a key unless it already reached max. It returns the
// count after the call and whether the increment happened.
type Counter interface {
	Take(ctx context.Context, key string, max int) (int, bool, error)
}

type Budget struct {
	counter  Counter
	customer Limit
	vendor   Limit
}

func New(counter Counter, customer, vendor Limit) *Budget {
	return &Budget{counter: counter, customer: customer, vendor: vendor}
}

func (b *Budget) LimitFor(vendor bool) Limit {
	if vendor {
		return b.vendor
	}
	return b.customer
}

// Consume spends one check for subject. An exhausted budget is left as is
// and ErrExhausted is returned with the current status.
func (b *Budget) Consume(ctx context.Context, subject string, vendor bool) (Status, error) {
	limit := b.LimitFor(vendor)
	used, ok, err := b.counter.Take(ctx, key(subject, vendor), limit.MaxChecks)
	if err != nil {
		return Status{}, fmt.Errorf("refresh budget: %w", err)
	}

	st := Status{
		Used:            used,
		Max:             limit.MaxChecks,
		IntervalSeconds: int(limit.Interval / time.Second),
		Exhausted:       used >= limit.MaxChecks,
	}
	if !ok {
		return st, ErrExhausted
	}
	return st, nil
}

func key(subject string, vendor bool) string {
	role := "customer"
	if vendor {
		role = "vendor"
	}
	return "refresh_budget:" + role + ":" + subject
}
