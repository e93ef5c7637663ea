// Package notify fans out order change events to live listeners.
package notify

import (
	"context"
	"time"
)

// Event describes one committed change to an order.
type Event struct {
	Token  string    `json:"token"`
	Kind   string    `json:"kind"`
	Status string    `json:"status"`
	By     string    `json:"by"`
	At     time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Notifier delivers events for a single token to subscribers. The returned
// channel is closed once ctx is done.
type Notifier interface {
	Publisher
	Subscribe(ctx context.Context, token string) (<-chan Event, error)
}

const subscriberBuffer = 16

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
