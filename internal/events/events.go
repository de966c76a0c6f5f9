// Package events fans out engine state changes to interested consumers:
// the metrics cache invalidator, the balance cache and SSE clients.
package events

import (
	"sync"
	"time"

	"github.com/vadiminshakov/folio/internal/domain"
)

// Kind type of a state change.
type Kind string

const (
	SnapshotAppended  Kind = "snapshot_appended"
	CashFlowRecorded  Kind = "cashflow_recorded"
	BalancesRefreshed Kind = "balances_refreshed"
	RebalanceExecuted Kind = "rebalance_executed"
)

// Event state change notification. Only the payload matching Kind is set.
type Event struct {
	Kind      Kind                    `json:"kind"`
	Timestamp time.Time               `json:"ts"`
	Snapshot  *domain.SnapshotRecord  `json:"snapshot,omitempty"`
	CashFlow  *domain.CashFlow        `json:"cash_flow,omitempty"`
	Balances  domain.Balances         `json:"balances,omitempty"`
	Report    *domain.ExecutionReport `json:"report,omitempty"`
}

// Invalidates reports whether the event makes cached performance figures stale.
func (e Event) Invalidates() bool {
	return e.Kind == SnapshotAppended || e.Kind == CashFlowRecorded
}

// Broadcaster fans out events to all subscribers via buffered channels.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping it for slow readers.
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}
