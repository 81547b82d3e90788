package notifications

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notifier accepts notices raised by other services. Implementations never
// fail the operation that raised the notice.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// NopNotifier drops every notice.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(context.Context, Notice) {}

// Recorder persists a notice.
type Recorder interface {
	Record(ctx context.Context, notice Notice) (Record, error)
}

// Center records notices in the ledger and hands them to the dispatcher.
type Center struct {
	ledger     Recorder
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewCenter wires a ledger and an optional dispatcher.
func NewCenter(ledger Recorder, dispatcher *Dispatcher, logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{ledger: ledger, dispatcher: dispatcher, logger: logger}
}

// Notify records the notice and starts delivery. Ledger failures are logged.
func (c *Center) Notify(ctx context.Context, notice Notice) {
	record, err := c.ledger.Record(ctx, notice)
	if err != nil {
		c.logger.Warn("notification not recorded",
			zap.String("user_id", notice.UserID),
			zap.String("type", string(notice.Type)),
			zap.Error(err),
		)
		return
	}
	if c.dispatcher != nil {
		c.dispatcher.Dispatch(ctx, record)
	}
}

// Deferred buffers notices raised inside a transaction until it commits.
type Deferred struct {
	mu      sync.Mutex
	pending []Notice
}

// NewDeferred constructs an empty buffer.
func NewDeferred() *Deferred {
	return &Deferred{}
}

// Notify buffers the notice.
func (d *Deferred) Notify(_ context.Context, notice Notice) {
	d.mu.Lock()
	d.pending = append(d.pending, notice)
	d.mu.Unlock()
}

// Pending reports how many notices are buffered.
func (d *Deferred) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush forwards buffered notices to target in the order they were raised.
func (d *Deferred) Flush(ctx context.Context, target Notifier) {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, notice := range pending {
		target.Notify(ctx, notice)
	}
}

// Discard drops buffered notices, used when the transaction rolled back.
func (d *Deferred) Discard() {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
}
