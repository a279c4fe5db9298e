// Package tracking keeps a customer's view of one order current.
package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/domain"
	"kitchen-sync/internal/ready"
	"kitchen-sync/internal/repository"
)

type State string

const (
	StateLoading     State = "LOADING"
	StateSyncPending State = "SYNC_PENDING"
	StateSynced      State = "SYNCED"
	StateNotFound    State = "NOT_FOUND"
)

// Resolve picks the state after a fetch that either found the order or got a
// definite not-found. A fresh order may not have replicated yet, so misses
// inside the grace window are reported as pending.
func Resolve(found bool, elapsed, grace time.Duration) State {
	switch {
	case found:
		return StateSynced
	case elapsed < grace:
		return StateSyncPending
	default:
		return StateNotFound
	}
}

type Snapshot struct {
	OrderID string        `json:"order_id"`
	State   State         `json:"state"`
	Order   *domain.Order `json:"order,omitempty"`
	Syncing bool          `json:"syncing"`
	At      time.Time     `json:"at"`
}

// Terminal reports whether the order needs no further attention from the
// customer.
func (s Snapshot) Terminal() bool {
	return s.Order != nil && s.Order.Status.Terminal()
}

type Options struct {
	Grace        time.Duration
	Poll         time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Grace <= 0 {
		o.Grace = 10 * time.Second
	}
	if o.Poll <= 0 {
		o.Poll = 5 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 3 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Tracker struct {
	orderID    string
	store      repository.OrderReader
	dispatcher *ready.Dispatcher
	opts       Options
	log        *logger.Logger

	mu      sync.Mutex
	started time.Time
	snap    Snapshot
}

// New returns a tracker for orderID. The grace window starts now. dispatcher
// may be nil when the viewer wants no ready notification.
func New(orderID string, store repository.OrderReader, dispatcher *ready.Dispatcher, opts Options, lg *logger.Logger) *Tracker {
	opts = opts.withDefaults()
	return &Tracker{
		orderID:    orderID,
		store:      store,
		dispatcher: dispatcher,
		opts:       opts,
		log:        lg.With(map[string]any{"order_id": orderID}),
		started:    opts.Now(),
		snap:       Snapshot{OrderID: orderID, State: StateLoading},
	}
}

// Run refetches on every signal and on the poll interval until ctx ends.
// onUpdate sees each snapshot before the dispatcher observes it, so a viewer
// already shows READY when the ready notification fires.
func (t *Tracker) Run(ctx context.Context, signals <-chan struct{}, onUpdate func(Snapshot)) error {
	poll := time.NewTicker(t.opts.Poll)
	defer poll.Stop()

	for {
		o, ok := t.fetch(ctx)
		if onUpdate != nil {
			onUpdate(t.Snapshot())
		}
		if ok {
			t.observe(o)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-signals:
		case <-poll.C:
		}
	}
}

// Refresh fetches the order once, folds the result into the snapshot and
// feeds the dispatcher.
func (t *Tracker) Refresh(ctx context.Context) {
	if o, ok := t.fetch(ctx); ok {
		t.observe(o)
	}
}

func (t *Tracker) fetch(ctx context.Context) (domain.Order, bool) {
	fctx, cancel := context.WithTimeout(ctx, t.opts.FetchTimeout)
	defer cancel()

	o, err := t.store.Get(fctx, t.orderID)
	now := t.opts.Now()

	t.mu.Lock()
	t.snap.At = now
	switch {
	case err == nil:
		t.snap.State = StateSynced
		t.snap.Order = &o
		t.snap.Syncing = false
	case errors.Is(err, domain.ErrNotFound):
		t.snap.State = Resolve(false, now.Sub(t.started), t.opts.Grace)
		t.snap.Order = nil
		t.snap.Syncing = false
	default:
		t.snap.Syncing = true
	}
	t.mu.Unlock()

	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
			t.log.Warn("tracker_fetch_failed", err, map[string]any{"kind": domain.Kind(err)})
		}
		return domain.Order{}, false
	}
	return o, true
}

func (t *Tracker) observe(o domain.Order) {
	if t.dispatcher != nil {
		t.dispatcher.ObserveOrder(o)
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.snap
	if s.Order != nil {
		o := *s.Order
		s.Order = &o
	}
	return s
}
