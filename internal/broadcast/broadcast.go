// Package broadcast fans change-feed signals out to attached viewers.
//
// A signal carries no payload; it only tells a viewer to refetch. Each
// subscription holds at most one pending signal, so a slow viewer sees one
// refetch request no matter how many changes landed meanwhile.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"kitchen-sync/internal/changefeed"
	"kitchen-sync/internal/common/logger"
)

type ScopeKind int

const (
	ScopeOrder ScopeKind = iota + 1
	ScopeActive
)

// Scope is what a viewer watches: one order or the whole active set.
type Scope struct {
	Kind    ScopeKind
	OrderID string
}

func OrderScope(id string) Scope { return Scope{Kind: ScopeOrder, OrderID: id} }

func ActiveScope() Scope { return Scope{Kind: ScopeActive} }

// Includes reports whether c concerns this scope. Any change can move an order
// in or out of the active set, so the active scope includes all of them.
func (s Scope) Includes(c changefeed.Change) bool {
	if s.Kind == ScopeActive {
		return true
	}
	return c.Affects(s.OrderID)
}

type Subscription struct {
	id    string
	scope Scope
	c     chan struct{}
	b     *Broadcaster
	once  sync.Once
}

func (s *Subscription) ID() string   { return s.id }
func (s *Subscription) Scope() Scope { return s.scope }

// C delivers refetch signals.
func (s *Subscription) C() <-chan struct{} { return s.c }

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.b.detach(s.id) })
}

func (s *Subscription) signal() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

type Broadcaster struct {
	mu       sync.Mutex
	subs     map[string]*Subscription
	pending  map[string]struct{}
	timer    *time.Timer
	debounce time.Duration
	log      *logger.Logger
}

// New returns a broadcaster that coalesces changes arriving within debounce
// into one signal per subscription. Zero debounce signals immediately.
func New(debounce time.Duration, lg *logger.Logger) *Broadcaster {
	return &Broadcaster{
		subs:     make(map[string]*Subscription),
		pending:  make(map[string]struct{}),
		debounce: debounce,
		log:      lg,
	}
}

func (b *Broadcaster) Attach(scope Scope) *Subscription {
	s := &Subscription{id: uuid.NewString(), scope: scope, c: make(chan struct{}, 1), b: b}
	b.mu.Lock()
	b.subs[s.id] = s
	n := len(b.subs)
	b.mu.Unlock()
	b.log.Debug("viewer_attached", map[string]any{"viewer_id": s.id, "order_id": scope.OrderID, "viewers": n})
	return s
}

func (b *Broadcaster) detach(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	delete(b.pending, id)
	n := len(b.subs)
	b.mu.Unlock()
	b.log.Debug("viewer_detached", map[string]any{"viewer_id": id, "viewers": n})
}

// Len is the number of attached subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish routes one change to every subscription whose scope includes it.
func (b *Broadcaster) Publish(c changefeed.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, s := range b.subs {
		if !s.scope.Includes(c) {
			continue
		}
		if b.debounce <= 0 {
			s.signal()
			continue
		}
		b.pending[id] = struct{}{}
	}
	if len(b.pending) > 0 && b.timer == nil {
		b.timer = time.AfterFunc(b.debounce, b.flush)
	}
}

func (b *Broadcaster) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.pending {
		if s, ok := b.subs[id]; ok {
			s.signal()
		}
		delete(b.pending, id)
	}
	b.timer = nil
}

// SignalAll asks every viewer for one forced refetch, bypassing debounce.
func (b *Broadcaster) SignalAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subs {
		s.signal()
		delete(b.pending, id)
	}
	b.log.Info("forced_refetch", map[string]any{"viewers": len(b.subs)})
}

// Run follows src until ctx ends. A re-established subscription is treated as
// a change to everything.
func (b *Broadcaster) Run(ctx context.Context, src changefeed.Source, backoff changefeed.Backoff) error {
	changes := make(chan changefeed.Change, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		changefeed.Follow(ctx, src, backoff, changes, b.SignalAll, b.log)
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			b.mu.Lock()
			if b.timer != nil {
				b.timer.Stop()
				b.timer = nil
			}
			b.mu.Unlock()
			return nil
		case c := <-changes:
			b.Publish(c)
		}
	}
}
