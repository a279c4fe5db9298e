package changefeed

import (
	"context"
	"sync"
	"sync/atomic"
)

const localBuffer = 64

// Local is an in-process feed for stores without an external one. It
// implements repository.Emitter on the write side and Source on the read side.
type Local struct {
	mu     sync.Mutex
	subs   map[*localSub]struct{}
	closed bool
}

type localSub struct {
	ch       chan Change
	overflow atomic.Bool
}

func NewLocal() *Local {
	return &Local{subs: make(map[*localSub]struct{})}
}

func (l *Local) Name() string { return "local" }

// Emit never blocks. A listener that falls behind gets one All change once it
// catches up instead of the changes it missed.
func (l *Local) Emit(orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for s := range l.subs {
		select {
		case s.ch <- Change{OrderID: orderID}:
		default:
			s.overflow.Store(true)
		}
	}
}

// Listeners is the number of active Listen calls.
func (l *Local) Listeners() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Close ends every Listen with errSourceClosed.
func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for s := range l.subs {
		close(s.ch)
		delete(l.subs, s)
	}
}

func (l *Local) Listen(ctx context.Context, ready func(), out chan<- Change) error {
	s := &localSub{ch: make(chan Change, localBuffer)}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errSourceClosed
	}
	l.subs[s] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.subs, s)
		l.mu.Unlock()
	}()

	ready()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-s.ch:
			if !ok {
				return errSourceClosed
			}
			if s.overflow.Swap(false) {
				c = Change{All: true}
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
