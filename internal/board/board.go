// Package board keeps one kitchen display in step with the active order set.
package board

import (
	"context"
	"sort"
	"sync"
	"time"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/domain"
	"kitchen-sync/internal/repository"
)

// Card is one order on the board, colored by how long it has waited.
type Card struct {
	Order   domain.Order   `json:"order"`
	Urgency domain.Urgency `json:"urgency"`
	Age     time.Duration  `json:"-"`
	AgeMS   int64          `json:"age_ms"`
}

type View struct {
	Cards   []Card    `json:"cards"`
	Loaded  bool      `json:"loaded"`
	Syncing bool      `json:"syncing"`
	At      time.Time `json:"at"`
}

type Options struct {
	FetchTimeout time.Duration
	Tick         time.Duration
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 3 * time.Second
	}
	if o.Tick <= 0 {
		o.Tick = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Sync is the working set of a single board viewer.
type Sync struct {
	store repository.OrderReader
	opts  Options
	log   *logger.Logger

	mu      sync.Mutex
	orders  []domain.Order
	loaded  bool
	syncing bool
}

func New(store repository.OrderReader, opts Options, lg *logger.Logger) *Sync {
	return &Sync{store: store, opts: opts.withDefaults(), log: lg}
}

// Run fetches the active set, then refetches on every signal and recolors on
// every tick until ctx ends. onUpdate sees every new view.
func (s *Sync) Run(ctx context.Context, signals <-chan struct{}, onUpdate func(View)) error {
	emit := func() {
		if onUpdate != nil {
			onUpdate(s.View())
		}
	}

	s.Refresh(ctx)
	emit()

	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-signals:
			s.Refresh(ctx)
		case <-ticker.C:
			if s.stale() {
				s.Refresh(ctx)
			}
		}
		emit()
	}
}

// Refresh replaces the working set with a fresh fetch. A failed fetch keeps
// the previous set and marks the view as syncing.
func (s *Sync) Refresh(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	orders, err := s.store.ListActive(fctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("board_fetch_failed", err, map[string]any{"kind": domain.Kind(err)})
		}
		s.syncing = true
		return
	}
	s.orders = Normalize(orders)
	s.loaded = true
	s.syncing = false
}

func (s *Sync) stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// View projects the working set at the current time.
func (s *Sync) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	return View{
		Cards:   Project(s.orders, now),
		Loaded:  s.loaded,
		Syncing: s.syncing,
		At:      now,
	}
}

// Normalize drops completed orders and sorts the rest oldest first. Ties
// fall back to id so the order is stable across refetches.
func Normalize(orders []domain.Order) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == domain.StatusCompleted {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func Project(orders []domain.Order, now time.Time) []Card {
	cards := make([]Card, 0, len(orders))
	for _, o := range orders {
		created := o.CreatedTime()
		age := now.Sub(created)
		if age < 0 {
			age = 0
		}
		cards = append(cards, Card{
			Order:   o,
			Urgency: domain.Classify(created, now),
			Age:     age,
			AgeMS:   age.Milliseconds(),
		})
	}
	return cards
}
