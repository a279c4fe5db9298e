package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/domain"
	"kitchen-sync/internal/repository"
)

func openStore(t *testing.T) *repository.OrdersSQLite {
	t.Helper()
	s, err := repository.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func placeOrder(t *testing.T, s repository.OrderStore) domain.Order {
	t.Helper()
	o, err := s.Create(context.Background(), domain.NewOrder{
		CustomerName: "Dana",
		CreatedAt:    time.Now(),
		Items:        []domain.LineItem{{Quantity: 1, Name: "Ramen"}},
	})
	require.NoError(t, err)
	return o
}

func statusPtr(s domain.Status) *domain.Status { return &s }

func TestBumpWalksTheLifecycle(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	o := placeOrder(t, store)
	svc := NewTerminalService(store, "terminal-a", logger.New("test"))
	ctx := context.Background()

	for _, want := range []domain.Status{domain.StatusInProgress, domain.StatusReady, domain.StatusCompleted} {
		res, err := svc.Bump(ctx, o.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, want, res.To)
	}

	_, err := svc.Bump(ctx, o.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 422, domain.HTTPStatus(err))

	history, err := store.StatusHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Status{
		domain.StatusPending, domain.StatusInProgress, domain.StatusReady, domain.StatusCompleted,
	}, history)
}

func TestFastComplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bumps   int
		wantErr error
	}{
		{name: "from_pending", bumps: 0},
		{name: "from_in_progress", bumps: 1},
		{name: "ready_rejected", bumps: 2, wantErr: domain.ErrValidation},
		{name: "completed_rejected", bumps: 3, wantErr: domain.ErrValidation},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := openStore(t)
			o := placeOrder(t, store)
			svc := NewTerminalService(store, "terminal-a", logger.New("test"))
			ctx := context.Background()
			for i := 0; i < tt.bumps; i++ {
				_, err := svc.Bump(ctx, o.ID, nil)
				require.NoError(t, err)
			}
			before, err := store.Get(ctx, o.ID)
			require.NoError(t, err)

			res, err := svc.FastComplete(ctx, o.ID, nil)
			after, getErr := store.Get(ctx, o.ID)
			require.NoError(t, getErr)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before.Status, after.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.StatusCompleted, res.To)
			assert.Equal(t, domain.StatusCompleted, after.Status)
		})
	}
}

func TestStaleExpectedStatusConflicts(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	o := placeOrder(t, store)
	a := NewTerminalService(store, "terminal-a", logger.New("test"))
	b := NewTerminalService(store, "terminal-b", logger.New("test"))
	ctx := context.Background()

	displayed := statusPtr(domain.StatusPending)
	_, err := a.Bump(ctx, o.ID, displayed)
	require.NoError(t, err)

	_, err = b.Bump(ctx, o.ID, displayed)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, "conflict", domain.Kind(err))

	got, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
}

func TestUnknownOrder(t *testing.T) {
	t.Parallel()

	svc := NewTerminalService(openStore(t), "terminal-a", logger.New("test"))

	_, err := svc.Bump(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Bump(context.Background(), "missing", statusPtr(domain.StatusPending))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
