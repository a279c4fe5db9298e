package ready

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/domain"
)

type countingSurface struct {
	mu     sync.Mutex
	tones  int
	vibes  int
	alerts []string
	fail   bool
}

func (s *countingSurface) PlayTone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tones++
	if s.fail {
		return errors.New("audio device busy")
	}
	return nil
}

func (s *countingSurface) Vibrate([]time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vibes++
	if s.fail {
		return errors.New("no vibration motor")
	}
	return nil
}

func (s *countingSurface) ShowSystemNotification(title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, title)
	return nil
}

func TestCursorStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from     Cursor
		observed domain.Status
		want     Cursor
		fire     bool
	}{
		{name: "first_pending", from: Cursor{}, observed: domain.StatusPending, want: Seen(domain.StatusPending)},
		{name: "first_ready", from: Cursor{}, observed: domain.StatusReady, want: Seen(domain.StatusReady)},
		{name: "pending_to_ready", from: Seen(domain.StatusPending), observed: domain.StatusReady, want: Seen(domain.StatusReady), fire: true},
		{name: "in_progress_to_ready", from: Seen(domain.StatusInProgress), observed: domain.StatusReady, want: Seen(domain.StatusReady), fire: true},
		{name: "ready_again", from: Seen(domain.StatusReady), observed: domain.StatusReady, want: Seen(domain.StatusReady)},
		{name: "ready_to_completed", from: Seen(domain.StatusReady), observed: domain.StatusCompleted, want: Seen(domain.StatusCompleted)},
		{name: "fast_completed", from: Seen(domain.StatusInProgress), observed: domain.StatusCompleted, want: Seen(domain.StatusCompleted)},
		{name: "stale_after_ready", from: Seen(domain.StatusReady), observed: domain.StatusInProgress, want: Seen(domain.StatusReady)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, fire := tt.from.Step(tt.observed)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.fire, fire)
		})
	}
}

func TestDispatcherFiresOnceAcrossRedundantObservations(t *testing.T) {
	t.Parallel()

	surface := &countingSurface{}
	d := NewDispatcher("viewer-1", surface, logger.New("test"))

	assert.False(t, d.Observe("o1", domain.StatusInProgress))

	fired := 0
	for i := 0; i < 50; i++ {
		if d.Observe("o1", domain.StatusReady) {
			fired++
		}
	}
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, surface.tones)
	assert.Equal(t, 1, surface.vibes)
	assert.Len(t, surface.alerts, 1)
}

func TestDispatcherSilentWhenFirstObservationIsReady(t *testing.T) {
	t.Parallel()

	surface := &countingSurface{}
	d := NewDispatcher("viewer-1", surface, logger.New("test"))

	for i := 0; i < 5; i++ {
		assert.False(t, d.Observe("o1", domain.StatusReady))
	}
	assert.Zero(t, surface.tones)
	assert.Equal(t, Seen(domain.StatusReady), d.Cursor("o1"))
}

func TestDispatcherConcurrentObservers(t *testing.T) {
	t.Parallel()

	surface := &countingSurface{}
	d := NewDispatcher("viewer-1", surface, logger.New("test"))
	d.Observe("o1", domain.StatusPending)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Observe("o1", domain.StatusReady)
		}()
	}
	wg.Wait()
	assert.Len(t, surface.alerts, 1)
}

func TestDispatcherCursorsArePerOrder(t *testing.T) {
	t.Parallel()

	d := NewDispatcher("viewer-1", nil, logger.New("test"))
	d.Observe("o1", domain.StatusInProgress)
	d.Observe("o2", domain.StatusInProgress)

	assert.True(t, d.Observe("o1", domain.StatusReady))
	assert.True(t, d.Observe("o2", domain.StatusReady))

	assert.True(t, d.Cursor("o3").NeverSeen())
	assert.False(t, d.Observe("o3", domain.StatusReady))
}

func TestSurfaceFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	surface := &countingSurface{fail: true}
	d := NewDispatcher("viewer-1", surface, logger.New("test"))
	d.Observe("o1", domain.StatusInProgress)

	assert.True(t, d.Observe("o1", domain.StatusReady))
	assert.Equal(t, 1, surface.tones)
	assert.Len(t, surface.alerts, 1, "a failing tone does not stop the alert")
}

func TestMessage(t *testing.T) {
	t.Parallel()

	n := 17
	title, body := Message(domain.Order{OrderNumber: &n, CustomerName: "Alice"})
	assert.Equal(t, "Order #17 is ready", title)
	assert.Equal(t, "Alice, please collect it at the counter.", body)

	title, body = Message(domain.Order{})
	assert.Equal(t, "Your order is ready", title)
	assert.Equal(t, "Please collect it at the counter.", body)
}

func TestDecodeAlert(t *testing.T) {
	t.Parallel()

	a, err := DecodeAlert([]byte(`{"order_id":"o1","title":"Order #3 is ready","body":"b"}`))
	require.NoError(t, err)
	assert.Equal(t, "o1", a.OrderID)

	_, err = DecodeAlert([]byte(`{"title":"x"}`))
	assert.Error(t, err)
	_, err = DecodeAlert([]byte(`{`))
	assert.Error(t, err)
}
