package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchen-sync/internal/broadcast"
	"kitchen-sync/internal/changefeed"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/domain"
	"kitchen-sync/internal/ready"
	"kitchen-sync/internal/repository"
	"kitchen-sync/internal/tracking"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []ready.Alert
}

func (s *recordingSink) Publish(_ context.Context, a ready.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func setup(t *testing.T) (*repository.OrdersSQLite, *http.ServeMux, *recordingSink) {
	t.Helper()
	lg := logger.New("test")
	feed := changefeed.NewLocal()
	t.Cleanup(feed.Close)

	store, err := repository.OpenSQLite(":memory:", feed)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := broadcast.New(0, lg)
	go func() { _ = hub.Run(ctx, feed, changefeed.DefaultBackoff) }()
	require.Eventually(t, func() bool { return feed.Listeners() == 1 }, time.Second, time.Millisecond)

	sink := &recordingSink{}
	mux := http.NewServeMux()
	Router(mux, NewTrackerHandler(store, hub, tracking.Options{Poll: time.Hour}, sink, lg))
	return store, mux, sink
}

func place(t *testing.T, store repository.OrderStore) domain.Order {
	t.Helper()
	n := 12
	o, err := store.Create(context.Background(), domain.NewOrder{
		OrderNumber:  &n,
		CustomerName: "Mo",
		CreatedAt:    time.Now(),
		Items:        []domain.LineItem{{Quantity: 3, Name: "Gyoza"}},
	})
	require.NoError(t, err)
	return o
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	store, mux, _ := setup(t)
	o := place(t, store)

	tests := []struct {
		name     string
		id       string
		wantCode int
		wantKey  string
		wantVal  any
	}{
		{name: "found", id: o.ID, wantCode: http.StatusOK, wantKey: "status", wantVal: "PENDING"},
		{name: "missing", id: "unknown", wantCode: http.StatusNotFound, wantKey: "kind", wantVal: "not_found"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tracking/orders/"+tt.id+"/status", nil))
			require.Equal(t, tt.wantCode, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantVal, body[tt.wantKey])
		})
	}
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, url string) (<-chan sseEvent, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	events := make(chan sseEvent, 32)
	go func() {
		defer resp.Body.Close()
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		var ev sseEvent
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			case line == "" && ev.name != "":
				events <- ev
				ev = sseEvent{}
			}
		}
	}()
	return events, cancel
}

func waitState(t *testing.T, events <-chan sseEvent, want domain.Status, readies *int) {
	t.Helper()
	for ev := range events {
		if ev.name == "ready" {
			*readies++
			continue
		}
		var snap tracking.Snapshot
		require.NoError(t, json.Unmarshal([]byte(ev.data), &snap))
		if snap.Order != nil && snap.Order.Status == want {
			return
		}
	}
	t.Fatalf("stream closed before status %s", want)
}

func TestStreamFiresReadyOnce(t *testing.T) {
	t.Parallel()

	store, mux, sink := setup(t)
	o := place(t, store)
	ctx := context.Background()
	require.NoError(t, store.UpdateStatus(ctx, o.ID, domain.StatusPending, domain.StatusInProgress, "terminal-a"))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	events, cancel := readEvents(t, srv.URL+"/api/v1/tracking/orders/"+o.ID+"/stream")
	defer cancel()

	readies := 0
	waitState(t, events, domain.StatusInProgress, &readies)

	require.NoError(t, store.UpdateStatus(ctx, o.ID, domain.StatusInProgress, domain.StatusReady, "terminal-a"))
	waitState(t, events, domain.StatusReady, &readies)
	assert.Zero(t, readies, "the READY state reaches the viewer before the ready event")

	require.NoError(t, store.UpdateStatus(ctx, o.ID, domain.StatusReady, domain.StatusCompleted, "terminal-a"))
	waitState(t, events, domain.StatusCompleted, &readies)

	assert.Equal(t, 1, readies)
	assert.Equal(t, 1, sink.count())
}

func TestEachStreamPublishesItsOwnAlert(t *testing.T) {
	t.Parallel()

	store, mux, sink := setup(t)
	o := place(t, store)
	ctx := context.Background()
	require.NoError(t, store.UpdateStatus(ctx, o.ID, domain.StatusPending, domain.StatusInProgress, "terminal-a"))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	url := srv.URL + "/api/v1/tracking/orders/" + o.ID + "/stream"
	phone, cancelPhone := readEvents(t, url)
	defer cancelPhone()
	laptop, cancelLaptop := readEvents(t, url)
	defer cancelLaptop()

	readies := 0
	waitState(t, phone, domain.StatusInProgress, &readies)
	waitState(t, laptop, domain.StatusInProgress, &readies)

	require.NoError(t, store.UpdateStatus(ctx, o.ID, domain.StatusInProgress, domain.StatusReady, "terminal-a"))
	waitState(t, phone, domain.StatusReady, &readies)
	waitState(t, laptop, domain.StatusReady, &readies)
	require.NoError(t, store.UpdateStatus(ctx, o.ID, domain.StatusReady, domain.StatusCompleted, "terminal-a"))
	waitState(t, phone, domain.StatusCompleted, &readies)
	waitState(t, laptop, domain.StatusCompleted, &readies)

	assert.Equal(t, 2, readies)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.alerts, 2)
	for _, a := range sink.alerts {
		assert.Equal(t, o.ID, a.OrderID)
	}
	assert.NotEqual(t, sink.alerts[0].ViewerID, sink.alerts[1].ViewerID)
}

func TestStreamSilentWhenAlreadyReady(t *testing.T) {
	t.Parallel()

	store, mux, sink := setup(t)
	o := place(t, store)
	ctx := context.Background()
	require.NoError(t, store.UpdateStatus(ctx, o.ID, domain.StatusPending, domain.StatusReady, "terminal-a"))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	events, cancel := readEvents(t, srv.URL+"/api/v1/tracking/orders/"+o.ID+"/stream")
	defer cancel()

	readies := 0
	waitState(t, events, domain.StatusReady, &readies)
	require.NoError(t, store.UpdateStatus(ctx, o.ID, domain.StatusReady, domain.StatusCompleted, "terminal-a"))
	waitState(t, events, domain.StatusCompleted, &readies)

	assert.Zero(t, readies)
	assert.Zero(t, sink.count())
}
