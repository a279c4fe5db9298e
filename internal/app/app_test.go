package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchen-sync/internal/broadcast"
	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/domain"
)

func sqliteConfig() config.App {
	cfg := config.Default()
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.SQLitePath = ":memory:"
	cfg.Feed.Source = config.SourceLocal
	return cfg
}

func TestOpenSQLite(t *testing.T) {
	t.Parallel()

	rt, err := Open(context.Background(), sqliteConfig(), logger.New("test"))
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "local", rt.Feed.Name())
	o, err := rt.Store.Create(context.Background(), domain.NewOrder{
		CreatedAt: time.Now(),
		Items:     []domain.LineItem{{Quantity: 1, Name: "Tea"}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := sqliteConfig()
	cfg.Store.Driver = "mysql"
	_, err := Open(context.Background(), cfg, logger.New("test"))
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()

	s := config.Default().Sync
	b := BoardOptions(s)
	assert.Equal(t, 10*time.Second, b.Tick)
	assert.Equal(t, 3*time.Second, b.FetchTimeout)

	tr := TrackingOptions(s)
	assert.Equal(t, 10*time.Second, tr.Grace)
	assert.Equal(t, 5*time.Second, tr.Poll)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rt, err := Open(context.Background(), sqliteConfig(), logger.New("test"))
	require.NoError(t, err)
	defer rt.Close()

	hub := broadcast.New(0, logger.New("test"))
	sub := hub.Attach(broadcast.ActiveScope())
	defer sub.Close()

	rec := httptest.NewRecorder()
	healthz(hub, rt.Feed)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["viewers"])
}

func TestBrokerServicesNeedRabbitMQ(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.ErrorContains(t, RunNotifier(ctx, sqliteConfig()), "rabbitmq")
	assert.ErrorContains(t, RunRelay(ctx, sqliteConfig()), "postgres")

	cfg := sqliteConfig()
	cfg.Store.Driver = config.DriverPostgres
	assert.ErrorContains(t, RunRelay(ctx, cfg), "rabbitmq")
}
