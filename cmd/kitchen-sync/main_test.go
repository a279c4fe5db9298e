package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchen-sync/internal/common/config"
)

func TestRootCommandHasModes(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"sync-service", "feed-relay", "notification-subscriber", "board"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: sqlite\nfeed:\n  source: local\n"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExampleConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(filepath.Join("..", "..", "deploy", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.SourcePostgres, cfg.Feed.Source)
	assert.True(t, cfg.Rabbit.Enabled())
}
