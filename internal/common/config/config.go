package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type DB struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Pass     string `yaml:"password"`
	Name     string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

// DSN is a libpq-style connection URL, usable by both pgx.Connect and
// pgxpool. Pool sizing is applied separately from MaxConns.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

type MQ struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	User  string `yaml:"user"`
	Pass  string `yaml:"password"`
	VHost string `yaml:"vhost"`
}

// Enabled reports whether a broker is configured at all.
func (m MQ) Enabled() bool { return m.Host != "" }

func (m MQ) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(m.User, m.Pass),
		Host:   fmt.Sprintf("%s:%d", m.Host, m.Port),
		Path:   "/" + m.VHost,
	}
	if m.VHost == "" || m.VHost == "/" {
		u.Path = "/"
	}
	return u.String()
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	SourcePostgres = "postgres"
	SourceRabbitMQ = "rabbitmq"
	SourceLocal    = "local"
)

type Store struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

type Feed struct {
	Source   string `yaml:"source"`
	Channel  string `yaml:"channel"`
	Exchange string `yaml:"exchange"`
}

type Sync struct {
	GraceWindow    time.Duration `yaml:"grace_window"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

type HTTP struct {
	Port int `yaml:"port"`
}

type Log struct {
	Level string `yaml:"level"`
}

type App struct {
	Database DB    `yaml:"database"`
	Rabbit   MQ    `yaml:"rabbitmq"`
	Store    Store `yaml:"store"`
	Feed     Feed  `yaml:"feed"`
	Sync     Sync  `yaml:"sync"`
	HTTP     HTTP  `yaml:"http"`
	Log      Log   `yaml:"log"`
}

// Default is the configuration used for any key the file leaves out.
func Default() App {
	return App{
		Database: DB{Port: 5432, SSLMode: "disable", MaxConns: 10},
		Rabbit:   MQ{Port: 5672, VHost: "/"},
		Store:    Store{Driver: DriverPostgres, SQLitePath: "kitchen-sync.db"},
		Feed:     Feed{Source: SourcePostgres, Channel: "order_changes", Exchange: "order_changes_fanout"},
		Sync: Sync{
			GraceWindow:    10 * time.Second,
			PollInterval:   5 * time.Second,
			TickInterval:   10 * time.Second,
			FetchTimeout:   3 * time.Second,
			DebounceWindow: 200 * time.Millisecond,
		},
		HTTP: HTTP{Port: 3000},
		Log:  Log{Level: "info"},
	}
}

func Load(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (App, error) {
	a := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&a); err != nil && !errors.Is(err, io.EOF) {
		return App{}, fmt.Errorf("decode config: %w", err)
	}
	if err := a.Validate(); err != nil {
		return App{}, err
	}
	return a, nil
}

func (a App) Validate() error {
	switch a.Store.Driver {
	case DriverPostgres:
		if a.Database.Host == "" || a.Database.User == "" || a.Database.Name == "" {
			return errors.New("invalid config: database.host, database.user and database.database are required")
		}
	case DriverSQLite:
		if a.Store.SQLitePath == "" {
			return errors.New("invalid config: store.sqlite_path is required")
		}
	default:
		return fmt.Errorf("invalid config: unknown store.driver %q", a.Store.Driver)
	}

	switch a.Feed.Source {
	case SourcePostgres:
		if a.Store.Driver != DriverPostgres {
			return errors.New("invalid config: feed.source postgres needs store.driver postgres")
		}
		if a.Feed.Channel == "" {
			return errors.New("invalid config: feed.channel is required")
		}
	case SourceRabbitMQ:
		if a.Store.Driver != DriverPostgres {
			return errors.New("invalid config: feed.source rabbitmq needs store.driver postgres")
		}
		if !a.Rabbit.Enabled() || a.Rabbit.User == "" {
			return errors.New("invalid config: feed.source rabbitmq needs rabbitmq.host and rabbitmq.user")
		}
		if a.Feed.Exchange == "" {
			return errors.New("invalid config: feed.exchange is required")
		}
	case SourceLocal:
		if a.Store.Driver != DriverSQLite {
			return errors.New("invalid config: feed.source local needs store.driver sqlite")
		}
	default:
		return fmt.Errorf("invalid config: unknown feed.source %q", a.Feed.Source)
	}

	if a.Sync.GraceWindow <= 0 || a.Sync.PollInterval <= 0 || a.Sync.TickInterval <= 0 || a.Sync.FetchTimeout <= 0 {
		return errors.New("invalid config: sync intervals must be positive")
	}
	if a.Sync.DebounceWindow < 0 {
		return errors.New("invalid config: sync.debounce_window must not be negative")
	}
	if a.HTTP.Port <= 0 || a.HTTP.Port > 65535 {
		return fmt.Errorf("invalid config: http.port %d out of range", a.HTTP.Port)
	}
	return nil
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
