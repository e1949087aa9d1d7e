// Package config holds the settings of the oracli service, read from TOML
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/erikwco/oracli/v3"
)

var (
	ErrInvalidConfigValue = errors.New("invalid config value")
)

type Config struct {
	Database Database `toml:"database" json:"database"`
	API      API      `toml:"api" json:"api"`
	Log      Log      `toml:"log" json:"log"`
	Query    Query    `toml:"query" json:"query"`
	Catalog  Catalog  `toml:"catalog" json:"catalog"`
}

type Database struct {
	Server   string `toml:"server" json:"server"`
	Port     int    `toml:"port" json:"port"`
	Service  string `toml:"service" json:"service"`
	User     string `toml:"user" json:"user"`
	Password string `toml:"password" json:"-"`
	// URL, when set, is used as is instead of the fields above
	URL     string            `toml:"url,omitempty" json:"-"`
	Options map[string]string `toml:"options,omitempty" json:"options,omitempty"`

	MaxOpenConnections    int      `toml:"max-open-connections" json:"max-open-connections"`
	MaxIdleConnections    int      `toml:"max-idle-connections" json:"max-idle-connections"`
	MaxConnectionLifeTime Duration `toml:"max-connection-lifetime" json:"max-connection-lifetime"`
	MaxIdleConnectionTime Duration `toml:"max-idle-connection-time" json:"max-idle-connection-time"`
	// Sessions bounds the sessions the service checks out at the same time
	Sessions int `toml:"sessions" json:"sessions"`
}

type API struct {
	Addr string `toml:"addr" json:"addr"`
	// RateLimit is the number of requests per second served, 0 disables it
	RateLimit int  `toml:"rate-limit" json:"rate-limit"`
	Pprof     bool `toml:"pprof" json:"pprof"`
}

type Log struct {
	Level   string `toml:"level" json:"level"`
	Encoder string `toml:"encoder" json:"encoder"`
}

type Query struct {
	Timeout    Duration `toml:"timeout" json:"timeout"`
	FetchBatch int      `toml:"fetch-batch" json:"fetch-batch"`
}

type Catalog struct {
	TTL Duration `toml:"ttl" json:"ttl"`
}

// Duration is a time.Duration written as "30s" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func NewConfig() *Config {
	var cfg Config

	cfg.Database.Port = 1521
	cfg.Database.MaxOpenConnections = 20
	cfg.Database.MaxIdleConnections = 5
	cfg.Database.MaxConnectionLifeTime = Duration{30 * time.Minute}
	cfg.Database.MaxIdleConnectionTime = Duration{5 * time.Minute}
	cfg.Database.Sessions = 10

	cfg.API.Addr = "0.0.0.0:8080"

	cfg.Log.Level = "info"
	cfg.Log.Encoder = oracli.LogFormatJSON

	cfg.Query.Timeout = Duration{30 * time.Second}
	cfg.Query.FetchBatch = 50

	cfg.Catalog.TTL = Duration{10 * time.Minute}

	return &cfg
}

// NewConfigFromFile reads path over the defaults of NewConfig and checks
// the result
func NewConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes TOML data over the defaults of NewConfig and checks the
// result
func Parse(data []byte) (*Config, error) {
	cfg := NewConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Check() error {
	if cfg.Database.URL == "" && cfg.Database.Server == "" {
		return fmt.Errorf("%w: database server or url is required", ErrInvalidConfigValue)
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		return fmt.Errorf("%w: database port %d", ErrInvalidConfigValue, cfg.Database.Port)
	}
	if cfg.Database.Sessions <= 0 {
		return fmt.Errorf("%w: sessions must be positive", ErrInvalidConfigValue)
	}
	if cfg.Query.FetchBatch <= 0 || cfg.Query.FetchBatch > 10000 {
		return fmt.Errorf("%w: fetch-batch must be between 1 and 10000", ErrInvalidConfigValue)
	}
	if cfg.API.RateLimit < 0 {
		return fmt.Errorf("%w: rate-limit can't be negative", ErrInvalidConfigValue)
	}
	switch cfg.Log.Encoder {
	case oracli.LogFormatJSON, oracli.LogFormatConsole:
	default:
		return fmt.Errorf("%w: log encoder %q", ErrInvalidConfigValue, cfg.Log.Encoder)
	}
	return nil
}

// Connection converts the database section into the settings of
// oracli.NewConnection
func (cfg *Config) Connection() *oracli.ConnectionConfiguration {
	return &oracli.ConnectionConfiguration{
		ConfigurationSet:      true,
		MaxOpenConnections:    cfg.Database.MaxOpenConnections,
		MaxIdleConnections:    cfg.Database.MaxIdleConnections,
		ContextTimeout:        int(cfg.Query.Timeout.Seconds()),
		MaxConnectionLifeTime: cfg.Database.MaxConnectionLifeTime.Duration,
		MaxIdleConnectionTime: cfg.Database.MaxIdleConnectionTime.Duration,
		FetchBatch:            cfg.Query.FetchBatch,
	}
}

func (cfg *Config) ToBytes() ([]byte, error) {
	b := new(bytes.Buffer)
	err := toml.NewEncoder(b).Encode(cfg)
	return b.Bytes(), err
}
