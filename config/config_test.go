package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testConfig = Config{
	Database: Database{
		Server:                "db.local",
		Port:                  1522,
		Service:               "XEPDB1",
		User:                  "hr",
		Password:              "secret",
		Options:               map[string]string{"TRACE FILE": "trace.log"},
		MaxOpenConnections:    8,
		MaxIdleConnections:    2,
		MaxConnectionLifeTime: Duration{time.Hour},
		MaxIdleConnectionTime: Duration{time.Minute},
		Sessions:              4,
	},
	API: API{
		Addr:      "127.0.0.1:9090",
		RateLimit: 100,
		Pprof:     true,
	},
	Log: Log{
		Level:   "debug",
		Encoder: "console",
	},
	Query: Query{
		Timeout:    Duration{5 * time.Second},
		FetchBatch: 200,
	},
	Catalog: Catalog{
		TTL: Duration{time.Minute},
	},
}

func TestConfigRoundTrip(t *testing.T) {
	data, err := testConfig.ToBytes()
	require.NoError(t, err)
	cfg, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, testConfig, *cfg)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[database]
server = "db.local"
service = "XEPDB1"
`))
	require.NoError(t, err)
	require.Equal(t, 1521, cfg.Database.Port)
	require.Equal(t, 10, cfg.Database.Sessions)
	require.Equal(t, "0.0.0.0:8080", cfg.API.Addr)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Encoder)
	require.Equal(t, 30*time.Second, cfg.Query.Timeout.Duration)
	require.Equal(t, 50, cfg.Query.FetchBatch)
	require.Equal(t, 10*time.Minute, cfg.Catalog.TTL.Duration)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		toml string
		ok   bool
	}{
		{toml: `[database]
url = "oracle://hr:secret@db:1521/XEPDB1"`, ok: true},
		{toml: ``},
		{toml: `[database]
server = "db"
port = 70000`},
		{toml: `[database]
server = "db"
sessions = 0`},
		{toml: `[database]
server = "db"
[query]
fetch-batch = 0`},
		{toml: `[database]
server = "db"
[api]
rate-limit = -1`},
		{toml: `[database]
server = "db"
[log]
encoder = "xml"`},
	}
	for i, test := range tests {
		_, err := Parse([]byte(test.toml))
		if test.ok {
			require.NoError(t, err, "case %d", i)
		} else {
			require.ErrorIs(t, err, ErrInvalidConfigValue, "case %d", i)
		}
	}

	_, err := Parse([]byte(`[query]
timeout = "soon"`))
	require.Error(t, err)
}

func TestConnection(t *testing.T) {
	cc := testConfig.Connection()
	require.True(t, cc.ConfigurationSet)
	require.Equal(t, 8, cc.MaxOpenConnections)
	require.Equal(t, 2, cc.MaxIdleConnections)
	require.Equal(t, 5, cc.ContextTimeout)
	require.Equal(t, time.Hour, cc.MaxConnectionLifeTime)
	require.Equal(t, 200, cc.FetchBatch)
}

func TestNewConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oracli.toml")
	data, err := testConfig.ToBytes()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "db.local", cfg.Database.Server)

	_, err = NewConfigFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
