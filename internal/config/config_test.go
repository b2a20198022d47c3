package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitonicnl/fireworks/internal/config"
	"github.com/stretchr/testify/require"
)

const configINI = `
[modules]
backend = LND
pollinterval = 10s

[lnd]
rpchost = node.local:10009
certfile = /etc/lnd/tls.cert
macaroonfile = /etc/lnd/admin.macaroon

[frontend]
type = env
password = from-file

[log]
level = 5
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		missing := filepath.Join(t.TempDir(), "nope", "config")

		cfg, err := config.LoadConfig(missing, nil)
		require.NoError(t, err)
		require.Equal(t, config.BackendLightningd, cfg.Backend)
		require.Equal(t, config.FrontendTerminal, cfg.FrontendType)
		require.Equal(t, 5*time.Second, cfg.PollInterval)
		require.Equal(t, uint32(4), cfg.LogLevel)
		require.Equal(t, uint32(7001), cfg.HTTPPort)
		require.Equal(t, "localhost:10009", cfg.LNDRPCHost)
		require.NotNil(t, cfg.BackendService())
		require.NotNil(t, cfg.FrontendService())
	})

	t.Run("config file", func(t *testing.T) {
		cfg, err := config.LoadConfig(writeConfig(t, configINI), nil)
		require.NoError(t, err)
		require.Equal(t, config.BackendLND, cfg.Backend)
		require.Equal(t, 10*time.Second, cfg.PollInterval)
		require.Equal(t, "node.local:10009", cfg.LNDRPCHost)
		require.Equal(t, "/etc/lnd/tls.cert", cfg.LNDCertFile)
		require.Equal(t, "/etc/lnd/admin.macaroon", cfg.LNDMacaroonFile)
		require.Equal(t, config.FrontendEnv, cfg.FrontendType)
		require.Equal(t, "from-file", cfg.FrontendPassword)
		require.Equal(t, uint32(5), cfg.LogLevel)
	})

	t.Run("environment and overrides", func(t *testing.T) {
		t.Setenv("FIREWORKS_LND_RPCHOST", "env.local:10009")
		t.Setenv("FIREWORKS_LOG_LEVEL", "6")
		t.Setenv("FIREWORKS_LND_SOCKSPROXY", "127.0.0.1:9050")

		cfg, err := config.LoadConfig(writeConfig(t, configINI), []string{
			"log/level=2",
			"lightningd/dir=/var/lib/lightning",
		})
		require.NoError(t, err)
		require.Equal(t, "env.local:10009", cfg.LNDRPCHost)
		require.Equal(t, "127.0.0.1:9050", cfg.LNDSocksProxy)
		require.Equal(t, uint32(2), cfg.LogLevel)
		require.Equal(t, "/var/lib/lightning", cfg.LightningdDir)
	})

	t.Run("path expansion", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		cfg, err := config.LoadConfig(writeConfig(t, ""), []string{"lightningd/dir=$HOME/ln"})
		require.NoError(t, err)
		require.Equal(t, filepath.Join(home, "ln"), cfg.LightningdDir)
	})

	t.Run("invalid", func(t *testing.T) {
		path := writeConfig(t, "")
		fixtures := [][]string{
			{"modules/backend=eclair"},
			{"frontend/type=qt"},
			{"frontend/type=env"},
			{"frontend/type=file", "frontend/passwordfile=/does/not/exist"},
			{"modules/pollinterval=0s"},
			{"not an override"},
		}
		for _, overrides := range fixtures {
			_, err := config.LoadConfig(path, overrides)
			require.Error(t, err, "%v", overrides)
		}
	})
}

func TestSplitOverrides(t *testing.T) {
	overrides, rest := config.SplitOverrides([]string{
		"--verbose", "lnd/rpchost=host:1", "pay", "lnbc1", "key=value", "modules/backend=lnd",
	})
	require.Equal(t, []string{"lnd/rpchost=host:1", "modules/backend=lnd"}, overrides)
	require.Equal(t, []string{"--verbose", "pay", "lnbc1", "key=value"}, rest)
}
