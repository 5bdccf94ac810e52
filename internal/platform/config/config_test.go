package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithEnvOverrides(t *testing.T) {
	t.Setenv("APP_OPERATOR_IDS", "7, 9")
	t.Setenv("APP_RETRIEVAL_CAP", "3")
	t.Setenv("APP_SQLITE_PATH", "/tmp/broadcast.db")
	t.Setenv("APP_DB_MAX_CONNS", "25")

	cfg, err := Load("broadcast_service")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "/tmp/broadcast.db", cfg.SQLitePath)
	assert.Equal(t, 3, cfg.RetrievalCap)
	assert.Equal(t, 25, cfg.DBMaxConns)
	assert.Equal(t, 2, cfg.DBMinConns)
	assert.Equal(t, 15*time.Second, cfg.TransportTimeout())
	assert.Equal(t, 30*time.Second, cfg.PollTimeout())

	ids, err := cfg.OperatorIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, ids)
}

func TestLoad_RejectsMissingOperators(t *testing.T) {
	_, err := Load("broadcast_service")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LogLevel:                "info",
			StoreDriver:             "postgres",
			PostgresDSN:             "postgres://x",
			DBMaxConns:              10,
			DBMinConns:              2,
			BotAPIURL:               "https://api.telegram.org",
			OperatorIDsRaw:          "1",
			PollTimeoutSeconds:      30,
			RetrievalCap:            2,
			FanoutConcurrency:       1,
			DispatchConcurrency:     1,
			TransportTimeoutSeconds: 5,
		}
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("ZeroCap", func(t *testing.T) {
		c := valid()
		c.RetrievalCap = 0
		assert.Error(t, c.Validate())
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		c := valid()
		c.StoreDriver = "redis"
		assert.Error(t, c.Validate())
	})

	t.Run("AdminAPIWithoutSecret", func(t *testing.T) {
		c := valid()
		c.AdminAPIPort = 8080
		assert.Error(t, c.Validate())
		c.AdminJWTSecret = "s3cret"
		assert.NoError(t, c.Validate())
	})

	t.Run("PoolBounds", func(t *testing.T) {
		c := valid()
		c.DBMaxConns = 0
		assert.Error(t, c.Validate())

		c = valid()
		c.DBMinConns = 11
		assert.Error(t, c.Validate(), "min above max")

		c.DBMinConns = 10
		assert.NoError(t, c.Validate())
	})

	t.Run("NonNumericOperator", func(t *testing.T) {
		c := valid()
		c.OperatorIDsRaw = "1,abc"
		assert.Error(t, c.Validate())
	})
}
