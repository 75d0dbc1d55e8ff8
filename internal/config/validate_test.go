package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/fhekit/internal/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"relay url scheme", func(c *Config) { c.Relay.URL = "ws://relay" }, errors.ErrConfigInvalidRelay},
		{"relay url empty", func(c *Config) { c.Relay.URL = "" }, errors.ErrConfigInvalidRelay},
		{"relay timeout", func(c *Config) { c.Relay.Timeout = 0 }, errors.ErrConfigInvalidRelay},
		{"bundle url and path", func(c *Config) {
			c.Engine.BundleURL = "https://cdn.example.com/engine.json"
			c.Engine.BundlePath = "/tmp/engine.json"
		}, errors.ErrConfigInvalidEngine},
		{"bundle url scheme", func(c *Config) { c.Engine.BundleURL = "file:///engine.json" }, errors.ErrConfigInvalidEngine},
		{"engine timeout", func(c *Config) { c.Engine.LoadTimeout = -1 }, errors.ErrConfigInvalidEngine},
		{"decryption contract", func(c *Config) { c.Chain.DecryptionContract = "0x1234" }, errors.ErrConfigInvalidChain},
		{"rpc url", func(c *Config) { c.Chain.RPCURL = "localhost:8545" }, errors.ErrConfigInvalidChain},
		{"backend", func(c *Config) { c.Storage.Backend = "s3" }, errors.ErrConfigInvalidStorage},
		{"redis without url", func(c *Config) { c.Storage.Backend = "redis" }, errors.ErrConfigInvalidStorage},
		{"redis with url", func(c *Config) {
			c.Storage.Backend = "redis"
			c.Storage.RedisURL = "redis://localhost:6379"
		}, nil},
		{"key cache size", func(c *Config) { c.Storage.KeyCacheSize = 0 }, errors.ErrConfigInvalidStorage},
		{"duration zero", func(c *Config) { c.Signature.DurationDays = 0 }, errors.ErrConfigInvalidSignature},
		{"duration too long", func(c *Config) { c.Signature.DurationDays = 5000 }, errors.ErrConfigInvalidSignature},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	require.ErrorIs(t, Validate(nil), errors.ErrConfigNil)
}
